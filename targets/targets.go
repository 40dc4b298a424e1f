// Package targets wires the bundled generators into a usrgen.Registry.
package targets

import (
	"github.com/schemagen/usrgen"
	"github.com/schemagen/usrgen/targets/jsonschema"
	"github.com/schemagen/usrgen/targets/pydantic"
	"github.com/schemagen/usrgen/targets/sqlalchemy"
	"github.com/schemagen/usrgen/targets/zod"
)

var bundled = []struct {
	name    string
	factory usrgen.Factory
}{
	{pydantic.Target, pydantic.New},
	{sqlalchemy.Target, sqlalchemy.New},
	{zod.Target, zod.New},
	{jsonschema.Target, jsonschema.New},
}

// Register adds every bundled generator to r.
func Register(r *usrgen.Registry) error {
	for _, b := range bundled {
		if err := r.Register(b.name, b.factory); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding every bundled generator.
func NewRegistry() *usrgen.Registry {
	r := usrgen.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}
