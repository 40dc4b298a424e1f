package targets

import (
	"testing"

	"github.com/matryer/is"

	"github.com/schemagen/usrgen"
	"github.com/schemagen/usrgen/usr"
)

func TestRegistryHoldsBundledTargets(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()
	is.Equal(r.Targets(), []string{"jsonschema", "pydantic", "sqlalchemy", "zod"})
	is.True(Register(r) != nil) // registering twice fails
}

func TestEveryTargetMapsEveryKind(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()
	for _, name := range r.Targets() {
		g, err := r.New(name, usrgen.Options{})
		is.NoErr(err)
		tt := g.TypeTable()
		is.NoErr(tt.Check())
		for _, k := range usr.Kinds() {
			rule, err := tt.Rule(k)
			is.NoErr(err)
			is.True(rule.Expr != "")
			if rule.Fallback {
				is.True(rule.Note != "") // fallbacks are documented
			}
		}
	}
}
