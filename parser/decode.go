package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DecodeFile reads every schema declaration from a YAML file. A file may
// hold several declarations separated by document markers.
func DecodeFile(path string) ([]Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	return Decode(bytes.NewReader(data), path)
}

// Decode reads declarations from r, stamping each with source.
func Decode(r io.Reader, source string) ([]Declaration, error) {
	dec := yaml.NewDecoder(r)

	var decls []Declaration
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse yaml %s: %w", source, err)
		}
		if len(doc.Content) == 0 || isNull(doc.Content[0]) {
			continue
		}

		var d Declaration
		if err := doc.Decode(&d); err != nil {
			return nil, fmt.Errorf("parse yaml %s: %w", source, err)
		}
		d.Source = source
		decls = append(decls, d)
	}
	return decls, nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}
