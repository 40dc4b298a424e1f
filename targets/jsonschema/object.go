package jsonschema

import (
	"bytes"
	"sort"

	"github.com/goccy/go-json"
)

type member struct {
	key   string
	value any
}

// object is a JSON object that keeps its members in insertion order.
type object []member

// set adds a member, or replaces the value of an existing one in place.
func (o *object) set(key string, value any) {
	for i := range *o {
		if (*o)[i].key == key {
			(*o)[i].value = value
			return
		}
	}
	*o = append(*o, member{key: key, value: value})
}

// members renders o without its enclosing braces.
func (o object) members() (string, error) {
	b, err := o.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b[1 : len(b)-1]), nil
}

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.MarshalNoEscape(m.key)
		if err != nil {
			return nil, err
		}
		v, err := json.MarshalNoEscape(m.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// sortedMembers appends the entries of m to o in key order.
func (o *object) sortedMembers(m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.set(k, m[k])
	}
}

func pretty(v any) ([]byte, error) {
	raw, err := json.MarshalNoEscape(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
