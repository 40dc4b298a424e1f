package parser

import (
	"regexp"

	"github.com/google/uuid"

	"github.com/schemagen/usrgen/usr"
)

var numericConstraints = []string{
	usr.MinLength, usr.MaxLength, usr.MinItems, usr.MaxItems,
	usr.MinValue, usr.MaxValue, usr.MaxDigits, usr.DecimalPlaces,
}

var countConstraints = []string{
	usr.MinLength, usr.MaxLength, usr.MinItems, usr.MaxItems, usr.MaxDigits, usr.DecimalPlaces,
}

var knownFormats = map[string]bool{
	"email": true, "uri": true, "url": true, "uuid": true, "date-time": true,
	"date": true, "time": true, "ipv4": true, "ipv6": true, "hostname": true,
}

// constraints merges the open constraint map with the dedicated keys. A
// dedicated key wins over the same key in the open map.
func (p *schemaParser) constraints(fd FieldDecl) (usr.Constraints, error) {
	c := usr.Constraints{}
	for k, v := range fd.Constraints {
		c[k] = normalize(v)
	}
	setInt := func(key string, v *int64) {
		if v != nil {
			c[key] = *v
		}
	}
	setFloat := func(key string, v *float64) {
		if v != nil {
			c[key] = *v
		}
	}
	setInt(usr.MinLength, fd.MinLength)
	setInt(usr.MaxLength, fd.MaxLength)
	setInt(usr.MinItems, fd.MinItems)
	setInt(usr.MaxItems, fd.MaxItems)
	setInt(usr.MaxDigits, fd.MaxDigits)
	setInt(usr.DecimalPlaces, fd.DecimalPlaces)
	setFloat(usr.MinValue, fd.MinValue)
	setFloat(usr.MaxValue, fd.MaxValue)
	if fd.Regex != "" {
		c[usr.Regex] = fd.Regex
	}
	if fd.Format != "" {
		c[usr.Format] = fd.Format
	}

	for _, key := range numericConstraints {
		if !c.Has(key) {
			continue
		}
		if _, ok := c.Float(key); !ok {
			return nil, p.fail(fd.Name, "constraint %s must be a number, got %T", key, c[key])
		}
	}
	for _, key := range countConstraints {
		if !c.Has(key) {
			continue
		}
		if _, ok := c.Int(key); !ok {
			return nil, p.fail(fd.Name, "constraint %s must be a whole number", key)
		}
	}
	if len(c) == 0 {
		return nil, nil
	}
	return c, nil
}

// checkConstraints rejects contradictory or malformed constraint sets.
func (p *schemaParser) checkConstraints(f *usr.Field) error {
	c := f.Constraints
	for _, key := range countConstraints {
		if n, ok := c.Int(key); ok && n < 0 {
			return p.fail(f.Name, "%s must not be negative", key)
		}
	}
	for _, pair := range [][2]string{
		{usr.MinLength, usr.MaxLength},
		{usr.MinItems, usr.MaxItems},
		{usr.MinValue, usr.MaxValue},
	} {
		lo, okLo := c.Float(pair[0])
		hi, okHi := c.Float(pair[1])
		if okLo && okHi && lo > hi {
			return p.fail(f.Name, "%s (%v) is greater than %s (%v)", pair[0], c[pair[0]], pair[1], c[pair[1]])
		}
	}
	if places, ok := c.Int(usr.DecimalPlaces); ok {
		if digits, ok := c.Int(usr.MaxDigits); ok && places > digits {
			return p.fail(f.Name, "decimal_places (%d) exceeds max_digits (%d)", places, digits)
		}
	}
	if c.Has(usr.Regex) {
		expr, ok := c.String(usr.Regex)
		if !ok {
			return p.fail(f.Name, "regex must be a string")
		}
		if _, err := regexp.Compile(expr); err != nil {
			return p.fail(f.Name, "invalid regex %q: %v", expr, err)
		}
	}
	if c.Has(usr.Format) {
		format, ok := c.String(usr.Format)
		if !ok {
			return p.fail(f.Name, "format must be a string")
		}
		if !knownFormats[format] {
			p.warn(f.Name, "unknown format %q is passed through unchecked", format)
		}
	}
	return nil
}

// checkDefault validates a literal default against the field type.
func (p *schemaParser) checkDefault(f *usr.Field) error {
	if f.Default == nil {
		if !f.Optional {
			p.warn(f.Name, "null default on a non-optional field")
		}
		return nil
	}
	t := f.Type.Unwrap()
	switch t.Kind {
	case usr.KindUUID:
		s, ok := f.Default.(string)
		if !ok {
			return p.fail(f.Name, "default for a UUID field must be a string")
		}
		if _, err := uuid.Parse(s); err != nil {
			return p.fail(f.Name, "default %q is not a valid UUID: %v", s, err)
		}
	case usr.KindLiteral:
		for _, v := range t.Values {
			if v == f.Default {
				return nil
			}
		}
		return p.fail(f.Name, "default %s is not one of the literal values", usr.FormatLiteral(f.Default))
	case usr.KindBoolean:
		if _, ok := f.Default.(bool); !ok {
			return p.fail(f.Name, "default for a boolean field must be true or false")
		}
	case usr.KindInteger:
		if _, ok := f.Default.(int64); !ok {
			return p.fail(f.Name, "default for an integer field must be a whole number")
		}
	case usr.KindString:
		if _, ok := f.Default.(string); !ok {
			return p.fail(f.Name, "default for a string field must be a string")
		}
	}
	return nil
}

// checkField records non-fatal findings about a parsed field.
func (p *schemaParser) checkField(f *usr.Field) {
	t := f.Type.Unwrap()
	c := f.Constraints

	if f.DB.PrimaryKey && f.Optional {
		p.warn(f.Name, "primary_key field is also optional")
	}
	if (c.Has(usr.MinLength) || c.Has(usr.MaxLength)) && !hasLength(t.Kind) {
		p.warn(f.Name, "min_length/max_length have no effect on %s", t.Kind)
	}
	if (c.Has(usr.MinItems) || c.Has(usr.MaxItems)) && t.Kind != usr.KindList {
		p.warn(f.Name, "min_items/max_items have no effect on %s", t.Kind)
	}
	if (c.Has(usr.MinValue) || c.Has(usr.MaxValue)) && !isNumeric(t.Kind) {
		p.warn(f.Name, "min_value/max_value have no effect on %s", t.Kind)
	}
	if (f.DB.AutoNow || f.DB.AutoNowAdd) && !isTemporal(t.Kind) {
		p.warn(f.Name, "auto_now/auto_now_add have no effect on %s", t.Kind)
	}
	if f.DB.AutoIncrement && t.Kind != usr.KindInteger {
		p.warn(f.Name, "auto_increment on a %s field", t.Kind)
	}
	if f.DefaultFactory == usr.FactoryNow && !isTemporal(t.Kind) {
		p.warn(f.Name, "default_factory now on a %s field", t.Kind)
	}
	for _, v := range f.ExcludeFrom {
		if f.IncludeOnly.Contains(v) {
			p.info(f.Name, "variant %q is in both exclude_from and include_only; the field is excluded", v)
		}
	}
}

func hasLength(k usr.Kind) bool {
	return k == usr.KindString || k == usr.KindBytes || k == usr.KindList
}

func isNumeric(k usr.Kind) bool {
	return k == usr.KindInteger || k == usr.KindFloat || k == usr.KindDecimal
}

func isTemporal(k usr.Kind) bool {
	return k == usr.KindDatetime || k == usr.KindDate || k == usr.KindTime
}
