package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is a named collection of typed fields. The set of field names is
// fixed when the Config is constructed; values change only through Set and Load.
type Config struct {
	schema string
	order  []string
	fields map[string]*Field
}

// New builds a Config for schema from the given field declarations.
// Panics on duplicate names to surface schema mistakes early.
func New(schema string, fields ...Field) *Config {
	c := &Config{
		schema: schema,
		order:  make([]string, 0, len(fields)),
		fields: make(map[string]*Field, len(fields)),
	}
	for i := range fields {
		f := fields[i]
		if _, exists := c.fields[f.Name]; exists {
			panic(fmt.Sprintf("config schema %s: duplicate field %q", schema, f.Name))
		}
		f.value, f.isSet = nil, false
		c.fields[f.Name] = &f
		c.order = append(c.order, f.Name)
	}
	return c
}

// Schema returns the name of the schema this Config was built from.
func (c *Config) Schema() string { return c.schema }

// Fields returns the declared fields in declaration order.
func (c *Config) Fields() []*Field {
	out := make([]*Field, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.fields[name])
	}
	return out
}

// Get returns the value of name, or nil if the field holds no value.
func (c *Config) Get(name string) (any, error) {
	f, ok := c.fields[name]
	if !ok {
		return nil, &KeyError{Schema: c.schema, Name: name}
	}
	return f.value, nil
}

// Set validates value against the field's accepted types and stores it.
// On failure the previous value is left untouched.
func (c *Config) Set(name string, value any) error {
	f, ok := c.fields[name]
	if !ok {
		return &KeyError{Schema: c.schema, Name: name}
	}
	v, ok := f.coerce(value)
	if !ok {
		return &TypeError{Schema: c.schema, Name: name, Got: describe(value), Want: f.Types}
	}
	f.value, f.isSet = v, true
	return nil
}

// Load walks doc and sets every declared field it contains. Unknown keys are
// ignored. Absent required fields without a default produce a
// MissingFieldError; absent optional fields take their default. All field
// errors are reported together.
func (c *Config) Load(doc map[string]any) error {
	var errs []error
	for _, name := range c.order {
		f := c.fields[name]
		raw, present := doc[name]
		if present && raw != nil {
			if err := c.Set(name, raw); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if f.Default != nil {
			f.value, f.isSet = f.Default, true
			continue
		}
		if f.Required {
			errs = append(errs, &MissingFieldError{Schema: c.schema, Name: name})
			continue
		}
		f.value, f.isSet = nil, false
	}
	return errors.Join(errs...)
}

// Has reports whether name currently holds a value.
func (c *Config) Has(name string) bool {
	return c.field(name).isSet
}

// Map returns a copy of all present values keyed by field name.
func (c *Config) Map() map[string]any {
	out := make(map[string]any, len(c.fields))
	for name, f := range c.fields {
		if f.isSet {
			out[name] = f.value
		}
	}
	return out
}

// The typed accessors below return the zero value when the field is unset.
// They panic on undeclared names: callers only ask for fields of their own schema.

func (c *Config) String(name string) string {
	s, _ := c.field(name).value.(string)
	return s
}

func (c *Config) Int(name string) int {
	switch v := c.field(name).value.(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func (c *Config) Float(name string) float64 {
	switch v := c.field(name).value.(type) {
	case int:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

func (c *Config) Bool(name string) bool {
	b, _ := c.field(name).value.(bool)
	return b
}

// Seconds interprets a numeric field as a number of seconds.
func (c *Config) Seconds(name string) time.Duration {
	return time.Duration(c.Float(name) * float64(time.Second))
}

func (c *Config) List(name string) []any {
	l, _ := c.field(name).value.([]any)
	return l
}

// Strings renders every list element with %v.
func (c *Config) Strings(name string) []string {
	l := c.List(name)
	if l == nil {
		return nil
	}
	out := make([]string, len(l))
	for i, v := range l {
		out[i] = fmt.Sprintf("%v", v)
	}
	return out
}

func (c *Config) field(name string) *Field {
	f, ok := c.fields[name]
	if !ok {
		panic((&KeyError{Schema: c.schema, Name: name}).Error())
	}
	return f
}
