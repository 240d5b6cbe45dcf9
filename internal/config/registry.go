package config

import "fmt"

// Schema names one kind of Config and how to build its fields.
type Schema struct {
	Name        string
	Description string
	fields      func() []Field
}

// Fields returns a fresh copy of the schema's field declarations.
func (s Schema) Fields() []Field { return s.fields() }

// registry is the complete, fixed table of configuration schemas.
var registry = []Schema{
	{Name: SchemaGlobal, Description: "Top-level keys of the configuration file.", fields: globalFields},
	{Name: SchemaEvent, Description: "Keys shared by every entry of \"events\".", fields: eventFields},
	{Name: SchemaJob, Description: "Keys of every entry of an event's \"jobs\".", fields: jobFields},
	{Name: SchemaPR, Description: "Event entries with kind \"pr\".", fields: prFields},
	{Name: SchemaWorkItem, Description: "Event entries with kind \"work_item\".", fields: workItemFields},
	{Name: SchemaBranch, Description: "Event entries with kind \"branch\".", fields: branchFields},
	{Name: SchemaPipeline, Description: "Event entries with kind \"pipeline\".", fields: pipelineFields},
}

// Schemas returns every registered schema in display order.
func Schemas() []Schema {
	out := make([]Schema, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds a schema by name.
func Lookup(name string) (Schema, bool) {
	for _, s := range registry {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}

// NewFromSchema builds an empty Config for a registered schema.
func NewFromSchema(name string) *Config {
	s, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("config: unknown schema %q", name))
	}
	return New(s.Name, s.Fields()...)
}
