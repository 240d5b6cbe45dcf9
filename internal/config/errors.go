package config

import (
	"fmt"
	"strings"
)

// KeyError reports a Get or Set on a field name the schema never declared.
type KeyError struct {
	Schema string
	Name   string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("config %s: unrecognized field %q", e.Schema, e.Name)
}

// TypeError reports a value whose runtime type is not accepted by the field.
type TypeError struct {
	Schema string
	Name   string
	Got    string
	Want   []Type
}

func (e *TypeError) Error() string {
	want := make([]string, len(e.Want))
	for i, t := range e.Want {
		want[i] = t.String()
	}
	return fmt.Sprintf("config %s: field %q must be one of [%s], got %s",
		e.Schema, e.Name, strings.Join(want, ", "), e.Got)
}

// MissingFieldError reports a required field absent from the document with no default.
type MissingFieldError struct {
	Schema string
	Name   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("config %s: required field %q not found", e.Schema, e.Name)
}

// ValueError reports a well-typed value that is still unusable, such as an
// unknown event kind or an unparsable cron expression.
type ValueError struct {
	Schema string
	Name   string
	Reason string
}

func (e *ValueError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("config %s: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("config %s: field %q: %s", e.Schema, e.Name, e.Reason)
}
