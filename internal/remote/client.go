// Package remote defines the boundary to the project-management service the
// daemon watches. The engine only needs current-state listings, so a Client
// is a single Fetch call per entity kind.
package remote

import (
	"context"
	"fmt"
)

// Entity is the current state of one remote object.
type Entity struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

// Query narrows a Fetch to the objects one event definition watches.
// Empty fields mean "all".
type Query struct {
	Project    string   `json:"project,omitempty"`
	Repository string   `json:"repository,omitempty"`
	Branch     string   `json:"branch,omitempty"`
	Pipeline   string   `json:"pipeline,omitempty"`
	Teams      []string `json:"teams,omitempty"`
	IDs        []string `json:"ids,omitempty"`
}

// Client fetches current-state listings for an entity kind.
type Client interface {
	Fetch(ctx context.Context, kind string, q Query) ([]Entity, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, kind string, q Query) ([]Entity, error)

func (f ClientFunc) Fetch(ctx context.Context, kind string, q Query) ([]Entity, error) {
	return f(ctx, kind, q)
}

// FetchError wraps any failure to obtain a listing from the remote service.
type FetchError struct {
	Kind string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("remote fetch %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
