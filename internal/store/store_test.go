package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/plado/internal/event"
)

func backends() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "state", "plado.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func snapshot(id string, attrs map[string]any, at int64) event.Snapshot {
	return event.Snapshot{EntityID: id, Kind: event.KindPR, Attributes: attrs, ObservedAt: time.Unix(at, 0)}
}

func TestGetPut(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()
			key := Key{Scope: "pr_update", Kind: event.KindPR, EntityID: "42"}

			got, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.Nil(t, got)

			require.NoError(t, s.Put(ctx, key, snapshot("42", map[string]any{"status": "active", "n": 1}, 10)))
			require.NoError(t, s.Put(ctx, key, snapshot("42", map[string]any{"status": "completed"}, 20)))

			got, err = s.Get(ctx, key)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "42", got.EntityID)
			assert.Equal(t, event.KindPR, got.Kind)
			assert.Equal(t, map[string]any{"status": "completed"}, got.Attributes, "put replaces the whole snapshot")
			assert.True(t, got.ObservedAt.Equal(time.Unix(20, 0)))
		})
	}
}

func TestScopesAreIndependent(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()

			a := Key{Scope: "a", Kind: event.KindPR, EntityID: "1"}
			b := Key{Scope: "b", Kind: event.KindPR, EntityID: "1"}
			require.NoError(t, s.Put(ctx, a, snapshot("1", map[string]any{"v": "a"}, 1)))

			got, err := s.Get(ctx, b)
			require.NoError(t, err)
			assert.Nil(t, got)

			require.NoError(t, s.Put(ctx, b, snapshot("1", map[string]any{"v": "b"}, 1)))
			got, err = s.Get(ctx, a)
			require.NoError(t, err)
			assert.Equal(t, "a", got.Attributes["v"])

			list, err := s.List(ctx, "a")
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "a", list[0].Attributes["v"])
		})
	}
}

func TestList(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()
			for _, id := range []string{"3", "1", "2"} {
				require.NoError(t, s.Put(ctx, Key{Scope: "x", Kind: event.KindPR, EntityID: id}, snapshot(id, nil, 1)))
			}
			list, err := s.List(ctx, "x")
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"1", "2", "3"}, []string{list[0].EntityID, list[1].EntityID, list[2].EntityID})

			empty, err := s.List(ctx, "missing")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestConcurrentDisjointKeys(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()

			const writers, rounds = 2, 50
			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					scope := fmt.Sprintf("def_%d", w)
					for r := 0; r < rounds; r++ {
						key := Key{Scope: scope, Kind: event.KindPR, EntityID: "shared"}
						assert.NoError(t, s.Put(ctx, key, snapshot("shared", map[string]any{"writer": scope, "round": r}, int64(r+1))))
					}
				}(w)
			}
			wg.Wait()

			for w := 0; w < writers; w++ {
				scope := fmt.Sprintf("def_%d", w)
				got, err := s.Get(ctx, Key{Scope: scope, Kind: event.KindPR, EntityID: "shared"})
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, scope, got.Attributes["writer"])
				assert.True(t, event.Equal(rounds-1, got.Attributes["round"]))
			}
		})
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	key := Key{Scope: "x", Kind: event.KindPR, EntityID: "1"}
	attrs := map[string]any{"reviewers": []any{"alice"}}
	require.NoError(t, s.Put(ctx, key, snapshot("1", attrs, 1)))

	attrs["reviewers"].([]any)[0] = "mallory"
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	got.Attributes["extra"] = true

	again, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"reviewers": []any{"alice"}}, again.Attributes)
}

func TestClosed(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Close())
	ctx := context.Background()
	_, err := s.Get(ctx, Key{Scope: "x"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Put(ctx, Key{Scope: "x"}, event.Snapshot{}), ErrClosed)
	_, err = s.List(ctx, "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plado.db")
	ctx := context.Background()
	key := Key{Scope: "pr_create", Kind: event.KindPR, EntityID: "7"}

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, key, snapshot("7", map[string]any{"title": "x", "votes": map[string]any{"a": 1}}, 5)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, event.Equal(map[string]any{"title": "x", "votes": map[string]any{"a": 1}}, got.Attributes))
}
