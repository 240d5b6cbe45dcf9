package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `{"remote_url": "https://dev.example.com/feed", "events": [{"kind": "pr", "subkind": "create"}]}`

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "plado.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(minimal))
	require.NoError(t, err)
	assert.Equal(t, "https://dev.example.com/feed", doc.Global.String("remote_url"))
	assert.Equal(t, 60, doc.Global.Int("poll_interval"))
	require.Len(t, doc.Events, 1)
	assert.Equal(t, "pr", doc.Events[0]["kind"])
}

func TestParseYAML(t *testing.T) {
	doc, err := Parse([]byte("remote_url: http://localhost\npoll_interval: 2.5\nevents:\n  - kind: branch\n    subkind: create\n"))
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, doc.Global.Seconds("poll_interval"))
	assert.Equal(t, "branch", doc.Events[0]["kind"])
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{"remote_url": "http://x"}`))
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "events", missing.Name)

	_, err = Parse([]byte(`{"remote_url": "http://x", "events": [], "max_concurrency": "four"}`))
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "max_concurrency", te.Name)

	_, err = Parse([]byte(`{"remote_url": "http://x", "events": ["pr"]}`))
	var ve *ValueError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Reason, "entry 0")

	_, err = Parse([]byte("{not json"))
	assert.Error(t, err)
}

func TestLoaderReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, minimal)

	l, err := NewLoader(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())
	assert.Equal(t, path, l.Document().Path)

	var got []*Document
	l.OnChange(func(d *Document) { got = append(got, d) })

	writeFile(t, dir, `{"remote_url": "https://other", "events": []}`)
	doc, err := l.Reload()
	require.NoError(t, err)
	assert.Equal(t, "https://other", doc.Global.String("remote_url"))
	assert.Same(t, doc, l.Document())
	require.Len(t, got, 1)

	writeFile(t, dir, `{"events": []}`)
	_, err = l.Reload()
	require.Error(t, err)
	assert.Equal(t, "https://other", l.Document().Global.String("remote_url"), "bad reload keeps previous document")
	assert.Len(t, got, 1)
}

func TestLoaderWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, minimal)
	l, err := NewLoader(path, nil)
	require.NoError(t, err)

	changed := make(chan *Document, 16)
	l.OnChange(func(d *Document) { changed <- d })
	stop, err := l.Watch()
	require.NoError(t, err)
	defer stop()

	writeFile(t, dir, `{"remote_url": "https://watched", "events": []}`)
	select {
	case d := <-changed:
		assert.Equal(t, "https://watched", d.Global.String("remote_url"))
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not pick up the change")
	}
	stop()
	stop()
}

func TestNewLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.json"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	fromEnv := writeFile(t, dir, minimal)
	fromFlag := filepath.Join(dir, "flag.json")
	require.NoError(t, os.WriteFile(fromFlag, []byte(minimal), 0o600))
	t.Setenv("HOME", t.TempDir())

	newFlags := func(args ...string) *pflag.FlagSet {
		fs := pflag.NewFlagSet("plado", pflag.ContinueOnError)
		fs.StringP(FlagConfig, "c", "", "")
		require.NoError(t, fs.Parse(args))
		return fs
	}

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(EnvConfig, fromEnv)
		got, err := ResolvePath(newFlags("-c", fromFlag))
		require.NoError(t, err)
		assert.Equal(t, fromFlag, got)
	})
	t.Run("env", func(t *testing.T) {
		t.Setenv(EnvConfig, fromEnv)
		got, err := ResolvePath(newFlags())
		require.NoError(t, err)
		assert.Equal(t, fromEnv, got)
	})
	t.Run("default missing", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		_, err := ResolvePath(nil)
		assert.ErrorContains(t, err, "default location")
	})
	t.Run("default present", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		writeDefault := DefaultPath()
		require.NoError(t, os.WriteFile(writeDefault, []byte(minimal), 0o600))
		got, err := ResolvePath(nil)
		require.NoError(t, err)
		assert.Equal(t, writeDefault, got)
	})
	t.Run("given path missing", func(t *testing.T) {
		_, err := ResolvePath(newFlags("--config", filepath.Join(dir, "missing.json")))
		assert.ErrorContains(t, err, "could not be found")
	})
	t.Run("directory", func(t *testing.T) {
		_, err := ResolvePath(newFlags("-c", dir))
		assert.ErrorContains(t, err, "directory")
	})
}
