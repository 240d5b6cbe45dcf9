package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/plado/internal/config"
)

const sampleConfig = `{
  "remote_url": "http://127.0.0.1:9/feed",
  "poll_interval": 30,
  "events": [
    {"kind": "pr", "subkind": "create", "project": "core", "repository": "api",
     "fire_params": ["/bin/echo", "{entity_id}"],
     "filters": ["status == \"active\""]},
    {"kind": "work_item", "subkind": "state_change", "project": "core", "name": "wi_state",
     "schedule": "*/5 * * * *",
     "jobs": [{"args": ["notify", "{prev_state}", "{state}"], "name": "notify"}]}
  ]
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plado.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSummary(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	out, err := execute(t, "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "pr_create")
	assert.Contains(t, out, "wi_state")
	assert.Contains(t, out, "every 30s")
	assert.Contains(t, out, "*/5 * * * *")
	assert.Contains(t, out, "notify")
}

func TestSummaryFromEnv(t *testing.T) {
	t.Setenv(config.EnvConfig, writeConfig(t, sampleConfig))

	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "pr_create")
}

func TestConfigErrorsAreFatal(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing remote_url", `{"events": []}`, "remote_url"},
		{"unknown kind", `{"remote_url": "http://x", "events": [{"kind": "tag", "subkind": "create"}]}`, "kind"},
		{"bad cron", `{"remote_url": "http://x", "events": [{"kind": "pr", "subkind": "create",
			"project": "p", "repository": "r", "schedule": "not a cron"}]}`, "schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "--config", writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "-c", filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorContains(t, err, "could not be found")
}

func TestShowConfig(t *testing.T) {
	out, err := execute(t, "--show-config")
	require.NoError(t, err)
	for _, s := range config.Schemas() {
		assert.Contains(t, out, s.Name)
	}
	assert.Contains(t, out, "remote_url")
	assert.Contains(t, out, "status_change")
}

func TestShowEnv(t *testing.T) {
	out, err := execute(t, "--show-env")
	require.NoError(t, err)
	assert.Contains(t, out, "PLADO_CONFIG")
	assert.Contains(t, out, "PLADO_EVENT_JSON")
}

func TestFlagsExclusive(t *testing.T) {
	_, err := execute(t, "--show-env", "--show-config")
	assert.Error(t, err)
}
