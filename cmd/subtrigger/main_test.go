package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryEnv sets a minimal valid configuration that needs no connections.
func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE", "memory")
	t.Setenv("TRANSPORT", "channel")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SPATIAL_URL", "")
	t.Setenv("ASSET_URL", "")
	t.Setenv("ENQUEUE_ENABLED", "false")
	t.Setenv("LEADER_ELECTION_ENABLED", "false")
	t.Setenv("SCHEDULER_SPEC", "@every 1m")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "subtrigger version dev (commit: unknown)\n", out)
}

func TestValidateCommand_Valid(t *testing.T) {
	memoryEnv(t)

	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Equal(t, "configuration valid\n", out)
}

func TestValidateCommand_InvalidExitCode(t *testing.T) {
	memoryEnv(t)
	t.Setenv("TRANSPORT", "kafka")

	assert.Equal(t, exitInvalidConfig, run([]string{"validate"}))
}

func TestConfigCommand_MasksSecrets(t *testing.T) {
	memoryEnv(t)
	t.Setenv("DATABASE_URL", "postgres://sub:secret@db/subscriptions")

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.NotContains(t, out, "secret")

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "memory", cfg["STORE"])
	assert.Equal(t, "postgres://***", cfg["DATABASE_URL"])
}

func TestMigrateCommand_RequiresDatabase(t *testing.T) {
	memoryEnv(t)

	_, err := execute(t, "migrate", "version")
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoDatabase)
	assert.Equal(t, exitInvalidConfig, run([]string{"migrate", "version"}))
}

func TestMigrateDown_RejectsBadSteps(t *testing.T) {
	memoryEnv(t)

	_, err := execute(t, "migrate", "down", "zero")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "positive integer"))
}

func TestUnknownCommand(t *testing.T) {
	assert.Equal(t, exitRuntimeError, run([]string{"frobnicate"}))
}

func TestNewResolvers_StaticWhenUnconfigured(t *testing.T) {
	memoryEnv(t)
	cfg, err := loadConfig()
	require.NoError(t, err)

	assets, areas, err := newResolvers(cfg)
	require.NoError(t, err)

	found, err := assets.AssetsByGUID(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NotNil(t, areas)
}
