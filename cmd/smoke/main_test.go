package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func quietConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smoke.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging: {level: error, format: json}\nengine: {workers: 2}\n"), 0o600))
	return path
}

func TestValidateSampleWorlds(t *testing.T) {
	cfg := quietConfig(t)
	out, err := execute(t, "validate", "../../worlds/farm.yaml", "--load", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "farm.yaml: ok (8 systems, 8 links)")
}

func TestValidateRejectsBrokenWorld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("systems:\n  - module: weather\n"), 0o600))
	_, err := execute(t, "validate", path)
	assert.Error(t, err)
}

func TestTypes(t *testing.T) {
	out, err := execute(t, "types", "--config", quietConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "WaterStream")
	assert.Contains(t, out, "Camera, Mesh")
	assert.Contains(t, out, "Chicken")
}

func TestRunFrameLimit(t *testing.T) {
	out, err := execute(t, "run", "../../worlds/farm.yaml", "--frames", "3", "--tick-rate", "0", "--config", quietConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "ran 3 frames")
}
