package lurk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 10, cfg.GetInt("prover.reduction-count"))
	assert.Equal(t, 100_000, cfg.GetInt("eval.limit"))
	assert.Equal(t, DefaultParamsDir, cfg.GetString("params.dir"))
	assert.Equal(t, "info", cfg.GetString("log.level"))
	assert.False(t, cfg.GetBool("prover.abomonated"))
}

func TestConfigTypeSafety(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() { cfg.GetString("prover.reduction-count") })
	assert.Panics(t, func() { cfg.SetBool("eval.limit", true) })
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lurk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
prover:
  reduction-count: 100
  abomonated: true
eval:
  limit: 42
log:
  level: debug
`), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.GetInt("prover.reduction-count"))
	assert.Equal(t, 42, cfg.GetInt("eval.limit"))
	assert.Equal(t, "debug", cfg.GetString("log.level"))
	assert.True(t, cfg.GetBool("prover.abomonated"))
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultParamsDir, cfg.GetString("params.dir"))
}

func TestLoadConfigFileErrors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("eval:\n  limit: [1, 2]\n"), 0o644))
	_, err = LoadConfigFile(path)
	assert.Error(t, err)
}
