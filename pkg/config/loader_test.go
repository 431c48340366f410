package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentskill/skillgov/pkg/config/provider"
)

const minimalYAML = `
skill_registry:
  - skill_id: do_nothing
    display_name: Do Nothing
    allowed_agent_types: [household_owner]
  - skill_id: elevate_house
    display_name: Elevate House
    allowed_agent_types: [household_owner]
    constraints:
      - kind: once_only
agent_types:
  household_owner:
    default_skill: do_nothing
    cognitive_dimensions: [TP, CP]
memory:
  engine: window
  window_size: ${WINDOW_SIZE:-5}
`

func TestLoadConfigFile_MinimalYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	cfg, loader, err := LoadConfigFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	assert.Len(t, cfg.SkillRegistry, 2)
	assert.Equal(t, "window", cfg.Memory.Engine)
	assert.Equal(t, 5, cfg.Memory.WindowSize) // default expansion since WINDOW_SIZE unset
	assert.Equal(t, 2, cfg.Broker.MaxParseRetries)
	assert.Equal(t, 3, cfg.Broker.MaxValidationRetries)
	assert.Equal(t, []string{"admissibility", "context_feasibility", "institutional", "effect_safety", "coherence"}, cfg.Validation.Order)
}

func TestLoadConfigFile_EnvVarOverride(t *testing.T) {
	t.Setenv("WINDOW_SIZE", "42")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	cfg, loader, err := LoadConfigFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	assert.Equal(t, 42, cfg.Memory.WindowSize)
}

func TestLoadConfigFile_NotFound(t *testing.T) {
	_, _, err := LoadConfigFile(context.Background(), "/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadConfigFile_InvalidDefaultSkill(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	badYAML := `
skill_registry:
  - skill_id: do_nothing
    allowed_agent_types: [household_owner]
agent_types:
  household_owner:
    default_skill: do_nothin
`
	require.NoError(t, os.WriteFile(path, []byte(badYAML), 0o644))

	_, _, err := LoadConfigFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean")
	assert.Contains(t, err.Error(), "do_nothing")
}

func TestLoadConfigFile_UnknownMemoryEngine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	badYAML := `
skill_registry:
  - skill_id: do_nothing
    allowed_agent_types: [household_owner]
agent_types:
  household_owner:
    default_skill: do_nothing
memory:
  engine: vector_store
`
	require.NoError(t, os.WriteFile(path, []byte(badYAML), 0o644))

	_, _, err := LoadConfigFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory.engine")
}

func TestExpandEnvString(t *testing.T) {
	t.Setenv("SKILLGOV_HOME", "/var/skillgov")

	assert.Equal(t, "/var/skillgov/data", expandEnvString("${SKILLGOV_HOME}/data"))
	assert.Equal(t, "/var/skillgov/data", expandEnvString("$SKILLGOV_HOME/data"))
	assert.Equal(t, "fallback", expandEnvString("${SKILLGOV_MISSING:-fallback}"))
}

func TestParseBytes_RejectsGarbage(t *testing.T) {
	_, err := parseBytes([]byte{0xff, 0xfe, 0x00, 0x01, 0x02})
	assert.Error(t, err)
}

func TestNewLoader_FileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	p, err := provider.New(provider.ProviderConfig{Type: provider.TypeFile, Path: path})
	require.NoError(t, err)

	loader := NewLoader(p)
	defer loader.Close()

	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "window", cfg.Memory.Engine)
}
