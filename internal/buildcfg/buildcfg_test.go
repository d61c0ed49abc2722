package buildcfg_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/sdfgen/internal/buildcfg"
)

func TestNew_DefaultsWithoutEnv(t *testing.T) {
	t.Setenv("SDFGEN_DRIVER_REPO", "")
	t.Setenv("SDFGEN_OUTPUT_DIR", "")
	t.Setenv("SDFGEN_PAGE_SIZE", "")

	cfg, err := buildcfg.New("")
	require.NoError(t, err)
	assert.Equal(t, "drivers", cfg.DriverRepo)
	assert.Equal(t, "build", cfg.OutputDir)
	assert.Nil(t, cfg.Profile)
}

func TestNew_ReadsEnvOverrides(t *testing.T) {
	t.Setenv("SDFGEN_DRIVER_REPO", "/opt/drivers")
	t.Setenv("SDFGEN_OUTPUT_DIR", "/tmp/out")
	t.Setenv("SDFGEN_PAGE_SIZE", "4096")

	cfg, err := buildcfg.New("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/drivers", cfg.DriverRepo)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, uint64(4096), cfg.PageSize)
}

func TestNew_LoadsBoardProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.toml")
	contents := `
name = "qemu-virt-aarch64"

[page_size_override]
aarch64 = 4096

[default_priority]
driver = 200
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := buildcfg.New(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Profile)
	assert.Equal(t, "qemu-virt-aarch64", cfg.Profile.Name)
	assert.Equal(t, uint64(4096), cfg.Profile.PageSizeOverride["aarch64"])
	assert.Equal(t, uint8(200), cfg.Profile.DefaultPriority["driver"])
}

func TestNew_MissingProfileFileIsNotAnError(t *testing.T) {
	cfg, err := buildcfg.New(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Profile)
}
