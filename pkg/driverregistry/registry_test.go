package driverregistry_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/sdfgen/pkg/driverregistry"
	"github.com/jimyag/sdfgen/pkg/sdferr"
)

func writeManifest(t *testing.T, repo, class, name, body string) {
	t.Helper()
	dir := filepath.Join(repo, "drivers", class, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0o644))
}

func TestProbe_FindDriver_HappyPath(t *testing.T) {
	repo := t.TempDir()
	writeManifest(t, repo, "serial", "pl011", `{
		"compatible": ["arm,pl011"],
		"resources": {
			"regions": [{"name": "regs", "dt_index": 0}],
			"irqs": [{"dt_index": 0}]
		}
	}`)

	reg := driverregistry.NewRegistry()
	require.NoError(t, reg.Probe(context.Background(), repo))

	m, err := reg.FindDriver([]string{"arm,pl011"}, driverregistry.ClassSerial)
	require.NoError(t, err)
	assert.Equal(t, "pl011", m.Name)
	assert.Len(t, m.Regions, 1)
	assert.Equal(t, 0, *m.Regions[0].DtIndex)
}

func TestFindDriver_BeforeProbe(t *testing.T) {
	reg := driverregistry.NewRegistry()
	_, err := reg.FindDriver([]string{"x"}, driverregistry.ClassSerial)
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindCalledBeforeProbe)
}

func TestProbe_RejectsDuplicateCompatibleAcrossDriversSameClass(t *testing.T) {
	repo := t.TempDir()
	writeManifest(t, repo, "network", "driver-a", `{"compatible": ["vendor,eth"], "resources": {}}`)
	writeManifest(t, repo, "network", "driver-b", `{"compatible": ["vendor,eth"], "resources": {}}`)

	reg := driverregistry.NewRegistry()
	err := reg.Probe(context.Background(), repo)
	require.Error(t, err)
}

func TestProbe_RejectsDuplicateRegionDtIndex(t *testing.T) {
	repo := t.TempDir()
	writeManifest(t, repo, "i2c", "drv", `{
		"compatible": ["vendor,i2c"],
		"resources": {
			"regions": [
				{"name": "a", "dt_index": 0},
				{"name": "b", "dt_index": 0}
			]
		}
	}`)

	reg := driverregistry.NewRegistry()
	err := reg.Probe(context.Background(), repo)
	require.Error(t, err)
}

func TestFindDriver_NoMatch(t *testing.T) {
	repo := t.TempDir()
	writeManifest(t, repo, "timer", "drv", `{"compatible": ["vendor,timer"], "resources": {}}`)

	reg := driverregistry.NewRegistry()
	require.NoError(t, reg.Probe(context.Background(), repo))

	_, err := reg.FindDriver([]string{"other,timer"}, driverregistry.ClassTimer)
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindUnknownDevice)
}
