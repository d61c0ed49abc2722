package lwip_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/sddf/lwip"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

func TestAddPbufPool_SizedByRxBuffers(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	client, _ := sd.AddPD("client", "client.elf")

	rec, err := lwip.AddPbufPool(sd, client, "client", 64)
	require.NoError(t, err)
	assert.Greater(t, rec.PbufPool.Size, uint64(0))
	assert.True(t, sd.Arch.IsAligned(rec.PbufPool.Size))
}

func TestSerialiseConfig_WritesFile(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	client, _ := sd.AddPD("client", "client.elf")
	rec, err := lwip.AddPbufPool(sd, client, "client", 64)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, lwip.SerialiseConfig(dir, "client", rec))
	_, err = os.Stat(filepath.Join(dir, "lwip_client.data"))
	assert.NoError(t, err)
}
