package gpu_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/driverregistry"
	"github.com/jimyag/sdfgen/pkg/sddf/gpu"
	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

func TestGpu_AddClient_RejectsDuplicateName(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("gpu_driver", "gpu_driver.elf")
	virt, _ := sd.AddPD("gpu_virt", "gpu_virt.elf")
	reg := driverregistry.NewRegistry()
	b, err := gpu.New(sd, nil, driver, virt, reg)
	require.NoError(t, err)

	c1, _ := sd.AddPD("client1", "client1.elf")
	require.NoError(t, b.AddClient(c1, "client1", gpu.ClientOptions{}))

	c2, _ := sd.AddPD("client2", "client2.elf")
	err = b.AddClient(c2, "client1", gpu.ClientOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindDuplicateClient)
}

func TestGpu_Connect_AndSerialiseConfig(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("gpu_driver", "gpu_driver.elf")
	virt, _ := sd.AddPD("gpu_virt", "gpu_virt.elf")
	reg := driverregistry.NewRegistry()
	b, err := gpu.New(sd, nil, driver, virt, reg)
	require.NoError(t, err)

	c1, _ := sd.AddPD("client1", "client1.elf")
	require.NoError(t, b.AddClient(c1, "client1", gpu.ClientOptions{}))

	require.NoError(t, b.Connect(context.Background()))

	dir := t.TempDir()
	require.NoError(t, b.SerialiseConfig(dir))
	for _, name := range []string{"gpu_driver.data", "gpu_virt_driver.data", "gpu_virt_client.data", "gpu_client_client1.data"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestGpu_SerialiseConfig_BeforeConnect(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("gpu_driver", "gpu_driver.elf")
	virt, _ := sd.AddPD("gpu_virt", "gpu_virt.elf")
	reg := driverregistry.NewRegistry()
	b, err := gpu.New(sd, nil, driver, virt, reg)
	require.NoError(t, err)

	err = b.SerialiseConfig(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindNotConnected)
}
