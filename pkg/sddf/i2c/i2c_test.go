package i2c_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/driverregistry"
	"github.com/jimyag/sdfgen/pkg/sddf/i2c"
	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

func TestI2c_New_RejectsSharedName(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("i2c_driver", "i2c_driver.elf")
	reg := driverregistry.NewRegistry()

	_, err := i2c.New(sd, nil, driver, driver, reg, i2c.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindInvalidVirt)
}

func TestI2c_AddClient_RejectsDuplicateName(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("i2c_driver", "i2c_driver.elf")
	virt, _ := sd.AddPD("i2c_virt", "i2c_virt.elf")
	reg := driverregistry.NewRegistry()
	b, err := i2c.New(sd, nil, driver, virt, reg, i2c.Options{})
	require.NoError(t, err)

	c1, _ := sd.AddPD("client1", "client1.elf")
	require.NoError(t, b.AddClient(c1, "client1", i2c.ClientOptions{}))

	c2, _ := sd.AddPD("client2", "client2.elf")
	err = b.AddClient(c2, "client1", i2c.ClientOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindDuplicateClient)
}

func TestI2c_Reactor_ConnectAndSerialise(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("i2c_reactor_driver", "i2c_reactor_driver.elf", sdmodel.WithPriority(200))
	virt, _ := sd.AddPD("i2c_virt", "i2c_virt.elf", sdmodel.WithPriority(199))
	reg := driverregistry.NewRegistry()
	b, err := i2c.New(sd, nil, driver, virt, reg, i2c.Options{})
	require.NoError(t, err)

	client, _ := sd.AddPD("i2c_reactor_client", "i2c_reactor_client.elf", sdmodel.WithPriority(198))
	require.NoError(t, b.AddClient(client, "i2c_reactor_client", i2c.ClientOptions{}))

	require.NoError(t, b.Connect(context.Background()))

	for _, name := range []string{"i2c_driver_request", "i2c_driver_response",
		"i2c_client_request_i2c_reactor_client", "i2c_client_response_i2c_reactor_client",
		"i2c_client_data_i2c_reactor_client"} {
		found := false
		for _, mr := range sd.MemoryRegions() {
			if mr.Name == name {
				found = true
				break
			}
		}
		assert.True(t, found, name)
	}

	dir := t.TempDir()
	require.NoError(t, b.SerialiseConfig(dir))
	for _, name := range []string{"i2c_driver.data", "i2c_virt.data", "i2c_client_i2c_reactor_client.data"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestI2c_SerialiseConfig_BeforeConnect(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("i2c_driver", "i2c_driver.elf")
	virt, _ := sd.AddPD("i2c_virt", "i2c_virt.elf")
	reg := driverregistry.NewRegistry()
	b, err := i2c.New(sd, nil, driver, virt, reg, i2c.Options{})
	require.NoError(t, err)

	err = b.SerialiseConfig(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindNotConnected)
}
