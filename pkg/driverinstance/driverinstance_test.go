package driverinstance_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/devicetree"
	"github.com/jimyag/sdfgen/pkg/driverinstance"
	"github.com/jimyag/sdfgen/pkg/driverregistry"
	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

const uartNodeYAML = `
name: uart@9000000
properties:
  compatible: ["arm,pl011"]
  reg: [0x9000000, 0x1000]
  interrupts: [0, 33, 4]
  status: "okay"
`

func probedRegistry(t *testing.T, manifestBody string) *driverregistry.Registry {
	t.Helper()
	repo := t.TempDir()
	dir := filepath.Join(repo, "drivers", "serial", "pl011")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(manifestBody), 0o644))

	reg := driverregistry.NewRegistry()
	require.NoError(t, reg.Probe(context.Background(), repo))
	return reg
}

func TestCreateDriver_MapsDtIndexRegionAndIRQ(t *testing.T) {
	reg := probedRegistry(t, `{
		"compatible": ["arm,pl011"],
		"resources": {
			"regions": [{"name": "regs", "dt_index": 0, "setvar_vaddr": "uart_base"}],
			"irqs": [{"dt_index": 0}]
		}
	}`)

	sd := sdmodel.New(arch.AArch64)
	pd, err := sd.AddPD("uart_driver", "uart_driver.elf")
	require.NoError(t, err)

	node, err := devicetree.FromYAML([]byte(uartNodeYAML))
	require.NoError(t, err)

	res, err := driverinstance.CreateDriver(sd, pd, node, driverregistry.ClassSerial, reg)
	require.NoError(t, err)
	require.Len(t, res.Regions, 1)
	assert.EqualValues(t, 0x9000000, res.Regions[0].IOAddr)
	assert.EqualValues(t, 0x1000, res.Regions[0].Size)
	require.Len(t, res.IRQs, 1)

	pdModel := sd.ProtectionDomain(pd)
	require.Len(t, pdModel.Maps, 1)
	assert.Equal(t, "uart_base", pdModel.Maps[0].SetVariable)
}

func TestCreateDriver_RejectsDtIndexWithCached(t *testing.T) {
	reg := probedRegistry(t, `{
		"compatible": ["arm,pl011"],
		"resources": {
			"regions": [{"name": "regs", "dt_index": 0, "cached": true}]
		}
	}`)

	sd := sdmodel.New(arch.AArch64)
	pd, err := sd.AddPD("uart_driver", "uart_driver.elf")
	require.NoError(t, err)
	node, err := devicetree.FromYAML([]byte(uartNodeYAML))
	require.NoError(t, err)

	_, err = driverinstance.CreateDriver(sd, pd, node, driverregistry.ClassSerial, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindInvalidConfig)
}

func TestCreateDriver_RejectsBadStatus(t *testing.T) {
	reg := probedRegistry(t, `{"compatible": ["arm,pl011"], "resources": {}}`)

	sd := sdmodel.New(arch.AArch64)
	pd, err := sd.AddPD("uart_driver", "uart_driver.elf")
	require.NoError(t, err)
	node, err := devicetree.FromYAML([]byte(`
name: uart@9000000
properties:
  compatible: ["arm,pl011"]
  status: "disabled"
`))
	require.NoError(t, err)

	_, err = driverinstance.CreateDriver(sd, pd, node, driverregistry.ClassSerial, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindDeviceStatusInvalid)
}

func TestCreateDriver_ReusesSharedMRByPaddr(t *testing.T) {
	reg := probedRegistry(t, `{
		"compatible": ["arm,pl011"],
		"resources": {
			"regions": [{"name": "regs", "dt_index": 0}]
		}
	}`)

	sd := sdmodel.New(arch.AArch64)
	pdA, err := sd.AddPD("a", "a.elf")
	require.NoError(t, err)
	pdB, err := sd.AddPD("b", "b.elf")
	require.NoError(t, err)
	node, err := devicetree.FromYAML([]byte(uartNodeYAML))
	require.NoError(t, err)

	_, err = driverinstance.CreateDriver(sd, pdA, node, driverregistry.ClassSerial, reg)
	require.NoError(t, err)
	_, err = driverinstance.CreateDriver(sd, pdB, node, driverregistry.ClassSerial, reg)
	require.NoError(t, err)

	assert.Len(t, sd.MemoryRegions(), 1)
}

func TestCreateDriver_SharesPageAcrossOffsetDeviceNodes(t *testing.T) {
	reg := probedRegistry(t, `{
		"compatible": ["arm,pl011"],
		"resources": {
			"regions": [{"name": "regs", "dt_index": 0}]
		}
	}`)

	sd := sdmodel.New(arch.AArch64)
	pdA, err := sd.AddPD("a", "a.elf")
	require.NoError(t, err)
	pdB, err := sd.AddPD("b", "b.elf")
	require.NoError(t, err)

	// Two distinct device nodes, 0x100 bytes apart, sharing one 4 KiB page.
	nodeA, err := devicetree.FromYAML([]byte(`
name: uart@9000000
properties:
  compatible: ["arm,pl011"]
  reg: [0x9000000, 0x100]
  status: "okay"
`))
	require.NoError(t, err)
	nodeB, err := devicetree.FromYAML([]byte(`
name: uart@9000100
properties:
  compatible: ["arm,pl011"]
  reg: [0x9000100, 0x100]
  status: "okay"
`))
	require.NoError(t, err)

	resA, err := driverinstance.CreateDriver(sd, pdA, nodeA, driverregistry.ClassSerial, reg)
	require.NoError(t, err)
	resB, err := driverinstance.CreateDriver(sd, pdB, nodeB, driverregistry.ClassSerial, reg)
	require.NoError(t, err)

	// A single page-aligned MR backs both devices.
	require.Len(t, sd.MemoryRegions(), 1)
	mr := sd.MemoryRegions()[0]
	assert.NotNil(t, mr.Paddr)
	assert.EqualValues(t, 0x9000000, *mr.Paddr)

	// Each device still reports its own (unaligned) I/O address, and the
	// sub-page offset is folded into its mapped vaddr.
	require.Len(t, resA.Regions, 1)
	require.Len(t, resB.Regions, 1)
	assert.EqualValues(t, 0x9000000, resA.Regions[0].IOAddr)
	assert.EqualValues(t, 0x9000100, resB.Regions[0].IOAddr)

	pdAModel := sd.ProtectionDomain(pdA)
	pdBModel := sd.ProtectionDomain(pdB)
	require.Len(t, pdAModel.Maps, 1)
	require.Len(t, pdBModel.Maps, 1)
	assert.Equal(t, resA.Regions[0].Vaddr, pdAModel.Maps[0].Vaddr)
	assert.Equal(t, resB.Regions[0].Vaddr-0x100, pdAModel.Maps[0].Vaddr)
}
