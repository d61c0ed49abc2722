package sdmodel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

func TestAddMemoryRegion_AlignsSizeAndRejectsDuplicateNames(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)

	h, err := sd.AddMemoryRegion("uart_regs", 1, sdmodel.WithPaddr(0x9000000))
	require.NoError(t, err)

	mr := sd.MemoryRegion(h)
	require.NotNil(t, mr)
	assert.Equal(t, uint64(0x1000), mr.Size)
	assert.True(t, mr.IsPhysical())

	_, err = sd.AddMemoryRegion("uart_regs", 0x1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sdferr.KindInvalidConfig))
}

func TestAddMemoryRegion_RejectsMisalignedPaddr(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	_, err := sd.AddMemoryRegion("bad", 0x1000, sdmodel.WithPaddr(0x1001))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sdferr.KindInvalidConfig))
}

func TestAddPD_ChildTreeAndNameUniqueness(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)

	root, err := sd.AddPD("root", "root.elf")
	require.NoError(t, err)

	child, err := sd.AddChildPD(root, "child", "child.elf")
	require.NoError(t, err)

	rootPD := sd.ProtectionDomain(root)
	require.NotNil(t, rootPD)
	assert.Contains(t, rootPD.Children, child)

	_, err = sd.AddPD("root", "other.elf")
	require.Error(t, err)
}

func TestGetMapVaddrAndAddMap_RejectsOverlap(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	pd, err := sd.AddPD("client", "client.elf")
	require.NoError(t, err)
	mr, err := sd.AddMemoryRegion("data", 0x2000)
	require.NoError(t, err)

	v1, err := sd.GetMapVaddr(pd, mr)
	require.NoError(t, err)
	require.NoError(t, sd.AddMap(pd, mr, v1, sdmodel.PermRW, nil, ""))

	// Mapping the same region again at the same vaddr must collide.
	err = sd.AddMap(pd, mr, v1, sdmodel.PermRW, nil, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sdferr.KindInvalidConfig))
}

func TestAddMap_RejectsUnalignedVaddr(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	pd, err := sd.AddPD("client", "client.elf")
	require.NoError(t, err)
	mr, err := sd.AddMemoryRegion("data", 0x1000)
	require.NoError(t, err)

	err = sd.AddMap(pd, mr, 0x2001, sdmodel.PermRW, nil, "")
	require.Error(t, err)
}

func TestAddIRQ_ExplicitCollision(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	pd, err := sd.AddPD("driver", "driver.elf")
	require.NoError(t, err)

	id := uint8(5)
	got, err := sd.AddIRQ(pd, 33, sdmodel.TriggerLevel, &id)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = sd.AddIRQ(pd, 34, sdmodel.TriggerEdge, &id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sdferr.KindIdCollision))
}

func TestValidate_CatchesUnboundSetVarAnnotatedRegion(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	_, err := sd.AddMemoryRegion("cfg", 0x1000, sdmodel.WithSetVarAnnotated())
	require.NoError(t, err)

	err = sd.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, sdferr.KindInvalidConfig))
}
