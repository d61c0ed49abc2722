package sdmodel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

func TestAddPD_DefaultsAndOptions(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	h, err := sd.AddPD("p", "p.elf", sdmodel.WithPriority(200), sdmodel.WithPassive(), sdmodel.WithBudget(1000, 2000))
	require.NoError(t, err)

	pd := sd.ProtectionDomain(h)
	require.NotNil(t, pd)
	assert.EqualValues(t, 200, pd.Priority)
	assert.True(t, pd.Passive)
	require.NotNil(t, pd.Budget)
	require.NotNil(t, pd.Period)
	assert.EqualValues(t, 1000, *pd.Budget)
	assert.EqualValues(t, 2000, *pd.Period)
}

func TestAddIRQ_ExhaustsNamespace(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	pd, err := sd.AddPD("p", "p.elf")
	require.NoError(t, err)

	// Slots [0,63) are available, 63 is reserved. Fill all 63 usable slots.
	for i := 0; i < 63; i++ {
		_, err := sd.AddIRQ(pd, uint32(100+i), sdmodel.TriggerEdge, nil)
		require.NoError(t, err)
	}

	_, err = sd.AddIRQ(pd, 999, sdmodel.TriggerEdge, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindIdExhausted)
}

func TestAddIRQ_RejectsReservedSlot(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	pd, err := sd.AddPD("p", "p.elf")
	require.NoError(t, err)

	reserved := uint8(63)
	_, err = sd.AddIRQ(pd, 1, sdmodel.TriggerEdge, &reserved)
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindIdCollision)
}
