package arch_test

import (
	"errors"
	"testing"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	a, err := arch.Parse("aarch64")
	require.NoError(t, err)
	assert.Equal(t, arch.AArch64, a)

	_, err = arch.Parse("sparc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sdferr.KindInvalidConfig))
}

func TestAlignUp(t *testing.T) {
	t.Parallel()

	a := arch.AArch64
	assert.Equal(t, uint64(0), a.AlignUp(0))
	assert.Equal(t, uint64(4096), a.AlignUp(1))
	assert.Equal(t, uint64(4096), a.AlignUp(4096))
	assert.Equal(t, uint64(8192), a.AlignUp(4097))
	assert.True(t, a.IsAligned(8192))
	assert.False(t, a.IsAligned(4097))
}

func TestAddressBits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 32, arch.AArch32.AddressBits())
	assert.Equal(t, 64, arch.AArch64.AddressBits())
	assert.Equal(t, 64, arch.X86_64.AddressBits())
}
