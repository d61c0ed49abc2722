package handle_test

import (
	"testing"

	"github.com/jimyag/sdfgen/pkg/handle"
	"github.com/stretchr/testify/assert"
)

func TestArena_MonotonicPerNamespace(t *testing.T) {
	t.Parallel()

	a := handle.New()

	assert.Equal(t, handle.MR(0), a.NewMR())
	assert.Equal(t, handle.MR(1), a.NewMR())
	assert.Equal(t, handle.PD(0), a.NewPD())
	assert.Equal(t, handle.MR(2), a.NewMR())
	assert.Equal(t, handle.PD(1), a.NewPD())
	assert.Equal(t, handle.Channel(0), a.NewChannel())
}

func TestArena_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() []handle.MR {
		a := handle.New()
		return []handle.MR{a.NewMR(), a.NewMR(), a.NewMR()}
	}

	assert.Equal(t, build(), build())
}
