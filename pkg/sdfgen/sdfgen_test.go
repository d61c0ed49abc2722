package sdfgen_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/sddf/timer"
	"github.com/jimyag/sdfgen/pkg/sdfgen"
)

func TestNewSystem_AndToXML(t *testing.T) {
	sd := sdfgen.NewSystem(arch.AArch64)
	_, err := sd.AddPD("root", "root.elf")
	require.NoError(t, err)

	out, err := sdfgen.ToXML(sd)
	require.NoError(t, err)
	assert.Contains(t, out, "<system>")
	assert.Contains(t, out, `name="root"`)
}

func TestProbe_AcceptsRepoWithoutDrivers(t *testing.T) {
	reg := sdfgen.NewRegistry()
	err := sdfgen.Probe(context.Background(), reg, t.TempDir())
	require.NoError(t, err)
}

func TestConnectAndSerialiseConfig_WrapBuilderLifecycle(t *testing.T) {
	sd := sdfgen.NewSystem(arch.AArch64)
	driver, _ := sd.AddPD("timer_driver", "timer_driver.elf")
	reg := sdfgen.NewRegistry()

	b, err := timer.New(sd, nil, driver, reg)
	require.NoError(t, err)

	require.NoError(t, sdfgen.Connect(context.Background(), "timer", b))
	require.NoError(t, sdfgen.SerialiseConfig(context.Background(), "timer", b, t.TempDir()))
}
