package serial_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/driverregistry"
	"github.com/jimyag/sdfgen/pkg/sddf/serial"
	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

func TestSerial_New_RejectsSharedNames(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("uart", "uart.elf")
	reg := driverregistry.NewRegistry()

	// Passing the same PD handle for both driver and virt_tx roles means
	// they share a name (trivially — it's the same PD).
	_, err := serial.New(sd, nil, driver, driver, nil, reg, serial.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindInvalidVirt)
}

func TestSerial_New_RejectsOverlongBeginStr(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("uart_driver", "uart_driver.elf")
	virtTx, _ := sd.AddPD("uart_virt_tx", "uart_virt_tx.elf")
	reg := driverregistry.NewRegistry()

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	_, err := serial.New(sd, nil, driver, virtTx, nil, reg, serial.Options{BeginStr: string(long)})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindInvalidBeginStr)
}

func TestSerial_AddClient_RxRequiresVirtRx(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("uart_driver", "uart_driver.elf")
	virtTx, _ := sd.AddPD("uart_virt_tx", "uart_virt_tx.elf")
	reg := driverregistry.NewRegistry()
	b, err := serial.New(sd, nil, driver, virtTx, nil, reg, serial.Options{})
	require.NoError(t, err)

	client, _ := sd.AddPD("client", "client.elf")
	err = b.AddClient(client, "client", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindInvalidClient)
}

func TestSerial_Connect_AndSerialise(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("uart_driver", "uart_driver.elf")
	virtTx, _ := sd.AddPD("uart_virt_tx", "uart_virt_tx.elf")
	virtRxH, _ := sd.AddPD("uart_virt_rx", "uart_virt_rx.elf")
	reg := driverregistry.NewRegistry()
	b, err := serial.New(sd, nil, driver, virtTx, &virtRxH, reg, serial.Options{BeginStr: "hello"})
	require.NoError(t, err)

	client, _ := sd.AddPD("client", "client.elf")
	require.NoError(t, b.AddClient(client, "client", true))

	require.NoError(t, b.Connect(context.Background()))
	require.NoError(t, b.SerialiseConfig(t.TempDir()))
}
