package network_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/configdata"
	"github.com/jimyag/sdfgen/pkg/driverregistry"
	"github.com/jimyag/sdfgen/pkg/sddf/network"
	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

func TestNetwork_AddClient_GeneratesUniqueMacs(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, err := sd.AddPD("eth_driver", "eth_driver.elf")
	require.NoError(t, err)
	virtRx, err := sd.AddPD("net_virt_rx", "net_virt_rx.elf")
	require.NoError(t, err)
	virtTx, err := sd.AddPD("net_virt_tx", "net_virt_tx.elf")
	require.NoError(t, err)

	reg := driverregistry.NewRegistry()
	b, err := network.New(sd, nil, driver, virtRx, virtTx, reg)
	require.NoError(t, err)

	c1, err := sd.AddPD("client1", "client1.elf")
	require.NoError(t, err)
	c2, err := sd.AddPD("client2", "client2.elf")
	require.NoError(t, err)

	require.NoError(t, b.AddClient(c1, "client1", network.ClientOptions{RX: true, RxBuffers: 8}))
	require.NoError(t, b.AddClient(c2, "client2", network.ClientOptions{TX: true, TxBuffers: 8}))

	err = b.AddClient(c2, "client2", network.ClientOptions{RX: true, RxBuffers: 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindDuplicateClient)
}

func TestNetwork_AddClient_RejectsDuplicateExplicitMac(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("eth_driver", "eth_driver.elf")
	virtRx, _ := sd.AddPD("net_virt_rx", "net_virt_rx.elf")
	virtTx, _ := sd.AddPD("net_virt_tx", "net_virt_tx.elf")
	reg := driverregistry.NewRegistry()
	b, err := network.New(sd, nil, driver, virtRx, virtTx, reg)
	require.NoError(t, err)

	c1, _ := sd.AddPD("client1", "client1.elf")
	c2, _ := sd.AddPD("client2", "client2.elf")
	mac := configdata.MacAddr{0x02, 0, 0, 0, 0, 1}

	require.NoError(t, b.AddClient(c1, "client1", network.ClientOptions{RX: true, RxBuffers: 4, MacAddr: &mac}))
	err = b.AddClient(c2, "client2", network.ClientOptions{RX: true, RxBuffers: 4, MacAddr: &mac})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindDuplicateMacAddr)
}

func TestNetwork_AddClient_RejectsNeitherRxNorTx(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("eth_driver", "eth_driver.elf")
	virtRx, _ := sd.AddPD("net_virt_rx", "net_virt_rx.elf")
	virtTx, _ := sd.AddPD("net_virt_tx", "net_virt_tx.elf")
	reg := driverregistry.NewRegistry()
	b, err := network.New(sd, nil, driver, virtRx, virtTx, reg)
	require.NoError(t, err)

	c1, _ := sd.AddPD("client1", "client1.elf")
	err = b.AddClient(c1, "client1", network.ClientOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindInvalidOptions)
}

func TestNetwork_Connect_SerialiseConfig_WritesFiles(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("eth_driver", "eth_driver.elf")
	virtRx, _ := sd.AddPD("net_virt_rx", "net_virt_rx.elf")
	virtTx, _ := sd.AddPD("net_virt_tx", "net_virt_tx.elf")
	reg := driverregistry.NewRegistry()
	b, err := network.New(sd, nil, driver, virtRx, virtTx, reg)
	require.NoError(t, err)

	c1, _ := sd.AddPD("client1", "client1.elf")
	require.NoError(t, b.AddClient(c1, "client1", network.ClientOptions{RX: true, TX: true, RxBuffers: 8, TxBuffers: 8}))

	require.NoError(t, b.Connect(context.Background()))

	dir := t.TempDir()
	require.NoError(t, b.SerialiseConfig(dir))

	for _, name := range []string{"net_driver.data", "net_virt_rx.data", "net_virt_tx.data", "net_client_client1.data"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestNetwork_Connect_WiresQueuePairsAndCopier(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("eth_driver", "eth_driver.elf")
	virtRx, _ := sd.AddPD("net_virt_rx", "net_virt_rx.elf")
	virtTx, _ := sd.AddPD("net_virt_tx", "net_virt_tx.elf")
	reg := driverregistry.NewRegistry()
	b, err := network.New(sd, nil, driver, virtRx, virtTx, reg)
	require.NoError(t, err)

	copierPD, _ := sd.AddPD("client1_copier", "copier.elf")
	c1, _ := sd.AddPD("client1", "client1.elf")
	c2, _ := sd.AddPD("client2", "client2.elf")

	require.NoError(t, b.AddClient(c1, "client1", network.ClientOptions{
		RX: true, TX: true, RxBuffers: 8, TxBuffers: 8,
		CopierPD: &copierPD, CopierName: "client1_copier",
	}))
	require.NoError(t, b.AddClient(c2, "client2", network.ClientOptions{RX: true, TX: true, RxBuffers: 8, TxBuffers: 8}))

	require.NoError(t, b.Connect(context.Background()))

	dir := t.TempDir()
	require.NoError(t, b.SerialiseConfig(dir))

	for _, name := range []string{
		"net_driver.data", "net_virt_rx.data", "net_virt_tx.data",
		"net_client_client1.data", "net_client_client2.data", "net_copy_client1_copier.data",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	// client2 has no copier: the rx_dma MR is mapped directly into it and
	// its own rx queue pair with virt_rx must be populated.
	mrs := sd.MemoryRegions()
	found := false
	for _, mr := range mrs {
		if mr.Name == "net_rx_dma" {
			found = true
			maps := sd.ProtectionDomain(c2).Maps
			hasMap := false
			for _, m := range maps {
				if m.MR == mr.Handle {
					hasMap = true
				}
			}
			assert.True(t, hasMap, "client2 should have rx_dma mapped directly")
		}
	}
	assert.True(t, found, "net_rx_dma region should exist")

	// Four queue MRs (rx free/active, tx free/active) must exist between
	// virt_rx/virt_tx and client2's direct chain, distinct from client1's
	// copier-mediated chain.
	var queueCount int
	for _, mr := range mrs {
		switch mr.Name {
		case "net_rx_queue_client2_free", "net_rx_queue_client2_active",
			"net_tx_queue_client2_free", "net_tx_queue_client2_active":
			queueCount++
		}
	}
	assert.Equal(t, 4, queueCount)
}

func TestNetwork_SerialiseConfig_BeforeConnect(t *testing.T) {
	sd := sdmodel.New(arch.AArch64)
	driver, _ := sd.AddPD("eth_driver", "eth_driver.elf")
	virtRx, _ := sd.AddPD("net_virt_rx", "net_virt_rx.elf")
	virtTx, _ := sd.AddPD("net_virt_tx", "net_virt_tx.elf")
	reg := driverregistry.NewRegistry()
	b, err := network.New(sd, nil, driver, virtRx, virtTx, reg)
	require.NoError(t, err)

	err = b.SerialiseConfig(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, sdferr.KindNotConnected)
}
