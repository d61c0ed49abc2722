// Package serial builds the sDDF serial subsystem: a UART driver, a
// required TX virtualiser, an optional RX virtualiser, and clients.
package serial

import (
	"context"

	"github.com/jimyag/sdfgen/pkg/configdata"
	"github.com/jimyag/sdfgen/pkg/devicetree"
	"github.com/jimyag/sdfgen/pkg/driverinstance"
	"github.com/jimyag/sdfgen/pkg/driverregistry"
	"github.com/jimyag/sdfgen/pkg/handle"
	"github.com/jimyag/sdfgen/pkg/sddf/sddfcommon"
	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

const (
	queueBytesPerSlot = 4
	defaultQueueSlots = 512
)

// Options configures the subsystem at creation time.
type Options struct {
	Baud        uint32
	EnableColor bool
	BeginStr    string
	SwitchChar       byte
	TerminateNumChar byte
}

type client struct {
	pd handle.PD
	rx bool
}

// Builder assembles a serial subsystem.
type Builder struct {
	sd       *sdmodel.SystemDescription
	device   *devicetree.Node
	driverPD handle.PD
	virtTxPD handle.PD
	virtRxPD handle.PD // zero value (pd 0) means "none" — checked via hasVirtRx
	hasVirtRx bool
	registry *driverregistry.Registry
	opts     Options

	clients      []client
	clientByName map[string]bool
	clientName   map[handle.PD]string

	connected bool

	driverRec  configdata.SerialDriver
	virtTxRec  configdata.SerialVirtTx
	virtRxRec  configdata.SerialVirtRx
	clientRecs map[string]configdata.SerialClient
}

// New creates a serial builder. virtRxPD, if non-nil, adds an optional RX
// virtualiser. driver, virtTx, and (if present) virtRx must all have
// distinct PD names.
func New(sd *sdmodel.SystemDescription, device *devicetree.Node, driverPD, virtTxPD handle.PD, virtRxPD *handle.PD, registry *driverregistry.Registry, opts Options) (*Builder, error) {
	names := map[string]bool{}
	check := func(h handle.PD) error {
		pd := sd.ProtectionDomain(h)
		if pd == nil {
			return sdferr.New(sdferr.KindInvalidConfig, "serial: pd handle %d not found", h)
		}
		if names[pd.Name] {
			return sdferr.New(sdferr.KindInvalidVirt, "serial: driver/virt_tx/virt_rx share the name %q", pd.Name)
		}
		names[pd.Name] = true
		return nil
	}
	if err := check(driverPD); err != nil {
		return nil, err
	}
	if err := check(virtTxPD); err != nil {
		return nil, err
	}
	if virtRxPD != nil {
		if err := check(*virtRxPD); err != nil {
			return nil, err
		}
	}
	if len(opts.BeginStr) > configdata.MaxBeginStrLen-1 {
		return nil, sdferr.New(sdferr.KindInvalidBeginStr, "begin_str length %d exceeds %d", len(opts.BeginStr), configdata.MaxBeginStrLen-1)
	}
	if opts.Baud == 0 {
		opts.Baud = configdata.DefaultSerialBaud
	}

	b := &Builder{
		sd: sd, device: device, driverPD: driverPD, virtTxPD: virtTxPD, registry: registry, opts: opts,
		clientByName: make(map[string]bool),
		clientName:   make(map[handle.PD]string),
		clientRecs:   make(map[string]configdata.SerialClient),
	}
	if virtRxPD != nil {
		b.virtRxPD = *virtRxPD
		b.hasVirtRx = true
	}
	return b, nil
}

// AddClient admits a client PD. rx requests an RX queue too, and requires
// the builder to have been created with a virt_rx.
func (b *Builder) AddClient(clientPD handle.PD, name string, rx bool) error {
	if err := sddfcommon.RequireNotConnected(b.connected); err != nil {
		return err
	}
	if b.clientByName[name] {
		return sdferr.New(sdferr.KindDuplicateClient, "serial client %q already added", name)
	}
	if rx && !b.hasVirtRx {
		return sdferr.New(sdferr.KindInvalidClient, "serial client %q requests rx but no virt_rx was configured", name)
	}
	b.clientByName[name] = true
	b.clientName[clientPD] = name
	b.clients = append(b.clients, client{pd: clientPD, rx: rx})
	return nil
}

// Connect wires the driver, virtualisers and clients together.
func (b *Builder) Connect(ctx context.Context) error {
	if err := sddfcommon.RequireNotConnected(b.connected); err != nil {
		return err
	}
	pageSize := b.sd.Arch.PageSize()

	if b.device != nil {
		if _, err := driverinstance.CreateDriver(b.sd, b.driverPD, b.device, driverregistry.ClassSerial, b.registry); err != nil {
			return err
		}
	}

	txDataSize := sddfcommon.DataSize(pageSize, queueBytesPerSlot, defaultQueueSlots)
	if b.opts.EnableColor {
		txDataSize *= 2
	}
	txDataH, err := b.sd.AddMemoryRegion("serial_tx_data", txDataSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}
	txQueueSize := sddfcommon.QueueSize(pageSize, 0, queueBytesPerSlot, defaultQueueSlots)
	txQueueH, err := b.sd.AddMemoryRegion("serial_tx_queue", txQueueSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}

	txDataConn, err := sddfcommon.ConnectOverMR(b.sd, b.driverPD, b.virtTxPD, txDataH, sdmodel.PermRW, sdmodel.PermRO, sdmodel.ChannelOptions{})
	if err != nil {
		return err
	}
	txQueueConn, err := sddfcommon.ConnectOverMR(b.sd, b.driverPD, b.virtTxPD, txQueueH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
	if err != nil {
		return err
	}

	b.driverRec.Baud = b.opts.Baud
	b.driverRec.EnableColor = b.opts.EnableColor
	b.driverRec.TxData = configdata.RegionResource{Vaddr: txDataConn.A.Vaddr, Size: txDataSize}
	b.driverRec.TxQueue = configdata.QueueResource{Vaddr: txQueueConn.A.Vaddr, Size: txQueueSize, Capacity: defaultQueueSlots}
	b.driverRec.TxChannel = configdata.ChannelResource{ID: channelIDFor(b.sd, b.driverPD, txQueueConn.Ch)}

	copy(b.virtTxRec.BeginStr[:], b.opts.BeginStr)
	b.virtTxRec.DriverChannel = configdata.ChannelResource{ID: channelIDFor(b.sd, b.virtTxPD, txQueueConn.Ch)}
	b.virtTxRec.NumClients = uint64(len(b.clients))

	if b.hasVirtRx {
		rxDataSize := sddfcommon.DataSize(pageSize, queueBytesPerSlot, defaultQueueSlots)
		rxDataH, err := b.sd.AddMemoryRegion("serial_rx_data", rxDataSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}
		rxQueueSize := sddfcommon.QueueSize(pageSize, 0, queueBytesPerSlot, defaultQueueSlots)
		rxQueueH, err := b.sd.AddMemoryRegion("serial_rx_queue", rxQueueSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}
		rxDataConn, err := sddfcommon.ConnectOverMR(b.sd, b.driverPD, b.virtRxPD, rxDataH, sdmodel.PermRW, sdmodel.PermRO, sdmodel.ChannelOptions{})
		if err != nil {
			return err
		}
		rxQueueConn, err := sddfcommon.ConnectOverMR(b.sd, b.driverPD, b.virtRxPD, rxQueueH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
		if err != nil {
			return err
		}
		b.driverRec.RxData = configdata.RegionResource{Vaddr: rxDataConn.A.Vaddr, Size: rxDataSize}
		b.driverRec.RxQueue = configdata.QueueResource{Vaddr: rxQueueConn.A.Vaddr, Size: rxQueueSize, Capacity: defaultQueueSlots}
		b.driverRec.RxChannel = configdata.ChannelResource{ID: channelIDFor(b.sd, b.driverPD, rxQueueConn.Ch)}
		b.virtRxRec.SwitchChar = b.opts.SwitchChar
		b.virtRxRec.TerminateNumChar = b.opts.TerminateNumChar
		b.virtRxRec.DriverChannel = configdata.ChannelResource{ID: channelIDFor(b.sd, b.virtRxPD, rxQueueConn.Ch)}
		b.virtRxRec.NumClients = uint64(len(b.clients))
	}

	for i, c := range b.clients {
		name := b.clientName[c.pd]
		rec := configdata.SerialClient{RxEnabled: c.rx}

		clientTxQueueSize := sddfcommon.QueueSize(pageSize, 0, queueBytesPerSlot, defaultQueueSlots)
		clientTxQueueH, err := b.sd.AddMemoryRegion("serial_tx_queue_"+name, clientTxQueueSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}
		clientTxConn, err := sddfcommon.ConnectOverMR(b.sd, b.virtTxPD, c.pd, clientTxQueueH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
		if err != nil {
			return err
		}
		rec.TxQueue = configdata.QueueResource{Vaddr: clientTxConn.B.Vaddr, Size: clientTxQueueSize, Capacity: defaultQueueSlots}
		rec.TxChannel = configdata.ChannelResource{ID: channelIDFor(b.sd, c.pd, clientTxConn.Ch)}
		if i < configdata.MaxSerialClients {
			b.virtTxRec.ClientQueue[i] = configdata.QueueResource{Vaddr: clientTxConn.A.Vaddr, Size: clientTxQueueSize, Capacity: defaultQueueSlots}
			b.virtTxRec.ClientChannel[i] = configdata.ChannelResource{ID: channelIDFor(b.sd, b.virtTxPD, clientTxConn.Ch)}
		}

		if c.rx {
			clientRxQueueSize := sddfcommon.QueueSize(pageSize, 0, queueBytesPerSlot, defaultQueueSlots)
			clientRxQueueH, err := b.sd.AddMemoryRegion("serial_rx_queue_"+name, clientRxQueueSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
			if err != nil {
				return err
			}
			clientRxConn, err := sddfcommon.ConnectOverMR(b.sd, b.virtRxPD, c.pd, clientRxQueueH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
			if err != nil {
				return err
			}
			rec.RxQueue = configdata.QueueResource{Vaddr: clientRxConn.B.Vaddr, Size: clientRxQueueSize, Capacity: defaultQueueSlots}
			rec.RxChannel = configdata.ChannelResource{ID: channelIDFor(b.sd, c.pd, clientRxConn.Ch)}
			if i < configdata.MaxSerialClients {
				b.virtRxRec.ClientQueue[i] = configdata.QueueResource{Vaddr: clientRxConn.A.Vaddr, Size: clientRxQueueSize, Capacity: defaultQueueSlots}
				b.virtRxRec.ClientChannel[i] = configdata.ChannelResource{ID: channelIDFor(b.sd, b.virtRxPD, clientRxConn.Ch)}
			}
		}

		b.clientRecs[name] = rec
	}

	b.connected = true
	return nil
}

func channelIDFor(sd *sdmodel.SystemDescription, pdH handle.PD, chH handle.Channel) uint8 {
	for _, ch := range sd.Channels() {
		if ch.Handle != chH {
			continue
		}
		if ch.PDA == pdH {
			return ch.PDAID
		}
		return ch.PDBID
	}
	return 0
}

// SerialiseConfig writes every filled record to "<prefix>/<name>.data".
func (b *Builder) SerialiseConfig(prefix string) error {
	if err := sddfcommon.RequireConnected(b.connected); err != nil {
		return err
	}
	if err := sddfcommon.WriteRecordFile(prefix, "serial_driver", &b.driverRec); err != nil {
		return err
	}
	if err := sddfcommon.WriteRecordFile(prefix, "serial_virt_tx", &b.virtTxRec); err != nil {
		return err
	}
	if b.hasVirtRx {
		if err := sddfcommon.WriteRecordFile(prefix, "serial_virt_rx", &b.virtRxRec); err != nil {
			return err
		}
	}
	for name, rec := range b.clientRecs {
		rec := rec
		if err := sddfcommon.WriteRecordFile(prefix, "serial_client_"+name, &rec); err != nil {
			return err
		}
	}
	return nil
}
