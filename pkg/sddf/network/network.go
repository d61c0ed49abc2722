// Package network builds the sDDF network subsystem: a driver, an RX and
// a TX virtualiser, per-client optional copiers, and the clients
// themselves.
package network

import (
	"context"
	"crypto/rand"

	"github.com/jinzhu/copier"

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
	bufferSize     = 2048
	queueHeader    = 16
	queueSlotBytes = 16
)

// ClientOptions configures one network client's buffer counts and
// optional fixed MAC address.
type ClientOptions struct {
	RX, TX                 bool
	RxBuffers, TxBuffers   uint32
	MacAddr                *configdata.MacAddr
	CopierPD               *handle.PD
	CopierName             string
}

type client struct {
	pd   handle.PD
	name string
	opts ClientOptions
	mac  configdata.MacAddr
}

// Builder assembles a network subsystem across its lifecycle:
// New -> AddClient* -> Connect -> SerialiseConfig.
type Builder struct {
	sd       *sdmodel.SystemDescription
	device   *devicetree.Node
	driverPD handle.PD
	virtRxPD handle.PD
	virtTxPD handle.PD
	registry *driverregistry.Registry

	clients      []client
	clientByName map[string]bool
	copierByName map[string]bool

	connected bool

	driverDevRes *driverinstance.DeviceResources
	driverRec    configdata.NetDriver
	virtRxRec    configdata.NetVirtRx
	virtTxRec    configdata.NetVirtTx
	clientRecs   map[string]configdata.NetClient
	copyRecs     map[string]configdata.NetCopy
}

// New creates a network builder. device may be nil when the driver's
// resources are supplied by another means (e.g. a loopback/virtual NIC
// with no devicetree node).
func New(sd *sdmodel.SystemDescription, device *devicetree.Node, driverPD, virtRxPD, virtTxPD handle.PD, registry *driverregistry.Registry) (*Builder, error) {
	for _, h := range []handle.PD{driverPD, virtRxPD, virtTxPD} {
		if sd.ProtectionDomain(h) == nil {
			return nil, sdferr.New(sdferr.KindInvalidConfig, "network: pd handle %d not found", h)
		}
	}
	return &Builder{
		sd: sd, device: device, driverPD: driverPD, virtRxPD: virtRxPD, virtTxPD: virtTxPD, registry: registry,
		clientByName: make(map[string]bool),
		copierByName: make(map[string]bool),
		clientRecs:   make(map[string]configdata.NetClient),
		copyRecs:     make(map[string]configdata.NetCopy),
	}, nil
}

// AddClient admits a client PD with the given options, generating a
// locally-administered MAC if none is supplied and checking MAC/name/
// copier-name uniqueness.
func (b *Builder) AddClient(clientPD handle.PD, name string, opts ClientOptions) error {
	if err := sddfcommon.RequireNotConnected(b.connected); err != nil {
		return err
	}
	// Clone the caller's options rather than retain them by reference —
	// opts.MacAddr/CopierPD are pointers the caller may still hold onto.
	var cloned ClientOptions
	if err := copier.Copy(&cloned, &opts); err != nil {
		return sdferr.Wrap(sdferr.KindInvalidOptions, err, "network client %q: clone options", name)
	}
	opts = cloned

	if !opts.RX && !opts.TX {
		return sdferr.New(sdferr.KindInvalidOptions, "network client %q: at least one of rx/tx must be true", name)
	}
	if b.clientByName[name] {
		return sdferr.New(sdferr.KindDuplicateClient, "network client %q already added", name)
	}
	if opts.CopierPD != nil {
		if opts.CopierName == "" {
			return sdferr.New(sdferr.KindInvalidOptions, "network client %q: copier given with no name", name)
		}
		if b.copierByName[opts.CopierName] {
			return sdferr.New(sdferr.KindDuplicateCopier, "network copier %q already in use", opts.CopierName)
		}
	}

	mac, err := b.resolveMac(opts.MacAddr)
	if err != nil {
		return err
	}

	b.clientByName[name] = true
	if opts.CopierPD != nil {
		b.copierByName[opts.CopierName] = true
	}
	b.clients = append(b.clients, client{pd: clientPD, name: name, opts: opts, mac: mac})
	return nil
}

func (b *Builder) resolveMac(requested *configdata.MacAddr) (configdata.MacAddr, error) {
	if requested != nil {
		if err := b.checkMacUnique(*requested); err != nil {
			return configdata.MacAddr{}, err
		}
		return *requested, nil
	}
	for attempt := 0; attempt < 16; attempt++ {
		var mac configdata.MacAddr
		if _, err := rand.Read(mac[:]); err != nil {
			return configdata.MacAddr{}, sdferr.Wrap(sdferr.KindInvalidMacAddr, err, "generating mac")
		}
		mac[0] = (mac[0] | 0x02) &^ 0x01 // set LAA bit, clear multicast bit
		if b.checkMacUnique(mac) == nil {
			return mac, nil
		}
	}
	return configdata.MacAddr{}, sdferr.New(sdferr.KindInvalidMacAddr, "could not generate a unique mac after 16 attempts")
}

func (b *Builder) checkMacUnique(mac configdata.MacAddr) error {
	for _, c := range b.clients {
		if c.mac == mac {
			return sdferr.New(sdferr.KindDuplicateMacAddr, "mac %x already assigned to client %q", mac, c.name)
		}
	}
	return nil
}

// Connect wires the driver, virtualisers, copiers and clients together
// and fills every config record.
func (b *Builder) Connect(ctx context.Context) error {
	if err := sddfcommon.RequireNotConnected(b.connected); err != nil {
		return err
	}

	pageSize := b.sd.Arch.PageSize()

	if b.device != nil {
		devRes, err := driverinstance.CreateDriver(b.sd, b.driverPD, b.device, driverregistry.ClassNetwork, b.registry)
		if err != nil {
			return err
		}
		b.driverDevRes = devRes
	}

	var totalRx, totalTx uint64
	for _, c := range b.clients {
		if c.opts.RX {
			totalRx += uint64(c.opts.RxBuffers)
		}
		if c.opts.TX {
			totalTx += uint64(c.opts.TxBuffers)
		}
	}
	if totalRx == 0 {
		totalRx = 1
	}
	if totalTx == 0 {
		totalTx = 1
	}
	rxDmaSize := sddfcommon.DataSize(pageSize, bufferSize, totalRx)
	rxDmaH, err := b.sd.AddMemoryRegion("net_rx_dma", rxDmaSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}

	driverRxConn, err := sddfcommon.ConnectOverMR(b.sd, b.driverPD, b.virtRxPD, rxDmaH, sdmodel.PermRW, sdmodel.PermRO, sdmodel.ChannelOptions{})
	if err != nil {
		return err
	}
	b.driverRec.RxDMA = configdata.RegionResource{Vaddr: driverRxConn.A.Vaddr, Size: rxDmaSize}
	b.virtRxRec.RxDMA = configdata.RegionResource{Vaddr: driverRxConn.B.Vaddr, Size: rxDmaSize}

	rxFree, rxActive, err := connectQueuePair(b.sd, b.driverPD, b.virtRxPD, pageSize, totalRx, "net_rx")
	if err != nil {
		return err
	}
	b.driverRec.RxFreeQueue = rxFree.a.res
	b.driverRec.RxActiveQueue = rxActive.a.res
	b.driverRec.RxChannel = configdata.ChannelResource{ID: rxFree.a.chID}
	b.virtRxRec.DriverChannel = configdata.ChannelResource{ID: rxFree.b.chID}

	txFree, txActive, err := connectQueuePair(b.sd, b.driverPD, b.virtTxPD, pageSize, totalTx, "net_tx")
	if err != nil {
		return err
	}
	b.driverRec.TxFreeQueue = txFree.a.res
	b.driverRec.TxActiveQueue = txActive.a.res
	b.driverRec.TxChannel = configdata.ChannelResource{ID: txFree.a.chID}
	b.virtTxRec.DriverChannel = configdata.ChannelResource{ID: txFree.b.chID}

	b.virtRxRec.NumClients = uint64(len(b.clients))
	b.virtTxRec.NumClients = uint64(len(b.clients))

	for i, c := range b.clients {
		rec := configdata.NetClient{MAC: c.mac, RxEnabled: c.opts.RX, TxEnabled: c.opts.TX}

		if c.opts.RX {
			rxBuffers := uint64(c.opts.RxBuffers)
			if rxBuffers == 0 {
				rxBuffers = 1
			}

			if c.opts.CopierPD != nil {
				clientDataSize := sddfcommon.DataSize(pageSize, bufferSize, rxBuffers)
				clientDataH, err := b.sd.AddMemoryRegion("net_rx_data_"+c.name, clientDataSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
				if err != nil {
					return err
				}
				copyConn, err := sddfcommon.ConnectOverMR(b.sd, *c.opts.CopierPD, c.pd, clientDataH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
				if err != nil {
					return err
				}
				copierVirtConn, err := sddfcommon.ConnectOverMR(b.sd, b.virtRxPD, *c.opts.CopierPD, rxDmaH, sdmodel.PermRO, sdmodel.PermRO, sdmodel.ChannelOptions{})
				if err != nil {
					return err
				}

				rxFreeQ, rxActiveQ, err := connectQueuePair(b.sd, b.virtRxPD, *c.opts.CopierPD, pageSize, rxBuffers, "net_rx_queue_"+c.name)
				if err != nil {
					return err
				}

				b.copyRecs[c.opts.CopierName] = configdata.NetCopy{
					RxDMA:         configdata.RegionResource{Vaddr: copierVirtConn.B.Vaddr, Size: rxDmaSize},
					ClientData:    configdata.RegionResource{Vaddr: copyConn.A.Vaddr, Size: clientDataSize},
					VirtChannel:   configdata.ChannelResource{ID: b.channelID(*c.opts.CopierPD, copierVirtConn.Ch)},
					ClientChannel: configdata.ChannelResource{ID: b.channelID(*c.opts.CopierPD, copyConn.Ch)},
					FreeQueue:     rxFreeQ.b.res,
					ActiveQueue:   rxActiveQ.b.res,
				}

				if i < configdata.MaxNetClients {
					b.virtRxRec.ClientFree[i] = rxFreeQ.a.res
					b.virtRxRec.ClientActive[i] = rxActiveQ.a.res
					b.virtRxRec.ClientChannel[i] = configdata.ChannelResource{ID: rxFreeQ.a.chID}
					b.virtRxRec.ClientMAC[i] = c.mac
				}
			} else {
				// No copier: the shared rx_dma MR is mapped directly into
				// the client, with the virt_rx<->client queue pair
				// carrying the one notification channel for this client.
				rxDmaVaddr, err := b.sd.GetMapVaddr(c.pd, rxDmaH)
				if err != nil {
					return err
				}
				if err := b.sd.AddMap(c.pd, rxDmaH, rxDmaVaddr, sdmodel.PermRO, nil, ""); err != nil {
					return err
				}

				rxFreeQ, rxActiveQ, err := connectQueuePair(b.sd, b.virtRxPD, c.pd, pageSize, rxBuffers, "net_rx_queue_"+c.name)
				if err != nil {
					return err
				}

				rec.RxFreeQueue = rxFreeQ.b.res
				rec.RxActiveQueue = rxActiveQ.b.res
				rec.RxChannel = configdata.ChannelResource{ID: rxFreeQ.b.chID}

				if i < configdata.MaxNetClients {
					b.virtRxRec.ClientFree[i] = rxFreeQ.a.res
					b.virtRxRec.ClientActive[i] = rxActiveQ.a.res
					b.virtRxRec.ClientChannel[i] = configdata.ChannelResource{ID: rxFreeQ.a.chID}
					b.virtRxRec.ClientMAC[i] = c.mac
				}
			}
		}

		if c.opts.TX {
			txBuffers := uint64(c.opts.TxBuffers)
			if txBuffers == 0 {
				txBuffers = 1
			}

			txDataSize := sddfcommon.DataSize(pageSize, bufferSize, txBuffers)
			txDataH, err := b.sd.AddMemoryRegion("net_tx_data_"+c.name, txDataSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
			if err != nil {
				return err
			}
			txVirtVaddr, err := b.sd.GetMapVaddr(b.virtTxPD, txDataH)
			if err != nil {
				return err
			}
			if err := b.sd.AddMap(b.virtTxPD, txDataH, txVirtVaddr, sdmodel.PermRO, nil, ""); err != nil {
				return err
			}
			txClientVaddr, err := b.sd.GetMapVaddr(c.pd, txDataH)
			if err != nil {
				return err
			}
			if err := b.sd.AddMap(c.pd, txDataH, txClientVaddr, sdmodel.PermRW, nil, ""); err != nil {
				return err
			}

			txFreeQ, txActiveQ, err := connectQueuePair(b.sd, b.virtTxPD, c.pd, pageSize, txBuffers, "net_tx_queue_"+c.name)
			if err != nil {
				return err
			}

			rec.TxData = configdata.RegionResource{Vaddr: txClientVaddr, Size: txDataSize}
			rec.TxFreeQueue = txFreeQ.b.res
			rec.TxActiveQueue = txActiveQ.b.res
			rec.TxChannel = configdata.ChannelResource{ID: txFreeQ.b.chID}

			if i < configdata.MaxNetClients {
				b.virtTxRec.ClientFree[i] = txFreeQ.a.res
				b.virtTxRec.ClientActive[i] = txActiveQ.a.res
				b.virtTxRec.ClientData[i] = configdata.RegionResource{Vaddr: txVirtVaddr, Size: txDataSize}
				b.virtTxRec.ClientChannel[i] = configdata.ChannelResource{ID: txFreeQ.a.chID}
			}
		}

		b.clientRecs[c.name] = rec
	}

	b.connected = true
	return nil
}

// queueSide is one endpoint's view of a connected queue: its mapped
// vaddr/size/capacity and the channel ID it was allocated on its own PD.
type queueSide struct {
	res  configdata.QueueResource
	chID uint8
}

// queuePairSide pairs the two endpoints (a, b) of one connected queue.
type queuePairSide struct {
	a queueSide
	b queueSide
}

// connectQueuePair allocates a free+active queue MR pair sized for n
// buffers and connects both between pdA and pdB, returning each side's
// view of both queues.
func connectQueuePair(sd *sdmodel.SystemDescription, pdA, pdB handle.PD, pageSize, n uint64, namePrefix string) (queuePairSide, queuePairSide, error) {
	size := sddfcommon.QueueSize(pageSize, queueHeader, queueSlotBytes, n)

	freeH, err := sd.AddMemoryRegion(namePrefix+"_free", size, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return queuePairSide{}, queuePairSide{}, err
	}
	activeH, err := sd.AddMemoryRegion(namePrefix+"_active", size, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return queuePairSide{}, queuePairSide{}, err
	}

	freeConn, err := sddfcommon.ConnectOverMR(sd, pdA, pdB, freeH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
	if err != nil {
		return queuePairSide{}, queuePairSide{}, err
	}
	activeConn, err := sddfcommon.ConnectOverMR(sd, pdA, pdB, activeH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
	if err != nil {
		return queuePairSide{}, queuePairSide{}, err
	}

	free := queuePairSide{
		a: queueSide{res: configdata.QueueResource{Vaddr: freeConn.A.Vaddr, Size: size, Capacity: uint16(n)}, chID: channelIDFor(sd, pdA, freeConn.Ch)},
		b: queueSide{res: configdata.QueueResource{Vaddr: freeConn.B.Vaddr, Size: size, Capacity: uint16(n)}, chID: channelIDFor(sd, pdB, freeConn.Ch)},
	}
	active := queuePairSide{
		a: queueSide{res: configdata.QueueResource{Vaddr: activeConn.A.Vaddr, Size: size, Capacity: uint16(n)}, chID: channelIDFor(sd, pdA, activeConn.Ch)},
		b: queueSide{res: configdata.QueueResource{Vaddr: activeConn.B.Vaddr, Size: size, Capacity: uint16(n)}, chID: channelIDFor(sd, pdB, activeConn.Ch)},
	}
	return free, active, nil
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

func (b *Builder) channelID(pdH handle.PD, chH handle.Channel) uint8 {
	return channelIDFor(b.sd, pdH, chH)
}

// SerialiseConfig writes every filled record to "<prefix>/<name>.data".
func (b *Builder) SerialiseConfig(prefix string) error {
	if err := sddfcommon.RequireConnected(b.connected); err != nil {
		return err
	}
	if err := sddfcommon.WriteRecordFile(prefix, "net_driver", &b.driverRec); err != nil {
		return err
	}
	if err := sddfcommon.WriteRecordFile(prefix, "net_virt_rx", &b.virtRxRec); err != nil {
		return err
	}
	if err := sddfcommon.WriteRecordFile(prefix, "net_virt_tx", &b.virtTxRec); err != nil {
		return err
	}
	for name, rec := range b.clientRecs {
		rec := rec
		if err := sddfcommon.WriteRecordFile(prefix, "net_client_"+name, &rec); err != nil {
			return err
		}
	}
	for name, rec := range b.copyRecs {
		rec := rec
		if err := sddfcommon.WriteRecordFile(prefix, "net_copy_"+name, &rec); err != nil {
			return err
		}
	}
	return nil
}
