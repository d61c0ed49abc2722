// Package i2c builds the sDDF I2C subsystem: a bus driver, a
// virtualiser, and clients that PPC into the virtualiser for each
// transaction.
package i2c

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

const queueBytesPerSlot = 16

// Options configures the subsystem at creation time.
type Options struct {
	ReqRegionSize  uint32
	RespRegionSize uint32
}

// ClientOptions configures one client's data region size.
type ClientOptions struct {
	DataSize uint32
}

type client struct {
	pd   handle.PD
	name string
	opts ClientOptions
}

// Builder assembles an I2C subsystem.
type Builder struct {
	sd       *sdmodel.SystemDescription
	device   *devicetree.Node
	driverPD handle.PD
	virtPD   handle.PD
	registry *driverregistry.Registry
	opts     Options

	clients      []client
	clientByName map[string]bool

	connected bool

	driverRec  configdata.I2cDriver
	virtRec    configdata.I2cVirt
	clientRecs map[string]configdata.I2cClient
}

// New creates an I2C builder. driver and virt must not share a name.
func New(sd *sdmodel.SystemDescription, device *devicetree.Node, driverPD, virtPD handle.PD, registry *driverregistry.Registry, opts Options) (*Builder, error) {
	driver := sd.ProtectionDomain(driverPD)
	if driver == nil {
		return nil, sdferr.New(sdferr.KindInvalidConfig, "i2c: pd handle %d not found", driverPD)
	}
	virt := sd.ProtectionDomain(virtPD)
	if virt == nil {
		return nil, sdferr.New(sdferr.KindInvalidConfig, "i2c: pd handle %d not found", virtPD)
	}
	if driver.Name == virt.Name {
		return nil, sdferr.New(sdferr.KindInvalidVirt, "i2c: driver and virt share the name %q", driver.Name)
	}
	if opts.ReqRegionSize == 0 {
		opts.ReqRegionSize = configdata.DefaultI2cReqRegionSize
	}
	if opts.RespRegionSize == 0 {
		opts.RespRegionSize = configdata.DefaultI2cRespRegionSize
	}

	return &Builder{
		sd: sd, device: device, driverPD: driverPD, virtPD: virtPD, registry: registry, opts: opts,
		clientByName: make(map[string]bool),
		clientRecs:   make(map[string]configdata.I2cClient),
	}, nil
}

// AddClient admits a client PD. The client must not share a name with the
// driver or virt.
func (b *Builder) AddClient(clientPD handle.PD, name string, opts ClientOptions) error {
	if err := sddfcommon.RequireNotConnected(b.connected); err != nil {
		return err
	}
	driver := b.sd.ProtectionDomain(b.driverPD)
	virt := b.sd.ProtectionDomain(b.virtPD)
	if name == driver.Name || name == virt.Name {
		return sdferr.New(sdferr.KindInvalidVirt, "i2c client %q shares a name with the driver or virt", name)
	}
	if b.clientByName[name] {
		return sdferr.New(sdferr.KindDuplicateClient, "i2c client %q already added", name)
	}
	if opts.DataSize == 0 {
		opts.DataSize = configdata.DefaultI2cReqRegionSize
	}
	b.clientByName[name] = true
	b.clients = append(b.clients, client{pd: clientPD, name: name, opts: opts})
	return nil
}

// Connect wires the driver, virtualiser and clients together.
func (b *Builder) Connect(ctx context.Context) error {
	if err := sddfcommon.RequireNotConnected(b.connected); err != nil {
		return err
	}
	pageSize := b.sd.Arch.PageSize()

	if b.device != nil {
		if _, err := driverinstance.CreateDriver(b.sd, b.driverPD, b.device, driverregistry.ClassI2c, b.registry); err != nil {
			return err
		}
	}

	reqH, err := b.sd.AddMemoryRegion("i2c_driver_request", uint64(b.opts.ReqRegionSize), sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}
	respH, err := b.sd.AddMemoryRegion("i2c_driver_response", uint64(b.opts.RespRegionSize), sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}

	reqConn, err := sddfcommon.ConnectOverMR(b.sd, b.driverPD, b.virtPD, reqH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
	if err != nil {
		return err
	}
	respConn, err := sddfcommon.ConnectOverMR(b.sd, b.driverPD, b.virtPD, respH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
	if err != nil {
		return err
	}

	b.driverRec.RequestQueue = configdata.QueueResource{Vaddr: reqConn.A.Vaddr, Size: uint64(b.opts.ReqRegionSize)}
	b.driverRec.ResponseQueue = configdata.QueueResource{Vaddr: respConn.A.Vaddr, Size: uint64(b.opts.RespRegionSize)}
	b.driverRec.VirtChannel = configdata.ChannelResource{ID: channelIDFor(b.sd, b.driverPD, reqConn.Ch)}

	b.virtRec.DriverRequestQueue = configdata.QueueResource{Vaddr: reqConn.B.Vaddr, Size: uint64(b.opts.ReqRegionSize)}
	b.virtRec.DriverResponseQueue = configdata.QueueResource{Vaddr: respConn.B.Vaddr, Size: uint64(b.opts.RespRegionSize)}
	b.virtRec.DriverChannel = configdata.ChannelResource{ID: channelIDFor(b.sd, b.virtPD, reqConn.Ch)}
	b.virtRec.NumClients = uint64(len(b.clients))

	for i, c := range b.clients {
		clientReqSize := sddfcommon.QueueSize(pageSize, 0, queueBytesPerSlot, 1)
		clientReqH, err := b.sd.AddMemoryRegion("i2c_client_request_"+c.name, clientReqSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}
		clientRespH, err := b.sd.AddMemoryRegion("i2c_client_response_"+c.name, clientReqSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}
		clientDataH, err := b.sd.AddMemoryRegion("i2c_client_data_"+c.name, uint64(c.opts.DataSize), sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}

		// Request and response queues are mapped virt<->client without
		// their own channel; a single channel below carries all traffic,
		// with the client PPCing into the virtualiser (PPDirB).
		virtReqVaddr, err := b.sd.GetMapVaddr(b.virtPD, clientReqH)
		if err != nil {
			return err
		}
		if err := b.sd.AddMap(b.virtPD, clientReqH, virtReqVaddr, sdmodel.PermRW, nil, ""); err != nil {
			return err
		}
		clientReqVaddr, err := b.sd.GetMapVaddr(c.pd, clientReqH)
		if err != nil {
			return err
		}
		if err := b.sd.AddMap(c.pd, clientReqH, clientReqVaddr, sdmodel.PermRW, nil, ""); err != nil {
			return err
		}

		virtRespVaddr, err := b.sd.GetMapVaddr(b.virtPD, clientRespH)
		if err != nil {
			return err
		}
		if err := b.sd.AddMap(b.virtPD, clientRespH, virtRespVaddr, sdmodel.PermRW, nil, ""); err != nil {
			return err
		}
		clientRespVaddr, err := b.sd.GetMapVaddr(c.pd, clientRespH)
		if err != nil {
			return err
		}
		if err := b.sd.AddMap(c.pd, clientRespH, clientRespVaddr, sdmodel.PermRW, nil, ""); err != nil {
			return err
		}

		// Data region is mapped into the driver, virt, and client.
		driverDataVaddr, err := b.sd.GetMapVaddr(b.driverPD, clientDataH)
		if err != nil {
			return err
		}
		if err := b.sd.AddMap(b.driverPD, clientDataH, driverDataVaddr, sdmodel.PermRW, nil, ""); err != nil {
			return err
		}
		virtDataVaddr, err := b.sd.GetMapVaddr(b.virtPD, clientDataH)
		if err != nil {
			return err
		}
		if err := b.sd.AddMap(b.virtPD, clientDataH, virtDataVaddr, sdmodel.PermRW, nil, ""); err != nil {
			return err
		}
		clientDataVaddr, err := b.sd.GetMapVaddr(c.pd, clientDataH)
		if err != nil {
			return err
		}
		if err := b.sd.AddMap(c.pd, clientDataH, clientDataVaddr, sdmodel.PermRW, nil, ""); err != nil {
			return err
		}

		ch, err := b.sd.AddChannel(b.virtPD, c.pd, sdmodel.ChannelOptions{PPDirection: sdmodel.PPDirB})
		if err != nil {
			return err
		}

		clientRequest := configdata.QueueResource{Vaddr: clientReqVaddr, Size: clientReqSize}
		clientResponse := configdata.QueueResource{Vaddr: clientRespVaddr, Size: clientReqSize}
		clientData := configdata.RegionResource{Vaddr: clientDataVaddr, Size: uint64(c.opts.DataSize)}
		clientChannel := configdata.ChannelResource{ID: channelIDFor(b.sd, c.pd, ch)}

		b.clientRecs[c.name] = configdata.I2cClient{
			RequestQueue:  clientRequest,
			ResponseQueue: clientResponse,
			Data:          clientData,
			VirtChannel:   clientChannel,
		}

		if i < configdata.MaxI2cClients {
			b.virtRec.ClientRequest[i] = configdata.QueueResource{Vaddr: virtReqVaddr, Size: clientReqSize}
			b.virtRec.ClientResponse[i] = configdata.QueueResource{Vaddr: virtRespVaddr, Size: clientReqSize}
			b.virtRec.ClientData[i] = configdata.RegionResource{Vaddr: virtDataVaddr, Size: uint64(c.opts.DataSize)}
			b.virtRec.ClientChannel[i] = configdata.ChannelResource{ID: channelIDFor(b.sd, b.virtPD, ch)}
		}
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
	if err := sddfcommon.WriteRecordFile(prefix, "i2c_driver", &b.driverRec); err != nil {
		return err
	}
	if err := sddfcommon.WriteRecordFile(prefix, "i2c_virt", &b.virtRec); err != nil {
		return err
	}
	for name, rec := range b.clientRecs {
		rec := rec
		if err := sddfcommon.WriteRecordFile(prefix, "i2c_client_"+name, &rec); err != nil {
			return err
		}
	}
	return nil
}
