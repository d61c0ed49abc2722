// Package gpu builds the sDDF GPU subsystem: a driver, a virtualiser,
// and clients sharing a single channel each for events/requests/responses.
package gpu

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
	queueBytesPerSlot = 16
	defaultQueueSlots = 128
	defaultDataSize   = 2 * 1024 * 1024
)

// ClientOptions configures one client's data region size.
type ClientOptions struct {
	DataSize uint32
}

type client struct {
	pd   handle.PD
	name string
	opts ClientOptions
}

// Builder assembles a GPU subsystem.
type Builder struct {
	sd       *sdmodel.SystemDescription
	device   *devicetree.Node
	driverPD handle.PD
	virtPD   handle.PD
	registry *driverregistry.Registry

	clients      []client
	clientByName map[string]bool

	connected bool

	driverRec  configdata.GpuDriver
	virtRec    configdata.GpuVirtClient
	virtDrvRec configdata.GpuVirtDriver
	clientRecs map[string]configdata.GpuClient
}

// New creates a GPU builder.
func New(sd *sdmodel.SystemDescription, device *devicetree.Node, driverPD, virtPD handle.PD, registry *driverregistry.Registry) (*Builder, error) {
	if sd.ProtectionDomain(driverPD) == nil {
		return nil, sdferr.New(sdferr.KindInvalidConfig, "gpu: pd handle %d not found", driverPD)
	}
	if sd.ProtectionDomain(virtPD) == nil {
		return nil, sdferr.New(sdferr.KindInvalidConfig, "gpu: pd handle %d not found", virtPD)
	}
	return &Builder{
		sd: sd, device: device, driverPD: driverPD, virtPD: virtPD, registry: registry,
		clientByName: make(map[string]bool),
		clientRecs:   make(map[string]configdata.GpuClient),
	}, nil
}

// AddClient admits a client PD.
func (b *Builder) AddClient(clientPD handle.PD, name string, opts ClientOptions) error {
	if err := sddfcommon.RequireNotConnected(b.connected); err != nil {
		return err
	}
	if b.clientByName[name] {
		return sdferr.New(sdferr.KindDuplicateClient, "gpu client %q already added", name)
	}
	if opts.DataSize == 0 {
		opts.DataSize = defaultDataSize
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
		if _, err := driverinstance.CreateDriver(b.sd, b.driverPD, b.device, driverregistry.ClassGpu, b.registry); err != nil {
			return err
		}
	}

	eventsSize := sddfcommon.QueueSize(pageSize, 0, queueBytesPerSlot, defaultQueueSlots)
	reqSize := eventsSize
	respSize := eventsSize

	eventsH, err := b.sd.AddMemoryRegion("gpu_events", eventsSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}
	reqH, err := b.sd.AddMemoryRegion("gpu_request_queue", reqSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}
	respH, err := b.sd.AddMemoryRegion("gpu_response_queue", respSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}
	dataH, err := b.sd.AddMemoryRegion("gpu_data", defaultDataSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}

	eventsConn, err := sddfcommon.ConnectOverMR(b.sd, b.driverPD, b.virtPD, eventsH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
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
	dataConn, err := sddfcommon.ConnectOverMR(b.sd, b.driverPD, b.virtPD, dataH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
	if err != nil {
		return err
	}

	b.driverRec.Events = configdata.QueueResource{Vaddr: eventsConn.A.Vaddr, Size: eventsSize, Capacity: defaultQueueSlots}
	b.driverRec.RequestQueue = configdata.QueueResource{Vaddr: reqConn.A.Vaddr, Size: reqSize, Capacity: defaultQueueSlots}
	b.driverRec.ResponseQueue = configdata.QueueResource{Vaddr: respConn.A.Vaddr, Size: respSize, Capacity: defaultQueueSlots}
	b.driverRec.Data = configdata.RegionResource{Vaddr: dataConn.A.Vaddr, Size: defaultDataSize}
	b.driverRec.VirtChannel = configdata.ChannelResource{ID: channelIDFor(b.sd, b.driverPD, reqConn.Ch)}

	b.virtDrvRec.Events = configdata.QueueResource{Vaddr: eventsConn.B.Vaddr, Size: eventsSize, Capacity: defaultQueueSlots}
	b.virtDrvRec.RequestQueue = configdata.QueueResource{Vaddr: reqConn.B.Vaddr, Size: reqSize, Capacity: defaultQueueSlots}
	b.virtDrvRec.ResponseQueue = configdata.QueueResource{Vaddr: respConn.B.Vaddr, Size: respSize, Capacity: defaultQueueSlots}
	b.virtDrvRec.Data = configdata.RegionResource{Vaddr: dataConn.B.Vaddr, Size: defaultDataSize}
	b.virtDrvRec.DriverChannel = configdata.ChannelResource{ID: channelIDFor(b.sd, b.virtPD, reqConn.Ch)}

	b.virtRec.NumClients = uint64(len(b.clients))

	for i, c := range b.clients {
		clientEventsSize := sddfcommon.QueueSize(pageSize, 0, queueBytesPerSlot, defaultQueueSlots)
		clientEventsH, err := b.sd.AddMemoryRegion("gpu_events_"+c.name, clientEventsSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}
		clientReqH, err := b.sd.AddMemoryRegion("gpu_request_queue_"+c.name, clientEventsSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}
		clientRespH, err := b.sd.AddMemoryRegion("gpu_response_queue_"+c.name, clientEventsSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}
		clientDataH, err := b.sd.AddMemoryRegion("gpu_data_"+c.name, uint64(c.opts.DataSize), sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}

		virtEventsVaddr, err := b.sd.GetMapVaddr(b.virtPD, clientEventsH)
		if err != nil {
			return err
		}
		if err := b.sd.AddMap(b.virtPD, clientEventsH, virtEventsVaddr, sdmodel.PermRW, nil, ""); err != nil {
			return err
		}
		clientEventsVaddr, err := b.sd.GetMapVaddr(c.pd, clientEventsH)
		if err != nil {
			return err
		}
		if err := b.sd.AddMap(c.pd, clientEventsH, clientEventsVaddr, sdmodel.PermRO, nil, ""); err != nil {
			return err
		}

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

		ch, err := b.sd.AddChannel(b.virtPD, c.pd, sdmodel.ChannelOptions{})
		if err != nil {
			return err
		}

		clientEvents := configdata.QueueResource{Vaddr: clientEventsVaddr, Size: clientEventsSize, Capacity: defaultQueueSlots}
		clientRequest := configdata.QueueResource{Vaddr: clientReqVaddr, Size: clientEventsSize, Capacity: defaultQueueSlots}
		clientResponse := configdata.QueueResource{Vaddr: clientRespVaddr, Size: clientEventsSize, Capacity: defaultQueueSlots}
		clientData := configdata.RegionResource{Vaddr: clientDataVaddr, Size: uint64(c.opts.DataSize)}
		clientChannel := configdata.ChannelResource{ID: channelIDFor(b.sd, c.pd, ch)}

		b.clientRecs[c.name] = configdata.GpuClient{
			Events:        clientEvents,
			RequestQueue:  clientRequest,
			ResponseQueue: clientResponse,
			Data:          clientData,
			VirtChannel:   clientChannel,
		}

		if i < configdata.MaxGpuClients {
			b.virtRec.ClientEvents[i] = configdata.QueueResource{Vaddr: virtEventsVaddr, Size: clientEventsSize, Capacity: defaultQueueSlots}
			b.virtRec.ClientRequest[i] = configdata.QueueResource{Vaddr: virtReqVaddr, Size: clientEventsSize, Capacity: defaultQueueSlots}
			b.virtRec.ClientResponse[i] = configdata.QueueResource{Vaddr: virtRespVaddr, Size: clientEventsSize, Capacity: defaultQueueSlots}
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
	if err := sddfcommon.WriteRecordFile(prefix, "gpu_driver", &b.driverRec); err != nil {
		return err
	}
	if err := sddfcommon.WriteRecordFile(prefix, "gpu_virt_driver", &b.virtDrvRec); err != nil {
		return err
	}
	if err := sddfcommon.WriteRecordFile(prefix, "gpu_virt_client", &b.virtRec); err != nil {
		return err
	}
	for name, rec := range b.clientRecs {
		rec := rec
		if err := sddfcommon.WriteRecordFile(prefix, "gpu_client_"+name, &rec); err != nil {
			return err
		}
	}
	return nil
}
