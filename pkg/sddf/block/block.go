// Package block builds the sDDF block subsystem: a driver, a
// virtualiser, and clients carrying partition assignments.
package block

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
	storageInfoPages = 1
	driverDataPages  = configdata.BlkDriverDataPages
	queueSlotBytes   = 32
)

// ClientOptions configures one block client.
type ClientOptions struct {
	Partition     uint32
	QueueCapacity uint16
	DataSize      uint32
}

type client struct {
	pd   handle.PD
	name string
	opts ClientOptions
}

// Builder assembles a block subsystem.
type Builder struct {
	sd       *sdmodel.SystemDescription
	device   *devicetree.Node
	driverPD handle.PD
	virtPD   handle.PD
	registry *driverregistry.Registry

	clients      []client
	clientByName map[string]bool

	connected bool

	driverRec     configdata.BlkDriver
	virtDriverRec configdata.BlkVirtDriver
	virtClientRec configdata.BlkVirtClient
	clientRecs    map[string]configdata.BlkClient
}

// New creates a block builder.
func New(sd *sdmodel.SystemDescription, device *devicetree.Node, driverPD, virtPD handle.PD, registry *driverregistry.Registry) (*Builder, error) {
	for _, h := range []handle.PD{driverPD, virtPD} {
		if sd.ProtectionDomain(h) == nil {
			return nil, sdferr.New(sdferr.KindInvalidConfig, "block: pd handle %d not found", h)
		}
	}
	return &Builder{
		sd: sd, device: device, driverPD: driverPD, virtPD: virtPD, registry: registry,
		clientByName: make(map[string]bool),
		clientRecs:   make(map[string]configdata.BlkClient),
	}, nil
}

// AddClient admits a client PD with the given partition and (defaulted)
// queue capacity / data size.
func (b *Builder) AddClient(clientPD handle.PD, name string, opts ClientOptions) error {
	if err := sddfcommon.RequireNotConnected(b.connected); err != nil {
		return err
	}
	if b.clientByName[name] {
		return sdferr.New(sdferr.KindDuplicateClient, "block client %q already added", name)
	}
	if opts.QueueCapacity == 0 {
		opts.QueueCapacity = configdata.DefaultBlkQueueCapacity
	}
	if opts.DataSize == 0 {
		opts.DataSize = configdata.DefaultBlkDataSize
	}
	b.clientByName[name] = true
	b.clients = append(b.clients, client{pd: clientPD, name: name, opts: opts})
	return nil
}

// Connect wires driver, virtualiser and clients together.
func (b *Builder) Connect(ctx context.Context) error {
	if err := sddfcommon.RequireNotConnected(b.connected); err != nil {
		return err
	}
	pageSize := b.sd.Arch.PageSize()

	if b.device != nil {
		if _, err := driverinstance.CreateDriver(b.sd, b.driverPD, b.device, driverregistry.ClassBlk, b.registry); err != nil {
			return err
		}
	}

	storageInfoH, err := b.sd.AddMemoryRegion("blk_storage_info", storageInfoPages*pageSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}
	driverDataH, err := b.sd.AddMemoryRegion("blk_driver_data", driverDataPages*pageSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}

	var totalCapacity uint64
	for _, c := range b.clients {
		totalCapacity += uint64(c.opts.QueueCapacity)
	}
	if totalCapacity == 0 {
		totalCapacity = uint64(configdata.DefaultBlkQueueCapacity)
	}
	reqSize := sddfcommon.QueueSize(pageSize, 0, queueSlotBytes, totalCapacity)
	respSize := reqSize

	reqH, err := b.sd.AddMemoryRegion("blk_request_queue", reqSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}
	respH, err := b.sd.AddMemoryRegion("blk_response_queue", respSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return err
	}

	storageConn, err := sddfcommon.ConnectOverMR(b.sd, b.driverPD, b.virtPD, storageInfoH, sdmodel.PermRW, sdmodel.PermRO, sdmodel.ChannelOptions{})
	if err != nil {
		return err
	}
	driverDataConn, err := sddfcommon.ConnectOverMR(b.sd, b.driverPD, b.virtPD, driverDataH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
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

	b.driverRec.StorageInfo = configdata.RegionResource{Vaddr: storageConn.A.Vaddr, Size: storageInfoPages * pageSize}
	b.driverRec.DriverData = configdata.RegionResource{Vaddr: driverDataConn.A.Vaddr, Size: driverDataPages * pageSize}
	b.driverRec.RequestQueue = configdata.QueueResource{Vaddr: reqConn.A.Vaddr, Size: reqSize, Capacity: uint16(totalCapacity)}
	b.driverRec.ResponseQueue = configdata.QueueResource{Vaddr: respConn.A.Vaddr, Size: respSize, Capacity: uint16(totalCapacity)}
	b.driverRec.VirtChannel = configdata.ChannelResource{ID: channelIDFor(b.sd, b.driverPD, reqConn.Ch)}

	b.virtDriverRec.StorageInfo = configdata.RegionResource{Vaddr: storageConn.B.Vaddr, Size: storageInfoPages * pageSize}
	b.virtDriverRec.DriverData = configdata.RegionResource{Vaddr: driverDataConn.B.Vaddr, Size: driverDataPages * pageSize}
	b.virtDriverRec.RequestQueue = configdata.QueueResource{Vaddr: reqConn.B.Vaddr, Size: reqSize, Capacity: uint16(totalCapacity)}
	b.virtDriverRec.ResponseQueue = configdata.QueueResource{Vaddr: respConn.B.Vaddr, Size: respSize, Capacity: uint16(totalCapacity)}
	b.virtDriverRec.DriverChannel = configdata.ChannelResource{ID: channelIDFor(b.sd, b.virtPD, reqConn.Ch)}

	b.virtClientRec.NumClients = uint64(len(b.clients))

	for i, c := range b.clients {
		clientStorageH, err := b.sd.AddMemoryRegion("blk_storage_info_"+c.name, storageInfoPages*pageSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}
		clientReqSize := sddfcommon.QueueSize(pageSize, 0, queueSlotBytes, uint64(c.opts.QueueCapacity))
		clientReqH, err := b.sd.AddMemoryRegion("blk_request_queue_"+c.name, clientReqSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}
		clientRespH, err := b.sd.AddMemoryRegion("blk_response_queue_"+c.name, clientReqSize, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}
		clientDataH, err := b.sd.AddMemoryRegion("blk_data_"+c.name, uint64(c.opts.DataSize), sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if err != nil {
			return err
		}

		storageConn, err := sddfcommon.ConnectOverMR(b.sd, b.virtPD, c.pd, clientStorageH, sdmodel.PermRO, sdmodel.PermRO, sdmodel.ChannelOptions{})
		if err != nil {
			return err
		}
		reqConn, err := sddfcommon.ConnectOverMR(b.sd, b.virtPD, c.pd, clientReqH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
		if err != nil {
			return err
		}
		respConn, err := sddfcommon.ConnectOverMR(b.sd, b.virtPD, c.pd, clientRespH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
		if err != nil {
			return err
		}
		dataConn, err := sddfcommon.ConnectOverMR(b.sd, b.virtPD, c.pd, clientDataH, sdmodel.PermRW, sdmodel.PermRW, sdmodel.ChannelOptions{})
		if err != nil {
			return err
		}

		clientStorage := configdata.RegionResource{Vaddr: storageConn.B.Vaddr, Size: storageInfoPages * pageSize}
		clientRequest := configdata.QueueResource{Vaddr: reqConn.B.Vaddr, Size: clientReqSize, Capacity: c.opts.QueueCapacity}
		clientResponse := configdata.QueueResource{Vaddr: respConn.B.Vaddr, Size: clientReqSize, Capacity: c.opts.QueueCapacity}
		clientData := configdata.RegionResource{Vaddr: dataConn.B.Vaddr, Size: uint64(c.opts.DataSize)}
		clientChannel := configdata.ChannelResource{ID: channelIDFor(b.sd, c.pd, reqConn.Ch)}

		b.clientRecs[c.name] = configdata.BlkClient{
			Partition:     c.opts.Partition,
			QueueCapacity: c.opts.QueueCapacity,
			DataSize:      c.opts.DataSize,
			StorageInfo:   clientStorage,
			RequestQueue:  clientRequest,
			ResponseQueue: clientResponse,
			Data:          clientData,
			VirtChannel:   clientChannel,
		}

		if i < configdata.MaxBlkClients {
			b.virtClientRec.ClientStorage[i] = clientStorage
			b.virtClientRec.ClientRequest[i] = clientRequest
			b.virtClientRec.ClientResponse[i] = clientResponse
			b.virtClientRec.ClientData[i] = clientData
			b.virtClientRec.ClientChannel[i] = configdata.ChannelResource{ID: channelIDFor(b.sd, b.virtPD, reqConn.Ch)}
			b.virtClientRec.ClientPartition[i] = c.opts.Partition
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
	if err := sddfcommon.WriteRecordFile(prefix, "blk_driver", &b.driverRec); err != nil {
		return err
	}
	if err := sddfcommon.WriteRecordFile(prefix, "blk_virt_driver", &b.virtDriverRec); err != nil {
		return err
	}
	if err := sddfcommon.WriteRecordFile(prefix, "blk_virt_client", &b.virtClientRec); err != nil {
		return err
	}
	for name, rec := range b.clientRecs {
		rec := rec
		if err := sddfcommon.WriteRecordFile(prefix, "blk_client_"+name, &rec); err != nil {
			return err
		}
	}
	return nil
}
