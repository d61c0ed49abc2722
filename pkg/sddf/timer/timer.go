// Package timer builds the sDDF timer subsystem: a passive driver PPC'd
// into by clients, with no shared memory.
package timer

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

type client struct {
	pd   handle.PD
	name string
}

// Builder assembles a timer subsystem.
type Builder struct {
	sd       *sdmodel.SystemDescription
	device   *devicetree.Node
	driverPD handle.PD
	registry *driverregistry.Registry

	clients      []client
	clientByName map[string]bool

	connected bool

	clientRecs map[string]configdata.TimerClient
}

// New creates a timer builder and marks driverPD passive.
func New(sd *sdmodel.SystemDescription, device *devicetree.Node, driverPD handle.PD, registry *driverregistry.Registry) (*Builder, error) {
	driver := sd.ProtectionDomain(driverPD)
	if driver == nil {
		return nil, sdferr.New(sdferr.KindInvalidConfig, "timer: pd handle %d not found", driverPD)
	}
	driver.Passive = true

	return &Builder{
		sd: sd, device: device, driverPD: driverPD, registry: registry,
		clientByName: make(map[string]bool),
		clientRecs:   make(map[string]configdata.TimerClient),
	}, nil
}

// AddClient admits a client PD. Its priority must be strictly less than
// the driver's.
func (b *Builder) AddClient(clientPD handle.PD, name string) error {
	if err := sddfcommon.RequireNotConnected(b.connected); err != nil {
		return err
	}
	if b.clientByName[name] {
		return sdferr.New(sdferr.KindDuplicateClient, "timer client %q already added", name)
	}
	clientPDObj := b.sd.ProtectionDomain(clientPD)
	if clientPDObj == nil {
		return sdferr.New(sdferr.KindInvalidConfig, "timer: pd handle %d not found", clientPD)
	}
	driver := b.sd.ProtectionDomain(b.driverPD)
	if clientPDObj.Priority >= driver.Priority {
		return sdferr.New(sdferr.KindInvalidClient, "timer client %q priority %d must be < driver priority %d", name, clientPDObj.Priority, driver.Priority)
	}
	b.clientByName[name] = true
	b.clients = append(b.clients, client{pd: clientPD, name: name})
	return nil
}

// Connect wires the driver and clients together.
func (b *Builder) Connect(ctx context.Context) error {
	if err := sddfcommon.RequireNotConnected(b.connected); err != nil {
		return err
	}

	if b.device != nil {
		if _, err := driverinstance.CreateDriver(b.sd, b.driverPD, b.device, driverregistry.ClassTimer, b.registry); err != nil {
			return err
		}
	}

	for _, c := range b.clients {
		ch, err := b.sd.AddChannel(b.driverPD, c.pd, sdmodel.ChannelOptions{PPDirection: sdmodel.PPDirB, NoNotifyA: true})
		if err != nil {
			return err
		}
		b.clientRecs[c.name] = configdata.TimerClient{
			DriverChannel: configdata.ChannelResource{ID: channelIDFor(b.sd, c.pd, ch)},
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

// SerialiseConfig writes every client's record to "<prefix>/<name>.data".
func (b *Builder) SerialiseConfig(prefix string) error {
	if err := sddfcommon.RequireConnected(b.connected); err != nil {
		return err
	}
	for name, rec := range b.clientRecs {
		rec := rec
		if err := sddfcommon.WriteRecordFile(prefix, "timer_client_"+name, &rec); err != nil {
			return err
		}
	}
	return nil
}
