package sdmodel

import (
	"github.com/jimyag/sdfgen/pkg/handle"
	"github.com/jimyag/sdfgen/pkg/sdferr"
)

// Channel is an unordered pair of PD endpoints with two per-PD-allocated
// slot IDs.
type Channel struct {
	Handle handle.Channel

	PDA   handle.PD
	PDB   handle.PD
	PDAID uint8
	PDBID uint8

	PPDirection PPDirection
	PDANotify   bool
	PDBNotify   bool
}

// ChannelOptions configures a Channel at creation time. Zero value means
// no protected procedure, notifications enabled both ways, implicit ID
// allocation on both ends.
type ChannelOptions struct {
	PPDirection PPDirection
	// NoNotifyA/NoNotifyB, when true, disable the default (true)
	// notify-on-this-end behavior.
	NoNotifyA bool
	NoNotifyB bool
	// ExplicitIDA/ExplicitIDB request a specific per-PD slot rather than
	// the lowest free one.
	ExplicitIDA *uint8
	ExplicitIDB *uint8
}

// AddChannel creates a channel between pdA and pdB, allocating one ID in
// each PD's namespace. Both endpoints must already exist in the SD.
func (sd *SystemDescription) AddChannel(pdAH, pdBH handle.PD, opts ChannelOptions) (handle.Channel, error) {
	pdA := sd.ProtectionDomain(pdAH)
	if pdA == nil {
		return 0, sdferr.New(sdferr.KindInvalidConfig, "add channel: pd handle %d not found", pdAH)
	}
	pdB := sd.ProtectionDomain(pdBH)
	if pdB == nil {
		return 0, sdferr.New(sdferr.KindInvalidConfig, "add channel: pd handle %d not found", pdBH)
	}

	idA, err := pdA.allocID(opts.ExplicitIDA)
	if err != nil {
		return 0, err
	}
	idB, err := pdB.allocID(opts.ExplicitIDB)
	if err != nil {
		// Don't leave pdA's slot allocated if pdB's allocation fails.
		pdA.usedIDs[idA] = false
		return 0, err
	}

	h := sd.arena.NewChannel()
	ch := &Channel{
		Handle:      h,
		PDA:         pdAH,
		PDB:         pdBH,
		PDAID:       idA,
		PDBID:       idB,
		PPDirection: opts.PPDirection,
		PDANotify:   !opts.NoNotifyA,
		PDBNotify:   !opts.NoNotifyB,
	}
	sd.channels = append(sd.channels, ch)
	return h, nil
}

// Channels returns every channel in insertion order.
func (sd *SystemDescription) Channels() []*Channel { return sd.channels }
