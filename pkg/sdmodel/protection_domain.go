package sdmodel

import (
	"github.com/jimyag/sdfgen/pkg/handle"
	"github.com/jimyag/sdfgen/pkg/sdferr"
)

// maxID is the exclusive upper bound of the per-PD IRQ/channel ID
// namespace; 63 itself is reserved and never handed out.
const maxID = 63

const defaultPriority = 100

// Map is a mapping of a MemoryRegion into a ProtectionDomain's address space.
type Map struct {
	MR          handle.MR
	Vaddr       uint64
	Perm        Perm
	Cached      *bool // nil defers to the MR's default cached flag
	SetVariable string
}

// IRQ is a kernel interrupt attached to a PD, with an ID allocated in the
// PD's [0,63) namespace.
type IRQ struct {
	Number  uint32
	Trigger Trigger
	ID      uint8
}

// ProtectionDomain is a named protection/schedulable entity.
type ProtectionDomain struct {
	Handle   handle.PD
	Name     string
	ELF      string
	Priority uint8
	Budget   *uint64
	Period   *uint64
	Passive  bool
	StackKiB uint64
	HeapKiB  uint64

	Maps         []Map
	IRQs         []IRQ
	Children     []handle.PD
	SetVariables []SetVariable

	usedIDs [maxID + 1]bool
	ranges  []addrRange
}

type addrRange struct {
	start, end uint64 // [start, end)
}

// PDOption configures an optional ProtectionDomain attribute at creation time.
type PDOption func(*ProtectionDomain)

// WithPriority overrides the default priority (100). Valid range is 0-255.
func WithPriority(p uint8) PDOption {
	return func(pd *ProtectionDomain) { pd.Priority = p }
}

// WithBudget sets the scheduling budget/period pair (microseconds).
func WithBudget(budget, period uint64) PDOption {
	return func(pd *ProtectionDomain) {
		pd.Budget = &budget
		pd.Period = &period
	}
}

// WithPassive marks the PD as passive (scheduled only via protected
// procedure calls, never runs on its own thread of control).
func WithPassive() PDOption {
	return func(pd *ProtectionDomain) { pd.Passive = true }
}

// WithStackKiB overrides the PD's stack size in KiB.
func WithStackKiB(kib uint64) PDOption {
	return func(pd *ProtectionDomain) { pd.StackKiB = kib }
}

// WithHeapKiB overrides the PD's heap size in KiB.
func WithHeapKiB(kib uint64) PDOption {
	return func(pd *ProtectionDomain) { pd.HeapKiB = kib }
}

// newProtectionDomain builds a PD with slot 63 permanently reserved.
func newProtectionDomain(h handle.PD, name, elf string, opts ...PDOption) *ProtectionDomain {
	pd := &ProtectionDomain{
		Handle:   h,
		Name:     name,
		ELF:      elf,
		Priority: defaultPriority,
	}
	pd.usedIDs[maxID] = true
	for _, opt := range opts {
		opt(pd)
	}
	return pd
}

// allocID assigns an ID in [0,63). If explicit is non-nil, it is used as
// given (IdCollision on conflict); otherwise the lowest free slot is
// assigned (IdExhausted if none remain).
func (pd *ProtectionDomain) allocID(explicit *uint8) (uint8, error) {
	if explicit != nil {
		id := *explicit
		if id >= maxID {
			return 0, sdferr.New(sdferr.KindIdCollision, "pd %q: explicit id %d out of range [0,%d)", pd.Name, id, maxID)
		}
		if pd.usedIDs[id] {
			return 0, sdferr.New(sdferr.KindIdCollision, "pd %q: id %d already in use", pd.Name, id)
		}
		pd.usedIDs[id] = true
		return id, nil
	}
	for id := uint8(0); id < maxID; id++ {
		if !pd.usedIDs[id] {
			pd.usedIDs[id] = true
			return id, nil
		}
	}
	return 0, sdferr.New(sdferr.KindIdExhausted, "pd %q: no free id in [0,%d)", pd.Name, maxID)
}

// overlaps reports whether [start, start+size) intersects any map already
// recorded in the PD's address space.
func (pd *ProtectionDomain) overlaps(start, size uint64) bool {
	end := start + size
	for _, r := range pd.ranges {
		if start < r.end && r.start < end {
			return true
		}
	}
	return false
}

func (pd *ProtectionDomain) recordRange(start, size uint64) {
	pd.ranges = append(pd.ranges, addrRange{start: start, end: start + size})
}
