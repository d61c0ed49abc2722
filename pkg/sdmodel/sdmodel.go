package sdmodel

import (
	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/handle"
	"github.com/jimyag/sdfgen/pkg/sdferr"
)

// defaultVaddrBase is where GetMapVaddr starts handing out addresses in a
// freshly created PD's address space, leaving room below for the ELF
// image's own text/data/bss.
const defaultVaddrBase = 0x2_00000

// SystemDescription is the root container of memory regions, protection
// domains and channels for one target Architecture. Created once by New,
// mutated by the sDDF builders and driver instantiation, then emitted.
type SystemDescription struct {
	Arch arch.Architecture

	arena *handle.Arena

	mrs      []*MemoryRegion
	mrByName map[string]handle.MR

	pds      []*ProtectionDomain
	pdByName map[string]handle.PD
	rootPDs  []handle.PD

	channels []*Channel

	nextVaddr map[handle.PD]uint64
}

// New creates an empty SystemDescription for the given architecture.
func New(a arch.Architecture) *SystemDescription {
	return &SystemDescription{
		Arch:      a,
		arena:     handle.New(),
		mrByName:  make(map[string]handle.MR),
		pdByName:  make(map[string]handle.PD),
		nextVaddr: make(map[handle.PD]uint64),
	}
}

// AddMemoryRegion appends a new, uniquely-named memory region. Size is
// page-aligned to the region's page size (or the SD's architecture
// default); an explicit paddr (via WithPaddr) must already be aligned.
func (sd *SystemDescription) AddMemoryRegion(name string, size uint64, opts ...MROption) (handle.MR, error) {
	if name == "" {
		return 0, sdferr.New(sdferr.KindInvalidConfig, "memory region name must not be empty")
	}
	if _, exists := sd.mrByName[name]; exists {
		return 0, sdferr.New(sdferr.KindInvalidConfig, "memory region %q already exists", name)
	}

	mr := &MemoryRegion{Name: name, Size: size, PageSize: sd.Arch.PageSize()}
	for _, opt := range opts {
		opt(mr)
	}
	if mr.PageSize == 0 {
		mr.PageSize = sd.Arch.PageSize()
	}
	mr.Size = arch.AlignUpTo(mr.Size, mr.PageSize)
	if mr.Paddr != nil && *mr.Paddr%mr.PageSize != 0 {
		return 0, sdferr.New(sdferr.KindInvalidConfig, "memory region %q: paddr 0x%x not aligned to page size 0x%x", name, *mr.Paddr, mr.PageSize)
	}

	h := sd.arena.NewMR()
	mr.Handle = h
	sd.mrs = append(sd.mrs, mr)
	sd.mrByName[name] = h
	return h, nil
}

// MemoryRegion resolves a handle to its MemoryRegion, or nil if the handle
// is not (or no longer) valid for this SD.
func (sd *SystemDescription) MemoryRegion(h handle.MR) *MemoryRegion {
	if int(h) >= len(sd.mrs) {
		return nil
	}
	return sd.mrs[h]
}

// MemoryRegionByName looks up a region by its unique name.
func (sd *SystemDescription) MemoryRegionByName(name string) *MemoryRegion {
	h, ok := sd.mrByName[name]
	if !ok {
		return nil
	}
	return sd.MemoryRegion(h)
}

// MemoryRegions returns all regions in insertion order.
func (sd *SystemDescription) MemoryRegions() []*MemoryRegion { return sd.mrs }

// AddPD appends a new top-level, uniquely-named protection domain.
func (sd *SystemDescription) AddPD(name, elf string, opts ...PDOption) (handle.PD, error) {
	h, err := sd.newPD(name, elf, opts...)
	if err != nil {
		return 0, err
	}
	sd.rootPDs = append(sd.rootPDs, h)
	return h, nil
}

// AddChildPD appends a new protection domain as a child of parent, forming
// the PD tree spec.md §3 describes. Name uniqueness is SD-wide.
func (sd *SystemDescription) AddChildPD(parent handle.PD, name, elf string, opts ...PDOption) (handle.PD, error) {
	p := sd.ProtectionDomain(parent)
	if p == nil {
		return 0, sdferr.New(sdferr.KindInvalidConfig, "add child pd: parent handle %d not found", parent)
	}
	h, err := sd.newPD(name, elf, opts...)
	if err != nil {
		return 0, err
	}
	p.Children = append(p.Children, h)
	return h, nil
}

func (sd *SystemDescription) newPD(name, elf string, opts ...PDOption) (handle.PD, error) {
	if name == "" {
		return 0, sdferr.New(sdferr.KindInvalidConfig, "protection domain name must not be empty")
	}
	if _, exists := sd.pdByName[name]; exists {
		return 0, sdferr.New(sdferr.KindInvalidConfig, "protection domain %q already exists", name)
	}
	h := sd.arena.NewPD()
	pd := newProtectionDomain(h, name, elf, opts...)
	sd.pds = append(sd.pds, pd)
	sd.pdByName[name] = h
	sd.nextVaddr[h] = defaultVaddrBase
	return h, nil
}

// ProtectionDomain resolves a handle to its ProtectionDomain, or nil.
func (sd *SystemDescription) ProtectionDomain(h handle.PD) *ProtectionDomain {
	if int(h) >= len(sd.pds) {
		return nil
	}
	return sd.pds[h]
}

// ProtectionDomainByName looks up a PD by its unique name.
func (sd *SystemDescription) ProtectionDomainByName(name string) *ProtectionDomain {
	h, ok := sd.pdByName[name]
	if !ok {
		return nil
	}
	return sd.ProtectionDomain(h)
}

// ProtectionDomains returns every PD in the SD, flat (not tree order).
func (sd *SystemDescription) ProtectionDomains() []*ProtectionDomain { return sd.pds }

// GetMapVaddr returns the next free, page-aligned virtual address in pd's
// address space for mapping mr, and advances pd's internal cursor by mr's
// aligned size. It does not itself create a Map — call AddMap with the
// returned vaddr to do that.
func (sd *SystemDescription) GetMapVaddr(pdH handle.PD, mrH handle.MR) (uint64, error) {
	pd := sd.ProtectionDomain(pdH)
	if pd == nil {
		return 0, sdferr.New(sdferr.KindInvalidConfig, "get map vaddr: pd handle %d not found", pdH)
	}
	mr := sd.MemoryRegion(mrH)
	if mr == nil {
		return 0, sdferr.New(sdferr.KindInvalidConfig, "get map vaddr: mr handle %d not found", mrH)
	}
	vaddr := sd.nextVaddr[pdH]
	sd.nextVaddr[pdH] = vaddr + arch.AlignUpTo(mr.Size, sd.Arch.PageSize())
	return vaddr, nil
}

// AddMap maps mr into pd at vaddr with the given permissions. cached is
// nil to inherit the region's default cached flag. setVar, if non-empty,
// records a SetVariable binding the symbol to vaddr on pd.
func (sd *SystemDescription) AddMap(pdH handle.PD, mrH handle.MR, vaddr uint64, perm Perm, cached *bool, setVar string) error {
	pd := sd.ProtectionDomain(pdH)
	if pd == nil {
		return sdferr.New(sdferr.KindInvalidConfig, "add map: pd handle %d not found", pdH)
	}
	mr := sd.MemoryRegion(mrH)
	if mr == nil {
		return sdferr.New(sdferr.KindInvalidConfig, "add map: mr handle %d not found", mrH)
	}
	if !sd.Arch.IsAligned(vaddr) {
		return sdferr.New(sdferr.KindInvalidConfig, "add map: vaddr 0x%x not page-aligned", vaddr)
	}
	if pd.overlaps(vaddr, mr.Size) {
		return sdferr.New(sdferr.KindInvalidConfig, "add map: pd %q vaddr 0x%x overlaps an existing map", pd.Name, vaddr)
	}

	pd.Maps = append(pd.Maps, Map{MR: mrH, Vaddr: vaddr, Perm: perm, Cached: cached, SetVariable: setVar})
	pd.recordRange(vaddr, mr.Size)
	if setVar != "" {
		pd.SetVariables = append(pd.SetVariables, SetVariable{Symbol: setVar, Value: vaddr})
		mr.setVarUsed = true
	}
	return nil
}

// AddIRQ attaches a hardware IRQ to pd, allocating an ID in pd's
// namespace. explicitID, if non-nil, is honored or rejected with
// IdCollision; otherwise the lowest free slot is used.
func (sd *SystemDescription) AddIRQ(pdH handle.PD, number uint32, trigger Trigger, explicitID *uint8) (uint8, error) {
	pd := sd.ProtectionDomain(pdH)
	if pd == nil {
		return 0, sdferr.New(sdferr.KindInvalidConfig, "add irq: pd handle %d not found", pdH)
	}
	id, err := pd.allocID(explicitID)
	if err != nil {
		return 0, err
	}
	pd.IRQs = append(pd.IRQs, IRQ{Number: number, Trigger: trigger, ID: id})
	return id, nil
}
