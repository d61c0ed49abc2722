package sdmodel

import (
	"github.com/jimyag/sdfgen/pkg/handle"
)

// MemoryRegion is a named region of physical or anonymous memory.
type MemoryRegion struct {
	Handle handle.MR
	Name   string
	Size   uint64
	// Paddr is nil until the allocator (or an explicit caller) assigns
	// one. Physical reports whether the region is meant to carry a
	// paddr at all — a region can be Physical with Paddr still nil,
	// pending allocation.
	Paddr    *uint64
	Physical bool
	PageSize uint64
	Cached   bool

	// setVarAnnotated marks a region created from a driver manifest
	// region descriptor that carries setvar_vaddr — spec.md §4.1
	// requires every such region to have at least one map using the
	// binding, checked by Validate.
	setVarAnnotated bool
	setVarUsed      bool
}

// MROption configures an optional MemoryRegion attribute at creation time.
type MROption func(*MemoryRegion)

// WithPaddr pins the region to a known physical address.
func WithPaddr(paddr uint64) MROption {
	return func(mr *MemoryRegion) {
		mr.Paddr = &paddr
		mr.Physical = true
	}
}

// WithPhysical marks the region as physical without assigning a paddr yet
// — a later allocator pass is expected to call (*MemoryRegion).SetPaddr.
func WithPhysical() MROption {
	return func(mr *MemoryRegion) { mr.Physical = true }
}

// WithPageSize overrides the region's page-size class (defaults to the
// owning SystemDescription's architecture page size).
func WithPageSize(pageSize uint64) MROption {
	return func(mr *MemoryRegion) { mr.PageSize = pageSize }
}

// WithCached sets the region's default cached flag.
func WithCached(cached bool) MROption {
	return func(mr *MemoryRegion) { mr.Cached = cached }
}

// WithSetVarAnnotated marks the region as requiring at least one map
// that binds a set-variable to it (driver manifests with setvar_vaddr).
func WithSetVarAnnotated() MROption {
	return func(mr *MemoryRegion) { mr.setVarAnnotated = true }
}

// IsPhysical reports whether the region has a known (or allocator-pending)
// physical address slot — a "physical MR" in spec.md's terms is simply one
// that was created with, or is meant to receive, a paddr.
func (mr *MemoryRegion) IsPhysical() bool {
	return mr.Physical
}

// SetPaddr assigns a physical address to a region previously created with
// WithPhysical but no paddr yet.
func (mr *MemoryRegion) SetPaddr(paddr uint64) {
	mr.Paddr = &paddr
	mr.Physical = true
}
