package sdmodel

import "github.com/jimyag/sdfgen/pkg/sdferr"

// Validate checks every pre-emit invariant from spec.md §4.1. ToXML calls
// this internally; callers may also call it directly to fail fast before
// attempting to serialize.
func (sd *SystemDescription) Validate() error {
	for _, pd := range sd.pds {
		for _, m := range pd.Maps {
			if sd.MemoryRegion(m.MR) == nil {
				return sdferr.New(sdferr.KindInvalidConfig, "pd %q: map references unknown mr handle %d", pd.Name, m.MR)
			}
			if !sd.Arch.IsAligned(m.Vaddr) {
				return sdferr.New(sdferr.KindInvalidConfig, "pd %q: map vaddr 0x%x not page-aligned", pd.Name, m.Vaddr)
			}
		}
		for _, sv := range pd.SetVariables {
			if sv.Symbol == "" {
				return sdferr.New(sdferr.KindInvalidConfig, "pd %q: set-variable with empty symbol", pd.Name)
			}
		}
		if err := sd.validateIDNamespace(pd); err != nil {
			return err
		}
	}

	for _, ch := range sd.channels {
		if sd.ProtectionDomain(ch.PDA) == nil || sd.ProtectionDomain(ch.PDB) == nil {
			return sdferr.New(sdferr.KindInvalidConfig, "channel %d: endpoint pd not found in sd", ch.Handle)
		}
	}

	for _, mr := range sd.mrs {
		if mr.setVarAnnotated && !mr.setVarUsed {
			return sdferr.New(sdferr.KindInvalidConfig, "memory region %q: annotated setvar_vaddr but no map binds it", mr.Name)
		}
	}

	return nil
}

// validateIDNamespace re-derives the set of IDs in use from IRQs and
// channel endpoints and checks them pairwise distinct — a defensive
// double-check of what allocID already enforces at mutation time.
func (sd *SystemDescription) validateIDNamespace(pd *ProtectionDomain) error {
	seen := make(map[uint8]bool)
	for _, irq := range pd.IRQs {
		if seen[irq.ID] {
			return sdferr.New(sdferr.KindIdCollision, "pd %q: irq id %d used more than once", pd.Name, irq.ID)
		}
		seen[irq.ID] = true
	}
	for _, ch := range sd.channels {
		if ch.PDA == pd.Handle {
			if seen[ch.PDAID] {
				return sdferr.New(sdferr.KindIdCollision, "pd %q: channel id %d collides with an irq or another channel", pd.Name, ch.PDAID)
			}
			seen[ch.PDAID] = true
		}
		if ch.PDB == pd.Handle {
			if seen[ch.PDBID] {
				return sdferr.New(sdferr.KindIdCollision, "pd %q: channel id %d collides with an irq or another channel", pd.Name, ch.PDBID)
			}
			seen[ch.PDBID] = true
		}
	}
	return nil
}
