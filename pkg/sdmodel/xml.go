package sdmodel

import (
	"fmt"
	"strings"

	xmlpkg "encoding/xml"

	"github.com/jimyag/sdfgen/pkg/handle"
	"github.com/jimyag/sdfgen/pkg/sdferr"
)

// ToXML validates sd and renders it as a Microkit system description
// document. Element and attribute ordering is fixed by insertion order
// (memory regions, channels) or DFS (the PD tree), never map iteration, so
// two builds from identical calls produce byte-identical output.
//
// The document is hand-assembled rather than produced via xml.Marshal:
// the format requires hex-prefixed numeric attributes and field omission
// rules that don't map onto Go struct tags. encoding/xml is still used for
// text/attribute escaping.
func (sd *SystemDescription) ToXML() (string, error) {
	if err := sd.Validate(); err != nil {
		return "", sdferr.Wrap(sdferr.KindInvalidConfig, err, "toxml: sd validation failed")
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<system>\n")

	for _, mr := range sd.mrs {
		writeMemoryRegion(&b, mr, 1)
	}

	childOf := make(map[handle.PD][]handle.PD)
	isChild := make(map[handle.PD]bool)
	for _, pd := range sd.pds {
		for _, c := range pd.Children {
			childOf[pd.Handle] = append(childOf[pd.Handle], c)
			isChild[c] = true
		}
	}
	for _, h := range sd.rootPDs {
		sd.writePDTree(&b, h, childOf, 1)
	}
	// Any PD that is neither a root nor reachable as a child (shouldn't
	// normally happen, but emit it rather than silently dropping it).
	for _, pd := range sd.pds {
		if !isChild[pd.Handle] && !containsPD(sd.rootPDs, pd.Handle) {
			sd.writePDTree(&b, pd.Handle, childOf, 1)
		}
	}

	for _, ch := range sd.channels {
		writeChannel(&b, sd, ch, 1)
	}

	b.WriteString("</system>\n")
	return b.String(), nil
}

func containsPD(hs []handle.PD, h handle.PD) bool {
	for _, x := range hs {
		if x == h {
			return true
		}
	}
	return false
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("    ")
	}
}

func hex(n uint64) string { return fmt.Sprintf("0x%x", n) }

func esc(s string) string {
	var b strings.Builder
	_ = xmlpkg.EscapeText(&b, []byte(s))
	return b.String()
}

func writeMemoryRegion(b *strings.Builder, mr *MemoryRegion, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, `<memory_region name="%s" size="%s" page_size="%s"`, esc(mr.Name), hex(mr.Size), hex(mr.PageSize))
	if mr.Paddr != nil {
		fmt.Fprintf(b, ` phys_addr="%s"`, hex(*mr.Paddr))
	}
	b.WriteString(" />\n")
}

func (sd *SystemDescription) writePDTree(b *strings.Builder, h handle.PD, childOf map[handle.PD][]handle.PD, depth int) {
	pd := sd.ProtectionDomain(h)
	if pd == nil {
		return
	}
	indent(b, depth)
	fmt.Fprintf(b, `<protection_domain name="%s" priority="%s"`, esc(pd.Name), hex(uint64(pd.Priority)))
	if pd.Budget != nil {
		fmt.Fprintf(b, ` budget="%s"`, hex(*pd.Budget))
	}
	if pd.Period != nil {
		fmt.Fprintf(b, ` period="%s"`, hex(*pd.Period))
	}
	if pd.Passive {
		b.WriteString(` passive="true"`)
	}
	if pd.StackKiB != 0 {
		fmt.Fprintf(b, ` stack_size="%s"`, hex(pd.StackKiB*1024))
	}
	if pd.HeapKiB != 0 {
		fmt.Fprintf(b, ` heap_size="%s"`, hex(pd.HeapKiB*1024))
	}
	b.WriteString(">\n")

	indent(b, depth)
	fmt.Fprintf(b, `    <program_image path="%s" />`+"\n", esc(pd.ELF))

	for _, m := range pd.Maps {
		writeMap(b, sd, m, depth+1)
	}
	for _, irq := range pd.IRQs {
		writeIRQ(b, irq, depth+1)
	}
	for _, sv := range pd.SetVariables {
		writeSetVar(b, sv, depth+1)
	}
	for _, c := range childOf[h] {
		sd.writePDTree(b, c, childOf, depth+1)
	}

	indent(b, depth)
	b.WriteString("</protection_domain>\n")
}

func writeMap(b *strings.Builder, sd *SystemDescription, m Map, depth int) {
	mr := sd.MemoryRegion(m.MR)
	indent(b, depth)
	fmt.Fprintf(b, `<map mr="%s" vaddr="%s" perm="%s"`, esc(mr.Name), hex(m.Vaddr), m.Perm.String())
	cached := mr.Cached
	if m.Cached != nil {
		cached = *m.Cached
	}
	fmt.Fprintf(b, ` cached="%t"`, cached)
	if m.SetVariable != "" {
		fmt.Fprintf(b, ` setvar_vaddr="%s"`, esc(m.SetVariable))
	}
	b.WriteString(" />\n")
}

func writeIRQ(b *strings.Builder, irq IRQ, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, `<irq irq="%s" trigger="%s" id="%s" />`+"\n", hex(uint64(irq.Number)), irq.Trigger.String(), hex(uint64(irq.ID)))
}

func writeSetVar(b *strings.Builder, sv SetVariable, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, `<setvar symbol="%s" value="%s" />`+"\n", esc(sv.Symbol), hex(sv.Value))
}

func writeChannel(b *strings.Builder, sd *SystemDescription, ch *Channel, depth int) {
	pdA := sd.ProtectionDomain(ch.PDA)
	pdB := sd.ProtectionDomain(ch.PDB)
	indent(b, depth)
	fmt.Fprintf(b, `<channel>`+"\n")
	indent(b, depth+1)
	fmt.Fprintf(b, `<end pd="%s" id="%s"`, esc(pdA.Name), hex(uint64(ch.PDAID)))
	if !ch.PDANotify {
		b.WriteString(` notify="false"`)
	}
	if ch.PPDirection == PPDirA {
		b.WriteString(` pp="true"`)
	}
	b.WriteString(" />\n")
	indent(b, depth+1)
	fmt.Fprintf(b, `<end pd="%s" id="%s"`, esc(pdB.Name), hex(uint64(ch.PDBID)))
	if !ch.PDBNotify {
		b.WriteString(` notify="false"`)
	}
	if ch.PPDirection == PPDirB {
		b.WriteString(` pp="true"`)
	}
	b.WriteString(" />\n")
	indent(b, depth)
	b.WriteString("</channel>\n")
}
