package devicetree

import (
	"strings"

	"github.com/jimyag/sdfgen/pkg/sdferr"
)

// Property carries exactly one of a string list, a []uint32, a []uint64
// pair list, raw bytes, or an empty/boolean flag — mirroring how a real
// FDT property's single opaque byte payload is, in practice, always one of
// these shapes depending on the property's well-known name.
type Property struct {
	Strings []string
	U32     []uint32
	U64     []uint64
	Bytes   []byte
	Flag    bool
}

// Node is one node of a device tree.
type Node struct {
	Name       string
	Properties map[string]Property
	Children   []*Node
}

// RegEntry is one decoded (address, size) pair from a "reg" property.
type RegEntry struct {
	Addr uint64
	Size uint64
}

// IRQEntry is one decoded entry from an "interrupts" property, still in
// raw cell form — driverinstance decodes TriggerCell into a trigger mode
// using the binding convention (GIC SPI/PPI, or a bare edge/level flag)
// appropriate to the target architecture.
type IRQEntry struct {
	Number      uint32
	TriggerCell uint32
}

func newNode(name string) *Node {
	return &Node{Name: name, Properties: make(map[string]Property)}
}

// Compatible returns the node's "compatible" string list, or nil if the
// node has none.
func (n *Node) Compatible() []string {
	return n.Properties["compatible"].Strings
}

// Status returns the node's "status" property, defaulting to "okay" when
// absent (the FDT binding default).
func (n *Node) Status() string {
	p, ok := n.Properties["status"]
	if !ok || len(p.Strings) == 0 {
		return "okay"
	}
	return p.Strings[0]
}

// Reg decodes the node's "reg" property into (address, size) pairs. U64
// pairs are used directly when present; otherwise consecutive u32 cells
// are paired and widened (the common #address-cells=1 #size-cells=1
// binding).
func (n *Node) Reg() []RegEntry {
	p, ok := n.Properties["reg"]
	if !ok {
		return nil
	}
	if len(p.U64) > 0 {
		var out []RegEntry
		for i := 0; i+1 < len(p.U64); i += 2 {
			out = append(out, RegEntry{Addr: p.U64[i], Size: p.U64[i+1]})
		}
		return out
	}
	var out []RegEntry
	for i := 0; i+1 < len(p.U32); i += 2 {
		out = append(out, RegEntry{Addr: uint64(p.U32[i]), Size: uint64(p.U32[i+1])})
	}
	return out
}

// RegAt returns the reg entry at dtIndex, or InvalidDeviceTreeIndex if out
// of range.
func (n *Node) RegAt(dtIndex int) (RegEntry, error) {
	regs := n.Reg()
	if dtIndex < 0 || dtIndex >= len(regs) {
		return RegEntry{}, sdferr.New(sdferr.KindInvalidDeviceTreeIndex, "node %q: reg index %d out of range (have %d)", n.Name, dtIndex, len(regs))
	}
	return regs[dtIndex], nil
}

// Interrupts decodes the node's "interrupts" property into IRQEntry
// triples (interrupt-type, number, flags), falling back to pairs (number,
// flags) when the cell count isn't a multiple of three.
func (n *Node) Interrupts() []IRQEntry {
	p, ok := n.Properties["interrupts"]
	if !ok {
		return nil
	}
	if len(p.U32)%3 == 0 && len(p.U32) > 0 {
		var out []IRQEntry
		for i := 0; i+2 < len(p.U32); i += 3 {
			out = append(out, IRQEntry{Number: p.U32[i+1], TriggerCell: p.U32[i+2]})
		}
		return out
	}
	var out []IRQEntry
	for i := 0; i+1 < len(p.U32); i += 2 {
		out = append(out, IRQEntry{Number: p.U32[i], TriggerCell: p.U32[i+1]})
	}
	return out
}

// InterruptAt returns the interrupt entry at dtIndex, or
// InvalidDeviceTreeIndex if out of range.
func (n *Node) InterruptAt(dtIndex int) (IRQEntry, error) {
	irqs := n.Interrupts()
	if dtIndex < 0 || dtIndex >= len(irqs) {
		return IRQEntry{}, sdferr.New(sdferr.KindInvalidDeviceTreeIndex, "node %q: interrupts index %d out of range (have %d)", n.Name, dtIndex, len(irqs))
	}
	return irqs[dtIndex], nil
}

// FindByPath walks a "/"-separated path of child node names starting from
// n (which is treated as the root for the walk), returning
// InvalidDeviceTreeNode if any segment is missing.
func (n *Node) FindByPath(path string) (*Node, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return n, nil
	}
	cur := n
	for _, seg := range strings.Split(path, "/") {
		next := cur.child(seg)
		if next == nil {
			return nil, sdferr.New(sdferr.KindInvalidDeviceTreeNode, "no such node %q under %q", seg, cur.Name)
		}
		cur = next
	}
	return cur, nil
}

func (n *Node) child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// TranslateAddress walks from n down busPath (a "/"-separated child path),
// accumulating any "ranges" property translation offsets found along the
// way, and returns the address addr would have once translated through
// the full bus hierarchy. With no "ranges" properties along the path this
// is the identity transform.
func (n *Node) TranslateAddress(busPath string, addr uint64) (uint64, error) {
	path := strings.Trim(busPath, "/")
	cur := n
	if path != "" {
		for _, seg := range strings.Split(path, "/") {
			next := cur.child(seg)
			if next == nil {
				return 0, sdferr.New(sdferr.KindInvalidDeviceTreeNode, "no such node %q under %q", seg, cur.Name)
			}
			addr = translateOneLevel(cur, addr)
			cur = next
		}
	}
	return addr, nil
}

// translateOneLevel applies bus's own "ranges" property (child-bus-addr,
// parent-bus-addr, size triples of equal cell width) to addr, if any
// range covers it. Absent a matching range, addr passes through
// unmodified — the standard DT semantics for an untranslated bus.
func translateOneLevel(bus *Node, addr uint64) uint64 {
	p, ok := bus.Properties["ranges"]
	if !ok {
		return addr
	}
	cells := p.U64
	if len(cells) == 0 {
		for _, v := range p.U32 {
			cells = append(cells, uint64(v))
		}
	}
	for i := 0; i+2 < len(cells); i += 3 {
		childBase, parentBase, size := cells[i], cells[i+1], cells[i+2]
		if addr >= childBase && addr < childBase+size {
			return parentBase + (addr - childBase)
		}
	}
	return addr
}
