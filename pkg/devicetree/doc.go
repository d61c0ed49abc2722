// Package devicetree models just enough of a flattened device tree to
// drive driver matching and instantiation: compatible strings, reg
// entries, interrupts and status, plus a bus-hierarchy address
// translation. It is not a general-purpose FDT library — the structure
// block walk in FromFDT only recognizes begin/end-node, property, nop and
// end tokens, with no support for aliases or the memory reservation map.
package devicetree
