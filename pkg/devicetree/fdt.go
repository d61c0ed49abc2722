package devicetree

import (
	"bytes"
	"encoding/binary"

	"github.com/jimyag/sdfgen/pkg/sdferr"
)

const fdtMagic = 0xd00dfeed

const (
	tokenBeginNode = 0x1
	tokenEndNode   = 0x2
	tokenProp      = 0x3
	tokenNop       = 0x4
	tokenEnd       = 0x9
)

type fdtHeader struct {
	Magic            uint32
	TotalSize        uint32
	OffDtStruct      uint32
	OffDtStrings     uint32
	OffMemRsvmap     uint32
	Version          uint32
	LastCompVersion  uint32
	BootCpuidPhys    uint32
	SizeDtStrings    uint32
	SizeDtStruct     uint32
}

// FromFDT decodes a flattened device tree blob's structure block into a
// Node tree. Only FDT_BEGIN_NODE / FDT_END_NODE / FDT_PROP / FDT_NOP /
// FDT_END tokens are recognized; the memory reservation map and any
// alias table are ignored.
func FromFDT(blob []byte) (*Node, error) {
	if len(blob) < 40 {
		return nil, sdferr.New(sdferr.KindInvalidConfig, "fdt blob too short: %d bytes", len(blob))
	}
	var h fdtHeader
	if err := binary.Read(bytes.NewReader(blob[:40]), binary.BigEndian, &h); err != nil {
		return nil, sdferr.Wrap(sdferr.KindInvalidConfig, err, "fdt header decode")
	}
	if h.Magic != fdtMagic {
		return nil, sdferr.New(sdferr.KindInvalidMagic, "fdt magic 0x%x, want 0x%x", h.Magic, fdtMagic)
	}
	if int(h.OffDtStruct) >= len(blob) || int(h.OffDtStrings) >= len(blob) {
		return nil, sdferr.New(sdferr.KindInvalidConfig, "fdt header offsets out of range")
	}

	strs := blob[h.OffDtStrings:]
	d := &fdtDecoder{blob: blob, strs: strs, off: int(h.OffDtStruct)}
	root, err := d.parseNode()
	if err != nil {
		return nil, err
	}
	return root, nil
}

type fdtDecoder struct {
	blob []byte
	strs []byte
	off  int
}

func (d *fdtDecoder) u32() (uint32, error) {
	if d.off+4 > len(d.blob) {
		return 0, sdferr.New(sdferr.KindInvalidConfig, "fdt structure block truncated at offset %d", d.off)
	}
	v := binary.BigEndian.Uint32(d.blob[d.off : d.off+4])
	d.off += 4
	return v, nil
}

func (d *fdtDecoder) parseNode() (*Node, error) {
	tok, err := d.u32()
	if err != nil {
		return nil, err
	}
	for tok == tokenNop {
		tok, err = d.u32()
		if err != nil {
			return nil, err
		}
	}
	if tok != tokenBeginNode {
		return nil, sdferr.New(sdferr.KindInvalidConfig, "fdt: expected FDT_BEGIN_NODE, got 0x%x at offset %d", tok, d.off-4)
	}

	name, err := d.readCString()
	if err != nil {
		return nil, err
	}
	node := newNode(name)

	for {
		tok, err = d.u32()
		if err != nil {
			return nil, err
		}
		switch tok {
		case tokenNop:
			continue
		case tokenProp:
			if err := d.parseProp(node); err != nil {
				return nil, err
			}
		case tokenBeginNode:
			d.off -= 4
			child, err := d.parseNode()
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		case tokenEndNode:
			return node, nil
		case tokenEnd:
			return node, nil
		default:
			return nil, sdferr.New(sdferr.KindInvalidConfig, "fdt: unknown token 0x%x at offset %d", tok, d.off-4)
		}
	}
}

func (d *fdtDecoder) parseProp(node *Node) error {
	length, err := d.u32()
	if err != nil {
		return err
	}
	nameoff, err := d.u32()
	if err != nil {
		return err
	}
	if d.off+int(length) > len(d.blob) {
		return sdferr.New(sdferr.KindInvalidConfig, "fdt: property value overruns blob")
	}
	data := d.blob[d.off : d.off+int(length)]
	d.off += int(length)
	d.off = alignUp4(d.off)

	name, err := cStringAt(d.strs, int(nameoff))
	if err != nil {
		return err
	}
	node.Properties[name] = decodePropertyValue(data)
	return nil
}

func (d *fdtDecoder) readCString() (string, error) {
	s, err := cStringAt(d.blob, d.off)
	if err != nil {
		return "", err
	}
	d.off += len(s) + 1
	d.off = alignUp4(d.off)
	return s, nil
}

func cStringAt(buf []byte, off int) (string, error) {
	if off < 0 || off >= len(buf) {
		return "", sdferr.New(sdferr.KindInvalidConfig, "fdt: string offset %d out of range", off)
	}
	end := bytes.IndexByte(buf[off:], 0)
	if end < 0 {
		return "", sdferr.New(sdferr.KindInvalidConfig, "fdt: unterminated string at offset %d", off)
	}
	return string(buf[off : off+end]), nil
}

func alignUp4(n int) int { return (n + 3) &^ 3 }

// decodePropertyValue applies the same shape heuristic a generic FDT
// pretty-printer uses: empty is a flag, a null-terminated run of
// printable bytes is a string list, a multiple-of-4 byte count too large
// to plausibly be ASCII is a cell array, and anything else is raw bytes.
func decodePropertyValue(data []byte) Property {
	if len(data) == 0 {
		return Property{Flag: true}
	}
	if isStringList(data) {
		return Property{Strings: splitCStrings(data)}
	}
	if len(data)%4 == 0 {
		u32 := make([]uint32, len(data)/4)
		for i := range u32 {
			u32[i] = binary.BigEndian.Uint32(data[i*4 : i*4+4])
		}
		return Property{U32: u32}
	}
	return Property{Bytes: append([]byte(nil), data...)}
}

func isStringList(data []byte) bool {
	if data[len(data)-1] != 0 {
		return false
	}
	for _, b := range data {
		if b != 0 && (b < 0x20 || b > 0x7e) {
			return false
		}
	}
	return true
}

func splitCStrings(data []byte) []string {
	var out []string
	start := 0
	for i, b := range data {
		if b == 0 {
			out = append(out, string(data[start:i]))
			start = i + 1
		}
	}
	return out
}
