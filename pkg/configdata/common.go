package configdata

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxDeviceRegions and MaxDeviceIRQs bound the fixed-size arrays carried by
// Device — generous enough for any manifest seen in the corpus while
// keeping the record a fixed, self-describing size on disk.
const (
	MaxDeviceRegions = 32
	MaxDeviceIRQs    = 32
)

// RegionResource is one mapped memory region as recorded by driver
// instantiation: {vaddr = map.vaddr + (paddr % page), size = mr.size,
// io_addr = mr.paddr}.
type RegionResource struct {
	Vaddr  uint64
	Size   uint64
	IOAddr uint64
}

// IRQResource is the PD-local slot ID assigned to one device IRQ.
type IRQResource struct {
	ID uint8
	_  [7]byte // pad to 8 bytes so arrays of IRQResource stay naturally aligned
}

// Device is the generic config record produced by driver instantiation,
// independent of device class: the region and IRQ resources a driver was
// given, in descriptor order.
type Device struct {
	NumRegions uint64
	Regions    [MaxDeviceRegions]RegionResource
	NumIRQs    uint64
	IRQs       [MaxDeviceIRQs]IRQResource
}

const (
	DeviceMagic   uint64 = 0x5344465f44455643 // "SDF_DEVC"
	DeviceVersion uint32 = 1
)

// NewDevice builds a Device record from resource slices, rejecting slices
// that exceed the fixed array capacity.
func NewDevice(regions []RegionResource, irqs []IRQResource) (*Device, error) {
	d := &Device{}
	if err := checkCapacity(len(regions), MaxDeviceRegions, "device regions"); err != nil {
		return nil, err
	}
	if err := checkCapacity(len(irqs), MaxDeviceIRQs, "device irqs"); err != nil {
		return nil, err
	}
	d.NumRegions = uint64(len(regions))
	copy(d.Regions[:], regions)
	d.NumIRQs = uint64(len(irqs))
	copy(d.IRQs[:], irqs)
	return d, nil
}

// WriteTo writes the record header then the fixed-layout body.
func (d *Device) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, DeviceMagic, DeviceVersion, d)
}

// header is the common leading pair every record carries.
type header struct {
	Magic   uint64
	Version uint32
	_       uint32 // padding, keeps the body 8-byte aligned
}

// writeRecord writes magic, version, then body via encoding/binary, all
// little-endian, returning the total byte count written.
func writeRecord(w io.Writer, magic uint64, version uint32, body any) (int64, error) {
	h := header{Magic: magic, Version: version}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return 0, err
	}
	n := int64(binary.Size(h))
	if err := binary.Write(w, binary.LittleEndian, body); err != nil {
		return n, err
	}
	return n + int64(binary.Size(body)), nil
}

func checkCapacity(n, max int, what string) error {
	if n > max {
		return &capacityError{what: what, n: n, max: max}
	}
	return nil
}

type capacityError struct {
	what string
	n    int
	max  int
}

func (e *capacityError) Error() string {
	return fmt.Sprintf("%s: %d exceeds fixed capacity %d", e.what, e.n, e.max)
}
