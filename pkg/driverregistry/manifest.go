package driverregistry

import "github.com/jimyag/sdfgen/pkg/sdferr"

// DeviceClass is the kind of device a driver manifest targets. It is
// inferred from the manifest's directory path, never read from the JSON
// body.
type DeviceClass string

const (
	ClassNetwork DeviceClass = "network"
	ClassSerial  DeviceClass = "serial"
	ClassTimer   DeviceClass = "timer"
	ClassBlk     DeviceClass = "blk"
	ClassI2c     DeviceClass = "i2c"
	ClassGpu     DeviceClass = "gpu"
)

// classDirs fixes both the set of scanned subdirectories and the order
// Probe walks them in, which in turn seeds FindDriver's documented
// insertion-order tie-break.
var classDirs = []struct {
	dir   string
	class DeviceClass
}{
	{"network", ClassNetwork},
	{"serial", ClassSerial},
	{"timer", ClassTimer},
	{"blk", ClassBlk},
	{"blk/mmc", ClassBlk},
	{"i2c", ClassI2c},
	{"gpu", ClassGpu},
}

// regionDescriptorJSON / irqDescriptorJSON are the wire shapes for a
// manifest's config.json "resources" block.
type regionDescriptorJSON struct {
	Name        string  `json:"name"`
	Perms       string  `json:"perms"`
	SetVarVaddr string  `json:"setvar_vaddr"`
	Size        *uint64 `json:"size"`
	Cached      bool    `json:"cached"`
	DtIndex     *int    `json:"dt_index"`
}

type irqDescriptorJSON struct {
	DtIndex   int    `json:"dt_index"`
	ChannelID *uint8 `json:"channel_id"`
}

type manifestJSON struct {
	Compatible []string `json:"compatible"`
	Resources  struct {
		Regions []regionDescriptorJSON `json:"regions"`
		IRQs    []irqDescriptorJSON    `json:"irqs"`
	} `json:"resources"`
}

// RegionDescriptor is one region a driver manifest requests, with empty
// permissions defaulted to "rw". The permission string is not validated
// here; driverinstance parses it when the driver is instantiated.
type RegionDescriptor struct {
	Name        string
	Perms       string
	SetVarVaddr string
	Size        *uint64
	Cached      bool
	DtIndex     *int
}

// IRQDescriptor is one IRQ a driver manifest requests.
type IRQDescriptor struct {
	DtIndex   int
	ChannelID *uint8
}

// Manifest is a probed, validated driver descriptor.
type Manifest struct {
	Class      DeviceClass
	Dir        string
	Name       string
	Compatible []string
	Regions    []RegionDescriptor
	IRQs       []IRQDescriptor
}

// parseManifest decodes and validates the manifest invariants from
// spec.md §3: no duplicate region dt_index or name within the manifest,
// no duplicate IRQ dt_index, non-empty compatible list.
func parseManifest(class DeviceClass, dir, name string, raw []byte) (*Manifest, error) {
	var mj manifestJSON
	if err := unmarshalManifest(raw, &mj); err != nil {
		return nil, sdferr.Wrap(sdferr.KindJsonParse, err, "driver manifest %s/%s", dir, name)
	}
	if len(mj.Compatible) == 0 {
		return nil, sdferr.New(sdferr.KindInvalidConfig, "driver manifest %s/%s: empty compatible list", dir, name)
	}

	m := &Manifest{Class: class, Dir: dir, Name: name, Compatible: mj.Compatible}

	seenDtIndex := make(map[int]bool)
	seenName := make(map[string]bool)
	for _, r := range mj.Resources.Regions {
		if r.Name == "" {
			return nil, sdferr.New(sdferr.KindInvalidConfig, "driver manifest %s/%s: region with empty name", dir, name)
		}
		if seenName[r.Name] {
			return nil, sdferr.New(sdferr.KindInvalidConfig, "driver manifest %s/%s: duplicate region name %q", dir, name, r.Name)
		}
		seenName[r.Name] = true
		if r.DtIndex != nil {
			if seenDtIndex[*r.DtIndex] {
				return nil, sdferr.New(sdferr.KindInvalidConfig, "driver manifest %s/%s: duplicate region dt_index %d", dir, name, *r.DtIndex)
			}
			seenDtIndex[*r.DtIndex] = true
		}
		perms := r.Perms
		if perms == "" {
			perms = "rw"
		}
		m.Regions = append(m.Regions, RegionDescriptor{
			Name: r.Name, Perms: perms, SetVarVaddr: r.SetVarVaddr,
			Size: r.Size, Cached: r.Cached, DtIndex: r.DtIndex,
		})
	}

	seenIRQIndex := make(map[int]bool)
	for _, irq := range mj.Resources.IRQs {
		if seenIRQIndex[irq.DtIndex] {
			return nil, sdferr.New(sdferr.KindInvalidConfig, "driver manifest %s/%s: duplicate irq dt_index %d", dir, name, irq.DtIndex)
		}
		seenIRQIndex[irq.DtIndex] = true
		m.IRQs = append(m.IRQs, IRQDescriptor{DtIndex: irq.DtIndex, ChannelID: irq.ChannelID})
	}

	return m, nil
}
