// Package driverinstance implements driver instantiation: given a device
// tree node, a driver manifest class, and a probed registry, it resolves
// each manifest region/IRQ descriptor against the node and materializes
// the corresponding memory regions, maps and IRQs on a protection domain.
package driverinstance

import (
	"github.com/jinzhu/copier"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/configdata"
	"github.com/jimyag/sdfgen/pkg/devicetree"
	"github.com/jimyag/sdfgen/pkg/driverregistry"
	"github.com/jimyag/sdfgen/pkg/handle"
	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

// DeviceResources is the per-device-instance resource list an instantiated
// driver is given: the region and IRQ resources resolved from its
// manifest, in descriptor order.
type DeviceResources struct {
	Manifest *driverregistry.Manifest
	Regions  []configdata.RegionResource
	IRQs     []configdata.IRQResource
}

// ToConfigRecord packages the resolved resources into the generic binary
// config record a runtime component reads back.
func (d *DeviceResources) ToConfigRecord() (*configdata.Device, error) {
	return configdata.NewDevice(d.Regions, d.IRQs)
}

// CreateDriver resolves node's compatible list against reg to find a
// matching manifest of class, then materializes every region and IRQ
// descriptor the manifest names onto pdH within sd.
//
// node is expected to already carry CPU-physical addresses in its "reg"
// entries — bus-hierarchy translation (devicetree.Node.TranslateAddress)
// is the caller's responsibility, performed while resolving node from the
// device tree root, before CreateDriver ever sees it.
func CreateDriver(sd *sdmodel.SystemDescription, pdH handle.PD, node *devicetree.Node, class driverregistry.DeviceClass, reg *driverregistry.Registry) (*DeviceResources, error) {
	if sd.ProtectionDomain(pdH) == nil {
		return nil, sdferr.New(sdferr.KindInvalidConfig, "create driver: pd handle %d not found", pdH)
	}

	manifest, err := reg.FindDriver(node.Compatible(), class)
	if err != nil {
		return nil, err
	}
	if status := node.Status(); status != "okay" {
		return nil, sdferr.New(sdferr.KindDeviceStatusInvalid, "device %q status %q, want okay", node.Name, status)
	}

	res := &DeviceResources{Manifest: manifest}
	pageSize := sd.Arch.PageSize()

	// Work from a clone of the manifest's descriptor templates: the
	// manifest is shared across every device that matches this driver, so
	// resolution must never touch the registry's own copy.
	var regions []driverregistry.RegionDescriptor
	if err := copier.Copy(&regions, &manifest.Regions); err != nil {
		return nil, sdferr.Wrap(sdferr.KindInvalidConfig, err, "create driver: clone region descriptors")
	}
	var irqs []driverregistry.IRQDescriptor
	if err := copier.Copy(&irqs, &manifest.IRQs); err != nil {
		return nil, sdferr.Wrap(sdferr.KindInvalidConfig, err, "create driver: clone irq descriptors")
	}

	for _, rd := range regions {
		mrH, paddr, err := resolveRegion(sd, node, rd, pageSize)
		if err != nil {
			return nil, err
		}

		perm, err := parsePerm(rd.Perms)
		if err != nil {
			return nil, err
		}
		vaddr, err := sd.GetMapVaddr(pdH, mrH)
		if err != nil {
			return nil, err
		}
		cached := rd.Cached
		if err := sd.AddMap(pdH, mrH, vaddr, perm, &cached, rd.SetVarVaddr); err != nil {
			return nil, err
		}

		mr := sd.MemoryRegion(mrH)
		var ioAddr, vaddrField uint64
		if paddr != nil {
			ioAddr = *paddr
			vaddrField = vaddr + (*paddr % pageSize)
		} else {
			vaddrField = vaddr
		}
		res.Regions = append(res.Regions, configdata.RegionResource{
			Vaddr: vaddrField, Size: mr.Size, IOAddr: ioAddr,
		})
	}

	for _, id := range irqs {
		entry, err := node.InterruptAt(id.DtIndex)
		if err != nil {
			return nil, err
		}
		trigger := decodeTrigger(entry.TriggerCell)
		allocatedID, err := sd.AddIRQ(pdH, entry.Number, trigger, id.ChannelID)
		if err != nil {
			return nil, err
		}
		res.IRQs = append(res.IRQs, configdata.IRQResource{ID: allocatedID})
	}

	return res, nil
}

// resolveRegion implements spec.md §4.3's per-region-descriptor rules,
// returning the region's handle and, when known, its physical address.
func resolveRegion(sd *sdmodel.SystemDescription, node *devicetree.Node, rd driverregistry.RegionDescriptor, pageSize uint64) (handle.MR, *uint64, error) {
	if rd.DtIndex == nil && rd.Size == nil {
		return 0, nil, sdferr.New(sdferr.KindInvalidConfig, "region %q: neither dt_index nor size set", rd.Name)
	}
	if rd.DtIndex != nil && rd.Cached {
		return 0, nil, sdferr.New(sdferr.KindInvalidConfig, "region %q: dt_index set with cached=true", rd.Name)
	}

	if rd.DtIndex == nil {
		size := *rd.Size
		if size%pageSize != 0 {
			return 0, nil, sdferr.New(sdferr.KindInvalidConfig, "region %q: size 0x%x not page-aligned", rd.Name, size)
		}
		var opts []sdmodel.MROption
		opts = append(opts, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
		if rd.Cached {
			opts = append(opts, sdmodel.WithCached(true))
		}
		if rd.SetVarVaddr != "" {
			opts = append(opts, sdmodel.WithSetVarAnnotated())
		}
		mrH, err := sd.AddMemoryRegion(regionName(node, rd), size, opts...)
		if err != nil {
			return 0, nil, err
		}
		return mrH, nil, nil
	}

	regEntry, err := node.RegAt(*rd.DtIndex)
	if err != nil {
		return 0, nil, err
	}

	// The device's reg address may carry a sub-page offset (e.g. two
	// devices at 0x1000 and 0x1100 sharing one page); the MR itself must
	// start on a page boundary, with the offset folded back into the
	// mapped vaddr by the caller (paddr % pageSize).
	pageOffset := regEntry.Addr % pageSize
	paddr := regEntry.Addr - pageOffset
	size := arch.AlignUpTo(pageOffset+regEntry.Size, pageSize)
	if rd.Size != nil {
		if *rd.Size < size {
			return 0, nil, sdferr.New(sdferr.KindInvalidConfig, "region %q: explicit size 0x%x smaller than device reg size 0x%x", rd.Name, *rd.Size, regEntry.Size)
		}
		if *rd.Size%pageSize != 0 {
			return 0, nil, sdferr.New(sdferr.KindInvalidConfig, "region %q: explicit size 0x%x not page-aligned", rd.Name, *rd.Size)
		}
		size = *rd.Size
	}

	for _, existing := range sd.MemoryRegions() {
		if existing.Paddr != nil && *existing.Paddr == paddr && existing.PageSize == pageSize {
			return existing.Handle, &regEntry.Addr, nil
		}
	}

	var opts []sdmodel.MROption
	opts = append(opts, sdmodel.WithPaddr(paddr), sdmodel.WithPageSize(pageSize))
	if rd.SetVarVaddr != "" {
		opts = append(opts, sdmodel.WithSetVarAnnotated())
	}
	mrH, err := sd.AddMemoryRegion(regionName(node, rd), size, opts...)
	if err != nil {
		return 0, nil, err
	}
	return mrH, &regEntry.Addr, nil
}

func regionName(node *devicetree.Node, rd driverregistry.RegionDescriptor) string {
	return node.Name + "_" + rd.Name
}
