// Package lwip builds the optional lwIP helper config attached to a
// client PD already wired into a network subsystem.
package lwip

import (
	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/configdata"
	"github.com/jimyag/sdfgen/pkg/handle"
	"github.com/jimyag/sdfgen/pkg/sddf/sddfcommon"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

// AddPbufPool allocates the pbuf pool memory region for a network client
// PD and maps it in, sized 2 * rxBuffers * PBUF_STRUCT_SIZE.
func AddPbufPool(sd *sdmodel.SystemDescription, clientPD handle.PD, name string, rxBuffers uint64) (*configdata.Lwip, error) {
	pageSize := sd.Arch.PageSize()
	size := arch.AlignUpTo(2*rxBuffers*configdata.PbufStructSize, pageSize)

	mrH, err := sd.AddMemoryRegion("lwip_pbuf_pool_"+name, size, sdmodel.WithPhysical(), sdmodel.WithPageSize(pageSize))
	if err != nil {
		return nil, err
	}
	vaddr, err := sd.GetMapVaddr(clientPD, mrH)
	if err != nil {
		return nil, err
	}
	if err := sd.AddMap(clientPD, mrH, vaddr, sdmodel.PermRW, nil, ""); err != nil {
		return nil, err
	}

	return &configdata.Lwip{PbufPool: configdata.RegionResource{Vaddr: vaddr, Size: size}}, nil
}

// SerialiseConfig writes the lwIP record to "<prefix>/lwip_<name>.data".
func SerialiseConfig(prefix, name string, rec *configdata.Lwip) error {
	return sddfcommon.WriteRecordFile(prefix, "lwip_"+name, rec)
}
