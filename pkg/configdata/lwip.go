package configdata

import "io"

const (
	LwipMagic   uint64 = 0x5344465f4c574950 // "SDF_LWIP"
	LwipVersion uint32 = 1

	PbufStructSize uint64 = 56
)

// Lwip is the lwIP helper library's config record, attached to a client PD
// using the network subsystem: just the pbuf pool region.
type Lwip struct {
	PbufPool RegionResource
}

func (r *Lwip) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, LwipMagic, LwipVersion, r)
}
