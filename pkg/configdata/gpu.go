package configdata

import "io"

const MaxGpuClients = 64

const (
	GpuDriverMagic      uint64 = 0x5344465f47505544 // "SDF_GPUD"
	GpuDriverVersion    uint32 = 1
	GpuVirtDriverMagic  uint64 = 0x5344465f47505644 // "SDF_GPVD"
	GpuVirtDriverVersion uint32 = 1
	GpuVirtClientMagic  uint64 = 0x5344465f47505643 // "SDF_GPVC"
	GpuVirtClientVersion uint32 = 1
	GpuClientMagic      uint64 = 0x5344465f47505543 // "SDF_GPUC"
	GpuClientVersion    uint32 = 1
)

// GpuDriver is the GPU driver's config record: events/request/response
// queues and the physical data region shared with the virtualiser, all
// mapped read-write on both sides.
type GpuDriver struct {
	Events        QueueResource
	RequestQueue  QueueResource
	ResponseQueue QueueResource
	Data          RegionResource
	VirtChannel   ChannelResource
}

func (r *GpuDriver) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, GpuDriverMagic, GpuDriverVersion, r)
}

// GpuVirtDriver is the virtualiser's driver-facing half.
type GpuVirtDriver struct {
	Events        QueueResource
	RequestQueue  QueueResource
	ResponseQueue QueueResource
	Data          RegionResource
	DriverChannel ChannelResource
}

func (r *GpuVirtDriver) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, GpuVirtDriverMagic, GpuVirtDriverVersion, r)
}

// GpuVirtClient is the virtualiser's per-client-facing half. A single
// channel per client carries all traffic.
type GpuVirtClient struct {
	NumClients     uint64
	ClientEvents   [MaxGpuClients]QueueResource
	ClientRequest  [MaxGpuClients]QueueResource
	ClientResponse [MaxGpuClients]QueueResource
	ClientData     [MaxGpuClients]RegionResource
	ClientChannel  [MaxGpuClients]ChannelResource
}

func (r *GpuVirtClient) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, GpuVirtClientMagic, GpuVirtClientVersion, r)
}

// GpuClient is a client's GPU config record.
type GpuClient struct {
	Events        QueueResource
	RequestQueue  QueueResource
	ResponseQueue QueueResource
	Data          RegionResource
	VirtChannel   ChannelResource
}

func (r *GpuClient) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, GpuClientMagic, GpuClientVersion, r)
}
