package configdata

import "io"

const MaxBlkClients = 64

const (
	BlkDriverMagic      uint64 = 0x5344465f424c4b44 // "SDF_BLKD"
	BlkDriverVersion    uint32 = 1
	BlkVirtDriverMagic  uint64 = 0x5344465f424c5644 // "SDF_BLVD"
	BlkVirtDriverVersion uint32 = 1
	BlkVirtClientMagic  uint64 = 0x5344465f424c5643 // "SDF_BLVC"
	BlkVirtClientVersion uint32 = 1
	BlkClientMagic      uint64 = 0x5344465f424c4b43 // "SDF_BLKC"
	BlkClientVersion    uint32 = 1

	DefaultBlkQueueCapacity uint16 = 128
	DefaultBlkDataSize      uint32 = 2 * 1024 * 1024
	BlkDriverDataPages      uint64 = 10
)

// BlkDriver is the block driver's config record: the storage-info region,
// request/response queues shared with virt, and the reserved driver_data
// scratch region used for partition-table reads.
type BlkDriver struct {
	StorageInfo     RegionResource
	DriverData      RegionResource
	RequestQueue    QueueResource
	ResponseQueue   QueueResource
	VirtChannel     ChannelResource
}

func (r *BlkDriver) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, BlkDriverMagic, BlkDriverVersion, r)
}

// BlkVirtDriver is the virtualiser's driver-facing half.
type BlkVirtDriver struct {
	StorageInfo   RegionResource
	DriverData    RegionResource
	RequestQueue  QueueResource
	ResponseQueue QueueResource
	DriverChannel ChannelResource
}

func (r *BlkVirtDriver) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, BlkVirtDriverMagic, BlkVirtDriverVersion, r)
}

// BlkVirtClient is the virtualiser's per-client-facing half.
type BlkVirtClient struct {
	NumClients     uint64
	ClientStorage  [MaxBlkClients]RegionResource
	ClientRequest  [MaxBlkClients]QueueResource
	ClientResponse [MaxBlkClients]QueueResource
	ClientData     [MaxBlkClients]RegionResource
	ClientChannel  [MaxBlkClients]ChannelResource
	ClientPartition [MaxBlkClients]uint32
}

func (r *BlkVirtClient) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, BlkVirtClientMagic, BlkVirtClientVersion, r)
}

// BlkClient is a client's block config record.
type BlkClient struct {
	Partition      uint32
	QueueCapacity  uint16
	_              [2]byte
	DataSize       uint32
	_              [4]byte
	StorageInfo    RegionResource
	RequestQueue   QueueResource
	ResponseQueue  QueueResource
	Data           RegionResource
	VirtChannel    ChannelResource
}

func (r *BlkClient) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, BlkClientMagic, BlkClientVersion, r)
}
