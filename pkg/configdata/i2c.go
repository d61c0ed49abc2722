package configdata

import "io"

const MaxI2cClients = 64

const (
	I2cDriverMagic  uint64 = 0x5344465f49324344 // "SDF_I2CD"
	I2cDriverVersion uint32 = 1
	I2cVirtMagic    uint64 = 0x5344465f49324356 // "SDF_I2CV"
	I2cVirtVersion  uint32 = 1
	I2cClientMagic  uint64 = 0x5344465f49324343 // "SDF_I2CC"
	I2cClientVersion uint32 = 1

	DefaultI2cReqRegionSize  uint32 = 0x1000
	DefaultI2cRespRegionSize uint32 = 0x1000
)

// I2cDriver is the I2C driver's config record: its request/response queues
// shared with the virtualiser.
type I2cDriver struct {
	RequestQueue  QueueResource
	ResponseQueue QueueResource
	VirtChannel   ChannelResource
}

func (r *I2cDriver) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, I2cDriverMagic, I2cDriverVersion, r)
}

// I2cVirt is the virtualiser's config record: the driver-facing queues
// plus one request/response/data triple per client.
type I2cVirt struct {
	DriverRequestQueue  QueueResource
	DriverResponseQueue QueueResource
	DriverChannel       ChannelResource
	NumClients          uint64
	ClientRequest       [MaxI2cClients]QueueResource
	ClientResponse      [MaxI2cClients]QueueResource
	ClientData          [MaxI2cClients]RegionResource
	ClientChannel       [MaxI2cClients]ChannelResource
}

func (r *I2cVirt) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, I2cVirtMagic, I2cVirtVersion, r)
}

// I2cClient is a client's I2C config record. The channel to virt uses PPC
// direction b: the client calls into the virtualiser.
type I2cClient struct {
	RequestQueue  QueueResource
	ResponseQueue QueueResource
	Data          RegionResource
	VirtChannel   ChannelResource
}

func (r *I2cClient) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, I2cClientMagic, I2cClientVersion, r)
}
