package configdata

import "io"

const MaxSerialClients = 64

const (
	SerialDriverMagic   uint64 = 0x5344465f53455244 // "SDF_SERD"
	SerialDriverVersion uint32 = 1
	SerialVirtTxMagic   uint64 = 0x5344465f53455654 // "SDF_SEVT"
	SerialVirtTxVersion uint32 = 1
	SerialVirtRxMagic   uint64 = 0x5344465f53455652 // "SDF_SEVR"
	SerialVirtRxVersion uint32 = 1
	SerialClientMagic   uint64 = 0x5344465f53454c54 // "SDF_SELT"
	SerialClientVersion uint32 = 1

	DefaultSerialBaud = 115200
	MaxBeginStrLen    = 128
)

// SerialDriver is the UART driver's config record. TxData is double-sized
// when EnableColor is set, per the builder that constructs it.
type SerialDriver struct {
	Baud          uint32
	EnableColor   bool
	_             [3]byte
	RxData        RegionResource
	RxQueue       QueueResource
	RxChannel     ChannelResource
	TxData        RegionResource
	TxQueue       QueueResource
	TxChannel     ChannelResource
}

func (r *SerialDriver) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, SerialDriverMagic, SerialDriverVersion, r)
}

// SerialVirtTx multiplexes client TX queues into the driver's TX queue,
// prefixing each client's output with BeginStr.
type SerialVirtTx struct {
	BeginStr      [MaxBeginStrLen]byte
	DriverChannel ChannelResource
	NumClients    uint64
	ClientQueue   [MaxSerialClients]QueueResource
	ClientChannel [MaxSerialClients]ChannelResource
}

func (r *SerialVirtTx) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, SerialVirtTxMagic, SerialVirtTxVersion, r)
}

// SerialVirtRx demultiplexes driver RX input to clients, watching for
// SwitchChar to change the active client.
type SerialVirtRx struct {
	SwitchChar         byte
	TerminateNumChar   byte
	_                  [6]byte
	DriverChannel      ChannelResource
	NumClients         uint64
	ClientQueue        [MaxSerialClients]QueueResource
	ClientChannel      [MaxSerialClients]ChannelResource
}

func (r *SerialVirtRx) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, SerialVirtRxMagic, SerialVirtRxVersion, r)
}

// SerialClient is a client's serial config record.
type SerialClient struct {
	RxEnabled   bool
	_           [7]byte
	TxQueue     QueueResource
	TxChannel   ChannelResource
	RxQueue     QueueResource
	RxChannel   ChannelResource
}

func (r *SerialClient) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, SerialClientMagic, SerialClientVersion, r)
}
