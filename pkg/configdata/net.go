package configdata

import "io"

const MaxNetClients = 64

const (
	NetDriverMagic    uint64 = 0x5344465f4e455444 // "SDF_NETD"
	NetDriverVersion  uint32 = 1
	NetVirtRxMagic    uint64 = 0x5344465f4e455652 // "SDF_NEVR"
	NetVirtRxVersion  uint32 = 1
	NetVirtTxMagic    uint64 = 0x5344465f4e455654 // "SDF_NEVT"
	NetVirtTxVersion  uint32 = 1
	NetCopyMagic      uint64 = 0x5344465f4e45434f // "SDF_NECO"
	NetCopyVersion    uint32 = 1
	NetClientMagic    uint64 = 0x5344465f4e454c54 // "SDF_NELT"
	NetClientVersion  uint32 = 1
)

// NetDriver is the driver-side network config record: the DMA region
// shared with virt_rx and the driver's free/active queue pair.
type NetDriver struct {
	RxDMA          RegionResource
	RxFreeQueue    QueueResource
	RxActiveQueue  QueueResource
	RxChannel      ChannelResource
	TxFreeQueue    QueueResource
	TxActiveQueue  QueueResource
	TxChannel      ChannelResource
}

func (r *NetDriver) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, NetDriverMagic, NetDriverVersion, r)
}

// NetVirtRx is the RX virtualiser record: the shared rx_dma region and one
// free/active queue pair per client.
type NetVirtRx struct {
	RxDMA         RegionResource
	DriverChannel ChannelResource
	NumClients    uint64
	ClientFree    [MaxNetClients]QueueResource
	ClientActive  [MaxNetClients]QueueResource
	ClientChannel [MaxNetClients]ChannelResource
	ClientMAC     [MaxNetClients]MacAddr
}

func (r *NetVirtRx) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, NetVirtRxMagic, NetVirtRxVersion, r)
}

// NetVirtTx is the TX virtualiser record: one free/active queue pair and
// TX data region per client.
type NetVirtTx struct {
	DriverChannel ChannelResource
	NumClients    uint64
	ClientFree    [MaxNetClients]QueueResource
	ClientActive  [MaxNetClients]QueueResource
	ClientData    [MaxNetClients]RegionResource
	ClientChannel [MaxNetClients]ChannelResource
}

func (r *NetVirtTx) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, NetVirtTxMagic, NetVirtTxVersion, r)
}

// NetCopy is a per-client copier record: the shared rx_dma region it reads
// from and the client's own RX data region it copies into.
type NetCopy struct {
	RxDMA         RegionResource
	ClientData    RegionResource
	VirtChannel   ChannelResource
	ClientChannel ChannelResource
	FreeQueue     QueueResource
	ActiveQueue   QueueResource
}

func (r *NetCopy) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, NetCopyMagic, NetCopyVersion, r)
}

// NetClient is a client's network config record.
type NetClient struct {
	MAC           MacAddr
	RxEnabled     bool
	TxEnabled     bool
	_             [6]byte
	RxFreeQueue   QueueResource
	RxActiveQueue QueueResource
	RxChannel     ChannelResource
	TxData        RegionResource
	TxFreeQueue   QueueResource
	TxActiveQueue QueueResource
	TxChannel     ChannelResource
}

func (r *NetClient) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, NetClientMagic, NetClientVersion, r)
}
