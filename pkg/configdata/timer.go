package configdata

import "io"

const (
	TimerClientMagic   uint64 = 0x5344465f54494d43 // "SDF_TIMC"
	TimerClientVersion uint32 = 1
)

// TimerClient is a client's timer config record: just the channel back to
// the (passive) timer driver, since the driver is invoked via PPC rather
// than shared memory.
type TimerClient struct {
	DriverChannel ChannelResource
}

func (r *TimerClient) WriteTo(w io.Writer) (int64, error) {
	return writeRecord(w, TimerClientMagic, TimerClientVersion, r)
}
