// Package sddfcommon holds the queue/data memory-region sizing
// conventions and the driver-virtualiser-client connection pattern
// shared by every sDDF subsystem builder in pkg/sddf.
package sddfcommon

import (
	"io"
	"os"
	"path/filepath"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/handle"
	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

// QueueSize returns the page-rounded size of a queue memory region: a
// fixed header plus perBuffer bytes for each of n buffer slots.
func QueueSize(pageSize, header, perBuffer, n uint64) uint64 {
	return arch.AlignUpTo(header+perBuffer*n, pageSize)
}

// DataSize returns the page-rounded size of a data memory region holding n
// buffers of bufferSize bytes each.
func DataSize(pageSize, bufferSize, n uint64) uint64 {
	return arch.AlignUpTo(bufferSize*n, pageSize)
}

// Endpoint is one side of a connection: the PD it lives in and the vaddr
// the shared MR was mapped at in that PD.
type Endpoint struct {
	PD    handle.PD
	Vaddr uint64
}

// Connection is the result of connecting two PDs over one shared memory
// region: a map in each PD plus one channel between them.
type Connection struct {
	MR handle.MR
	A  Endpoint
	B  Endpoint
	Ch handle.Channel
}

// ConnectOverMR maps mr into both pdA and pdB (in that order — the order
// insertion-order determinism depends on) with the given permissions, and
// creates one channel between them.
func ConnectOverMR(sd *sdmodel.SystemDescription, pdA, pdB handle.PD, mrH handle.MR, permA, permB sdmodel.Perm, opts sdmodel.ChannelOptions) (*Connection, error) {
	vaddrA, err := sd.GetMapVaddr(pdA, mrH)
	if err != nil {
		return nil, err
	}
	if err := sd.AddMap(pdA, mrH, vaddrA, permA, nil, ""); err != nil {
		return nil, err
	}

	vaddrB, err := sd.GetMapVaddr(pdB, mrH)
	if err != nil {
		return nil, err
	}
	if err := sd.AddMap(pdB, mrH, vaddrB, permB, nil, ""); err != nil {
		return nil, err
	}

	ch, err := sd.AddChannel(pdA, pdB, opts)
	if err != nil {
		return nil, err
	}

	return &Connection{
		MR: mrH,
		A:  Endpoint{PD: pdA, Vaddr: vaddrA},
		B:  Endpoint{PD: pdB, Vaddr: vaddrB},
		Ch: ch,
	}, nil
}

// RequireConnected returns NotConnected if connected is false — the guard
// every builder's SerialiseConfig runs first.
func RequireConnected(connected bool) error {
	if !connected {
		return sdferr.New(sdferr.KindNotConnected, "serialise config called before connect")
	}
	return nil
}

// RequireNotConnected returns InvalidOptions if connected is already true
// — connect is not idempotent; a second call would double-allocate
// memory regions and channels.
func RequireNotConnected(connected bool) error {
	if connected {
		return sdferr.New(sdferr.KindInvalidOptions, "connect called on an already-connected builder")
	}
	return nil
}

// RecordWriter is satisfied by every configdata record type.
type RecordWriter interface {
	WriteTo(w io.Writer) (int64, error)
}

// WriteRecordFile serialises rec to "<prefix>/<name>.data", creating the
// prefix directory if needed.
func WriteRecordFile(prefix, name string, rec RecordWriter) error {
	if err := os.MkdirAll(prefix, 0o755); err != nil {
		return sdferr.Wrap(sdferr.KindInvalidConfig, err, "serialise config: mkdir %s", prefix)
	}
	f, err := os.Create(filepath.Join(prefix, name+".data"))
	if err != nil {
		return sdferr.Wrap(sdferr.KindInvalidConfig, err, "serialise config: create %s", name)
	}
	defer f.Close()
	if _, err := rec.WriteTo(f); err != nil {
		return sdferr.Wrap(sdferr.KindInvalidConfig, err, "serialise config: write %s", name)
	}
	return nil
}
