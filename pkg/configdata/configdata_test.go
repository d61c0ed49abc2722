package configdata_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/sdfgen/pkg/configdata"
)

func TestDevice_WriteTo_LeadsWithMagicAndVersion(t *testing.T) {
	d, err := configdata.NewDevice(
		[]configdata.RegionResource{{Vaddr: 0x200000, Size: 0x1000, IOAddr: 0x9000000}},
		[]configdata.IRQResource{{ID: 3}},
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := d.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	var gotMagic uint64
	require.NoError(t, binary.Read(bytes.NewReader(buf.Bytes()[:8]), binary.LittleEndian, &gotMagic))
	assert.Equal(t, configdata.DeviceMagic, gotMagic)

	var gotVersion uint32
	require.NoError(t, binary.Read(bytes.NewReader(buf.Bytes()[8:12]), binary.LittleEndian, &gotVersion))
	assert.Equal(t, configdata.DeviceVersion, gotVersion)
}

func TestDevice_RejectsOverCapacity(t *testing.T) {
	regions := make([]configdata.RegionResource, configdata.MaxDeviceRegions+1)
	_, err := configdata.NewDevice(regions, nil)
	require.Error(t, err)
}

func TestDevice_NumFieldsTrackLength(t *testing.T) {
	d, err := configdata.NewDevice(
		[]configdata.RegionResource{{Vaddr: 1}, {Vaddr: 2}},
		[]configdata.IRQResource{{ID: 1}},
	)
	require.NoError(t, err)
	assert.EqualValues(t, 2, d.NumRegions)
	assert.EqualValues(t, 1, d.NumIRQs)
}

func TestSerialVirtTx_WriteTo_RoundTripsFixedSize(t *testing.T) {
	r := &configdata.SerialVirtTx{NumClients: 1}
	copy(r.BeginStr[:], "hello\x00")

	var buf bytes.Buffer
	_, err := r.WriteTo(&buf)
	require.NoError(t, err)
	assert.NotZero(t, buf.Len())
}
