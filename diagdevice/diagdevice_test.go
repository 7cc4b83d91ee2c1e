package diagdevice

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EFForg/rayhunter-sub000/diag"
)

// fakeDevice is a hand-rolled Device double, queueing whole reads the way a
// real character device returns one container per read. It plays the same
// role calnex/firmware.MockFirmware plays for firmware_test.go: a fake that
// lives outside gomock, hand-written because Device's surface is tiny.
type fakeDevice struct {
	reads  [][]byte
	idx    int
	writes [][]byte
	closed bool
}

func (f *fakeDevice) Read(p []byte) (int, error) {
	if f.idx >= len(f.reads) {
		return 0, io.EOF
	}
	data := f.reads[f.idx]
	f.idx++
	return copy(p, data), nil
}

func (f *fakeDevice) Write(p []byte) (int, error) {
	f.writes = append(f.writes, append([]byte{}, p...))
	return len(p), nil
}

func (f *fakeDevice) Close() error {
	f.closed = true
	return nil
}

func marshalContainer(t *testing.T, dt diag.DataType, msgs ...diag.HdlcEncapsulatedMessage) []byte {
	t.Helper()
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, dt.Tag)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(msgs)))
	for _, m := range msgs {
		out = binary.LittleEndian.AppendUint32(out, m.Len)
		out = append(out, m.Data...)
	}
	return out
}

func TestRetrieveIDRanges(t *testing.T) {
	var sizes [16]uint32
	sizes[0] = 0xc30
	resp := diag.ResponseMessage{
		Opcode:    115,
		Subopcode: 1,
		Status:    0,
		Payload:   diag.LogConfigRetrieveIDRangesResponse{LogMaskSizes: sizes},
	}
	read := marshalContainer(t, diag.DataTypeUserSpace, diag.EncapsulateMessage(resp))

	dev := &fakeDevice{reads: [][]byte{read}}
	driver := NewDriver(dev, false)

	got, err := driver.RetrieveIDRanges()
	require.NoError(t, err)
	assert.Equal(t, sizes, got)
	require.Len(t, dev.writes, 1)
}

func TestRetrieveIDRangesRequestFailed(t *testing.T) {
	resp := diag.ResponseMessage{
		Opcode:    115,
		Subopcode: 1,
		Status:    1,
		Payload:   diag.LogConfigRetrieveIDRangesResponse{},
	}
	read := marshalContainer(t, diag.DataTypeUserSpace, diag.EncapsulateMessage(resp))
	dev := &fakeDevice{reads: [][]byte{read}}
	driver := NewDriver(dev, false)

	_, err := driver.RetrieveIDRanges()
	var failed *RequestFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, uint32(1), failed.Status)
}

func TestSetLogMask(t *testing.T) {
	resp := diag.ResponseMessage{
		Opcode:    115,
		Subopcode: 3,
		Status:    0,
		Payload:   diag.LogConfigSetMaskResponse{},
	}
	read := marshalContainer(t, diag.DataTypeUserSpace, diag.EncapsulateMessage(resp))
	dev := &fakeDevice{reads: [][]byte{read}}
	driver := NewDriver(dev, false)

	err := driver.SetLogMask(uint32(diag.LogTypeLteRrcOtaMessage), 0xc30)
	require.NoError(t, err)
}

func TestNextContainerSkipsZeroLengthReads(t *testing.T) {
	resp := diag.ResponseMessage{Opcode: 115, Subopcode: 3, Payload: diag.LogConfigSetMaskResponse{}}
	read := marshalContainer(t, diag.DataTypeUserSpace, diag.EncapsulateMessage(resp))
	dev := &fakeDevice{reads: [][]byte{{}, {}, read}}
	driver := NewDriver(dev, false)

	container, err := driver.NextContainer()
	require.NoError(t, err)
	assert.Equal(t, diag.DataTypeUserSpace, container.DataType)
}
