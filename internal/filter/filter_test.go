package filter

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-lh5/internal/message"
)

func TestDeflateReadsZlibStream(t *testing.T) {
	want := bytes.Repeat([]byte("edep "), 200)

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(want)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := NewDeflate(nil).Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = NewDeflate(nil).Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestShuffle(t *testing.T) {
	plain := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x11, 0x12, 0x13, 0x14,
		0x21, 0x22, 0x23, 0x24,
		0xff,
	}
	shuffled := []byte{
		0x01, 0x11, 0x21,
		0x02, 0x12, 0x22,
		0x03, 0x13, 0x23,
		0x04, 0x14, 0x24,
		0xff,
	}

	f := NewShuffle([]uint32{4})
	got, err := f.Encode(plain)
	require.NoError(t, err)
	assert.Equal(t, shuffled, got)

	got, err = f.Decode(shuffled)
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	one := NewShuffle(nil)
	got, _ = one.Decode(plain)
	assert.Equal(t, plain, got)
}

func TestFletcher32(t *testing.T) {
	data := []byte("abcde")
	enc, err := Fletcher32{}.Encode(data)
	require.NoError(t, err)
	require.Len(t, enc, 9)
	assert.Equal(t, data, enc[:5])

	got, err := Fletcher32{}.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Byte-swapped halves are accepted.
	sw := append([]byte(nil), enc...)
	sw[5], sw[6], sw[7], sw[8] = enc[6], enc[5], enc[8], enc[7]
	_, err = Fletcher32{}.Decode(sw)
	assert.NoError(t, err)

	bad := append([]byte(nil), enc...)
	bad[0] ^= 0xff
	_, err = Fletcher32{}.Decode(bad)
	assert.ErrorIs(t, err, ErrChecksum)

	_, err = Fletcher32{}.Decode([]byte{1})
	assert.Error(t, err)
}

func TestZstd(t *testing.T) {
	want := bytes.Repeat([]byte{0, 1, 2, 3}, 1000)
	f := NewZstd([]uint32{5})
	enc, err := f.Encode(want)
	require.NoError(t, err)
	assert.Less(t, len(enc), len(want))

	got, err := f.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPipeline(t *testing.T) {
	raw := make([]byte, 4096)
	for i := 0; i < len(raw)/8; i++ {
		binary.LittleEndian.PutUint64(raw[i*8:], uint64(i))
	}

	msg := Message(NewShuffle([]uint32{8}), NewDeflate([]uint32{4}), Fletcher32{})
	require.Len(t, msg.Filters, 3)
	assert.Equal(t, []uint32{8}, msg.Filters[0].ClientData)

	p, err := NewPipeline(msg)
	require.NoError(t, err)
	assert.False(t, p.Empty())

	enc, mask, err := p.Encode(raw)
	require.NoError(t, err)
	assert.Zero(t, mask)
	assert.Less(t, len(enc), len(raw))

	got, err := p.Decode(enc, mask)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestPipelineMask(t *testing.T) {
	p, err := NewPipeline(Message(NewShuffle([]uint32{2}), Fletcher32{}))
	require.NoError(t, err)

	// Only the checksum was applied to this chunk.
	stored, _ := Fletcher32{}.Encode([]byte{1, 2, 3, 4})
	got, err := p.Decode(stored, 0x1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestPipelineFilters(t *testing.T) {
	p, err := NewPipeline(nil)
	require.NoError(t, err)
	assert.True(t, p.Empty())

	_, err = NewPipeline(&message.FilterPipeline{Filters: []message.Filter{{ID: message.FilterSZIP}}})
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Contains(t, err.Error(), "szip")

	p, err = NewPipeline(&message.FilterPipeline{Filters: []message.Filter{
		{ID: 40000, Flags: message.FilterOptional},
	}})
	require.NoError(t, err)
	assert.True(t, p.Empty())

	assert.True(t, Supported(message.FilterZstd))
	assert.False(t, Supported(message.FilterNBit))
	assert.Equal(t, "filter 40000", Name(40000))
}
