package filter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	hbin "github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

// Deflate is the zlib filter. Its client data holds the compression level.
type Deflate struct {
	Level int
}

func NewDeflate(clientData []uint32) *Deflate {
	level := 6
	if len(clientData) > 0 {
		level = int(clientData[0])
	}
	return &Deflate{Level: level}
}

func (f *Deflate) ID() uint16 { return message.FilterDeflate }

func (f *Deflate) Encode(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.Level)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *Deflate) Decode(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}

// Shuffle regroups the bytes of fixed-size elements so that byte k of every
// element is stored together. Trailing bytes that do not fill an element are
// left in place.
type Shuffle struct {
	Size int
}

func NewShuffle(clientData []uint32) *Shuffle {
	size := 1
	if len(clientData) > 0 && clientData[0] > 0 {
		size = int(clientData[0])
	}
	return &Shuffle{Size: size}
}

func (f *Shuffle) ID() uint16 { return message.FilterShuffle }

func (f *Shuffle) Encode(b []byte) ([]byte, error) {
	return f.permute(b, true), nil
}

func (f *Shuffle) Decode(b []byte) ([]byte, error) {
	return f.permute(b, false), nil
}

func (f *Shuffle) permute(b []byte, forward bool) []byte {
	n := len(b) / max(f.Size, 1)
	if f.Size <= 1 || n <= 1 {
		return b
	}
	out := make([]byte, len(b))
	for i := 0; i < n; i++ {
		for j := 0; j < f.Size; j++ {
			if forward {
				out[j*n+i] = b[i*f.Size+j]
			} else {
				out[i*f.Size+j] = b[j*n+i]
			}
		}
	}
	copy(out[n*f.Size:], b[n*f.Size:])
	return out
}

// Fletcher32 appends a checksum of the chunk on write and verifies and
// strips it on read.
type Fletcher32 struct{}

func (Fletcher32) ID() uint16 { return message.FilterFletcher32 }

func (Fletcher32) Encode(b []byte) ([]byte, error) {
	return binary.LittleEndian.AppendUint32(append([]byte(nil), b...), hbin.Fletcher32(b)), nil
}

func (Fletcher32) Decode(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: chunk of %d bytes", hbin.ErrTruncated, len(b))
	}
	data, tail := b[:len(b)-4], b[len(b)-4:]
	stored := binary.LittleEndian.Uint32(tail)
	sum := hbin.Fletcher32(data)
	// Files from old library versions store the sum with each half swapped.
	swapped := uint32(tail[1]) | uint32(tail[0])<<8 | uint32(tail[3])<<16 | uint32(tail[2])<<24
	if stored != sum && swapped != sum {
		return nil, fmt.Errorf("%w: stored %#08x, computed %#08x", ErrChecksum, stored, sum)
	}
	return data, nil
}

// Zstd is the registered zstd filter. Chunks are single zstd frames and the
// client data holds the compression level.
type Zstd struct {
	Level int
}

func NewZstd(clientData []uint32) *Zstd {
	level := 3
	if len(clientData) > 0 && clientData[0] > 0 {
		level = int(clientData[0])
	}
	return &Zstd{Level: level}
}

func (f *Zstd) ID() uint16 { return message.FilterZstd }

func (f *Zstd) Encode(b []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(f.Level)))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(b, nil), nil
}

func (f *Zstd) Decode(b []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return out, nil
}
