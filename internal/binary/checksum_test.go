package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup3(t *testing.T) {
	// reference values from lookup3.c
	assert.Equal(t, uint32(0xdeadbeef), Lookup3(nil))
	assert.Equal(t, uint32(0x17770551), Lookup3([]byte("Four score and seven years ago")))
}

func TestFletcher32(t *testing.T) {
	tests := []struct {
		data []byte
		want uint32
	}{
		{nil, 0},
		{[]byte{0x01, 0x02}, 0x01020102},
		{[]byte{0x01, 0x02, 0x03}, 0x05040402},
		{[]byte{0xff, 0xff, 0xff, 0xff}, 0xffffffff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fletcher32(tt.data), "% x", tt.data)
	}
}

func TestFletcher32LongInput(t *testing.T) {
	// crosses the 360-word folding block
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	a := Fletcher32(data)
	data[999] ^= 1
	assert.NotEqual(t, a, Fletcher32(data))
}
