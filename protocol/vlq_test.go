package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{0, 1, -1, 95, 96, -32, -33, 127, 128, -128, 1000, -1000, 65535, -65535, 1000000, -1000000}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, expected)
		data := output.Result()

		decoded, err := DecodeVLQInt(&data)
		require.NoError(t, err, "value %d", expected)
		assert.Equal(t, expected, decoded)
		assert.Empty(t, data, "value %d left bytes behind", expected)
	}
}

func TestVLQEncodeDecodeUint(t *testing.T) {
	testCases := []struct {
		name  string
		value uint32
		size  int
	}{
		{"zero", 0, 1},
		{"compare value", 125, 2},
		{"tick period", 1024, 2},
		{"counter width", 65535, 3},
		{"one second at 1MHz", 1000000, 3},
		{"uptime wrap", 4294967295, 1},
		{"high bit", 3000000000, 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			output := NewScratchOutput()
			EncodeVLQUint(output, tc.value)
			data := output.Result()
			assert.Len(t, data, tc.size)

			decoded, err := DecodeVLQUint(&data)
			require.NoError(t, err)
			assert.Equal(t, tc.value, decoded)
		})
	}
}

func TestVLQString(t *testing.T) {
	for _, expected := range []string{"", "c toggle compressor", "Special chars: !@#$%^&*()"} {
		output := NewScratchOutput()
		EncodeVLQString(output, expected)
		data := output.Result()

		decoded, err := DecodeVLQString(&data)
		require.NoError(t, err)
		assert.Equal(t, expected, decoded)
	}
}

func TestVLQErrors(t *testing.T) {
	// Continuation byte but no following byte
	data := []byte{0x80}
	_, err := DecodeVLQInt(&data)
	assert.ErrorIs(t, err, ErrBufferTooSmall)

	data = []byte{}
	_, err = DecodeVLQUint(&data)
	assert.ErrorIs(t, err, ErrBufferTooSmall)

	// More continuation bytes than a 32-bit value needs
	data = []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	_, err = DecodeVLQInt(&data)
	assert.ErrorIs(t, err, ErrInvalidVLQ)

	// String longer than the remaining data
	data = []byte{0x05, 'a', 'b'}
	_, err = DecodeVLQString(&data)
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}
