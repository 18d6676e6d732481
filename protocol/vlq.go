package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// vlqLimits[i] is the half-open range [-lim, 3*lim) representable in i+1
// bytes, matching Klipper's signed VLQ.
var vlqLimits = [4]int32{1 << 5, 1 << 12, 1 << 19, 1 << 26}

// EncodeVLQInt writes v most significant group first in one Output call
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [5]byte
	n := 1
	for n < 5 && !(-vlqLimits[n-1] <= v && v < 3*vlqLimits[n-1]) {
		n++
	}
	for i := 0; i < n; i++ {
		shift := uint(7 * (n - 1 - i))
		buf[i] = byte(v>>shift) & 0x7F
		if i < n-1 {
			buf[i] |= 0x80
		}
	}
	output.Output(buf[:n])
}

// EncodeVLQUint encodes an unsigned integer to VLQ format
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt decodes a VLQ signed integer from the data slice
// The data slice is advanced past the consumed bytes
func DecodeVLQInt(data *[]byte) (int32, error) {
	if len(*data) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32((*data)[0])
	*data = (*data)[1:]

	v := c & 0x7F
	if (c & 0x60) == 0x60 {
		// Sign extension for negative numbers
		v |= ^uint32(0x1F)
	}

	n := 1
	for c&0x80 != 0 {
		if n == 5 {
			return 0, ErrInvalidVLQ
		}
		if len(*data) == 0 {
			return 0, ErrBufferTooSmall
		}
		c = uint32((*data)[0])
		*data = (*data)[1:]
		v = (v << 7) | (c & 0x7F)
		n++
	}

	return int32(v), nil
}

// DecodeVLQUint decodes a VLQ unsigned integer from the data slice
func DecodeVLQUint(data *[]byte) (uint32, error) {
	val, err := DecodeVLQInt(data)
	return uint32(val), err
}

// EncodeVLQString encodes a string with length prefix
func EncodeVLQString(output OutputBuffer, s string) {
	EncodeVLQUint(output, uint32(len(s)))
	output.Output([]byte(s))
}

// DecodeVLQString decodes a length-prefixed string
func DecodeVLQString(data *[]byte) (string, error) {
	length, err := DecodeVLQUint(data)
	if err != nil {
		return "", err
	}
	if len(*data) < int(length) {
		return "", ErrBufferTooSmall
	}
	s := string((*data)[:length])
	*data = (*data)[length:]
	return s, nil
}
