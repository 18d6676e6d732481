package protocol

// CRC16 is the CCITT checksum (reflected, initial 0xFFFF) carried big endian
// in the two trailer bytes of every telemetry frame. It covers the length,
// sequence and payload bytes.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		x := b ^ byte(crc)
		x ^= x << 4
		w := uint16(x)
		crc = (w<<8 | crc>>8) ^ w>>4 ^ w<<3
	}
	return crc
}
