package ymodem

import (
	"github.com/drunlade/gomodem/checksum"
	"github.com/drunlade/gomodem/xmodem"
)

// buildBlock frames payload as one CRC-16 Xmodem-style block at the
// given sequence number (block 0 for metadata, 1..N for file data),
// padded to size with SUB.
func buildBlock(size int, seq byte, payload []byte) []byte {
	header := byte(xmodem.SOH)
	if size == 1024 {
		header = xmodem.STX
	}
	data := make([]byte, size)
	copy(data, payload)
	for i := len(payload); i < size; i++ {
		data[i] = xmodem.SUB
	}
	crc := checksum.CRC16(data)
	block := make([]byte, 0, 3+size+2)
	block = append(block, header, seq, 0xFF-seq)
	block = append(block, data...)
	block = append(block, byte(crc>>8), byte(crc))
	return block
}
