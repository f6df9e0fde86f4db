package zmodem

import "github.com/drunlade/gomodem/checksum"

// updcrc16, updcrc32, CRC16Finalize, CRC32Finalize and CRC32CheckValue
// are the CRC primitives frame.go and sender.go call at every header and
// data-subpacket boundary. They are thin wrappers over the shared
// checksum package so Zmodem's 16/32-bit CRC engine is the same one
// Xmodem and Ymodem use, instead of a Zmodem-private
// implementation.
func updcrc16(b byte, crc uint16) uint16 {
	return checksum.UpdateCRC16(crc, []byte{b})
}

// CRC16Finalize is the identity function for CRC-16/XMODEM: unlike the
// 32-bit CRC, this variant does not invert its accumulator. It is kept
// as a named step because frame.go calls it at every CRC-16 boundary;
// removing the call would mean touching each of those call sites.
func CRC16Finalize(crc uint16) uint16 {
	return crc
}

func updcrc32(b byte, crc uint32) uint32 {
	return checksum.UpdateCRC32(crc, []byte{b})
}

func CRC32Finalize(crc uint32) uint32 {
	return checksum.FinalizeCRC32(crc)
}

// CRC32CheckValue is the residue a correct (payload || crc32(payload))
// stream folds down to under UpdateCRC32 without a final invert.
const CRC32CheckValue = checksum.CRC32CheckValue
