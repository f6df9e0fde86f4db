// Package xmodem implements the Xmodem family: Vanilla (checksum, 128
// byte blocks), Relaxed (Vanilla framing; it uses the same 10 s
// timeout as every other flavor here), CRC (CRC-16, 128 byte blocks),
// X-1K (CRC-16, 1024 byte blocks) and X-1K/G (X-1K without per-block
// ACKs, for error-free links).
//
// The block framing and control-byte handling follow the shape of
// drunlade-go-lrzsz/zmodem/frame.go's binary header reader/writer, sized
// down from Zmodem's variable-length header to Xmodem's fixed
// SOH/STX-prefixed block.
package xmodem

import (
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger().WithField("proto", "xmodem")

// Control bytes, named identically to drunlade-go-lrzsz/zmodem/zmodem.go's
// Ward Christensen parameter block so a reader moving between packages
// recognizes them on sight.
const (
	SOH  = 0x01
	STX  = 0x02
	EOT  = 0x04
	ACK  = 0x06
	NAK  = 0x15
	CAN  = 0x18
	C    = 'C' // CRC request byte
	G    = 'G' // streaming (X-1K/G) request byte
	SUB  = 0x1A // CP/M EOF pad byte
)

// Flavor selects one of the five Xmodem variants.
type Flavor int

const (
	Vanilla Flavor = iota
	Relaxed
	CRC
	X1K
	X1KG
)

func (f Flavor) String() string {
	switch f {
	case Vanilla:
		return "vanilla"
	case Relaxed:
		return "relaxed"
	case CRC:
		return "crc"
	case X1K:
		return "1k"
	case X1KG:
		return "1k/g"
	default:
		return "unknown"
	}
}

// BlockSize returns the data payload size this flavor uses.
func (f Flavor) BlockSize() int {
	if f == X1K || f == X1KG {
		return 1024
	}
	return 128
}

// UsesCRC reports whether this flavor checks blocks with CRC-16 instead
// of the 8-bit checksum.
func (f Flavor) UsesCRC() bool {
	return f != Vanilla && f != Relaxed
}

// Streaming reports whether this flavor omits per-block ACKs (X-1K/G
// only).
func (f Flavor) Streaming() bool {
	return f == X1KG
}

// NCGByte is the byte a receiver sends to solicit the first block: 'G'
// for X-1K/G, 'C' for the other CRC-based flavors, NAK otherwise.
func (f Flavor) NCGByte() byte {
	if f == X1KG {
		return G
	}
	if f.UsesCRC() {
		return C
	}
	return NAK
}
