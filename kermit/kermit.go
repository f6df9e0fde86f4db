// Package kermit implements the Kermit packet protocol: MARK-delimited
// packets with a length/sequence/type header, three checksum strengths,
// control/8-bit character quoting, an S/Y negotiation exchange that
// reconciles a local and remote transfer-parameter block, and an
// optional streaming mode that drops per-packet ACKs.
//
// The packet encode/decode shape is grounded on
// drunlade-go-lrzsz/zmodem/frame.go's header reader/writer, generalized
// from Zmodem's fixed binary/hex header to Kermit's variable-length,
// printable-character packet; the negotiation exchange follows the
// propose/await/reconcile shape of zmodem/sender.go's GetReceiverInit.
package kermit

import "github.com/sirupsen/logrus"

var log = logrus.StandardLogger().WithField("proto", "kermit")

const (
	Mark = 0x01 // SOH, the packet start byte
	EOL  = 0x0D // default packet terminator
)

// PacketType is the single character identifying a Kermit packet's
// role.
type PacketType byte

const (
	TypeSend     PacketType = 'S' // Send-Init
	TypeFile     PacketType = 'F' // File header
	TypeData     PacketType = 'D' // Data
	TypeAck      PacketType = 'Y'
	TypeNak      PacketType = 'N'
	TypeError    PacketType = 'E'
	TypeBreak    PacketType = 'B' // End of batch (Break transmission)
	TypeAttrib   PacketType = 'A' // Attribute packet
	TypeComplete PacketType = 'C' // Complete
	TypeEOF      PacketType = 'Z' // End of file
)

// CheckType selects the strength of a packet's trailing check field.
type CheckType int

const (
	Check1 CheckType = 1 // single 6-bit checksum character
	Check2 CheckType = 2 // two 6-bit checksum characters
	Check3 CheckType = 3 // 16-bit CRC-CCITT, three characters
)
