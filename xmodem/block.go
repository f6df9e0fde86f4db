package xmodem

import (
	"fmt"

	"github.com/drunlade/gomodem/checksum"
	"github.com/drunlade/gomodem/transfer"
)

// encodeBlock builds one on-wire Xmodem block: header byte, sequence
// byte pair, payload padded to the flavor's block size with SUB
// (0x1A), and a trailing checksum or CRC-16.
func encodeBlock(f Flavor, seq byte, payload []byte) []byte {
	size := f.BlockSize()
	header := byte(SOH)
	if size == 1024 {
		header = STX
	}
	data := make([]byte, size)
	copy(data, payload)
	for i := len(payload); i < size; i++ {
		data[i] = SUB
	}

	block := make([]byte, 0, 3+size+2)
	block = append(block, header, seq, 0xFF-seq)
	block = append(block, data...)
	if f.UsesCRC() {
		crc := checksum.CRC16(data)
		block = append(block, byte(crc>>8), byte(crc))
	} else {
		block = append(block, checksum.Sum8(data))
	}
	return block
}

// decodeBlock validates a received block's sequence byte pair and
// trailing check value, returning the payload with its SUB padding
// still attached (CP/M EOF trimming happens once, at end of file, in
// the receiver, per the spec's unconditional-trim rule).
func decodeBlock(f Flavor, header byte, seq, seqComp byte, data []byte, check []byte, wantSeq byte) ([]byte, error) {
	if seq != wantSeq {
		if seq == byte(wantSeq-1) {
			return nil, transfer.NewError(transfer.ErrProtocol, "duplicate block received")
		}
		return nil, transfer.NewError(transfer.ErrProtocol, fmt.Sprintf("unexpected sequence %d, want %d", seq, wantSeq))
	}
	if seqComp != 0xFF-seq {
		return nil, transfer.NewError(transfer.ErrInvalidFrame, "sequence complement mismatch")
	}
	if f.UsesCRC() {
		got := uint16(check[0])<<8 | uint16(check[1])
		want := checksum.CRC16(data)
		if got != want {
			return nil, transfer.NewError(transfer.ErrCRC, "block CRC mismatch")
		}
	} else {
		if check[0] != checksum.Sum8(data) {
			return nil, transfer.NewError(transfer.ErrCRC, "block checksum mismatch")
		}
	}
	return data, nil
}

// trimEOF strips trailing CP/M EOF (SUB/0x1A) padding from the final
// block of a file, per spec: trimming is unconditional, regardless of
// whether the transfer was declared text or binary.
func trimEOF(data []byte) []byte {
	end := len(data)
	for end > 0 && data[end-1] == SUB {
		end--
	}
	return data[:end]
}
