package kermit

import (
	"time"

	"github.com/drunlade/gomodem/iostream"
	"github.com/drunlade/gomodem/transfer"
)

// PacketReader reads whole Kermit packets off a byte stream: skip to
// MARK, read the printable length byte, then read exactly that many
// more bytes (the rest of the packet up to but not including EOL).
type PacketReader struct {
	tr      *iostream.TimeoutReader
	timeout time.Duration
}

func NewPacketReader(tr *iostream.TimeoutReader, timeout time.Duration) *PacketReader {
	return &PacketReader{tr: tr, timeout: timeout}
}

// ReadPacket blocks until one full packet arrives, returning the LEN
// byte followed by the SEQ+TYPE+DATA+CHECK bytes that it counts.
func (r *PacketReader) ReadPacket() ([]byte, error) {
	for {
		b, err := r.tr.ReadByte(r.timeout)
		if err != nil {
			return nil, transfer.WrapError(transfer.ErrTimeout, "waiting for MARK", err)
		}
		if b == Mark {
			break
		}
	}
	lenByte, err := r.tr.ReadByte(r.timeout)
	if err != nil {
		return nil, transfer.WrapError(transfer.ErrTimeout, "reading length field", err)
	}
	n := int(fromChar(lenByte))
	body := make([]byte, 0, n+1)
	body = append(body, lenByte)
	for i := 0; i < n; i++ {
		b, err := r.tr.ReadByte(r.timeout)
		if err != nil {
			return nil, transfer.WrapError(transfer.ErrTimeout, "reading packet body", err)
		}
		body = append(body, b)
	}
	// Trailing EOL, consumed and discarded.
	r.tr.ReadByte(r.timeout)
	return body, nil
}
