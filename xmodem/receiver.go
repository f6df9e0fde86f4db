package xmodem

import (
	"time"

	"github.com/drunlade/gomodem/iostream"
	"github.com/drunlade/gomodem/transfer"
)

// Receiver drives the receiving side of an Xmodem transfer.
type Receiver struct {
	sess    *transfer.Session
	stream  iostream.ByteStream
	reader  *iostream.TimeoutReader
	flavor  Flavor
	timeout time.Duration
}

// NewReceiver returns a Receiver that will solicit flavor (X1KG sends
// 'G', the other CRC flavors 'C'; Vanilla/Relaxed send NAK).
func NewReceiver(sess *transfer.Session, stream iostream.ByteStream, flavor Flavor) *Receiver {
	return &Receiver{
		sess:    sess,
		stream:  stream,
		reader:  iostream.NewTimeoutReader(stream, sess.Ctx),
		flavor:  flavor,
		timeout: 10 * time.Second,
	}
}

// ReceiveFile reads blocks from the sender and writes their decoded
// payload to rec.Local until EOT, trimming CP/M padding from the final
// block per spec.
func (r *Receiver) ReceiveFile(rec *transfer.FileRecord) error {
	r.sess.SetState(transfer.StateTransfer)

	if _, err := r.stream.Write([]byte{r.flavor.NCGByte()}); err != nil {
		return transfer.WrapError(transfer.ErrIO, "sending NCG byte", err)
	}

	seq := byte(1)
	downgraded := false
	var pending []byte
	for {
		if mode := r.sess.CancelRequested(); mode != transfer.CancelNone {
			r.stream.Write([]byte{CAN, CAN, CAN, CAN, CAN})
			return transfer.NewError(transfer.ErrCancelled, "cancelled by caller")
		}

		header, err := r.reader.ReadByte(r.timeout)
		if err != nil {
			if seq == 1 && r.flavor == X1KG && !downgraded {
				r.downgradeFromG()
				downgraded = true
				continue
			}
			if exceeded := r.sess.RecordError(); exceeded {
				return transfer.WrapError(transfer.ErrTooManyErrors, "timeout waiting for block", err)
			}
			r.stream.Write([]byte{NAK})
			continue
		}

		switch header {
		case EOT:
			if len(pending) > 0 {
				if _, werr := rec.Local.Write(trimEOF(pending)); werr != nil {
					return transfer.WrapError(transfer.ErrIO, "writing final block", werr)
				}
			}
			r.stream.Write([]byte{ACK})
			r.sess.SetState(transfer.StateFileDone)
			return nil
		case CAN:
			r.sess.SetState(transfer.StateAbort)
			return transfer.NewError(transfer.ErrCancelled, "sender sent CAN")
		case SOH, STX:
			size := 128
			if header == STX {
				size = 1024
			}
			data, seqB, seqC, check, err := r.readBlockBody(size)
			if err != nil {
				if seq == 1 && r.flavor == X1KG && !downgraded {
					r.downgradeFromG()
					downgraded = true
					continue
				}
				if exceeded := r.sess.RecordError(); exceeded {
					return transfer.WrapError(transfer.ErrTooManyErrors, "too many bad blocks", err)
				}
				r.stream.Write([]byte{NAK})
				continue
			}
			payload, err := decodeBlock(r.flavor, header, seqB, seqC, data, check, seq)
			if err != nil {
				if dup, ok := err.(*transfer.Error); ok && dup.Kind == transfer.ErrProtocol && seqB == seq-1 {
					// Our ACK for the previous block was lost; the
					// sender resent it. Re-ACK without re-writing.
					r.stream.Write([]byte{ACK})
					continue
				}
				if seq == 1 && r.flavor == X1KG && !downgraded {
					r.downgradeFromG()
					downgraded = true
					continue
				}
				if exceeded := r.sess.RecordError(); exceeded {
					return transfer.WrapError(transfer.ErrTooManyErrors, "too many bad blocks", err)
				}
				r.stream.Write([]byte{NAK})
				continue
			}
			r.sess.ResetErrors()
			// Buffer this block; flush on the NEXT block or EOT so the
			// final block's CP/M padding can be trimmed before it is
			// written.
			if pending != nil {
				if _, werr := rec.Local.Write(pending); werr != nil {
					return transfer.WrapError(transfer.ErrIO, "writing block", werr)
				}
				r.sess.AddBytes(rec, int64(len(pending)))
			}
			pending = append([]byte{}, payload...)
			seq++
			if !r.flavor.Streaming() {
				r.stream.Write([]byte{ACK})
			}
		default:
			if exceeded := r.sess.RecordError(); exceeded {
				return transfer.NewError(transfer.ErrTooManyErrors, "too many garbage bytes")
			}
		}
	}
}

// downgradeFromG falls back from X-1K/G to X-1K after the first block
// comes back missing, duplicated, or corrupt, and re-solicits with the
// flavor's new NCG byte ('C' instead of 'G'). A streaming sender gets
// no other signal that its unacknowledged first block didn't land, so
// this is the receiver's only chance to ask for ACKed retransmission.
func (r *Receiver) downgradeFromG() {
	log.Warn("downgrading from X-1K/G to X-1K after first block failure")
	r.flavor = X1K
	r.stream.Write([]byte{r.flavor.NCGByte()})
}

func (r *Receiver) readBlockBody(size int) (data []byte, seq, seqComp byte, check []byte, err error) {
	var e error
	seq, e = r.reader.ReadByte(r.timeout)
	if e != nil {
		return nil, 0, 0, nil, e
	}
	seqComp, e = r.reader.ReadByte(r.timeout)
	if e != nil {
		return nil, 0, 0, nil, e
	}
	data = make([]byte, size)
	for i := range data {
		data[i], e = r.reader.ReadByte(r.timeout)
		if e != nil {
			return nil, 0, 0, nil, e
		}
	}
	checkLen := 1
	if r.flavor.UsesCRC() {
		checkLen = 2
	}
	check = make([]byte, checkLen)
	for i := range check {
		check[i], e = r.reader.ReadByte(r.timeout)
		if e != nil {
			return nil, 0, 0, nil, e
		}
	}
	return data, seq, seqComp, check, nil
}
