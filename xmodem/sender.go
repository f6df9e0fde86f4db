package xmodem

import (
	"io"
	"time"

	"github.com/drunlade/gomodem/iostream"
	"github.com/drunlade/gomodem/transfer"
)

// senderState names the phases of an Xmodem send. SendFile does not
// use these constants or a transition table; it runs the phases in a
// single loop.
type senderState int

const (
	sendAwaitNCG senderState = iota
	sendBlock_
	sendAwaitACK
	sendEOT
	sendDone
)

// Sender sends one file as a single Xmodem transfer.
type Sender struct {
	sess   *transfer.Session
	stream iostream.ByteStream
	reader *iostream.TimeoutReader
	flavor Flavor
	timeout time.Duration
}

// NewSender returns a Sender. flavor may start as X1KG; SendFile drops
// to X1K when the receiver solicits with 'C' instead of 'G'. X1KG blocks
// are not acknowledged, so no later block failure changes the flavor.
func NewSender(sess *transfer.Session, stream iostream.ByteStream, flavor Flavor) *Sender {
	return &Sender{
		sess:    sess,
		stream:  stream,
		reader:  iostream.NewTimeoutReader(stream, sess.Ctx),
		flavor:  flavor,
		timeout: 10 * time.Second,
	}
}

// SendFile transmits the entirety of src as one Xmodem file.
func (s *Sender) SendFile(rec *transfer.FileRecord, src io.Reader) error {
	s.sess.SetState(transfer.StateTransfer)

	ncg, err := s.reader.ReadByte(s.timeout)
	if err != nil {
		return transfer.WrapError(transfer.ErrTimeout, "waiting for initial NCG byte", err)
	}
	switch ncg {
	case G:
		if s.flavor != X1KG {
			s.flavor = X1KG
		}
	case C:
		if !s.flavor.UsesCRC() {
			s.flavor = CRC
		} else if s.flavor == X1KG {
			// Receiver downgraded from 'G' to 'C': follow it down to
			// the ACK'd X-1K flavor instead of staying streaming.
			s.flavor = X1K
		}
	case NAK:
		if s.flavor.UsesCRC() {
			s.flavor = Vanilla
		}
	case CAN:
		return transfer.NewError(transfer.ErrCancelled, "receiver cancelled before first block")
	}

	seq := byte(1)
	buf := make([]byte, s.flavor.BlockSize())
	downgraded := false
	for {
		if s.sess.CancelRequested() != transfer.CancelNone {
			s.sendCancel()
			return transfer.NewError(transfer.ErrCancelled, "cancelled by caller")
		}
		n, rerr := io.ReadFull(src, buf)
		if n == 0 && rerr != nil {
			break
		}
		block := encodeBlock(s.flavor, seq, buf[:n])

		ok, err := s.sendOneBlock(block)
		if err != nil {
			return err
		}
		if !ok {
			if s.flavor == X1KG && !downgraded {
				s.flavor = X1K
				downgraded = true
				log.Warn("downgrading from X-1K/G to X-1K after first failed block")
				block = encodeBlock(s.flavor, seq, buf[:n])
				ok, err = s.sendOneBlock(block)
				if err != nil {
					return err
				}
			}
			if !ok {
				return transfer.NewError(transfer.ErrTooManyErrors, "too many retries on one block")
			}
		}
		s.sess.AddBytes(rec, int64(n))
		seq++
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
	}
	return s.sendEOT()
}

// sendOneBlock writes block and, unless the flavor streams without
// ACKs, waits for ACK/NAK, retrying up to ten times per spec's
// consecutive-error cap.
func (s *Sender) sendOneBlock(block []byte) (bool, error) {
	for attempt := 0; attempt < 10; attempt++ {
		if _, err := s.stream.Write(block); err != nil {
			return false, transfer.WrapError(transfer.ErrIO, "writing block", err)
		}
		if s.flavor.Streaming() {
			return true, nil
		}
		resp, err := s.reader.ReadByte(s.timeout)
		if err != nil {
			if exceeded := s.sess.RecordError(); exceeded {
				return false, transfer.WrapError(transfer.ErrTooManyErrors, "ack timeout", err)
			}
			continue
		}
		switch resp {
		case ACK:
			s.sess.ResetErrors()
			return true, nil
		case CAN:
			return false, transfer.NewError(transfer.ErrCancelled, "receiver sent CAN")
		case NAK:
			if exceeded := s.sess.RecordError(); exceeded {
				return false, nil
			}
		}
	}
	return false, nil
}

func (s *Sender) sendEOT() error {
	for attempt := 0; attempt < 10; attempt++ {
		if _, err := s.stream.Write([]byte{EOT}); err != nil {
			return transfer.WrapError(transfer.ErrIO, "writing EOT", err)
		}
		resp, err := s.reader.ReadByte(s.timeout)
		if err == nil && resp == ACK {
			s.sess.SetState(transfer.StateFileDone)
			return nil
		}
	}
	return transfer.NewError(transfer.ErrTimeout, "no ACK for EOT")
}

func (s *Sender) sendCancel() {
	s.stream.Write([]byte{CAN, CAN, CAN, CAN, CAN})
	s.sess.SetState(transfer.StateAbort)
}
