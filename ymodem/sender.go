package ymodem

import (
	"io"
	"time"

	"github.com/drunlade/gomodem/iostream"
	"github.com/drunlade/gomodem/transfer"
	"github.com/drunlade/gomodem/xmodem"
)

// Sender drives the sending side of a Ymodem batch transfer.
type Sender struct {
	sess    *transfer.Session
	stream  iostream.ByteStream
	reader  *iostream.TimeoutReader
	flavor  Flavor
	timeout time.Duration
}

// NewSender returns a Sender for the given batch flavor.
func NewSender(sess *transfer.Session, stream iostream.ByteStream, flavor Flavor) *Sender {
	return &Sender{
		sess:    sess,
		stream:  stream,
		reader:  iostream.NewTimeoutReader(stream, sess.Ctx),
		flavor:  flavor,
		timeout: 10 * time.Second,
	}
}

// SendBatch sends each file in files in order, followed by the
// terminating empty block 0.
func (s *Sender) SendBatch(files []*transfer.FileRecord, open func(*transfer.FileRecord) (io.Reader, error)) error {
	s.sess.SetState(transfer.StateTransfer)
	if _, err := s.reader.ReadByte(s.timeout); err != nil {
		return transfer.WrapError(transfer.ErrTimeout, "waiting for initial NCG", err)
	}

	for i, rec := range files {
		if err := s.sendOneFile(rec, files[i+1:], open); err != nil {
			return err
		}
		// The receiver solicits every block 0 with its own NCG byte.
		if _, err := s.reader.ReadByte(s.timeout); err != nil {
			return transfer.WrapError(transfer.ErrTimeout, "waiting for NCG before next block 0", err)
		}
	}
	return s.sendMetaBlock(nil, 0, 0)
}

func (s *Sender) sendOneFile(rec *transfer.FileRecord, remaining []*transfer.FileRecord, open func(*transfer.FileRecord) (io.Reader, error)) error {
	if err := s.sendMetaBlock(rec, len(remaining), 0); err != nil {
		return err
	}
	src, err := open(rec)
	if err != nil {
		return transfer.WrapError(transfer.ErrIO, "opening file for send", err)
	}
	xFlavor := s.flavor.xmodemFlavor()
	inner := xmodem.NewSender(s.sess, s.stream, xFlavor)
	return inner.SendFile(rec, src)
}

func (s *Sender) sendMetaBlock(rec *transfer.FileRecord, filesLeft, totalLeft int) error {
	payload := encodeMetaBlock(rec, filesLeft, totalLeft)
	block := buildBlock(128, 0, payload)
	for attempt := 0; attempt < 10; attempt++ {
		if _, err := s.stream.Write(block); err != nil {
			return transfer.WrapError(transfer.ErrIO, "writing block 0", err)
		}
		resp, err := s.reader.ReadByte(s.timeout)
		if err != nil {
			continue
		}
		switch resp {
		case xmodem.ACK:
			if rec == nil {
				return nil
			}
			// Receiver ACKs block 0, then sends its own NCG byte
			// before file data begins, mirroring Xmodem's handshake.
			if _, err := s.reader.ReadByte(s.timeout); err != nil {
				return transfer.WrapError(transfer.ErrTimeout, "waiting for NCG after block 0", err)
			}
			return nil
		case xmodem.CAN:
			return transfer.NewError(transfer.ErrCancelled, "receiver cancelled at block 0")
		}
	}
	return transfer.NewError(transfer.ErrTooManyErrors, "block 0 not acknowledged")
}
