package kermit

import (
	"io"

	"github.com/drunlade/gomodem/transfer"
)

// SendFile transmits one file: File header, Attribute packet (when the
// caller requests an access-mode other than the default), Data packets
// up to the active max packet size, then End-of-file.
func (s *Session) SendFile(rec *transfer.FileRecord, src io.Reader) error {
	s.sess.SetState(transfer.StateTransfer)

	if err := s.sendAndAwaitAck(TypeFile, []byte(rec.Name)); err != nil {
		return err
	}
	if rec.Access != transfer.AccessNew {
		if err := s.sendAndAwaitAck(TypeAttrib, encodeAttributes(rec)); err != nil {
			return err
		}
	}

	maxData := s.active.MaxPacketSize - 8
	if maxData < 1 {
		maxData = 80
	}
	buf := make([]byte, maxData)
	for {
		if s.sess.CancelRequested() != transfer.CancelNone {
			return transfer.NewError(transfer.ErrCancelled, "cancelled by caller")
		}
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			if aerr := s.sendAndAwaitAck(TypeData, buf[:n]); aerr != nil {
				return aerr
			}
			s.sess.AddBytes(rec, int64(n))
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return transfer.WrapError(transfer.ErrIO, "reading source", err)
		}
	}
	if err := s.sendAndAwaitAck(TypeEOF, nil); err != nil {
		return err
	}
	s.sess.SetState(transfer.StateFileDone)
	return nil
}

// Finish sends the Break packet ending the batch.
func (s *Session) Finish() error {
	return s.sendAndAwaitAck(TypeBreak, nil)
}

func (s *Session) sendAndAwaitAck(typ PacketType, data []byte) error {
	for attempt := 0; attempt < 10; attempt++ {
		if err := s.writePacket(typ, data); err != nil {
			return err
		}
		if s.active.Streaming && typ == TypeData {
			return nil
		}
		body, err := s.reader.ReadPacket()
		if err != nil {
			if exceeded := s.sess.RecordError(); exceeded {
				return transfer.WrapError(transfer.ErrTooManyErrors, "no ACK", err)
			}
			continue
		}
		pkt, err := DecodePacket(body, s.active.CheckType)
		if err != nil {
			if exceeded := s.sess.RecordError(); exceeded {
				return err
			}
			continue
		}
		if pkt.Type == TypeAck {
			s.sess.ResetErrors()
			return nil
		}
		if exceeded := s.sess.RecordError(); exceeded {
			return transfer.NewError(transfer.ErrTooManyErrors, "too many NAKs")
		}
	}
	return transfer.NewError(transfer.ErrTooManyErrors, "packet never acknowledged")
}

func encodeAttributes(rec *transfer.FileRecord) []byte {
	return []byte{byte('L'), toChar(byte(rec.Size & 0x3F))}
}
