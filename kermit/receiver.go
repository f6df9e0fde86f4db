package kermit

import "github.com/drunlade/gomodem/transfer"

// ReceiveFile reads one File/[Attribute]/Data.../EOF sequence, ACKing
// each packet and writing Data payloads to the LocalFile create
// returns once the filename is known. It returns (nil, nil) if a Break
// packet arrives instead of a File header, signaling the end of the
// batch.
func (s *Session) ReceiveFile(create func(*transfer.FileRecord) (transfer.LocalFile, error)) (*transfer.FileRecord, error) {
	s.sess.SetState(transfer.StateTransfer)
	rec := &transfer.FileRecord{}

	for {
		body, err := s.reader.ReadPacket()
		if err != nil {
			return nil, err
		}
		pkt, err := DecodePacket(body, s.active.CheckType)
		if err != nil {
			if exceeded := s.sess.RecordError(); exceeded {
				return nil, err
			}
			s.writePacket(TypeNak, nil)
			continue
		}
		s.seq = pkt.Seq
		switch pkt.Type {
		case TypeFile:
			rec.Name = string(pkt.Data)
			if create != nil {
				local, cerr := create(rec)
				if cerr != nil {
					return nil, transfer.WrapError(transfer.ErrIO, "creating local file", cerr)
				}
				rec.Local = local
			}
			if err := s.writePacket(TypeAck, nil); err != nil {
				return nil, err
			}
		case TypeAttrib:
			if err := s.writePacket(TypeAck, nil); err != nil {
				return nil, err
			}
		case TypeData:
			if rec.Local != nil {
				if _, werr := rec.Local.Write(pkt.Data); werr != nil {
					return nil, transfer.WrapError(transfer.ErrIO, "writing received data", werr)
				}
				s.sess.AddBytes(rec, int64(len(pkt.Data)))
			}
			if err := s.writePacket(TypeAck, nil); err != nil {
				return nil, err
			}
		case TypeEOF:
			if err := s.writePacket(TypeAck, nil); err != nil {
				return nil, err
			}
			s.sess.SetState(transfer.StateFileDone)
			return rec, nil
		case TypeBreak:
			s.writePacket(TypeAck, nil)
			s.sess.SetState(transfer.StateEnd)
			return nil, nil
		default:
			s.writePacket(TypeNak, nil)
		}
	}
}
