package kermit

import (
	"time"

	"github.com/drunlade/gomodem/iostream"
	"github.com/drunlade/gomodem/transfer"
)

// Session drives one Kermit exchange: negotiation followed by a single
// file's File/Data/.../Break sequence (batch is a repetition of
// File/Data/... per file, terminated by Break, and is left to the
// caller to loop).
type Session struct {
	sess    *transfer.Session
	stream  iostream.ByteStream
	tr      *iostream.TimeoutReader
	reader  *PacketReader
	local   Parameters
	active  Parameters
	escMap  *iostream.EncodeByteMap
	timeout time.Duration
	seq     byte
}

// NewSession returns a Kermit session proposing local as its transfer
// parameters.
func NewSession(sess *transfer.Session, stream iostream.ByteStream, local Parameters) *Session {
	tr := iostream.NewTimeoutReader(stream, sess.Ctx)
	timeout := time.Duration(local.Timeout) * time.Second
	return &Session{
		sess:    sess,
		stream:  stream,
		tr:      tr,
		reader:  NewPacketReader(tr, timeout),
		local:   local,
		active:  local,
		escMap:  iostream.NewEncodeByteMap(true, !local.Capas8Bit),
		timeout: timeout,
	}
}

func (s *Session) writePacket(typ PacketType, data []byte) error {
	pkt := EncodePacket(s.seq, typ, data, s.active.CheckType, s.escMap)
	s.seq = (s.seq + 1) % 64
	if _, err := s.stream.Write(pkt); err != nil {
		return transfer.WrapError(transfer.ErrIO, "writing packet", err)
	}
	return nil
}

// NegotiateAsSender sends Send-Init and awaits the remote's ACK
// carrying its own parameters, reconciling into the active set.
func (s *Session) NegotiateAsSender() error {
	if err := s.writePacket(TypeSend, EncodeSendInit(s.local)); err != nil {
		return err
	}
	body, err := s.reader.ReadPacket()
	if err != nil {
		return err
	}
	pkt, err := DecodePacket(body, s.local.CheckType)
	if err != nil {
		return err
	}
	if pkt.Type != TypeAck {
		return transfer.NewError(transfer.ErrProtocol, "expected ACK to Send-Init")
	}
	remote := DecodeSendInit(pkt.Data)
	s.active = Reconcile(s.local, remote)
	s.reader = NewPacketReader(s.tr, time.Duration(s.active.Timeout)*time.Second)
	return nil
}

// NegotiateAsReceiver awaits a Send-Init and ACKs it with the
// receiver's own parameters, reconciling into the active set.
func (s *Session) NegotiateAsReceiver() error {
	body, err := s.reader.ReadPacket()
	if err != nil {
		return err
	}
	pkt, err := DecodePacket(body, s.local.CheckType)
	if err != nil {
		return err
	}
	if pkt.Type != TypeSend {
		return transfer.NewError(transfer.ErrProtocol, "expected Send-Init")
	}
	remote := DecodeSendInit(pkt.Data)
	s.active = Reconcile(s.local, remote)
	s.seq = pkt.Seq
	if err := s.writePacket(TypeAck, EncodeSendInit(s.local)); err != nil {
		return err
	}
	s.reader = NewPacketReader(s.tr, time.Duration(s.active.Timeout)*time.Second)
	return nil
}
