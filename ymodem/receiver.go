package ymodem

import (
	"time"

	"github.com/drunlade/gomodem/checksum"
	"github.com/drunlade/gomodem/iostream"
	"github.com/drunlade/gomodem/transfer"
	"github.com/drunlade/gomodem/xmodem"
)

// Receiver drives the receiving side of a Ymodem batch transfer.
type Receiver struct {
	sess    *transfer.Session
	stream  iostream.ByteStream
	reader  *iostream.TimeoutReader
	flavor  Flavor
	timeout time.Duration
}

// NewReceiver returns a Receiver expecting the given batch flavor.
func NewReceiver(sess *transfer.Session, stream iostream.ByteStream, flavor Flavor) *Receiver {
	return &Receiver{
		sess:    sess,
		stream:  stream,
		reader:  iostream.NewTimeoutReader(stream, sess.Ctx),
		flavor:  flavor,
		timeout: 10 * time.Second,
	}
}

// ReceiveBatch receives files until the terminating empty block 0,
// calling create to obtain a LocalFile for each announced file.
func (r *Receiver) ReceiveBatch(create func(*transfer.FileRecord) (transfer.LocalFile, error)) ([]*transfer.FileRecord, error) {
	r.sess.SetState(transfer.StateTransfer)
	var received []*transfer.FileRecord

	for {
		rec, err := r.receiveMetaBlock()
		if err != nil {
			return received, err
		}
		if rec == nil {
			r.sess.SetState(transfer.StateEnd)
			return received, nil
		}
		local, err := create(rec)
		if err != nil {
			return received, transfer.WrapError(transfer.ErrIO, "creating local file", err)
		}
		rec.Local = local

		if _, err := r.stream.Write([]byte{r.flavor.xmodemFlavor().NCGByte()}); err != nil {
			return received, transfer.WrapError(transfer.ErrIO, "sending NCG for file data", err)
		}
		inner := xmodem.NewReceiver(r.sess, r.stream, r.flavor.xmodemFlavor())
		if err := inner.ReceiveFile(rec); err != nil {
			return received, err
		}
		received = append(received, rec)
	}
}

func (r *Receiver) receiveMetaBlock() (*transfer.FileRecord, error) {
	if _, err := r.stream.Write([]byte{'C'}); err != nil {
		return nil, transfer.WrapError(transfer.ErrIO, "soliciting block 0", err)
	}
	for attempt := 0; attempt < 10; attempt++ {
		header, err := r.reader.ReadByte(r.timeout)
		if err != nil {
			continue
		}
		if header == xmodem.EOT {
			r.stream.Write([]byte{xmodem.ACK})
			return nil, nil
		}
		if header != xmodem.SOH && header != xmodem.STX {
			continue
		}
		size := 128
		if header == xmodem.STX {
			size = 1024
		}
		_, _ = r.reader.ReadByte(r.timeout) // seq
		_, _ = r.reader.ReadByte(r.timeout) // ~seq
		data := make([]byte, size)
		for i := range data {
			data[i], err = r.reader.ReadByte(r.timeout)
			if err != nil {
				r.stream.Write([]byte{xmodem.NAK})
				continue
			}
		}
		hi, herr := r.reader.ReadByte(r.timeout)
		lo, lerr := r.reader.ReadByte(r.timeout)
		if herr != nil || lerr != nil {
			r.stream.Write([]byte{xmodem.NAK})
			continue
		}
		want := uint16(hi)<<8 | uint16(lo)
		if checksum.CRC16(data) != want {
			r.stream.Write([]byte{xmodem.NAK})
			continue
		}
		r.stream.Write([]byte{xmodem.ACK})
		return decodeMetaBlock(data)
	}
	return nil, transfer.NewError(transfer.ErrTooManyErrors, "block 0 never arrived cleanly")
}
