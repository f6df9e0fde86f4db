package kermit

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/drunlade/gomodem/iostream"
	"github.com/drunlade/gomodem/transfer"
	"github.com/stretchr/testify/require"
)

type pipeStream struct {
	io.Reader
	io.Writer
}

func (pipeStream) SetReadDeadline(time.Time) error { return nil }

type memFile struct{ buf bytes.Buffer }

func (m *memFile) Name() string                  { return "mem" }
func (m *memFile) Read(p []byte) (int, error)     { return m.buf.Read(p) }
func (m *memFile) Write(p []byte) (int, error)    { return m.buf.Write(p) }
func (m *memFile) Seek(int64, int) (int64, error) { return 0, nil }
func (m *memFile) Size() (int64, error)           { return int64(m.buf.Len()), nil }
func (m *memFile) ModTime() (time.Time, error)    { return time.Time{}, nil }
func (m *memFile) SetModTime(time.Time) error     { return nil }
func (m *memFile) Close() error                   { return nil }
func (m *memFile) Delete() error                  { return nil }

func newLoopback() (sender, receiver pipeStream) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	return pipeStream{Reader: r2, Writer: w1}, pipeStream{Reader: r1, Writer: w2}
}

func TestKermitPacketRoundTrip(t *testing.T) {
	escMap := iostream.NewEncodeByteMap(true, false)
	raw := EncodePacket(3, TypeData, []byte("hello\x01world"), Check1, escMap)
	// Strip MARK/EOL to mimic what PacketReader hands to DecodePacket.
	body := raw[1 : len(raw)-1]
	pkt, err := DecodePacket(body, Check1)
	require.NoError(t, err)
	require.Equal(t, byte(3), pkt.Seq)
	require.Equal(t, TypeData, pkt.Type)
	require.Equal(t, []byte("hello\x01world"), pkt.Data)
}

func TestKermitSessionLoopback(t *testing.T) {
	senderIO, receiverIO := newLoopback()
	sSess := transfer.NewSession(nil, nil, nil)
	rSess := transfer.NewSession(nil, nil, nil)

	sender := NewSession(sSess, senderIO, DefaultParameters())
	receiver := NewSession(rSess, receiverIO, DefaultParameters())

	errc := make(chan error, 2)
	go func() { errc <- receiver.NegotiateAsReceiver() }()
	go func() { errc <- sender.NegotiateAsSender() }()
	require.NoError(t, <-errc)
	require.NoError(t, <-errc)

	content := []byte("the quick brown fox")
	dst := &memFile{}
	var recvRec *transfer.FileRecord
	go func() {
		var err error
		recvRec, err = receiver.ReceiveFile(func(r *transfer.FileRecord) (transfer.LocalFile, error) {
			return dst, nil
		})
		errc <- err
	}()
	go func() {
		errc <- sender.SendFile(&transfer.FileRecord{Name: "foo.txt"}, bytes.NewReader(content))
	}()
	require.NoError(t, <-errc)
	require.NoError(t, <-errc)
	require.Equal(t, "foo.txt", recvRec.Name)
	require.Equal(t, content, dst.buf.Bytes())
}
