package xmodem

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/drunlade/gomodem/transfer"
	"github.com/stretchr/testify/require"
)

// pipeStream adapts an io.Reader/io.Writer pair to iostream.ByteStream
// for in-memory loopback tests; deadlines are accepted but not enforced
// since io.Pipe has no underlying timer to hook.
type pipeStream struct {
	io.Reader
	io.Writer
}

func (pipeStream) SetReadDeadline(time.Time) error { return nil }

type memFile struct {
	buf bytes.Buffer
}

func (m *memFile) Name() string                     { return "mem" }
func (m *memFile) Read(p []byte) (int, error)        { return m.buf.Read(p) }
func (m *memFile) Write(p []byte) (int, error)       { return m.buf.Write(p) }
func (m *memFile) Seek(int64, int) (int64, error)    { return 0, nil }
func (m *memFile) Size() (int64, error)              { return int64(m.buf.Len()), nil }
func (m *memFile) ModTime() (time.Time, error)       { return time.Time{}, nil }
func (m *memFile) SetModTime(time.Time) error        { return nil }
func (m *memFile) Close() error                      { return nil }
func (m *memFile) Delete() error                     { return nil }

func newLoopback() (senderStream, receiverStream pipeStream) {
	r1, w1 := io.Pipe() // sender -> receiver
	r2, w2 := io.Pipe() // receiver -> sender
	return pipeStream{Reader: r2, Writer: w1}, pipeStream{Reader: r1, Writer: w2}
}

func TestXmodemCRCLoopback(t *testing.T) {
	senderIO, receiverIO := newLoopback()

	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 50)
	src := bytes.NewReader(payload)
	dst := &memFile{}

	sSess := transfer.NewSession(nil, nil, nil)
	rSess := transfer.NewSession(nil, nil, nil)

	sender := NewSender(sSess, senderIO, CRC)
	receiver := NewReceiver(rSess, receiverIO, CRC)

	errc := make(chan error, 2)
	go func() {
		errc <- receiver.ReceiveFile(&transfer.FileRecord{Local: dst, Size: int64(len(payload))})
	}()
	go func() {
		errc <- sender.SendFile(&transfer.FileRecord{}, src)
	}()

	for i := 0; i < 2; i++ {
		require.NoError(t, <-errc)
	}
	require.Equal(t, payload, dst.buf.Bytes())
}
