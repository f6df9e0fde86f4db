package ymodem

import (
	"bytes"
	"io"
	"testing"
	"time"

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

func TestYmodemBatchLoopback(t *testing.T) {
	senderIO, receiverIO := newLoopback()

	content := bytes.Repeat([]byte("batch payload contents\n"), 20)
	rec := &transfer.FileRecord{Name: "batch.txt", Size: int64(len(content))}

	sSess := transfer.NewSession(nil, nil, nil)
	rSess := transfer.NewSession(nil, nil, nil)

	sender := NewSender(sSess, senderIO, Standard)
	receiver := NewReceiver(rSess, receiverIO, Standard)

	dst := &memFile{}
	errc := make(chan error, 2)
	var gotFiles []*transfer.FileRecord
	go func() {
		var err error
		gotFiles, err = receiver.ReceiveBatch(func(r *transfer.FileRecord) (transfer.LocalFile, error) {
			return dst, nil
		})
		errc <- err
	}()
	go func() {
		errc <- sender.SendBatch([]*transfer.FileRecord{rec}, func(r *transfer.FileRecord) (io.Reader, error) {
			return bytes.NewReader(content), nil
		})
	}()

	for i := 0; i < 2; i++ {
		require.NoError(t, <-errc)
	}
	require.Len(t, gotFiles, 1)
	require.Equal(t, "batch.txt", gotFiles[0].Name)
	require.Equal(t, content, dst.buf.Bytes())
}
