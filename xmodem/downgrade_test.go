package xmodem

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/drunlade/gomodem/iostream"
	"github.com/drunlade/gomodem/transfer"
	"github.com/stretchr/testify/require"
)

// fakeGSender simulates a sender that never answers the initial 'G'
// NCG byte (as if the first X-1K/G block never arrived), then responds
// normally once the receiver falls back to requesting 'C'.
type fakeGSender struct {
	writes [][]byte
	pend   *bytes.Buffer
}

func (f *fakeGSender) Read(p []byte) (int, error) {
	if f.pend == nil || f.pend.Len() == 0 {
		return 0, io.EOF
	}
	return f.pend.Read(p)
}

func (f *fakeGSender) Write(p []byte) (int, error) {
	got := append([]byte{}, p...)
	f.writes = append(f.writes, got)
	if len(got) == 1 && got[0] == C {
		// Receiver downgraded and re-solicited with 'C': queue up one
		// valid X-1K block followed by EOT.
		payload := bytes.Repeat([]byte("x"), 1024)
		block := encodeBlock(X1K, 1, payload)
		f.pend = bytes.NewBuffer(block)
		f.pend.WriteByte(EOT)
	}
	return len(p), nil
}

func (f *fakeGSender) SetReadDeadline(time.Time) error { return nil }

func TestReceiverDowngradesFromGtoC(t *testing.T) {
	stream := &fakeGSender{}
	sess := transfer.NewSession(nil, nil, nil)
	r := &Receiver{
		sess:    sess,
		stream:  stream,
		reader:  iostream.NewTimeoutReader(stream, sess.Ctx),
		flavor:  X1KG,
		timeout: 50 * time.Millisecond,
	}

	dst := &memFile{}
	err := r.ReceiveFile(&transfer.FileRecord{Local: dst})
	require.NoError(t, err)
	require.Equal(t, X1K, r.flavor, "receiver should have downgraded to X1K")

	require.True(t, len(stream.writes) >= 2)
	require.Equal(t, []byte{G}, stream.writes[0], "first NCG byte should solicit X-1K/G")
	require.Equal(t, []byte{C}, stream.writes[1], "receiver should re-solicit with 'C' after the first block fails")
}

func TestNCGByteDistinguishesX1KFromX1KG(t *testing.T) {
	require.Equal(t, byte(G), X1KG.NCGByte())
	require.Equal(t, byte(C), X1K.NCGByte())
	require.NotEqual(t, X1K.NCGByte(), X1KG.NCGByte())
}
