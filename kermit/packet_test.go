package kermit

import (
	"testing"

	"github.com/drunlade/gomodem/iostream"
	"github.com/stretchr/testify/require"
)

// TestChecksum12NoFold pins checksum12 to the low 12 bits of the plain
// sum with no carry folded back in. A packet whose byte sum exceeds
// 0xFFF is the case that distinguishes this from the old, incorrect
// folding behavior.
func TestChecksum12NoFold(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = 0xFF // sum = 64*0xFF = 0x3FC0, comfortably over 0xFFF
	}
	var sum uint32
	for _, b := range data {
		sum += uint32(b)
	}
	want := uint16(sum) & 0x0FFF
	require.Equal(t, want, checksum12(data))
	require.NotEqual(t, uint16((sum&0xF000)>>12+(sum&0x0FFF)), checksum12(data),
		"checksum12 must not fold the high nibble back into the low 12 bits")
}

func TestCheck2RoundTrip(t *testing.T) {
	escMap := iostream.NewEncodeByteMap(true, false)
	raw := EncodePacket(1, TypeData, make([]byte, 64), Check2, escMap)
	body := raw[1 : len(raw)-1]
	pkt, err := DecodePacket(body, Check2)
	require.NoError(t, err)
	require.Equal(t, byte(1), pkt.Seq)
}
