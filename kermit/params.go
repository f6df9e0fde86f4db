package kermit

// Parameters is Kermit's transfer-parameter block: the local and
// remote sides each propose one, and the active set is settled by
// taking the minimum (for sizes) or AND (for capability flags) of the
// two, per the Send-Init/ACK exchange.
type Parameters struct {
	MaxPacketSize  int
	Timeout        int // seconds
	Padding        int
	PadChar        byte
	EOLChar        byte
	QuoteChar      byte
	CheckType      CheckType
	RepeatCount    int
	Capas8Bit      bool
	WindowSize     int
	LongPackets    bool
	Streaming      bool
}

// DefaultParameters returns a reasonable local proposal.
func DefaultParameters() Parameters {
	return Parameters{
		MaxPacketSize: 94,
		Timeout:       10,
		PadChar:       0,
		EOLChar:       EOL,
		QuoteChar:     quoteChar,
		CheckType:     Check1,
		WindowSize:    1,
	}
}

// Reconcile merges a remote proposal into local, applying
// min-for-sizes / AND-for-flags, and returns the resulting active
// parameter set both sides will use for the remainder of the session.
func Reconcile(local, remote Parameters) Parameters {
	active := local
	active.MaxPacketSize = minInt(local.MaxPacketSize, remote.MaxPacketSize)
	active.Timeout = minInt(local.Timeout, remote.Timeout)
	active.WindowSize = minInt(local.WindowSize, remote.WindowSize)
	active.Capas8Bit = local.Capas8Bit && remote.Capas8Bit
	active.LongPackets = local.LongPackets && remote.LongPackets
	active.Streaming = local.Streaming && remote.Streaming
	if remote.CheckType < active.CheckType {
		active.CheckType = remote.CheckType
	}
	return active
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// EncodeSendInit packs Parameters into a Send-Init packet payload, the
// classic single-character-per-field layout.
func EncodeSendInit(p Parameters) []byte {
	return []byte{
		toChar(byte(p.MaxPacketSize)),
		toChar(byte(p.Timeout)),
		toChar(byte(p.Padding)),
		ctlify(p.PadChar),
		toChar(p.EOLChar),
		p.QuoteChar,
		byte('0' + int(p.CheckType)),
		toChar(byte(p.RepeatCount)),
		boolChar(p.Capas8Bit),
		toChar(byte(p.WindowSize)),
	}
}

// DecodeSendInit parses a Send-Init payload back into Parameters,
// tolerating a short payload (older peers send fewer fields).
func DecodeSendInit(data []byte) Parameters {
	p := DefaultParameters()
	get := func(i int) (byte, bool) {
		if i < len(data) {
			return data[i], true
		}
		return 0, false
	}
	if v, ok := get(0); ok {
		p.MaxPacketSize = int(fromChar(v))
	}
	if v, ok := get(1); ok {
		p.Timeout = int(fromChar(v))
	}
	if v, ok := get(2); ok {
		p.Padding = int(fromChar(v))
	}
	if v, ok := get(6); ok && v >= '1' && v <= '3' {
		p.CheckType = CheckType(v - '0')
	}
	if v, ok := get(8); ok {
		p.Capas8Bit = v != 'N'
	}
	if v, ok := get(9); ok {
		p.WindowSize = int(fromChar(v))
		if p.WindowSize == 0 {
			p.WindowSize = 1
		}
	}
	return p
}

func ctlify(b byte) byte {
	if b == 0 {
		return toChar(0)
	}
	return toChar(b)
}

func boolChar(b bool) byte {
	if b {
		return 'Y'
	}
	return 'N'
}
