// Package ymodem implements Ymodem batch file transfer: Xmodem-CRC
// block framing (package xmodem) preceded by a block-0 metadata frame
// naming the file, and followed by an empty block 0 terminating the
// batch. Ymodem/G drops per-block ACKs the same way Xmodem's X-1K/G
// does.
//
// Block-0 payload layout is grounded on
// other_examples/…ubootshell-ymodem-ymodem.go.go's infoBlockForFile,
// extended with octal mtime/mode fields per this module's spec.
package ymodem

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drunlade/gomodem/transfer"
	"github.com/drunlade/gomodem/xmodem"
)

var log = logrus.StandardLogger().WithField("proto", "ymodem")

// Flavor selects plain Ymodem (per-block ACK) or Ymodem/G (streaming).
type Flavor int

const (
	Standard Flavor = iota
	StreamingG
)

func (f Flavor) xmodemFlavor() xmodem.Flavor {
	if f == StreamingG {
		return xmodem.X1KG
	}
	return xmodem.X1K
}

// encodeMetaBlock builds the 128-byte block-0 payload: "name\0size mtime
// mode 0 filesleft totalleft" NUL-padded to the block size, mtime/mode in
// octal as C Ymodem implementations expect.
func encodeMetaBlock(rec *transfer.FileRecord, filesLeft, totalLeft int) []byte {
	block := make([]byte, 128)
	if rec == nil {
		return block // all-zero block 0 terminates the batch
	}
	meta := fmt.Sprintf("%s\x00%d %o %o 0 %d %d",
		rec.Name, rec.Size, rec.ModTime.Unix(), uint32(rec.Mode.Perm()), filesLeft, totalLeft)
	copy(block, meta)
	return block
}

// decodeMetaBlock parses a received block-0 payload. An empty payload
// (first byte 0x00 or no content) signals the end of the batch.
func decodeMetaBlock(payload []byte) (*transfer.FileRecord, error) {
	trimmed := trimTrailingNulPad(payload)
	if len(trimmed) == 0 {
		return nil, nil
	}
	parts := strings.SplitN(string(trimmed), "\x00", 2)
	name := parts[0]
	if name == "" {
		return nil, nil
	}
	var size, mtime, mode, filesLeft, totalLeft int64
	if len(parts) > 1 {
		fields := strings.Fields(parts[1])
		size = parseField(fields, 0)
		mtime = parseOctalField(fields, 1)
		mode = parseOctalField(fields, 2)
		filesLeft = parseField(fields, 4)
		totalLeft = parseField(fields, 5)
	}
	_ = filesLeft
	_ = totalLeft
	return &transfer.FileRecord{
		Name:    name,
		Size:    size,
		ModTime: time.Unix(mtime, 0),
		Mode:    os.FileMode(mode),
	}, nil
}

func parseField(fields []string, idx int) int64 {
	if idx >= len(fields) {
		return 0
	}
	v, _ := strconv.ParseInt(fields[idx], 10, 64)
	return v
}

func parseOctalField(fields []string, idx int) int64 {
	if idx >= len(fields) {
		return 0
	}
	v, _ := strconv.ParseInt(fields[idx], 8, 64)
	return v
}

func trimTrailingNulPad(data []byte) []byte {
	end := len(data)
	for end > 0 && (data[end-1] == 0x00 || data[end-1] == 0x1A) {
		end--
	}
	return data[:end]
}
