//go:build linux

// Package serialio adapts a real serial port to this module's
// transfer.ByteStream / iostream.ByteStream interfaces, so the cmd/
// programs can run over an actual tty instead of stdin/stdout.
//
// Grounded on Daedaluz-goserial/port_linux.go's Port type
// (serial.Open, *Port.Read/Write/SetReadTimeout/Close), which is itself
// Linux-only, hence this file's build tag.
package serialio

import (
	"fmt"
	"time"

	serial "github.com/daedaluz/goserial"
)

// Port wraps *serial.Port, adding the SetReadDeadline method this
// module's ByteStream interfaces require in place of goserial's
// SetReadTimeout(duration).
type Port struct {
	p *serial.Port
}

var standardBauds = map[int]serial.CFlag{
	50: serial.B50, 75: serial.B75, 110: serial.B110, 134: serial.B134,
	150: serial.B150, 200: serial.B200, 300: serial.B300, 600: serial.B600,
	1200: serial.B1200, 1800: serial.B1800, 2400: serial.B2400, 4800: serial.B4800,
	9600: serial.B9600, 19200: serial.B19200, 38400: serial.B38400,
	57600: serial.B57600, 115200: serial.B115200, 230400: serial.B230400,
	460800: serial.B460800, 921600: serial.B921600,
}

// Open opens name (e.g. "/dev/ttyUSB0"), puts it into raw mode, and
// applies baud as one of the termios standard rates.
func Open(name string, baud int) (*Port, error) {
	opts := serial.NewOptions()
	opts.SetReadTimeout(time.Second)
	p, err := serial.Open(name, opts)
	if err != nil {
		return nil, err
	}
	flag, ok := standardBauds[baud]
	if !ok {
		p.Close()
		return nil, fmt.Errorf("serialio: unsupported baud rate %d", baud)
	}
	attrs, err := p.GetAttr()
	if err != nil {
		p.Close()
		return nil, err
	}
	attrs.MakeRaw()
	attrs.SetSpeed(flag)
	if err := p.SetAttr(serial.TCSANOW, attrs); err != nil {
		p.Close()
		return nil, err
	}
	return &Port{p: p}, nil
}

func (s *Port) Read(data []byte) (int, error)  { return s.p.Read(data) }
func (s *Port) Write(data []byte) (int, error) { return s.p.Write(data) }
func (s *Port) Close() error                   { return s.p.Close() }

// SetReadDeadline satisfies iostream.ByteStream by translating an
// absolute deadline into goserial's relative-duration timeout API.
func (s *Port) SetReadDeadline(t time.Time) error {
	d := time.Until(t)
	if d < 0 {
		d = 0
	}
	s.p.SetReadTimeout(d)
	return nil
}
