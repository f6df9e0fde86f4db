//go:build !linux

package serialio

import (
	"errors"
	"time"
)

// ErrUnsupportedPlatform is returned by Open on platforms other than
// Linux, since the underlying goserial driver only implements the
// Linux ioctl surface.
var ErrUnsupportedPlatform = errors.New("serialio: real serial ports are only supported on linux")

// Port is an unusable stand-in on non-Linux platforms; Open always
// fails.
type Port struct{}

func Open(name string, baud int) (*Port, error) {
	return nil, ErrUnsupportedPlatform
}

func (s *Port) Read(data []byte) (int, error)       { return 0, ErrUnsupportedPlatform }
func (s *Port) Write(data []byte) (int, error)      { return 0, ErrUnsupportedPlatform }
func (s *Port) Close() error                        { return nil }
func (s *Port) SetReadDeadline(t time.Time) error    { return ErrUnsupportedPlatform }
