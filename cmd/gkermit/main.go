// Command gkermit sends the files it is given, or receives files until
// the sender ends the batch, using the Kermit packet protocol over
// stdin/stdout or a serial device, in the same
// flag-driven style as this module's gsz/grz commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/drunlade/gomodem/config"
	"github.com/drunlade/gomodem/kermit"
	"github.com/drunlade/gomodem/serialio"
	"github.com/drunlade/gomodem/transfer"
)

var (
	receive    = flag.Bool("r", false, "receive mode instead of send")
	verbose    = flag.Bool("v", false, "verbose mode")
	streaming  = flag.Bool("g", false, "streaming mode (no per-packet ACKs)")
	configPath = flag.String("config", "", "path to an INI configuration file")
	device     = flag.String("device", "", "serial device to use instead of stdin/stdout")
	timeout    = flag.Int("t", 10, "packet timeout in seconds")
)

type stdStream struct {
	io.Reader
	io.Writer
}

func (stdStream) SetReadDeadline(time.Time) error { return nil }

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { <-sigChan; cancel() }()
	defer cancel()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	var stream interface {
		io.Reader
		io.Writer
	}
	if *device != "" {
		port, err := serialio.Open(*device, 115200)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening %s: %v\n", *device, err)
			os.Exit(1)
		}
		defer port.Close()
		stream = port
	} else {
		stream = stdStream{Reader: os.Stdin, Writer: os.Stdout}
	}

	params := kermit.DefaultParameters()
	params.Timeout = *timeout
	params.Streaming = *streaming || cfg.Kermit.Streaming
	params.WindowSize = cfg.Kermit.WindowSize
	params.LongPackets = cfg.Kermit.LongPackets

	sess := transfer.NewSession(ctx, nil, nil)
	ks := kermit.NewSession(sess, byteStreamOf(stream), params)

	if *receive {
		if err := runReceive(ks, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "gkermit: no files specified; pass -r to receive instead")
		os.Exit(1)
	}
	if err := runSend(ks, files); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func byteStreamOf(s interface {
	io.Reader
	io.Writer
}) interface {
	io.Reader
	io.Writer
	SetReadDeadline(time.Time) error
} {
	if bs, ok := s.(interface {
		io.Reader
		io.Writer
		SetReadDeadline(time.Time) error
	}); ok {
		return bs
	}
	return stdStream{Reader: s, Writer: s}
}

func runSend(ks *kermit.Session, files []string) error {
	if err := ks.NegotiateAsSender(); err != nil {
		return err
	}
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return err
		}
		rec := &transfer.FileRecord{Name: filepath.Base(name), Size: info.Size(), ModTime: info.ModTime(), Mode: info.Mode()}
		if *verbose {
			fmt.Fprintf(os.Stderr, "sending %s (%d bytes)\n", rec.Name, rec.Size)
		}
		err = ks.SendFile(rec, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return ks.Finish()
}

func runReceive(ks *kermit.Session, cfg *config.Config) error {
	if err := ks.NegotiateAsReceiver(); err != nil {
		return err
	}
	for {
		rec, err := ks.ReceiveFile(func(r *transfer.FileRecord) (transfer.LocalFile, error) {
			path := filepath.Join(cfg.DownloadDirectory, filepath.Base(r.Name))
			f, err := os.Create(path)
			if err != nil {
				return nil, err
			}
			return osFile{f}, nil
		})
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "received %s\n", rec.Name)
		}
	}
}

// osFile adapts *os.File to transfer.LocalFile.
type osFile struct{ f *os.File }

func (o osFile) Name() string                  { return o.f.Name() }
func (o osFile) Read(p []byte) (int, error)    { return o.f.Read(p) }
func (o osFile) Write(p []byte) (int, error)   { return o.f.Write(p) }
func (o osFile) Seek(off int64, whence int) (int64, error) { return o.f.Seek(off, whence) }
func (o osFile) Size() (int64, error) {
	info, err := o.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
func (o osFile) ModTime() (time.Time, error) {
	info, err := o.f.Stat()
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
func (o osFile) SetModTime(t time.Time) error { return os.Chtimes(o.f.Name(), t, t) }
func (o osFile) Close() error                 { return o.f.Close() }
func (o osFile) Delete() error                { return os.Remove(o.f.Name()) }
