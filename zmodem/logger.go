package zmodem

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the protocol logging interface used throughout this
// package. It is now backed by logrus rather than a hand-rolled file
// writer, the same logging library the rest of this module uses.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// logrusLogger adapts a *logrus.Entry to the Logger interface.
type logrusLogger struct {
	entry *logrus.Entry
	file  *os.File
}

// NewFileLogger creates a Logger that writes structured, timestamped
// entries to path via logrus, replacing the package's previous
// hand-rolled file writer.
func NewFileLogger(path string) (*logrusLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(file)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l).WithField("proto", "zmodem"), file: file}, nil
}

// Close closes the underlying log file.
func (l *logrusLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *logrusLogger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}
func (l *logrusLogger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}
func (l *logrusLogger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// NoopLogger discards everything, used when no Logger option is given.
type NoopLogger struct{}

func (NoopLogger) Debug(format string, args ...interface{}) {}
func (NoopLogger) Info(format string, args ...interface{})  {}
func (NoopLogger) Error(format string, args ...interface{}) {}

// FormatFrameLog formats a frame for logging with optional data truncation.
func FormatFrameLog(direction string, frameType int, hdr Header, data []byte, dataSize int) string {
	frameName := FrameTypeName(frameType)
	pos := rclhdr(hdr)

	msg := fmt.Sprintf("%s %s (pos=%d, hdr=[%02x %02x %02x %02x])",
		direction, frameName, pos, hdr[0], hdr[1], hdr[2], hdr[3])

	if dataSize > 0 {
		msg += fmt.Sprintf(", data_size=%d", dataSize)
		if len(data) > 0 {
			displayLen := len(data)
			truncated := false
			if displayLen > 128 {
				displayLen = 128
				truncated = true
			}
			if truncated {
				msg += fmt.Sprintf(", data=%q...[truncated]", data[:displayLen])
			} else {
				msg += fmt.Sprintf(", data=%q", data[:displayLen])
			}
		}
	}

	return msg
}

// LoggingReader wraps a reader and logs reads of more than 10 bytes,
// plus any read error other than io.EOF.
type LoggingReader struct {
	reader io.Reader
	logger Logger
	name   string
}

func NewLoggingReader(reader io.Reader, logger Logger, name string) *LoggingReader {
	return &LoggingReader{reader: reader, logger: logger, name: name}
}

func (lr *LoggingReader) Read(p []byte) (int, error) {
	n, err := lr.reader.Read(p)
	if lr.logger != nil && n > 10 {
		data := p[:n]
		if n > 128 {
			lr.logger.Debug("%s: Read %d bytes: %q...[truncated]", lr.name, n, data[:128])
		} else {
			lr.logger.Debug("%s: Read %d bytes: %q", lr.name, n, data)
		}
	}
	if err != nil && err != io.EOF && lr.logger != nil {
		lr.logger.Error("%s: Read error: %v", lr.name, err)
	}
	return n, err
}

// LoggingWriter wraps a writer and logs writes of more than 10 bytes,
// plus any write error.
type LoggingWriter struct {
	writer io.Writer
	logger Logger
	name   string
}

func NewLoggingWriter(writer io.Writer, logger Logger, name string) *LoggingWriter {
	return &LoggingWriter{writer: writer, logger: logger, name: name}
}

func (lw *LoggingWriter) Write(p []byte) (int, error) {
	n, err := lw.writer.Write(p)
	if lw.logger != nil && n > 10 {
		data := p[:n]
		if n > 128 {
			lw.logger.Debug("%s: Wrote %d bytes: %q...[truncated]", lw.name, n, data[:128])
		} else {
			lw.logger.Debug("%s: Wrote %d bytes: %q", lw.name, n, data)
		}
	}
	if err != nil && lw.logger != nil {
		lw.logger.Error("%s: Write error: %v", lw.name, err)
	}
	return n, err
}
