// Package transfer holds the protocol-agnostic session, file-record and
// collaborator types shared by the xmodem, ymodem, kermit and zmodem
// packages: state machine state, the cancel/skip flags, per-session
// counters, and the pluggable local-file and callback types. The
// byte-stream interface lives in package iostream.
//
// Generalized from drunlade-go-lrzsz/zmodem/session.go,
// zmodem/callbacks.go and zmodem/progress.go, which originally served
// Zmodem alone.
package transfer

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the coarse lifecycle state of a transfer session.
type State int

const (
	StateInit State = iota
	StateTransfer
	StateFileDone
	StateEnd
	StateAbort
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateTransfer:
		return "TRANSFER"
	case StateFileDone:
		return "FILE_DONE"
	case StateEnd:
		return "END"
	case StateAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

// CancelMode distinguishes the two ways a foreign task may ask a
// session to stop.
type CancelMode int

const (
	CancelNone CancelMode = iota
	CancelKeepPartial
	CancelDeletePartial
)

// SkipMode mirrors CancelMode's tri-state shape for the current file
// only, rather than the whole session.
type SkipMode int

const (
	SkipNone SkipMode = iota
	SkipKeepPartial
	SkipDeletePartial
)

// AccessMode records how a received file should be reconciled against
// an existing file of the same name, as negotiated by Kermit's
// attribute packet and honored by Ymodem/Zmodem's overwrite option.
type AccessMode int

const (
	AccessNew AccessMode = iota
	AccessSupersede
	AccessWarn
	AccessAppend
)

// Counters aggregates the running totals a progress sink displays.
type Counters struct {
	BytesTransferred int64
	BytesTotal       int64
	BlocksSent       int
	BlocksRetried    int
	FilesDone        int
	FilesTotal       int
}

// FileRecord describes one file moving through a session, sender or
// receiver side.
type FileRecord struct {
	Name       string
	Size       int64
	ModTime    time.Time
	Mode       os.FileMode
	Access     AccessMode
	Local      LocalFile
	Started    time.Time
	Finished   time.Time
	BytesMoved int64
}

// LocalFile is the pluggable local-storage collaborator: enough to open
// for read or write, learn its size/mtime, and be deleted on a
// cancel-and-discard.
type LocalFile interface {
	Name() string
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Size() (int64, error)
	ModTime() (time.Time, error)
	SetModTime(t time.Time) error
	Close() error
	Delete() error
}

// Callbacks is the UI/progress sink a caller may supply. Every field is
// optional; a nil field is simply not invoked. Generalized from
// zmodem/callbacks.go's Callbacks struct.
type Callbacks struct {
	OnFilePrompt   func(rec *FileRecord) (AccessMode, bool)
	OnProgress     func(rec *FileRecord, counters Counters)
	OnFileStart    func(rec *FileRecord)
	OnFileComplete func(rec *FileRecord, err error)
	OnError        func(err error)
	OnEvent        func(msg string)
}

func (c *Callbacks) event(msg string) {
	if c != nil && c.OnEvent != nil {
		c.OnEvent(msg)
	}
}

// Session is the shared, protocol-agnostic transfer state. zmodem.Session
// embeds it; the xmodem and ymodem Sender/Receiver types and
// kermit.Session hold a pointer to one. Every field that a foreign task
// (Cancel/Skip) or the transfer loop itself may touch concurrently
// is guarded by mu, per the single-session-lock design.
type Session struct {
	mu sync.Mutex

	state      State
	cancelMode CancelMode
	skipMode   SkipMode
	errorCount int

	Files    []*FileRecord
	Counters Counters

	Callbacks *Callbacks
	Logger    logrus.FieldLogger
	Ctx       context.Context
}

// NewSession builds a Session ready for State()==StateInit. A nil
// logger falls back to logrus's standard logger; a nil Callbacks is
// allowed and treated as all-fields-absent.
func NewSession(ctx context.Context, cb *Callbacks, logger logrus.FieldLogger) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Session{Ctx: ctx, Callbacks: cb, Logger: logger}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState transitions the session to state, logging the transition.
func (s *Session) SetState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()
	if prev != state {
		s.Logger.Debugf("session state %s -> %s", prev, state)
	}
}

// Cancel asks the running transfer to stop at its next suspension
// point. Safe to call from another goroutine while the transfer is in
// progress.
func (s *Session) Cancel(mode CancelMode) {
	s.mu.Lock()
	s.cancelMode = mode
	s.mu.Unlock()
	s.Callbacks.event("cancel requested")
}

// CancelRequested reports the pending cancel mode, or CancelNone.
func (s *Session) CancelRequested() CancelMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelMode
}

// Skip asks the running transfer to abandon only the current file.
func (s *Session) Skip(mode SkipMode) {
	s.mu.Lock()
	s.skipMode = mode
	s.mu.Unlock()
}

// SkipRequested reports the pending skip mode and clears it, since a
// skip request applies to exactly one file.
func (s *Session) SkipRequested() SkipMode {
	s.mu.Lock()
	defer func() {
		s.skipMode = SkipNone
		s.mu.Unlock()
	}()
	return s.skipMode
}

// RecordError increments the consecutive-error counter and reports
// whether the session has now exceeded the maximum of ten consecutive
// errors a protocol loop must honor before aborting.
func (s *Session) RecordError() (exceeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCount++
	return s.errorCount > 10
}

// ResetErrors clears the consecutive-error counter, called whenever a
// block/packet/frame is accepted successfully.
func (s *Session) ResetErrors() {
	s.mu.Lock()
	s.errorCount = 0
	s.mu.Unlock()
}

// AddBytes folds n transferred bytes into the running counters and the
// given file record's own BytesMoved, then fires OnProgress for it, if
// any callback is set.
func (s *Session) AddBytes(rec *FileRecord, n int64) {
	s.mu.Lock()
	s.Counters.BytesTransferred += n
	counters := s.Counters
	s.mu.Unlock()
	if rec != nil {
		rec.BytesMoved += n
	}
	if s.Callbacks != nil && s.Callbacks.OnProgress != nil {
		s.Callbacks.OnProgress(rec, counters)
	}
}
