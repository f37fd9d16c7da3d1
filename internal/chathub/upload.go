package chathub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"crmchat/backend/internal/config"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrNoSession is returned when a chunk or end marker arrives for a
	// connection with no open upload.
	ErrNoSession = errors.New("no upload session for connection")
	// ErrSessionClosed is returned when data arrives after the session stopped receiving.
	ErrSessionClosed = errors.New("upload session no longer receiving")
	// ErrShuttingDown is returned for new uploads once Shutdown has begun.
	ErrShuttingDown = errors.New("upload manager shutting down")
	// ErrConnectionClosed aborts an upload whose connection went away mid-transfer.
	ErrConnectionClosed = errors.New("connection closed during upload")
)

// UploadState is the lifecycle position of one upload session.
type UploadState int

const (
	StateIdle UploadState = iota
	StateReceiving
	StateFinalizing
	StateComplete
	StateFailed
)

func (s UploadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateFinalizing:
		return "finalizing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("UploadState(%d)", int(s))
}

// UploadMeta is captured when a session starts. Exactly one of Recipient or
// GroupID is set.
type UploadMeta struct {
	Sender    string
	Recipient string
	GroupID   string
	Message   string
	// FileName is the name the client supplied.
	FileName string
}

// UploadResult describes a file that was fully written to disk.
type UploadResult struct {
	Meta UploadMeta
	// FileRef is the reference persisted on the message, e.g. "uploads/<name>".
	FileRef string
	Path    string
	Size    int64
}

// CompletionFunc is invoked once per successfully finalized upload.
type CompletionFunc func(ctx context.Context, res UploadResult)

type uploadSession struct {
	connID string
	meta   UploadMeta
	path   string
	ref    string
	pw     *io.PipeWriter

	mu    sync.Mutex
	state UploadState
	err   error
	done  chan struct{}
}

func (s *uploadSession) currentState() UploadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *uploadSession) write(data []byte) error {
	if s.currentState() != StateReceiving {
		return ErrSessionClosed
	}
	// io.Pipe hands the slice straight to the copy goroutine, so this blocks
	// until the bytes reach the file writer.
	if _, err := s.pw.Write(data); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	return nil
}

// end signals end-of-stream. The copy goroutine drains and finalizes.
func (s *uploadSession) end() {
	s.mu.Lock()
	if s.state != StateReceiving {
		s.mu.Unlock()
		return
	}
	s.state = StateFinalizing
	s.mu.Unlock()
	_ = s.pw.Close()
}

func (s *uploadSession) abort(reason error) {
	s.mu.Lock()
	if s.state == StateComplete || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	_ = s.pw.CloseWithError(reason)
}

func (s *uploadSession) finish(state UploadState, err error) {
	s.mu.Lock()
	s.state = state
	s.err = err
	s.mu.Unlock()
}

// UploadManager owns at most one upload session per connection and streams
// each session's chunks to a file under dir.
type UploadManager struct {
	dir        string
	log        *zap.Logger
	onComplete CompletionFunc
	now        func() time.Time
	baseCtx    context.Context

	mu       sync.Mutex
	sessions map[string]*uploadSession
	closed   bool
	wg       sync.WaitGroup
}

// NewUploadManager creates dir if needed. onComplete may be nil.
func NewUploadManager(ctx context.Context, dir string, log *zap.Logger, onComplete CompletionFunc) (*UploadManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if onComplete == nil {
		onComplete = func(context.Context, UploadResult) {}
	}
	return &UploadManager{
		dir:        dir,
		log:        log,
		onComplete: onComplete,
		now:        time.Now,
		baseCtx:    ctx,
		sessions:   make(map[string]*uploadSession),
	}, nil
}

// Start opens a new session for connID. A session already open on the same
// connection is ended first and still completes with its own metadata.
func (u *UploadManager) Start(connID string, meta UploadMeta) error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrShuttingDown
	}

	stored := fmt.Sprintf("%d-%s", u.now().UnixNano(), sanitizeFileName(meta.FileName))
	full := filepath.Join(u.dir, stored)
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		u.mu.Unlock()
		return fmt.Errorf("create upload file: %w", err)
	}

	pr, pw := io.Pipe()
	s := &uploadSession{
		connID: connID,
		meta:   meta,
		path:   full,
		ref:    path.Join(config.UploadsURLPrefix, stored),
		pw:     pw,
		state:  StateReceiving,
		done:   make(chan struct{}),
	}
	prev := u.sessions[connID]
	u.sessions[connID] = s
	u.wg.Add(1)
	go u.pipeline(s, pr, f)
	u.mu.Unlock()

	if prev != nil {
		u.log.Warn("upload replaced before end marker",
			zap.String("conn_id", connID),
			zap.String("previous_file", prev.meta.FileName),
			zap.String("file", meta.FileName))
		prev.end()
	}
	u.log.Debug("upload started", zap.String("conn_id", connID), zap.String("path", full))
	return nil
}

// Chunk appends data to the connection's open session.
func (u *UploadManager) Chunk(connID string, data []byte) error {
	s := u.session(connID)
	if s == nil {
		return ErrNoSession
	}
	return s.write(data)
}

// End marks end-of-stream for the connection's session. Finalization happens
// asynchronously; the completion callback fires once the file is closed.
func (u *UploadManager) End(connID string) error {
	s := u.session(connID)
	if s == nil {
		return ErrNoSession
	}
	if s.currentState() != StateReceiving {
		return ErrSessionClosed
	}
	s.end()
	return nil
}

// Abort fails the connection's session, if any. The partial file is removed.
func (u *UploadManager) Abort(connID string, reason error) {
	if s := u.session(connID); s != nil {
		s.abort(reason)
	}
}

// State reports the state of the connection's current session.
func (u *UploadManager) State(connID string) UploadState {
	s := u.session(connID)
	if s == nil {
		return StateIdle
	}
	return s.currentState()
}

// Shutdown refuses new sessions, aborts open ones and waits for every
// pipeline, including completion callbacks already running.
func (u *UploadManager) Shutdown(ctx context.Context) error {
	u.mu.Lock()
	u.closed = true
	open := make([]*uploadSession, 0, len(u.sessions))
	for _, s := range u.sessions {
		open = append(open, s)
	}
	u.mu.Unlock()

	for _, s := range open {
		if s.currentState() == StateReceiving {
			s.abort(ErrShuttingDown)
		}
	}

	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *UploadManager) session(connID string) *uploadSession {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sessions[connID]
}

// release drops the table entry only if it still refers to s.
func (u *UploadManager) release(s *uploadSession) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.sessions[s.connID] == s {
		delete(u.sessions, s.connID)
	}
}

func (u *UploadManager) pipeline(s *uploadSession, pr *io.PipeReader, f *os.File) {
	defer u.wg.Done()
	defer close(s.done)

	n, copyErr := io.Copy(f, pr)
	err := multierr.Append(copyErr, f.Close())
	if err != nil {
		// Unblock any writer still waiting on the pipe.
		_ = pr.CloseWithError(err)
		s.finish(StateFailed, err)
		u.release(s)
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = multierr.Append(err, rmErr)
		}
		u.log.Warn("upload failed",
			zap.String("conn_id", s.connID),
			zap.String("file", s.meta.FileName),
			zap.Error(err))
		return
	}

	s.finish(StateComplete, nil)
	u.release(s)
	u.log.Info("upload complete",
		zap.String("conn_id", s.connID),
		zap.String("file", s.meta.FileName),
		zap.String("ref", s.ref),
		zap.Int64("bytes", n))
	u.onComplete(u.baseCtx, UploadResult{Meta: s.meta, FileRef: s.ref, Path: s.path, Size: n})
}

// sanitizeFileName keeps only the final path element and replaces characters
// that are unsafe in a file name.
func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case strings.ContainsRune(`/:*?"<>|`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "file"
	}
	return name
}
