package tcp

import (
	"chat-relay/codec"
	"chat-relay/domain"
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultOutboxSize   = 64
)

type SessionConfig struct {
	WriteTimeout time.Duration
	OutboxSize   int
	MaxFrameSize int
}

// FrameCounter observes the traffic of a session. It may be nil.
type FrameCounter interface {
	IncrFramesIn()
	IncrFramesOut()
}

// Session owns one client connection.
//
// Outbound messages go through a bounded outbox drained by a single writer goroutine,
// so a slow peer only ever stalls its own writes. Inbound messages are read by whoever
// calls ReceiveLoop. The transport is released exactly once, after the outbox is drained.
type Session struct {
	id           string
	conn         net.Conn
	reader       *codec.Reader
	log          *slog.Logger
	counter      FrameCounter
	writeTimeout time.Duration

	username atomic.Pointer[string]
	state    atomic.Int32

	mu     sync.Mutex // guards closed and outbox sends
	closed bool
	outbox chan domain.Message
	done   chan struct{}
}

func NewSession(log *slog.Logger, conn net.Conn, config SessionConfig, counter FrameCounter) *Session {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.OutboxSize <= 0 {
		config.OutboxSize = DefaultOutboxSize
	}
	id := uuid.NewString()
	s := &Session{
		id:           id,
		conn:         conn,
		reader:       codec.NewReader(conn, config.MaxFrameSize),
		log:          log.With("session_id", id, "remote", remoteAddr(conn)),
		counter:      counter,
		writeTimeout: config.WriteTimeout,
		outbox:       make(chan domain.Message, config.OutboxSize),
		done:         make(chan struct{}),
	}
	s.state.Store(int32(domain.Connecting))
	go s.writeLoop()
	return s
}

func (s *Session) ID() string { return s.id }

// Username is empty until Bind succeeded.
func (s *Session) Username() string {
	if u := s.username.Load(); u != nil {
		return *u
	}
	return ""
}

func (s *Session) State() domain.ConnectionState {
	return domain.ConnectionState(s.state.Load())
}

// Bind assigns the username. It can only happen once.
func (s *Session) Bind(username string) error {
	if !s.username.CompareAndSwap(nil, &username) {
		return fmt.Errorf("session %s is already bound to %q", s.id, s.Username())
	}
	return nil
}

// Activate moves a connecting session to ACTIVE. It reports false if the session was closed meanwhile.
func (s *Session) Activate() bool {
	return s.state.CompareAndSwap(int32(domain.Connecting), int32(domain.Active))
}

// Done is closed once the transport has been released.
func (s *Session) Done() <-chan struct{} { return s.done }

// Send queues the message. A closed session or a full outbox fails with errors.ErrSendFailed,
// and a full outbox closes the session: the peer is not keeping up.
func (s *Session) Send(msg domain.Message) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", errors.ErrSendFailed, errors.ErrTransportClosed)
	}
	select {
	case s.outbox <- msg:
		s.mu.Unlock()
		return nil
	default:
	}
	s.mu.Unlock()

	_ = s.Close()
	return fmt.Errorf("%w: outbox full (%d messages)", errors.ErrSendFailed, cap(s.outbox))
}

// Close is idempotent. Messages already queued are still flushed, bounded by the write timeout,
// then the connection is closed. A blocked ReceiveLoop returns immediately.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

// Disconnect queues a DISCONNECT carrying reason and closes the session.
// It does nothing on a session that is already closed, so the peer is told at most once.
func (s *Session) Disconnect(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.outbox <- domain.NewDisconnectReason(reason):
	default:
		// no room left, the peer is not reading anyway
	}
	s.closeLocked()
	return nil
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.state.Store(int32(domain.Closed))
	close(s.outbox)
	// unblock the reader now, the writer still owns the connection until the outbox is drained
	_ = s.conn.SetReadDeadline(time.Now())
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ReadFirst reads one message within timeout. It is used for the handshake.
func (s *Session) ReadFirst(timeout time.Duration) (domain.Message, error) {
	if timeout > 0 {
		s.setReadDeadline(time.Now().Add(timeout))
	}
	msg, err := s.read()
	if err != nil {
		return domain.Message{}, err
	}
	s.setReadDeadline(time.Time{})
	return msg, nil
}

// setReadDeadline never overrides the immediate deadline set by Close.
func (s *Session) setReadDeadline(deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		_ = s.conn.SetReadDeadline(deadline)
	}
}

// ReceiveLoop blocks and hands every decoded message to handler until the handler returns false,
// the peer goes away, a malformed frame arrives, or Close is called.
// A local Close and a handler stop both return nil.
func (s *Session) ReceiveLoop(handler func(msg domain.Message) bool) error {
	for {
		msg, err := s.read()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return err
		}
		if !handler(msg) {
			return nil
		}
	}
}

func (s *Session) read() (domain.Message, error) {
	msg, err := s.reader.Read()
	if err != nil {
		if stderrors.Is(err, errors.ErrMalformedMessage) {
			return domain.Message{}, err
		}
		if stderrors.Is(err, io.EOF) {
			return domain.Message{}, fmt.Errorf("%w: peer closed the connection", errors.ErrTransportClosed)
		}
		return domain.Message{}, fmt.Errorf("%w: %w", errors.ErrTransportClosed, err)
	}
	if s.counter != nil {
		s.counter.IncrFramesIn()
	}
	s.log.Debug("Frame received", "username", s.Username(), "kind", msg.Kind())
	return msg, nil
}

func (s *Session) writeLoop() {
	defer s.release()
	failed := false
	for msg := range s.outbox {
		if failed {
			// drain what is left so Close never blocks a sender
			continue
		}
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err := codec.WriteFrame(s.conn, msg); err != nil {
			failed = true
			s.log.Warn("Failed to write frame, closing session",
				"username", s.Username(), "kind", msg.Kind(), "error", err)
			_ = s.Close()
			continue
		}
		if s.counter != nil {
			s.counter.IncrFramesOut()
		}
	}
}

func (s *Session) release() {
	if err := s.conn.Close(); err != nil && !stderrors.Is(err, net.ErrClosed) {
		s.log.Debug("Error while closing connection", "error", err)
	}
	close(s.done)
	s.log.Debug("Transport released")
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
