package services

import (
	"chat-relay/codec"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/tcp"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second

	ReasonUsernameTaken = "Username already taken"
	ReasonProtocolError = "protocol error: expected CONNECT"
	ReasonShuttingDown  = "server shutting down"
	reasonInvalidPrefix = "invalid username: "
)

// Censor masks forbidden words in TEXT content. It may be nil.
type Censor interface {
	Censor(content string) (string, []string)
}

// Monitoring counts connection outcomes. It may be nil.
type Monitoring interface {
	tcp.FrameCounter
	IncrAccepted()
	IncrRejected()
}

type Config struct {
	HandshakeTimeout  time.Duration
	MaxUsernameLength int
	Session           tcp.SessionConfig
}

// ChatService runs the life of one client connection:
// handshake, registration, relay of TEXT messages, and teardown.
type ChatService struct {
	log         *slog.Logger
	registry    contract.IRegistry
	broadcaster contract.IBroadcaster
	censor      Censor
	monitoring  Monitoring
	usernames   UsernameValidator
	config      Config
}

func NewChatService(log *slog.Logger, registry contract.IRegistry, broadcaster contract.IBroadcaster,
	censor Censor, monitoring Monitoring, config Config) *ChatService {
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.Session.MaxFrameSize <= 0 {
		config.Session.MaxFrameSize = codec.DefaultMaxFrameSize
	}
	return &ChatService{
		log:         log,
		registry:    registry,
		broadcaster: broadcaster,
		censor:      censor,
		monitoring:  monitoring,
		usernames:   NewUsernameValidator(config.MaxUsernameLength),
		config:      config,
	}
}

// Serve blocks until the connection is over. The transport is always released on return.
// Cancelling ctx sends a DISCONNECT to the peer and closes the session.
func (s *ChatService) Serve(ctx context.Context, conn net.Conn) {
	var counter tcp.FrameCounter
	if s.monitoring != nil {
		counter = s.monitoring
		s.monitoring.IncrAccepted()
	}
	session := tcp.NewSession(s.log, conn, s.config.Session, counter)
	log := s.log.With("session_id", session.ID(), "remote", conn.RemoteAddr().String())
	log.Info("Connection accepted")

	stop := context.AfterFunc(ctx, func() {
		_ = session.Disconnect(ReasonShuttingDown)
	})
	defer func() {
		stop()
		_ = session.Close()
		<-session.Done()
		log.Info("Connection closed")
	}()

	username, err := s.handshake(session)
	if err != nil {
		s.reject(log, session, err)
		return
	}
	log = log.With("username", username)

	if !s.registry.Register(username, session) {
		s.reject(log, session, fmt.Errorf("%w: %s", errors.ErrDuplicateUsername, username))
		return
	}
	defer s.registry.Unregister(username)

	if !session.Activate() {
		// closed while registering, most likely a shutdown
		return
	}
	log.Info("User joined", "online", len(s.registry.SnapshotUsernames()))

	err = session.ReceiveLoop(func(msg domain.Message) bool {
		return s.handle(log, username, msg)
	})
	switch {
	case err == nil:
		log.Info("User left")
	case stderrors.Is(err, errors.ErrMalformedMessage):
		log.Warn("Closing connection on malformed frame", "error", err)
	default:
		log.Info("Connection lost", "error", err)
	}
}

// handshake waits for the CONNECT message and returns the validated username.
func (s *ChatService) handshake(session *tcp.Session) (string, error) {
	msg, err := session.ReadFirst(s.config.HandshakeTimeout)
	if err != nil {
		return "", err
	}
	if msg.Kind() != domain.Connect {
		return "", fmt.Errorf("%w: first message is %s", errors.ErrProtocolViolation, msg.Kind())
	}
	username := msg.Sender()
	if err := s.usernames.Validate(username); err != nil {
		return "", err
	}
	if err := session.Bind(username); err != nil {
		return "", err
	}
	return username, nil
}

// reject tells the client why, when it can still be told, and closes the session.
// A malformed or dead stream gets no reply.
func (s *ChatService) reject(log *slog.Logger, session *tcp.Session, err error) {
	if s.monitoring != nil {
		s.monitoring.IncrRejected()
	}
	var reason string
	switch {
	case stderrors.Is(err, errors.ErrDuplicateUsername):
		reason = ReasonUsernameTaken
	case stderrors.Is(err, errors.ErrProtocolViolation):
		reason = ReasonProtocolError
	case stderrors.Is(err, errors.ErrInvalidUsername):
		reason = reasonInvalidPrefix + invalidUsernameDetail(err)
	}
	log.Info("Handshake rejected", "error", err)
	if reason != "" {
		_ = session.Disconnect(reason)
	}
	_ = session.Close()
}

func (s *ChatService) handle(log *slog.Logger, username string, msg domain.Message) bool {
	switch msg.Kind() {
	case domain.Disconnect:
		return false
	case domain.Text:
		s.relay(log, username, msg)
	default:
		log.Debug("Ignoring message", "kind", msg.Kind())
	}
	return true
}

// relay re-stamps the message with the registered username and the server clock,
// so a client can never speak for somebody else, then sends it to everybody but the author.
// A re-stamped message that no longer fits in one frame is dropped: recipients would
// reject it as malformed and lose their connection.
func (s *ChatService) relay(log *slog.Logger, username string, msg domain.Message) {
	content := msg.Content()
	if s.censor != nil {
		var words []string
		if content, words = s.censor.Censor(content); len(words) > 0 {
			log.Info("Message censored", "words", len(words))
		}
	}
	out := domain.NewMessage(domain.Text, username, content)
	if size := codec.PayloadSize(out); size > s.config.Session.MaxFrameSize {
		log.Warn("Dropping oversized message", "size", size, "max", s.config.Session.MaxFrameSize)
		return
	}
	s.broadcaster.BroadcastExcept(out, username)
}

func invalidUsernameDetail(err error) string {
	if _, detail, ok := strings.Cut(err.Error(), errors.ErrInvalidUsername.Error()+": "); ok {
		return detail
	}
	return err.Error()
}
