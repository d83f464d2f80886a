// Package client is the collaborator API a user interface uses to talk to the relay.
// Inbound messages are handed to a callback on a dedicated goroutine, in arrival order;
// the package makes no assumption about which thread a UI needs them on.
package client

import (
	"chat-relay/codec"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second

	ReasonConnectionLost = "Connection lost"
)

// MessageHandler receives every inbound message.
type MessageHandler func(msg domain.Message)

type Option func(c *Client)

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.handshakeTimeout = timeout }
}

func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.writeTimeout = timeout }
}

func WithMaxFrameSize(size int) Option {
	return func(c *Client) { c.maxFrameSize = size }
}

// Client is a connection handle to the relay.
type Client struct {
	log              *slog.Logger
	conn             net.Conn
	reader           *codec.Reader
	username         string
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	maxFrameSize     int

	writeMu sync.Mutex

	handlerMu sync.RWMutex
	handler   MessageHandler

	disconnected atomic.Bool // user asked for it
	serverLeft   atomic.Bool // server sent DISCONNECT
	done         chan struct{}
}

// Connect dials the relay, sends CONNECT and waits for the server's answer.
// A DISCONNECT answer (username taken, invalid...) fails with errors.ErrConnect carrying the
// server's reason. Otherwise the answer, normally the USER_LIST, is the first message given to handler.
func Connect(ctx context.Context, host string, port int, username string,
	handler MessageHandler, options ...Option) (*Client, error) {
	c := &Client{
		log:              slog.Default(),
		username:         username,
		handshakeTimeout: DefaultHandshakeTimeout,
		writeTimeout:     DefaultWriteTimeout,
		maxFrameSize:     codec.DefaultMaxFrameSize,
		handler:          handler,
		done:             make(chan struct{}),
	}
	for _, option := range options {
		if option != nil {
			option(c)
		}
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: c.handshakeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrConnect, err)
	}
	c.conn = conn
	c.reader = codec.NewReader(conn, c.maxFrameSize)

	first, err := c.handshake()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	go c.listen(first)
	return c, nil
}

func (c *Client) handshake() (domain.Message, error) {
	if err := c.write(domain.NewMessage(domain.Connect, c.username, "")); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", errors.ErrConnect, err)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.handshakeTimeout))
	first, err := c.reader.Read()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: no answer from server: %w", errors.ErrConnect, err)
	}
	_ = c.conn.SetReadDeadline(time.Time{})
	if first.Kind() == domain.Disconnect {
		return domain.Message{}, fmt.Errorf("%w: %s", errors.ErrConnect, first.Content())
	}
	return first, nil
}

func (c *Client) Username() string { return c.username }

// OnMessage replaces the callback. Messages already being delivered still use the previous one.
func (c *Client) OnMessage(handler MessageHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handler = handler
}

// SendText sends a chat message to everybody else in the room.
func (c *Client) SendText(content string) error {
	if c.disconnected.Load() {
		return fmt.Errorf("%w: client is disconnected", errors.ErrSendFailed)
	}
	if err := c.write(domain.NewMessage(domain.Text, c.username, content)); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrSendFailed, err)
	}
	return nil
}

// Disconnect says goodbye to the server and releases the connection. It is idempotent
// and safe to call from inside the message handler.
func (c *Client) Disconnect() error {
	if !c.disconnected.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.write(domain.NewMessage(domain.Disconnect, c.username, "")); err != nil {
		c.log.Debug("Could not send DISCONNECT", "error", err)
	}
	err := c.conn.Close()
	if stderrors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Done is closed when the listening goroutine stopped and no more message will be delivered.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) write(msg domain.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return codec.WriteFrame(c.conn, msg)
}

func (c *Client) listen(first domain.Message) {
	defer close(c.done)
	c.dispatch(first)
	for {
		msg, err := c.reader.Read()
		if err != nil {
			if !c.disconnected.Load() && !c.serverLeft.Load() {
				c.log.Warn("Connection lost", "error", err)
				c.dispatch(domain.NewDisconnectReason(ReasonConnectionLost))
			}
			_ = c.conn.Close()
			return
		}
		if msg.Kind() == domain.Disconnect {
			c.serverLeft.Store(true)
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg domain.Message) {
	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()
	if handler != nil {
		handler(msg)
	}
}
