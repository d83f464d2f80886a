package tcp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

const maxAcceptBackoff = time.Second

// ConnHandler owns an accepted connection until Serve returns.
type ConnHandler interface {
	Serve(ctx context.Context, conn net.Conn)
}

// Listener accepts connections and serves each of them in its own goroutine.
// It is a supervised worker: Run returns nil once the listening socket is closed.
type Listener struct {
	log      *slog.Logger
	listener net.Listener
	handler  ConnHandler
	conns    sync.WaitGroup
}

func NewListener(log *slog.Logger, listener net.Listener, handler ConnHandler) *Listener {
	return &Listener{log: log, listener: listener, handler: handler}
}

func (l *Listener) Addr() net.Addr { return l.listener.Addr() }

func (l *Listener) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = l.listener.Close()
	})
	defer stop()

	l.log.Info("Accepting connections", "address", l.listener.Addr().String())
	var backoff time.Duration
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.log.Info("Listener closed", "address", l.listener.Addr().String())
				return nil
			}
			// transient (EMFILE, ECONNABORTED...), keep accepting
			backoff = nextBackoff(backoff)
			l.log.Warn("Accept failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		l.conns.Add(1)
		go func() {
			defer l.conns.Done()
			l.handler.Serve(ctx, conn)
		}()
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	err := l.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Wait blocks until every served connection returned or the timeout elapsed.
// It reports whether all of them finished.
func (l *Listener) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		l.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return 5 * time.Millisecond
	}
	current *= 2
	if current > maxAcceptBackoff {
		return maxAcceptBackoff
	}
	return current
}
