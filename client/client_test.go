package client

import (
	"chat-relay/codec"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/tcp"
	"chat-relay/runtime"
	"chat-relay/services"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T) int {
	t.Helper()
	log := slog.Default()
	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(log, registry, nil)
	registry.SetPresenceListener(broadcaster)
	service := services.NewChatService(log, registry, broadcaster, nil, nil, services.Config{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	listener := tcp.NewListener(log, ln, service)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = listener.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		listener.Wait(time.Second)
	})
	return ln.Addr().(*net.TCPAddr).Port
}

type inbox chan domain.Message

func (in inbox) handle(msg domain.Message) { in <- msg }

func (in inbox) next(t *testing.T, kind domain.Kind) domain.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-in:
			if msg.Kind() == kind {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %s received", kind)
		}
	}
}

func TestConnect_Receives_User_List_First(t *testing.T) {
	req := require.New(t)
	port := startRelay(t)
	messages := make(inbox, 16)

	c, err := Connect(context.Background(), "127.0.0.1", port, "alice", messages.handle)
	req.NoError(err)
	defer c.Disconnect()

	first := <-messages
	req.Equal(domain.UserList, first.Kind())
	req.Equal([]string{"alice"}, first.Usernames())
	req.Equal("alice", c.Username())
}

func TestConnect_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	port := startRelay(t)

	alice, err := Connect(context.Background(), "127.0.0.1", port, "alice", nil)
	req.NoError(err)
	defer alice.Disconnect()

	_, err = Connect(context.Background(), "127.0.0.1", port, "alice", nil)
	req.ErrorIs(err, errors.ErrConnect)
	req.Contains(err.Error(), services.ReasonUsernameTaken)
}

func TestConnect_No_Server(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	_, err = Connect(context.Background(), "127.0.0.1", port, "alice", nil)
	require.ErrorIs(t, err, errors.ErrConnect)
}

func TestClient_SendText_Reaches_Others(t *testing.T) {
	req := require.New(t)
	port := startRelay(t)
	aliceInbox, bobInbox := make(inbox, 16), make(inbox, 16)

	alice, err := Connect(context.Background(), "127.0.0.1", port, "alice", aliceInbox.handle)
	req.NoError(err)
	defer alice.Disconnect()
	bob, err := Connect(context.Background(), "127.0.0.1", port, "bob", bobInbox.handle)
	req.NoError(err)
	defer bob.Disconnect()

	req.Equal("bob", aliceInbox.next(t, domain.UserJoined).Content())

	req.NoError(alice.SendText("hi bob"))
	msg := bobInbox.next(t, domain.Text)
	req.Equal("alice", msg.Sender())
	req.Equal("hi bob", msg.Content())
}

func TestClient_Disconnect(t *testing.T) {
	req := require.New(t)
	port := startRelay(t)
	aliceInbox := make(inbox, 16)

	alice, err := Connect(context.Background(), "127.0.0.1", port, "alice", aliceInbox.handle)
	req.NoError(err)
	bob, err := Connect(context.Background(), "127.0.0.1", port, "bob", nil)
	req.NoError(err)

	req.NoError(bob.Disconnect())
	req.NoError(bob.Disconnect())
	select {
	case <-bob.Done():
	case <-time.After(2 * time.Second):
		req.Fail("listening goroutine should stop")
	}
	req.ErrorIs(bob.SendText("too late"), errors.ErrSendFailed)

	req.Equal("bob", aliceInbox.next(t, domain.UserLeft).Content())
	req.NoError(alice.Disconnect())
}

func TestClient_Connection_Lost(t *testing.T) {
	req := require.New(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	defer ln.Close()

	// a server that answers the handshake then hangs up
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := codec.NewReader(conn, 0).Read(); err != nil {
			return
		}
		_ = codec.WriteFrame(conn, domain.NewUserList([]string{"alice"}))
	}()

	messages := make(inbox, 4)
	c, err := Connect(context.Background(), "127.0.0.1", ln.Addr().(*net.TCPAddr).Port, "alice", messages.handle)
	req.NoError(err)

	req.Equal(domain.UserList, messages.next(t, domain.UserList).Kind())
	lost := messages.next(t, domain.Disconnect)
	req.Equal(ReasonConnectionLost, lost.Content())
	<-c.Done()
}
