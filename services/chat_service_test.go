package services

import (
	"chat-relay/codec"
	"chat-relay/domain"
	"chat-relay/runtime"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type peer struct {
	t      *testing.T
	conn   net.Conn
	reader *codec.Reader
	served chan struct{}
}

func (p *peer) send(msg domain.Message) {
	p.t.Helper()
	require.NoError(p.t, codec.WriteFrame(p.conn, msg))
}

func (p *peer) read() domain.Message {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := p.reader.Read()
	require.NoError(p.t, err)
	return msg
}

// readUntil skips presence traffic until a message of the given kind shows up.
func (p *peer) readUntil(kind domain.Kind) domain.Message {
	p.t.Helper()
	for {
		if msg := p.read(); msg.Kind() == kind {
			return msg
		}
	}
}

func (p *peer) expectEOF() {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := p.reader.Read()
	require.ErrorIs(p.t, err, io.EOF)
}

func (p *peer) waitServed() {
	p.t.Helper()
	select {
	case <-p.served:
	case <-time.After(2 * time.Second):
		p.t.Fatal("Serve did not return")
	}
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	registry *runtime.Registry
	service  *ChatService
}

func newFixture(t *testing.T, censor Censor) *fixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(log, registry, nil)
	registry.SetPresenceListener(broadcaster)
	service := NewChatService(log, registry, broadcaster, censor, nil,
		Config{HandshakeTimeout: time.Second})
	return &fixture{t: t, ctx: t.Context(), registry: registry, service: service}
}

func (f *fixture) dial(ctx context.Context) *peer {
	server, client := net.Pipe()
	p := &peer{t: f.t, conn: client, reader: codec.NewReader(client, 0), served: make(chan struct{})}
	go func() {
		defer close(p.served)
		f.service.Serve(ctx, server)
	}()
	f.t.Cleanup(func() { _ = client.Close() })
	return p
}

// join connects username and consumes its own user list.
func (f *fixture) join(username string) *peer {
	p := f.dial(f.ctx)
	p.send(domain.NewMessage(domain.Connect, username, ""))
	list := p.read()
	require.Equal(f.t, domain.UserList, list.Kind())
	require.Contains(f.t, list.Usernames(), username)
	return p
}

func TestChatService_Handshake_Registers_User(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	f.join("alice")

	_, ok := f.registry.Lookup("alice")
	req.True(ok)
}

func TestChatService_Handshake_Requires_Connect_First(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	p := f.dial(f.ctx)
	p.send(domain.NewMessage(domain.Text, "alice", "hi"))

	msg := p.read()
	req.Equal(domain.Disconnect, msg.Kind())
	req.Equal(ReasonProtocolError, msg.Content())
	p.expectEOF()
	p.waitServed()
	req.Empty(f.registry.SnapshotUsernames())
}

func TestChatService_Handshake_Invalid_Username(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	p := f.dial(f.ctx)
	p.send(domain.NewMessage(domain.Connect, "al,ice", ""))

	msg := p.read()
	req.Equal(domain.Disconnect, msg.Kind())
	req.True(strings.HasPrefix(msg.Content(), "invalid username: "), msg.Content())
	req.NotContains(msg.Content(), "invalid username: invalid username")
	p.expectEOF()
	req.Empty(f.registry.SnapshotUsernames())
}

func TestChatService_Handshake_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	first := f.join("alice")

	second := f.dial(f.ctx)
	second.send(domain.NewMessage(domain.Connect, "alice", ""))

	msg := second.read()
	req.Equal(domain.Disconnect, msg.Kind())
	req.Equal(ReasonUsernameTaken, msg.Content())
	second.expectEOF()
	second.waitServed()

	// the original session is untouched
	req.Equal([]string{"alice"}, f.registry.SnapshotUsernames())
	first.send(domain.NewMessage(domain.Disconnect, "alice", ""))
	first.expectEOF()
}

func TestChatService_Handshake_Malformed_Gets_No_Reply(t *testing.T) {
	f := newFixture(t, nil)

	p := f.dial(f.ctx)
	_, err := p.conn.Write([]byte{0, 0, 0, 1, 42})
	require.NoError(t, err)

	p.expectEOF()
	p.waitServed()
}

func TestChatService_Relay_Restamps_And_Excludes_Sender(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	alice := f.join("alice")
	bob := f.join("bob")
	alice.readUntil(domain.UserJoined)

	alice.send(domain.NewMessage(domain.Text, "mallory", "hello bob"))

	msg := bob.readUntil(domain.Text)
	req.Equal("alice", msg.Sender())
	req.Equal("hello bob", msg.Content())

	// alice does not get her own message back: the next thing she sees is bob leaving
	bob.send(domain.NewMessage(domain.Disconnect, "bob", ""))
	bob.expectEOF()
	req.Equal(domain.UserList, alice.read().Kind())
	left := alice.read()
	req.Equal(domain.UserLeft, left.Kind())
	req.Equal("bob", left.Content())
}

func TestChatService_Relay_Drops_Text_That_Outgrows_A_Frame(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	alice := f.join("alice")
	bob := f.join("bob")
	alice.readUntil(domain.UserJoined)

	// fits as sent, one byte too many once "alice" is stamped as the sender
	filler := strings.Repeat("x", codec.DefaultMaxFrameSize-codec.PayloadSize(domain.NewMessage(domain.Text, "", "")))
	alice.send(domain.NewMessage(domain.Text, "", filler))
	alice.send(domain.NewMessage(domain.Text, "alice", "still here"))

	msg := bob.readUntil(domain.Text)
	req.Equal("alice", msg.Sender())
	req.Equal("still here", msg.Content())
	req.ElementsMatch([]string{"alice", "bob"}, f.registry.SnapshotUsernames())
}

type wordCensor struct{}

func (wordCensor) Censor(content string) (string, []string) {
	if strings.Contains(content, "darn") {
		return strings.ReplaceAll(content, "darn", "****"), []string{"darn"}
	}
	return content, nil
}

func TestChatService_Relay_Censors_Text(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, wordCensor{})
	alice := f.join("alice")
	bob := f.join("bob")
	alice.readUntil(domain.UserJoined)

	alice.send(domain.NewMessage(domain.Text, "alice", "darn it"))

	req.Equal("**** it", bob.readUntil(domain.Text).Content())
}

func TestChatService_Disconnect_Unregisters(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	alice := f.join("alice")

	alice.send(domain.NewMessage(domain.Disconnect, "alice", ""))
	alice.expectEOF()
	alice.waitServed()

	req.Empty(f.registry.SnapshotUsernames())
}

func TestChatService_Peer_Lost_Unregisters(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	alice := f.join("alice")
	bob := f.join("bob")

	_ = bob.conn.Close()
	bob.waitServed()

	left := alice.readUntil(domain.UserLeft)
	req.Equal("bob", left.Content())
	req.Equal([]string{"alice"}, f.registry.SnapshotUsernames())
}

func TestChatService_Shutdown_Notifies_Peer(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	p := f.dial(ctx)
	p.send(domain.NewMessage(domain.Connect, "alice", ""))
	req.Equal(domain.UserList, p.read().Kind())

	cancel()

	msg := p.readUntil(domain.Disconnect)
	req.Equal(ReasonShuttingDown, msg.Content())
	p.expectEOF()
	p.waitServed()
	req.Empty(f.registry.SnapshotUsernames())
}
