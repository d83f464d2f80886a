package e2e

import (
	"chat-relay/client"
	"chat-relay/domain"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR is not set, skipping end-to-end suite")
	}
}

// Header prints a colorized step header in the test logs
func (s *BaseRelaySuite) Header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Inbox records every message a client received.
type Inbox struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (in *Inbox) Handle(msg domain.Message) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.messages = append(in.messages, msg)
}

func (in *Inbox) Messages() []domain.Message {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]domain.Message(nil), in.messages...)
}

// Find returns the messages of the given kind.
func (in *Inbox) Find(kind domain.Kind) []domain.Message {
	var found []domain.Message
	for _, m := range in.Messages() {
		if m.Kind() == kind {
			found = append(found, m)
		}
	}
	return found
}

// Join connects username to the relay under test. The client is disconnected when the test ends.
func (s *BaseRelaySuite) Join(username string) (*client.Client, *Inbox) {
	host, rawPort, err := net.SplitHostPort(s.Config.RelayAddr)
	s.Require().NoError(err)
	port, err := strconv.Atoi(rawPort)
	s.Require().NoError(err)

	s.Header(s.T(), "Joining as "+username)
	inbox := &Inbox{}
	ctx, cancel := context.WithTimeout(context.Background(), s.Config.Timeout)
	defer cancel()
	c, err := client.Connect(ctx, host, port, username, inbox.Handle, client.WithHandshakeTimeout(s.Config.Timeout))
	s.Require().NoError(err, "Failed to join relay at "+s.Config.RelayAddr)
	s.T().Cleanup(func() { _ = c.Disconnect() })
	return c, inbox
}

// WaitFor waits for condition within the configured timeout.
func (s *BaseRelaySuite) WaitFor(condition func() bool, msg string) {
	s.Require().Eventually(condition, s.Config.Timeout, 20*time.Millisecond, msg)
}

// WithHealth provides a gRPC health client within a contextual test step
func (s *BaseRelaySuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	if s.Config.HealthAddr == "" {
		s.T().Skip("HEALTH_ADDR is not set")
	}
	s.Header(s.T(), name)
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to health endpoint at "+s.Config.HealthAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.Config.Timeout)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}
