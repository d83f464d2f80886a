package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
)

// FailureRecorder is told about every recipient that could not be reached.
type FailureRecorder interface {
	IncrSendFailures()
}

// Broadcaster delivers messages to the sessions of the registry.
//
// Delivery to each recipient is independent: one failing recipient is logged, closed,
// and skipped, it never aborts the broadcast for the others.
type Broadcaster struct {
	log      *slog.Logger
	registry contract.IRegistry
	failures FailureRecorder
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry, failures FailureRecorder) *Broadcaster {
	return &Broadcaster{log: log, registry: registry, failures: failures}
}

// BroadcastExcept sends msg to every registered session but excludedUsername.
// An empty excludedUsername, or one that is not registered, delivers to everyone.
// It returns the number of sessions that accepted the message.
func (b *Broadcaster) BroadcastExcept(msg domain.Message, excludedUsername string) int {
	delivered := 0
	for username, session := range b.registry.Snapshot() {
		if excludedUsername != "" && username == excludedUsername {
			continue
		}
		if err := session.Send(msg); err != nil {
			b.recordFailure(username, session, msg, err)
			continue
		}
		delivered++
	}
	b.log.Debug("Message broadcast",
		"kind", msg.Kind(), "sender", msg.Sender(), "excluded", excludedUsername, "delivered", delivered)
	return delivered
}

// BroadcastUserList sends the current online list to every session, the newest one included.
func (b *Broadcaster) BroadcastUserList() {
	b.BroadcastExcept(domain.NewUserList(b.registry.SnapshotUsernames()), "")
}

// AnnounceJoin tells everybody but the newcomer that username joined.
func (b *Broadcaster) AnnounceJoin(username string) {
	b.BroadcastExcept(domain.NewUserJoined(username), username)
}

// AnnounceLeave tells everybody that username left. The leaving session is already unregistered.
func (b *Broadcaster) AnnounceLeave(username string) {
	b.BroadcastExcept(domain.NewUserLeft(username), "")
}

// SendTo delivers msg to a single registered user.
func (b *Broadcaster) SendTo(username string, msg domain.Message) error {
	session, ok := b.registry.Lookup(username)
	if !ok {
		return fmt.Errorf("%w: %s is not online", errors.ErrSendFailed, username)
	}
	if err := session.Send(msg); err != nil {
		b.recordFailure(username, session, msg, err)
		return err
	}
	return nil
}

// OnRegistered runs right after a successful registration: list first, so the
// newcomer's own list includes itself, then the join announcement.
func (b *Broadcaster) OnRegistered(username string) {
	b.BroadcastUserList()
	b.AnnounceJoin(username)
}

// OnUnregistered runs right after a removal: refreshed list, then the leave announcement.
func (b *Broadcaster) OnUnregistered(username string) {
	b.BroadcastUserList()
	b.AnnounceLeave(username)
}

// recordFailure logs the failure and schedules the session for teardown.
// Closing ends its receive loop which unregisters it.
func (b *Broadcaster) recordFailure(username string, session contract.Session, msg domain.Message, err error) {
	level := slog.LevelWarn
	if stderrors.Is(err, errors.ErrTransportClosed) {
		// already on its way out
		level = slog.LevelDebug
	}
	b.log.Log(context.Background(), level, "Failed to deliver message",
		"username", username, "session_id", session.ID(), "kind", msg.Kind(), "error", err)
	if b.failures != nil {
		b.failures.IncrSendFailures()
	}
	_ = session.Close()
}
