//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Session is one live client connection as seen by the registry and the broadcaster.
type Session interface {
	ID() string
	Username() string
	// Send queues the message for the peer. It fails with errors.ErrSendFailed when the
	// peer cannot take it any more; the session is then scheduled for teardown.
	Send(msg domain.Message) error
	// Disconnect tells the peer why it is dropped, then closes the session.
	Disconnect(reason string) error
	// Close is idempotent.
	Close() error
}

// PresenceListener is notified after each successful registry mutation, outside the registry lock.
type PresenceListener interface {
	OnRegistered(username string)
	OnUnregistered(username string)
}

type IRegistry interface {
	Register(username string, session Session) bool
	Unregister(username string)
	SnapshotUsernames() []string
	Snapshot() map[string]Session
	Lookup(username string) (Session, bool)
}

type IBroadcaster interface {
	BroadcastExcept(msg domain.Message, excludedUsername string) int
	BroadcastUserList()
	AnnounceJoin(username string)
	AnnounceLeave(username string)
	SendTo(username string, msg domain.Message) error
}
