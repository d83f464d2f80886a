// Package runtime holds the shared state of the relay and its lifecycle.
// It orchestrates the system without containing transport details.
package runtime

import (
	"chat-relay/contract"
	"context"
	"log/slog"
	"sync"
)

type Orchestrator struct {
	mu          sync.Mutex
	log         *slog.Logger
	supervisor  contract.ISupervisor
	registry    *Registry
	broadcaster *Broadcaster
}

// NewOrchestrator wires the broadcaster as the presence listener of the registry,
// so that every registration and removal is announced exactly once.
func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry *Registry, failures FailureRecorder) *Orchestrator {
	broadcaster := NewBroadcaster(log, registry, failures)
	registry.SetPresenceListener(broadcaster)
	return &Orchestrator{
		log:         log,
		supervisor:  supervisor,
		registry:    registry,
		broadcaster: broadcaster,
	}
}

func (o *Orchestrator) Registry() *Registry       { return o.registry }
func (o *Orchestrator) Broadcaster() *Broadcaster { return o.broadcaster }

// Add registers workers to be supervised. It must be called before Start.
func (o *Orchestrator) Add(workers ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.supervisor.Add(workers...)
}

// Start runs every supervised worker and blocks until they all stopped.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// DisconnectAll tells every registered session that the relay goes away and closes it.
// Sessions unregister themselves once their receive loop observed the close.
func (o *Orchestrator) DisconnectAll(reason string) int {
	sessions := o.registry.Snapshot()
	for username, session := range sessions {
		if err := session.Disconnect(reason); err != nil {
			o.log.Debug("Could not notify session before shutdown", "username", username, "error", err)
		}
	}
	return len(sessions)
}

// Stop initiates a graceful shutdown: supervised workers are cancelled.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
