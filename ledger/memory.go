package ledger

import (
	"context"
	"sync"

	"github.com/swarmnet/arbiter/dispatch"
	"github.com/swarmnet/arbiter/signing"
	"github.com/swarmnet/arbiter/trust"
)

// InMemory is a Client for tests and standalone mode. It serves a fixed
// participant set and records every published snapshot.
type InMemory struct {
	mu           sync.Mutex
	participants []dispatch.Participant
	published    []signing.Signed[trust.Snapshot]
	publishErr   error
}

func NewInMemory(participants ...dispatch.Participant) *InMemory {
	return &InMemory{participants: participants}
}

func (m *InMemory) Participants(ctx context.Context) ([]dispatch.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dispatch.Participant(nil), m.participants...), nil
}

func (m *InMemory) Publish(ctx context.Context, snapshot signing.Signed[trust.Snapshot]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, snapshot)
	return nil
}

// Published returns the snapshots published so far.
func (m *InMemory) Published() []signing.Signed[trust.Snapshot] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]signing.Signed[trust.Snapshot](nil), m.published...)
}

// FailPublishWith makes subsequent Publish calls return err (nil to
// restore normal operation).
func (m *InMemory) FailPublishWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

// SetParticipants replaces the served participant set.
func (m *InMemory) SetParticipants(participants ...dispatch.Participant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants = participants
}
