package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swarmnet/arbiter/challenge"
	"github.com/swarmnet/arbiter/logging"
)

type submission struct {
	from Participant
	plan *challenge.FlightPlan
}

// InMemory is an in-memory implementation of Channel. It binds the
// scheduler with in-process participants in a standalone mode and in
// tests by plain channels.
type InMemory struct {
	mu          sync.Mutex
	subscribers map[Participant]chan challenge.Spec
	inbox       chan submission
}

func NewInMemory() *InMemory {
	return &InMemory{
		subscribers: make(map[Participant]chan challenge.Spec),
		inbox:       make(chan submission, 64),
	}
}

// Subscribe registers a participant and returns the channel its
// challenges arrive on.
func (m *InMemory) Subscribe(id Participant) <-chan challenge.Spec {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.subscribers[id]
	if !ok {
		ch = make(chan challenge.Spec, 1)
		m.subscribers[id] = ch
	}
	return ch
}

// Submit delivers a participant's flight plan to the arbiter side.
func (m *InMemory) Submit(ctx context.Context, id Participant, plan *challenge.FlightPlan) error {
	select {
	case m.inbox <- submission{from: id, plan: plan}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Implement Channel.
func (m *InMemory) Broadcast(
	ctx context.Context,
	spec challenge.Spec,
	participants []Participant,
) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger := logging.FromContext(ctx)
	for _, p := range participants {
		ch, ok := m.subscribers[p]
		if !ok {
			continue
		}
		select {
		case ch <- spec:
		default:
			logger.Debug("participant not draining challenges - dropping", zap.String("participant", string(p)))
		}
	}
	return newHandle(spec.ID(), participants), nil
}

func (m *InMemory) Collect(
	ctx context.Context,
	handle *Handle,
	deadline time.Time,
) (map[Participant]*challenge.FlightPlan, error) {
	logger := logging.FromContext(ctx)
	plans := make(map[Participant]*challenge.FlightPlan)

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for len(plans) < len(handle.audience) {
		select {
		case sub := <-m.inbox:
			if _, allowed := handle.audience[sub.from]; !allowed {
				logger.Debug("dropping submission from unsampled participant", zap.String("participant", string(sub.from)))
				continue
			}
			if sub.plan == nil || sub.plan.ChallengeID != handle.challengeID {
				logger.Debug("dropping submission for a different challenge", zap.String("participant", string(sub.from)))
				continue
			}
			if _, dup := plans[sub.from]; dup {
				continue
			}
			plans[sub.from] = sub.plan
		case <-timer.C:
			return plans, nil
		case <-ctx.Done():
			return plans, ctx.Err()
		}
	}
	return plans, nil
}
