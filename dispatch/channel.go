// Package dispatch carries challenges out to participants and flight
// plans back in. The transport is unreliable by contract: broadcasts may
// be lost and responses may never arrive; the scheduler compensates with
// its collect deadline, never the channel.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/swarmnet/arbiter/challenge"
)

// Participant identifies one registered participant.
type Participant string

// Handle correlates a broadcast with its collection. Opaque to callers.
type Handle struct {
	id          uuid.UUID
	challengeID string
	audience    map[Participant]struct{}
}

func (h *Handle) ChallengeID() string { return h.challengeID }

func newHandle(challengeID string, participants []Participant) *Handle {
	audience := make(map[Participant]struct{}, len(participants))
	for _, p := range participants {
		audience[p] = struct{}{}
	}
	return &Handle{
		id:          uuid.New(),
		challengeID: challengeID,
		audience:    audience,
	}
}

// Channel fans a challenge out to participants and collects their plans.
type Channel interface {
	// Broadcast sends the challenge to the given participants. Delivery is
	// best-effort.
	Broadcast(ctx context.Context, spec challenge.Spec, participants []Participant) (*Handle, error)

	// Collect gathers flight plans for a broadcast until the deadline.
	// Participants that did not answer in time are simply absent from the
	// result; responses arriving later are discarded. The first submission
	// per participant wins.
	Collect(ctx context.Context, handle *Handle, deadline time.Time) (map[Participant]*challenge.FlightPlan, error)
}
