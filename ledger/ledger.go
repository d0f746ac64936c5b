// Package ledger is the arbiter's narrow interface to the chain: who the
// participants are, and where signed trust snapshots get published. The
// core never assumes publication succeeds; a failed publish fails the
// round and is retried wholesale by the next one.
package ledger

import (
	"context"
	"errors"

	"github.com/swarmnet/arbiter/dispatch"
	"github.com/swarmnet/arbiter/signing"
	"github.com/swarmnet/arbiter/trust"
)

var (
	// ErrPublishRejected marks a permanent rejection; retrying the same
	// snapshot cannot succeed.
	ErrPublishRejected = errors.New("publication rejected")

	ErrPublishFailed = errors.New("could not publish trust snapshot")
)

type Client interface {
	// Participants returns the current set of registered participant ids.
	Participants(ctx context.Context) ([]dispatch.Participant, error)

	// Publish hands a signed trust snapshot to the chain.
	Publish(ctx context.Context, snapshot signing.Signed[trust.Snapshot]) error
}
