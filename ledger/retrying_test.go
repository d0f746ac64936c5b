package ledger

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swarmnet/arbiter/dispatch"
	"github.com/swarmnet/arbiter/signing"
	"github.com/swarmnet/arbiter/trust"
)

// flakyClient fails the first `failures` publishes with err.
type flakyClient struct {
	failures int
	err      error
	attempts int
}

func (c *flakyClient) Participants(ctx context.Context) ([]dispatch.Participant, error) {
	return nil, nil
}

func (c *flakyClient) Publish(ctx context.Context, snapshot signing.Signed[trust.Snapshot]) error {
	c.attempts++
	if c.attempts <= c.failures {
		return c.err
	}
	return nil
}

func testSnapshot(t *testing.T) signing.Signed[trust.Snapshot] {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	snap := trust.Snapshot{
		Round:   1,
		Entries: []trust.SnapshotEntry{{Participant: "alice", Value: 0.6}},
	}
	signed, err := signing.Sign(snap, priv, pub)
	require.NoError(t, err)
	return signed
}

func TestRetryingPublish(t *testing.T) {
	t.Parallel()
	snapshot := testSnapshot(t)

	t.Run("first attempt succeeds", func(t *testing.T) {
		client := &flakyClient{}
		r := NewRetrying(client, 3, time.Millisecond, 2)
		require.NoError(t, r.Publish(context.Background(), snapshot))
		require.Equal(t, 1, client.attempts)
	})
	t.Run("recovers from transient failures", func(t *testing.T) {
		client := &flakyClient{failures: 2, err: errors.New("gateway hiccup")}
		r := NewRetrying(client, 3, time.Millisecond, 2)
		require.NoError(t, r.Publish(context.Background(), snapshot))
		require.Equal(t, 3, client.attempts)
	})
	t.Run("gives up after max retries", func(t *testing.T) {
		client := &flakyClient{failures: 100, err: errors.New("gateway down")}
		r := NewRetrying(client, 3, time.Millisecond, 2)
		err := r.Publish(context.Background(), snapshot)
		require.ErrorIs(t, err, ErrPublishFailed)
		require.Equal(t, 3, client.attempts)
	})
	t.Run("permanent rejection is not retried", func(t *testing.T) {
		client := &flakyClient{failures: 100, err: ErrPublishRejected}
		r := NewRetrying(client, 3, time.Millisecond, 2)
		err := r.Publish(context.Background(), snapshot)
		require.ErrorIs(t, err, ErrPublishRejected)
		require.Equal(t, 1, client.attempts)
	})
	t.Run("canceled between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := &flakyClient{failures: 100, err: errors.New("gateway down")}
		r := NewRetrying(client, 3, time.Hour, 2)
		err := r.Publish(ctx, snapshot)
		require.ErrorIs(t, err, ErrPublishFailed)
		require.Equal(t, 1, client.attempts)
	})
}
