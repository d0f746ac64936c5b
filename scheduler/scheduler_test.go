package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/swarmnet/arbiter/challenge"
	"github.com/swarmnet/arbiter/dispatch"
	"github.com/swarmnet/arbiter/ledger"
	"github.com/swarmnet/arbiter/logging"
	"github.com/swarmnet/arbiter/signing"
	"github.com/swarmnet/arbiter/trust"
	"github.com/swarmnet/arbiter/world"
)

func testContext(t *testing.T) context.Context {
	return logging.NewContext(context.Background(), zaptest.NewLogger(t))
}

func newTestScheduler(
	t *testing.T,
	channel dispatch.Channel,
	ledgerClient ledger.Client,
	opts ...Option,
) (*Scheduler, *trust.Store) {
	t.Helper()
	store, err := trust.NewStore(filepath.Join(t.TempDir(), "trust"), trust.DefaultAlpha)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := DefaultConfig()
	cfg.CollectTimeout = 200 * time.Millisecond
	cfg.PollInterval = time.Minute
	sched, err := New(testContext(t), cfg, challenge.DefaultCatalog(), store, channel, ledgerClient, opts...)
	require.NoError(t, err)
	return sched, store
}

// hoverFor answers every challenge on ch with a plan that hovers at the
// start position for the whole horizon.
func hoverFor(ctx context.Context, channel *dispatch.InMemory, id dispatch.Participant) {
	inbox := channel.Subscribe(id)
	go func() {
		for {
			var spec challenge.Spec
			select {
			case spec = <-inbox:
			case <-ctx.Done():
				return
			}
			plan := &challenge.FlightPlan{
				ChallengeID: spec.ID(),
				Capability:  "courier",
				Commands:    []challenge.ControlSample{{Thrust: world.Vec3{Z: 1.2 * 9.81}}},
			}
			_ = channel.Submit(ctx, id, plan)
		}
	}()
}

func TestRunOneRound(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()

	channel := dispatch.NewInMemory()
	led := ledger.NewInMemory("alice", "bob")
	sched, store := newTestScheduler(t, channel, led)

	// Alice answers every challenge; bob stays silent.
	hoverFor(ctx, channel, "alice")

	require.NoError(t, sched.RunOneRound(ctx))

	require.EqualValues(t, 1, store.Round())
	published := led.Published()
	require.Len(t, published, 1)

	snap := published[0].Data()
	require.EqualValues(t, 1, snap.Round)
	require.NotEmpty(t, snap.EvidenceRoot)
	require.Len(t, snap.Entries, 2)

	// The published snapshot must verify against its own pubkey.
	_, err := signing.New(*snap, published[0].Signature(), published[0].PubKey())
	require.NoError(t, err)
	require.EqualValues(t, sched.Pubkey(), published[0].PubKey())

	// A clean hover beats silence, and silence costs trust.
	require.Greater(t, store.Value("alice"), store.Value("bob"))
	require.Less(t, store.Value("bob"), trust.NeutralTrust)
}

func TestRunOneRoundIsolatesBadPlans(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()

	channel := dispatch.NewInMemory()
	led := ledger.NewInMemory("alice", "mallory")
	sched, store := newTestScheduler(t, channel, led)

	hoverFor(ctx, channel, "alice")

	// Mallory submits a plan for a made-up capability.
	malloryInbox := channel.Subscribe("mallory")
	go func() {
		spec := <-malloryInbox
		_ = channel.Submit(ctx, "mallory", &challenge.FlightPlan{
			ChallengeID: spec.ID(),
			Capability:  "death-star",
			Commands:    []challenge.ControlSample{{Thrust: world.Vec3{Z: 1}}},
		})
	}()

	require.NoError(t, sched.RunOneRound(ctx))

	// Mallory's garbage is scored at the bottom without affecting alice.
	require.Greater(t, store.Value("alice"), trust.NeutralTrust-0.1)
	require.Greater(t, store.Value("alice"), store.Value("mallory"))
}

func TestRunOneRoundPublishFailure(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()

	channel := dispatch.NewInMemory()
	led := ledger.NewInMemory("alice", "bob")
	led.FailPublishWith(errors.New("gateway down"))
	sched, store := newTestScheduler(t, channel, led)

	err := sched.RunOneRound(ctx)
	require.Error(t, err)

	// The failed round left no trace in the trust state.
	require.EqualValues(t, 0, store.Round())
	require.Equal(t, trust.NeutralTrust, store.Value("alice"))
	require.Equal(t, trust.NeutralTrust, store.Value("bob"))
	require.Empty(t, led.Published())
}

func TestRunForever(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()

	channel := dispatch.NewInMemory()
	led := ledger.NewInMemory("alice")
	mock := clock.NewMock()
	sched, store := newTestScheduler(t, channel, led, WithClock(mock))

	done := make(chan error, 1)
	go func() { done <- sched.RunForever(ctx) }()

	require.Eventually(t, func() bool { return store.Round() >= 1 }, 10*time.Second, 10*time.Millisecond)

	// After a completed round the loop parks on the poll timer.
	require.Eventually(t, func() bool {
		_, phase := sched.Status()
		return phase == PhaseSleeping
	}, 10*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSampleParticipants(t *testing.T) {
	t.Parallel()
	participants := make([]dispatch.Participant, 100)
	for i := range participants {
		participants[i] = dispatch.Participant(string(rune('a'+i%26)) + string(rune('0'+i/26)))
	}

	t.Run("deterministic for a seed", func(t *testing.T) {
		a := sampleParticipants(42, participants, 10)
		b := sampleParticipants(42, participants, 10)
		require.Equal(t, a, b)
		require.Len(t, a, 10)
	})
	t.Run("independent of input order", func(t *testing.T) {
		reversed := make([]dispatch.Participant, len(participants))
		for i, p := range participants {
			reversed[len(participants)-1-i] = p
		}
		require.Equal(t,
			sampleParticipants(42, participants, 10),
			sampleParticipants(42, reversed, 10),
		)
	})
	t.Run("varies with the seed", func(t *testing.T) {
		require.NotEqual(t,
			sampleParticipants(1, participants, 10),
			sampleParticipants(2, participants, 10),
		)
	})
	t.Run("small population", func(t *testing.T) {
		few := []dispatch.Participant{"alice", "bob"}
		require.ElementsMatch(t, few, sampleParticipants(7, few, 10))
	})
}
