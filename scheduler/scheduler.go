// Package scheduler drives the adjudication loop: generate a challenge,
// dispatch it, collect flight plans until the deadline, replay and score
// each submission, fold scores into trust and publish the signed
// snapshot. Rounds are strictly sequential; only the per-participant
// replays inside a round run in parallel.
package scheduler

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mathrand "math/rand"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/swarmnet/arbiter/audit"
	"github.com/swarmnet/arbiter/challenge"
	"github.com/swarmnet/arbiter/dispatch"
	"github.com/swarmnet/arbiter/ledger"
	"github.com/swarmnet/arbiter/logging"
	"github.com/swarmnet/arbiter/mapgen"
	"github.com/swarmnet/arbiter/replay"
	"github.com/swarmnet/arbiter/reward"
	"github.com/swarmnet/arbiter/signing"
	"github.com/swarmnet/arbiter/trust"
)

// Phase is the scheduler's position in the round state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseGenerating
	PhaseDispatching
	PhaseCollecting
	PhaseReplaying
	PhaseScoring
	PhaseAggregating
	PhasePublishing
	PhaseSleeping
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseGenerating:
		return "generating"
	case PhaseDispatching:
		return "dispatching"
	case PhaseCollecting:
		return "collecting"
	case PhaseReplaying:
		return "replaying"
	case PhaseScoring:
		return "scoring"
	case PhaseAggregating:
		return "aggregating"
	case PhasePublishing:
		return "publishing"
	case PhaseSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

type Scheduler struct {
	cfg     Config
	gen     *mapgen.Generator
	engine  *replay.Engine
	catalog *challenge.Catalog
	store   *trust.Store
	channel dispatch.Channel
	ledger  ledger.Client
	audits  *audit.Store
	clock   clock.Clock
	privKey ed25519.PrivateKey

	mu    sync.Mutex
	phase Phase
	round uint64
}

type Option func(*newSchedulerOptions)

type newSchedulerOptions struct {
	audits  *audit.Store
	clock   clock.Clock
	privKey ed25519.PrivateKey
}

// WithAuditStore enables best-effort per-round evidence archiving.
func WithAuditStore(store *audit.Store) Option {
	return func(opts *newSchedulerOptions) {
		opts.audits = store
	}
}

func WithClock(c clock.Clock) Option {
	return func(opts *newSchedulerOptions) {
		opts.clock = c
	}
}

func WithPrivateKey(privKey ed25519.PrivateKey) Option {
	return func(opts *newSchedulerOptions) {
		opts.privKey = privKey
	}
}

func New(
	ctx context.Context,
	cfg Config,
	catalog *challenge.Catalog,
	store *trust.Store,
	channel dispatch.Channel,
	ledgerClient ledger.Client,
	opts ...Option,
) (*Scheduler, error) {
	options := newSchedulerOptions{clock: clock.New()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.privKey == nil {
		logging.FromContext(ctx).Info("generating new keys")
		_, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("generating private key: %w", err)
		}
		options.privKey = priv
	}
	if cfg.SampleSize <= 0 {
		return nil, fmt.Errorf("sample size must be positive")
	}
	if cfg.ReplayWorkers <= 0 {
		cfg.ReplayWorkers = DefaultConfig().ReplayWorkers
	}

	gen, err := mapgen.New()
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		cfg:     cfg,
		gen:     gen,
		engine:  replay.NewEngine(catalog),
		catalog: catalog,
		store:   store,
		channel: channel,
		ledger:  ledgerClient,
		audits:  options.audits,
		clock:   options.clock,
		privKey: options.privKey,
	}, nil
}

func (s *Scheduler) Pubkey() ed25519.PublicKey {
	return s.privKey.Public().(ed25519.PublicKey)
}

// Status returns the current round index and phase.
func (s *Scheduler) Status() (round uint64, phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round, s.phase
}

func (s *Scheduler) enterPhase(round uint64, phase Phase) {
	s.mu.Lock()
	s.round = round
	s.phase = phase
	s.mu.Unlock()
}

// RunForever loops rounds until the context is canceled. An abandoned
// round only delays trust updates, so failures are logged and the loop
// carries on after the poll interval.
func (s *Scheduler) RunForever(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("scheduler")
	ctx = logging.NewContext(ctx, logger)

	for {
		if err := s.RunOneRound(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("round abandoned", zap.Error(err))
			roundsMetric.WithLabelValues("abandoned").Inc()
		} else {
			roundsMetric.WithLabelValues("completed").Inc()
		}

		s.enterPhase(s.store.Round(), PhaseSleeping)
		timer := s.clock.Timer(s.cfg.PollInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
		s.enterPhase(s.store.Round(), PhaseIdle)
	}
}

// RunOneRound executes a single round end to end. A returned error means
// the round was abandoned without mutating trust state; per-participant
// failures never surface here.
func (s *Scheduler) RunOneRound(ctx context.Context) error {
	round := s.store.Round() + 1
	logger := logging.FromContext(ctx).With(zap.Uint64("round", round))
	ctx = logging.NewContext(ctx, logger)

	// Generating.
	s.enterPhase(round, PhaseGenerating)
	done := timePhase(PhaseGenerating)
	seed, err := drawSeed()
	if err != nil {
		return multierror.Prefix(err, "generating:")
	}
	spec, err := s.gen.Generate(seed, s.cfg.Tier)
	if err != nil {
		return multierror.Prefix(err, "generating:")
	}
	participants, err := s.ledger.Participants(ctx)
	if err != nil {
		return multierror.Prefix(err, "generating:")
	}
	sampled := sampleParticipants(seed, participants, s.cfg.SampleSize)
	done()
	logger.Info("generated challenge",
		zap.Object("challenge", spec),
		zap.String("challenge_id", spec.ID()),
		zap.Int("sampled", len(sampled)),
	)

	// Dispatching.
	s.enterPhase(round, PhaseDispatching)
	done = timePhase(PhaseDispatching)
	handle, err := s.channel.Broadcast(ctx, spec, sampled)
	done()
	if err != nil {
		return multierror.Prefix(err, "dispatching:")
	}

	// Collecting. Late responses are discarded by the channel.
	s.enterPhase(round, PhaseCollecting)
	done = timePhase(PhaseCollecting)
	plans, err := s.channel.Collect(ctx, handle, s.clock.Now().Add(s.cfg.CollectTimeout))
	done()
	if err != nil {
		return multierror.Prefix(err, "collecting:")
	}
	logger.Info("collected flight plans", zap.Int("received", len(plans)))

	// Replaying and Scoring, in parallel across participants. Absent
	// participants flow through the same path with a nil plan and come
	// out at the minimum score.
	s.enterPhase(round, PhaseReplaying)
	done = timePhase(PhaseReplaying)
	scores, rows := s.replayAll(ctx, spec, sampled, plans)
	done()

	s.enterPhase(round, PhaseScoring)
	bundle := audit.NewBundle(round, spec, rows)
	root, err := bundle.EvidenceRoot()
	if err != nil {
		// The root is auditability metadata; losing it does not invalidate
		// the scores.
		logger.Warn("failed to compute evidence root", zap.Error(err))
		root = nil
	}

	// Aggregating.
	s.enterPhase(round, PhaseAggregating)
	done = timePhase(PhaseAggregating)
	ids := make([]string, len(sampled))
	for i, p := range sampled {
		ids[i] = string(p)
	}
	pending, err := s.store.BeginRound(round, scores, ids, root)
	done()
	if err != nil {
		return multierror.Prefix(err, "aggregating:")
	}

	// Publishing, all or nothing: the new trust values are committed only
	// after the ledger accepted the snapshot.
	s.enterPhase(round, PhasePublishing)
	done = timePhase(PhasePublishing)
	defer done()
	signed, err := signing.Sign(*pending.Snapshot(), s.privKey, s.Pubkey())
	if err != nil {
		return multierror.Prefix(err, "publishing:")
	}
	if err := s.ledger.Publish(ctx, signed); err != nil {
		return multierror.Prefix(err, "publishing:")
	}
	if err := s.store.Commit(pending); err != nil {
		// The snapshot is out but the local base did not advance; the next
		// round will re-aggregate from the same base.
		return multierror.Prefix(err, "publishing:")
	}
	logger.Info("published trust snapshot", zap.Object("snapshot", *pending.Snapshot()))

	if s.audits != nil {
		if _, err := s.audits.SaveBundle(ctx, bundle, root); err != nil {
			logger.Warn("failed to archive evidence bundle", zap.Error(err))
		}
	}
	return nil
}

// replayAll replays and scores every sampled participant. Each replay is
// independent; a panic in one is converted into that participant's
// minimum score and affects nobody else.
func (s *Scheduler) replayAll(
	ctx context.Context,
	spec challenge.Spec,
	sampled []dispatch.Participant,
	plans map[dispatch.Participant]*challenge.FlightPlan,
) (map[string]float64, []audit.Row) {
	var mu sync.Mutex
	scores := make(map[string]float64, len(sampled))
	rows := make([]audit.Row, 0, len(sampled))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.ReplayWorkers)
	for _, id := range sampled {
		id := id
		plan := plans[id]
		eg.Go(func() error {
			result, score := s.replayOne(ctx, spec, id, plan)

			if plan == nil {
				submissionsMetric.WithLabelValues("absent").Inc()
			} else {
				submissionsMetric.WithLabelValues(result.Termination.String()).Inc()
			}
			scoresMetric.Observe(score)

			row := audit.Row{Participant: string(id), Result: result, Score: score}
			if plan != nil {
				row.PlanDigest = plan.Digest()
			}
			mu.Lock()
			scores[string(id)] = score
			rows = append(rows, row)
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; failures are scores.
	_ = eg.Wait()
	return scores, rows
}

func (s *Scheduler) replayOne(
	ctx context.Context,
	spec challenge.Spec,
	id dispatch.Participant,
	plan *challenge.FlightPlan,
) (result replay.Result, score float64) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("replay panicked",
				zap.String("participant", string(id)), zap.Any("panic", r))
			result = replay.Result{Termination: replay.TerminationInvalid}
			score = reward.MinScore
		}
	}()

	result = s.engine.Replay(ctx, spec, plan)
	prof, _ := s.catalog.Lookup(planCapability(plan))
	score = reward.Score(result, spec, prof)
	return result, score
}

func planCapability(plan *challenge.FlightPlan) string {
	if plan == nil {
		return ""
	}
	return plan.Capability
}

// drawSeed picks a fresh round seed from the system entropy source. The
// seed, not the entropy, is what auditors need: re-running the generator
// with the published seed reproduces the challenge.
func drawSeed() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("drawing round seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) &^ (1 << 63)), nil
}

// sampleParticipants deterministically samples up to k participants from
// the seeded PRNG, so the sampled set can be re-derived during disputes.
func sampleParticipants(seed int64, participants []dispatch.Participant, k int) []dispatch.Participant {
	sorted := make([]dispatch.Participant, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rng := mathrand.New(mathrand.NewSource(seed))
	rng.Shuffle(len(sorted), func(i, j int) {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
