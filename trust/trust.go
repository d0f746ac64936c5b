// Package trust maintains the per-participant moving-average trust state
// and its round checkpoints. The store is the only writer of trust
// values; each round mutates it in a single atomic commit after the
// round's snapshot was published.
package trust

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/swarmnet/arbiter/reward"
)

const (
	// NeutralTrust is the initial value of a participant seen for the
	// first time, the midpoint of the score range.
	NeutralTrust = 0.5

	// DefaultAlpha is the EMA smoothing factor.
	DefaultAlpha = 0.20
)

var (
	ErrStaleRound = errors.New("round is not newer than the last aggregated round")
)

// Entry is one participant's trust state.
type Entry struct {
	Value        float64
	UpdatedRound uint64
}

// Store owns the trust state. Reads are safe concurrently with each
// other; Commit is the single write phase per round.
type Store struct {
	alpha float64
	db    *leveldb.DB

	mu     sync.RWMutex
	round  uint64
	values map[string]Entry
}

// NewStore opens (or creates) the trust database under dbdir and loads
// the latest checkpoint. alpha must be in (0, 1].
func NewStore(dbdir string, alpha float64) (*Store, error) {
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("smoothing factor must be in (0, 1], got %v", alpha)
	}
	db, err := leveldb.OpenFile(dbdir, nil)
	if err != nil {
		return nil, fmt.Errorf("opening trust db: %w", err)
	}

	s := &Store{
		alpha:  alpha,
		db:     db,
		values: make(map[string]Entry),
	}
	if err := s.loadLatest(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Round returns the last aggregated round index.
func (s *Store) Round() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.round
}

// Value returns a participant's current trust, or the neutral value if
// unknown.
func (s *Store) Value(participant string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.values[participant]; ok {
		return e.Value
	}
	return NeutralTrust
}

// Pending is a computed but uncommitted round aggregation. It lets the
// scheduler publish the snapshot first and only install the new values
// once publication succeeded, so a failed publish leaves the store at the
// pre-round base.
type Pending struct {
	round    uint64
	entries  map[string]Entry
	snapshot *Snapshot
}

func (p *Pending) Snapshot() *Snapshot { return p.snapshot }

// BeginRound folds one round of scores into a pending aggregation.
// Sampled participants absent from scores are folded in at the minimum
// score; silence is never a winning strategy. Participants seen for the
// first time start at the neutral value before their first fold.
func (s *Store) BeginRound(
	round uint64,
	scores map[string]float64,
	sampled []string,
	evidenceRoot []byte,
) (*Pending, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if round <= s.round {
		return nil, fmt.Errorf("%w: %d <= %d", ErrStaleRound, round, s.round)
	}

	entries := make(map[string]Entry, len(s.values)+len(sampled))
	for id, e := range s.values {
		entries[id] = e
	}
	for _, id := range sampled {
		score, ok := scores[id]
		if !ok {
			score = reward.MinScore
		}
		prev, ok := entries[id]
		if !ok {
			prev = Entry{Value: NeutralTrust}
		}
		entries[id] = Entry{
			Value:        (1-s.alpha)*prev.Value + s.alpha*score,
			UpdatedRound: round,
		}
	}

	return &Pending{
		round:    round,
		entries:  entries,
		snapshot: makeSnapshot(round, evidenceRoot, entries),
	}, nil
}

// Commit atomically installs a pending aggregation and checkpoints it.
func (s *Store) Commit(p *Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.round <= s.round {
		return fmt.Errorf("%w: %d <= %d", ErrStaleRound, p.round, s.round)
	}
	if err := s.saveCheckpoint(p.round, p.entries); err != nil {
		return fmt.Errorf("checkpointing round %d: %w", p.round, err)
	}
	s.round = p.round
	s.values = p.entries
	return nil
}

// Snapshot returns an immutable view of the committed trust vector.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return makeSnapshot(s.round, nil, s.values)
}

func makeSnapshot(round uint64, evidenceRoot []byte, values map[string]Entry) *Snapshot {
	entries := make([]SnapshotEntry, 0, len(values))
	for id, e := range values {
		entries = append(entries, SnapshotEntry{Participant: id, Value: e.Value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Participant < entries[j].Participant })
	return &Snapshot{
		Round:        round,
		EvidenceRoot: append([]byte(nil), evidenceRoot...),
		Entries:      entries,
	}
}
