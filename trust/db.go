package trust

import (
	"errors"
	"fmt"
	"sort"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/swarmnet/arbiter/util"
)

var latestCheckpointKey = []byte("checkpoint/latest")

func roundCheckpointKey(round uint64) []byte {
	return []byte(fmt.Sprintf("checkpoint/%020d", round))
}

// checkpoint is the persisted form of the trust state. Entries are
// sorted by participant so the encoding is canonical.
type checkpoint struct {
	Round   uint64
	Entries []persistedEntry
}

type persistedEntry struct {
	Participant  string
	Value        float64
	UpdatedRound uint64
}

// saveCheckpoint writes the full state under both the latest key and a
// per-round key in one synced batch. Called with the write lock held.
func (s *Store) saveCheckpoint(round uint64, values map[string]Entry) error {
	cp := checkpoint{Round: round, Entries: make([]persistedEntry, 0, len(values))}
	for id, e := range values {
		cp.Entries = append(cp.Entries, persistedEntry{
			Participant:  id,
			Value:        e.Value,
			UpdatedRound: e.UpdatedRound,
		})
	}
	sort.Slice(cp.Entries, func(i, j int) bool { return cp.Entries[i].Participant < cp.Entries[j].Participant })

	data, err := util.Encode(&cp)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put(latestCheckpointKey, data)
	batch.Put(roundCheckpointKey(round), data)
	return s.db.Write(batch, &opt.WriteOptions{Sync: true})
}

// loadLatest restores the state from the latest checkpoint, if any.
func (s *Store) loadLatest() error {
	data, err := s.db.Get(latestCheckpointKey, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("reading trust checkpoint: %w", err)
	}

	var cp checkpoint
	if err := util.Decode(data, &cp); err != nil {
		return fmt.Errorf("decoding trust checkpoint: %w", err)
	}

	s.round = cp.Round
	s.values = make(map[string]Entry, len(cp.Entries))
	for _, e := range cp.Entries {
		s.values[e.Participant] = Entry{Value: e.Value, UpdatedRound: e.UpdatedRound}
	}
	return nil
}
