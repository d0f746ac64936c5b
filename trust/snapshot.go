package trust

import "go.uber.org/zap/zapcore"

// SnapshotEntry is one participant's published trust value.
type SnapshotEntry struct {
	Participant string
	Value       float64
}

// Snapshot is an immutable, sorted view of the trust vector after a
// round, carrying the round's evidence root for external auditability.
// It is what gets signed and handed to the ledger client.
type Snapshot struct {
	Round        uint64
	EvidenceRoot []byte
	Entries      []SnapshotEntry
}

// Values returns the trust values in entry order.
func (s *Snapshot) Values() []float64 {
	values := make([]float64, len(s.Entries))
	for i, e := range s.Entries {
		values[i] = e.Value
	}
	return values
}

// implement zap.ObjectMarshaler interface.
func (s Snapshot) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("round", s.Round)
	enc.AddInt("participants", len(s.Entries))
	enc.AddBinary("evidence_root", s.EvidenceRoot)
	return nil
}
