// Package audit preserves per-round evidence so a dispute can re-derive
// exactly what was scored: the challenge spec, each scored plan's digest,
// its replay outcome and its score. A merkle root over the rows travels
// inside the published snapshot; the bundles and the index stay local.
package audit

import (
	"fmt"
	"sort"

	"github.com/minio/sha256-simd"
	"github.com/spacemeshos/merkle-tree"

	"github.com/swarmnet/arbiter/challenge"
	"github.com/swarmnet/arbiter/replay"
	"github.com/swarmnet/arbiter/util"
)

// Row is one participant's evidence for a round.
type Row struct {
	Participant string
	PlanDigest  string // empty for absent participants
	Result      replay.Result
	Score       float64
}

// Bundle is the full evidence of one round.
type Bundle struct {
	Round uint64
	Spec  challenge.Spec
	Rows  []Row
}

// NewBundle builds a bundle with rows sorted by participant, so the
// evidence root is independent of scoring order.
func NewBundle(round uint64, spec challenge.Spec, rows []Row) *Bundle {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Participant < sorted[j].Participant })
	return &Bundle{Round: round, Spec: spec, Rows: sorted}
}

// hashEvidenceTreeNode calculates an internal node of the evidence
// merkle tree.
func hashEvidenceTreeNode(buf, lChild, rChild []byte) []byte {
	hasher := sha256.New()
	_, _ = hasher.Write([]byte{0x01})
	_, _ = hasher.Write(lChild)
	_, _ = hasher.Write(rChild)
	return hasher.Sum(buf)
}

// EvidenceRoot computes the merkle root over the bundle's rows. Stable
// across re-derivation from the same inputs.
func (b *Bundle) EvidenceRoot() ([]byte, error) {
	mtree, err := merkle.NewTreeBuilder().
		WithHashFunc(hashEvidenceTreeNode).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize merkle tree: %v", err)
	}

	for _, row := range b.Rows {
		leaf, err := util.Encode(&row)
		if err != nil {
			return nil, fmt.Errorf("encoding evidence row: %w", err)
		}
		sum := sha256.Sum256(leaf)
		if err := mtree.AddLeaf(sum[:]); err != nil {
			return nil, err
		}
	}

	return mtree.Root(), nil
}
