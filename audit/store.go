package audit

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/natefinch/atomic"
	_ "modernc.org/sqlite"

	"github.com/swarmnet/arbiter/util"
)

// Summary is what the operator API serves for one archived round.
type Summary struct {
	Round        uint64    `json:"round"`
	Seed         int64     `json:"seed"`
	Tier         string    `json:"tier"`
	Participants int       `json:"participants"`
	Scored       int       `json:"scored"`
	EvidenceRoot string    `json:"evidence_root"`
	BundlePath   string    `json:"bundle_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store archives round bundles on disk and indexes them in sqlite.
type Store struct {
	dir string
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// OpenStore opens (or creates) the audit store under dir.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating audit dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("opening audit index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS rounds (
			round INTEGER PRIMARY KEY,
			seed INTEGER NOT NULL,
			tier TEXT NOT NULL,
			participants INTEGER NOT NULL,
			scored INTEGER NOT NULL,
			evidence_root TEXT NOT NULL,
			bundle_path TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing audit index: %w", err)
		}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{dir: dir, db: db, enc: enc, dec: dec}, nil
}

func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

// SaveBundle archives the bundle and indexes it. The evidence root must
// be the one computed from the same bundle.
func (s *Store) SaveBundle(ctx context.Context, bundle *Bundle, root []byte) (string, error) {
	encoded, err := util.Encode(bundle)
	if err != nil {
		return "", fmt.Errorf("encoding bundle: %w", err)
	}
	compressed := s.enc.EncodeAll(encoded, nil)

	path := filepath.Join(s.dir, fmt.Sprintf("round-%d.xdr.zst", bundle.Round))
	if err := atomic.WriteFile(path, bytes.NewReader(compressed)); err != nil {
		return "", fmt.Errorf("writing bundle: %w", err)
	}

	scored := 0
	for _, row := range bundle.Rows {
		if row.PlanDigest != "" {
			scored++
		}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO rounds
			(round, seed, tier, participants, scored, evidence_root, bundle_path, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		bundle.Round,
		bundle.Spec.Seed,
		bundle.Spec.Tier.String(),
		len(bundle.Rows),
		scored,
		hex.EncodeToString(root),
		path,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("indexing bundle: %w", err)
	}
	return path, nil
}

// Round returns the archived summary for a round.
func (s *Store) Round(ctx context.Context, round uint64) (*Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT round, seed, tier, participants, scored, evidence_root, bundle_path, created_at
			FROM rounds WHERE round = ?`, round)

	var sum Summary
	var createdAt string
	err := row.Scan(&sum.Round, &sum.Seed, &sum.Tier, &sum.Participants, &sum.Scored,
		&sum.EvidenceRoot, &sum.BundlePath, &createdAt)
	if err != nil {
		return nil, err
	}
	sum.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &sum, nil
}

// LoadBundle reads an archived bundle back.
func (s *Store) LoadBundle(path string) (*Bundle, error) {
	compressed, err := os.ReadFile(path) //#nosec G304
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	encoded, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing bundle: %w", err)
	}
	var bundle Bundle
	if err := util.Decode(encoded, &bundle); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	return &bundle, nil
}
