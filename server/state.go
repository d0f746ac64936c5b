package server

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/swarmnet/arbiter/util"
)

const stateFilename = "state.bin"

type state struct {
	PrivKey []byte
}

func (s *state) save(datadir string) error {
	return util.Persist(filepath.Join(datadir, stateFilename), s)
}

// loadOrCreateState restores the arbiter identity key, generating a new
// one on first run.
func loadOrCreateState(datadir string) (*state, error) {
	v := &state{}
	err := util.Load(filepath.Join(datadir, stateFilename), v)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		_, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("generating identity key: %w", err)
		}
		v.PrivKey = priv
		if err := v.save(datadir); err != nil {
			return nil, fmt.Errorf("saving state: %w", err)
		}
		return v, nil
	case err != nil:
		return nil, err
	}
	if len(v.PrivKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("persisted identity key has invalid size %d", len(v.PrivKey))
	}
	return v, nil
}
