package util

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type payload struct {
	Name   string
	Round  uint64
	Values []float64
}

func TestEncodeIsDeterministic(t *testing.T) {
	t.Parallel()
	v := payload{Name: "alice", Round: 7, Values: []float64{0.1, 0.9}}

	a, err := Encode(&v)
	require.NoError(t, err)
	b, err := Encode(&v)
	require.NoError(t, err)
	require.Equal(t, a, b)

	var decoded payload
	require.NoError(t, Decode(a, &decoded))
	require.Equal(t, v, decoded)
}

func TestPersistLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.bin")
	v := payload{Name: "bob", Round: 3, Values: []float64{0.5}}

	require.NoError(t, Persist(path, &v))

	var loaded payload
	require.NoError(t, Load(path, &loaded))
	require.Equal(t, v, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	var v payload
	require.Error(t, Load(filepath.Join(t.TempDir(), "nope.bin"), &v))
}
