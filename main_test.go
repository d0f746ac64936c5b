package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartCPUProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpu.prof")
	stop, err := startCPUProfile(path)
	require.NoError(t, err)
	stop()

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NotZero(t, info.Size())
}

func TestStartCPUProfileBadPath(t *testing.T) {
	stop, err := startCPUProfile(filepath.Join(t.TempDir(), "missing", "cpu.prof"))
	require.Error(t, err)
	require.Nil(t, stop)
}
