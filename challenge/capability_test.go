package challenge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()
	catalog := DefaultCatalog()
	require.Equal(t, 3, catalog.Len())

	prof, ok := catalog.Lookup("scout")
	require.True(t, ok)
	require.Equal(t, 0.5, prof.MassKg)

	_, ok = catalog.Lookup("x-wing")
	require.False(t, ok)
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()
	write := func(t *testing.T, content string) string {
		path := filepath.Join(t.TempDir(), "capabilities.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("valid", func(t *testing.T) {
		catalog, err := LoadCatalog(write(t, `
profiles:
  - name: test
    mass_kg: 1.0
    max_thrust_n: 20.0
    max_tilt_rad: 0.5
    battery_j: 10000
    hover_power_w: 100
`))
		require.NoError(t, err)
		require.Equal(t, 1, catalog.Len())
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
	t.Run("not yaml", func(t *testing.T) {
		_, err := LoadCatalog(write(t, "{{{"))
		require.Error(t, err)
	})
	t.Run("no profiles", func(t *testing.T) {
		_, err := LoadCatalog(write(t, "profiles: []"))
		require.Error(t, err)
	})
	t.Run("duplicate name", func(t *testing.T) {
		_, err := LoadCatalog(write(t, `
profiles:
  - {name: dup, mass_kg: 1.0, max_thrust_n: 20.0, max_tilt_rad: 0.5, battery_j: 100, hover_power_w: 10}
  - {name: dup, mass_kg: 1.0, max_thrust_n: 20.0, max_tilt_rad: 0.5, battery_j: 100, hover_power_w: 10}
`))
		require.ErrorContains(t, err, "duplicate")
	})
	t.Run("cannot lift itself", func(t *testing.T) {
		_, err := LoadCatalog(write(t, `
profiles:
  - {name: brick, mass_kg: 5.0, max_thrust_n: 20.0, max_tilt_rad: 0.5, battery_j: 100, hover_power_w: 10}
`))
		require.ErrorContains(t, err, "lift")
	})
}
