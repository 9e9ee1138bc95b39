package cmds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/domains/profile"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestValidateCatalog(t *testing.T) {
	cfg := &Config{}
	catalog, err := cfg.BuildCatalog(store.NewMemoryStore())
	require.NoError(t, err)

	report, err := validateCatalog(catalog)
	require.NoError(t, err)
	require.Contains(t, report, "profile")
	require.Contains(t, report, "activity")
	require.Equal(t, profile.RoleIntake, report["profile"].InitialRole)
	require.Contains(t, report["profile"].Roles[profile.RoleIntake].Tools, "transfer_to_agent")
}

func TestBuildCatalog_AppliesRoleOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profile:
  intake:
    instructions: "Speak slowly."
`), 0o600))

	cfg := &Config{Roles: path}
	catalog, err := cfg.BuildCatalog(store.NewMemoryStore())
	require.NoError(t, err)
	d, err := catalog.Get("profile")
	require.NoError(t, err)
	r, ok := d.Role(profile.RoleIntake)
	require.True(t, ok)
	require.Equal(t, "Speak slowly.", r.Instructions)
}

func TestBuildEngine(t *testing.T) {
	_, err := (&Config{Engine: "echo"}).BuildEngine()
	require.NoError(t, err)
	_, err = (&Config{Engine: "parrot"}).BuildEngine()
	require.Error(t, err)
}
