package statement

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regnskab.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultRunConfig(t *testing.T) {
	cfg := DefaultRunConfig()

	assert.Equal(t, "INKA", cfg.SignerRoot)
	assert.Equal(t, "EFUIT", cfg.AlumniCurrentRoot)
	assert.Equal(t, "beercrate", cfg.Crates.Base)
	assert.True(t, d("250.00").Equal(cfg.DebtLimit))

	// Gold crate: a beer crate plus 30 times the price difference.
	pt := BuildPriceTable(nil, cfg.DefaultPrices)
	goldCrate := pt.Prices("goldcrate")
	require.Len(t, goldCrate, 1)
	assert.True(t, d("340.00").Equal(goldCrate[0]), "got %s", goldCrate[0])
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
period = 2026
debt_limit = "300.00"

[crates]
base = "cask"
secondaries = ["halfcask"]

[[default_prices]]
name = "cask"
price = "200.00"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2026, int(cfg.Period))
	assert.True(t, d("300.00").Equal(cfg.DebtLimit))
	assert.Equal(t, "cask", cfg.Crates.Base)
	assert.Equal(t, []string{"halfcask"}, cfg.Crates.Secondaries)
	require.Len(t, cfg.DefaultPrices, 1)
	assert.Equal(t, "cask", cfg.DefaultPrices[0].Name)

	// Untouched fields keep their defaults.
	assert.Equal(t, "INKA", cfg.SignerRoot)
	assert.Equal(t, "beer", cfg.Categories.Beer)
}

func TestLoadConfigPeriodPresence(t *testing.T) {
	// An explicit period = 0 is a real value, not "absent".
	cfg, err := LoadConfig(writeConfig(t, `period = 0`))
	require.NoError(t, err)
	assert.Equal(t, 0, int(cfg.Period))

	var fc fileConfig
	require.NoError(t, toml.Unmarshal([]byte(`period = 0`), &fc))
	require.NotNil(t, fc.Period)
	assert.Equal(t, 0, *fc.Period)

	fc = fileConfig{}
	require.NoError(t, toml.Unmarshal([]byte(`signer_root = "KASS"`), &fc))
	assert.Nil(t, fc.Period)
}

func TestLoadConfigBadDecimal(t *testing.T) {
	path := writeConfig(t, `debt_limit = "not-a-number"`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
