package depositd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, ":8084", cfg.ListenAddress)
	require.Equal(t, "depositd.db", cfg.DatabasePath)
	require.InDelta(t, 0.2, cfg.TaxRate, 1e-9)
	require.Equal(t, 10*time.Second, cfg.Contract.Timeout.Duration)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depositd.yaml")
	raw := `
listen: ":9090"
env: staging
log_level: debug
database: /var/lib/depositd/data.db
tax_rate: 0.15
admin_token: file-token
contract:
  base_url: https://contracts.internal
  timeout: 5s
  strict: true
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddress)
	require.Equal(t, "staging", cfg.Environment)
	require.Equal(t, "/var/lib/depositd/data.db", cfg.DatabasePath)
	require.InDelta(t, 0.15, cfg.TaxRate, 1e-9)
	require.Equal(t, "file-token", cfg.AdminToken)
	require.Equal(t, "https://contracts.internal", cfg.Contract.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Contract.Timeout.Duration)
	require.True(t, cfg.Contract.Strict)
}

func TestLoadConfigAdminTokenEnvOverride(t *testing.T) {
	t.Setenv("DEPOSITD_ADMIN_TOKEN", "env-token")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "env-token", cfg.AdminToken)
}

func TestLoadConfigRejectsBadTaxRate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depositd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tax_rate: 1.5\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigRejectsBadContractURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depositd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("contract:\n  base_url: ftp://nope\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
}
