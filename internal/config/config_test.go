package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("FI_EMAIL", "")
	t.Setenv("FI_PASSWORD", "")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, "https://api.tryfi.com", cfg.FiBaseURL)
	require.Equal(t, "Bailey", cfg.FiPetName)
	require.Equal(t, "sessionId", cfg.FiSessionCookie)
	require.Equal(t, 2*time.Minute, cfg.VendorTimeout)
	require.Equal(t, MaxSyncDays, cfg.FiSyncDays)
	require.False(t, cfg.VendorConfigured())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("FI_EMAIL", "owner@example.com")
	t.Setenv("FI_PASSWORD", "hunter2")
	t.Setenv("FI_SYNC_DAYS", "3")
	t.Setenv("VENDOR_TIMEOUT", "45s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	require.NoError(t, err)

	require.True(t, cfg.VendorConfigured())
	require.Equal(t, 3, cfg.FiSyncDays)
	require.Equal(t, 45*time.Second, cfg.VendorTimeout)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fi_pet_name: Rex\nhttp_address: \":9000\"\n"), 0o600))

	t.Setenv(PathEnvVar, path)
	t.Setenv("HTTP_ADDRESS", ":9100")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "Rex", cfg.FiPetName)
	require.Equal(t, ":9100", cfg.HTTPAddress)
}

func TestValidateRejectsOutOfRangeDays(t *testing.T) {
	cfg := defaults()
	cfg.FiSyncDays = 30
	require.Error(t, cfg.Validate())

	cfg.FiSyncDays = 0
	require.Error(t, cfg.Validate())
}

func TestVendorConfiguredRequiresBothCredentials(t *testing.T) {
	cfg := defaults()
	cfg.FiEmail = "owner@example.com"
	require.False(t, cfg.VendorConfigured())

	cfg.FiPassword = "  "
	require.False(t, cfg.VendorConfigured())

	cfg.FiPassword = "secret"
	require.True(t, cfg.VendorConfigured())
}
