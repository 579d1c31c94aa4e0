package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarsave/stellarsave/internal/engine"
	"github.com/stellarsave/stellarsave/internal/gateway"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefault_MatchesEngineTiming(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, engine.DefaultTiming(), cfg.Timing())
	assert.Equal(t, ModeFixture, cfg.Gateway.Mode)
	assert.Equal(t, gateway.DefaultAddresses, cfg.Gateway.Contracts)
	assert.Equal(t, 50, cfg.Notifications.Cap)
	assert.Equal(t, 30*time.Second, cfg.Refresh.AutoRefresh)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
gateway:
  mode: rpc
  rpc_url: https://relay.example/soroban
  headers:
    X-API-Key: secret
  rate_limit:
    rps: 5
    burst: 10
cache:
  progress:
    stale_time: 5s
    refetch_interval: 20s
refresh:
  auto_refresh: 1m
api:
  addr: 127.0.0.1:9000
  cors_origins: [https://app.example]
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeRPC, cfg.Gateway.Mode)
	assert.Equal(t, "secret", cfg.Gateway.Headers["X-API-Key"])
	assert.Equal(t, RateLimit{RPS: 5, Burst: 10}, cfg.Gateway.RateLimit)
	assert.Equal(t, 5*time.Second, cfg.Cache.Progress.StaleTime)
	assert.Equal(t, 20*time.Second, cfg.Cache.Progress.RefetchInterval)
	assert.Equal(t, time.Minute, cfg.Refresh.AutoRefresh)
	assert.Equal(t, []string{"https://app.example"}, cfg.API.CORSOrigins)

	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Cache.Challenge.StaleTime)
	assert.Equal(t, "stellarsave.db", cfg.Ledger.Path)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse([]byte("  \n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_SchemaRejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown section", "metrics:\n  enabled: true\n"},
		{"unknown field", "gateway:\n  modee: rpc\n"},
		{"bad mode", "gateway:\n  mode: grpc\n"},
		{"bad duration", "cache:\n  list:\n    stale_time: soon\n"},
		{"negative rps", "api:\n  rate_limit:\n    rps: -1\n"},
		{"cap out of range", "notifications:\n  cap: 0\n"},
		{"fanout type", "gateway:\n  fanout: many\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestValidate_CrossFieldRules(t *testing.T) {
	cfg := Default()
	cfg.Gateway.Mode = ModeRPC
	assert.ErrorContains(t, cfg.Validate(), "rpc_url")

	cfg = Default()
	cfg.Refresh.AutoRefresh = 0
	assert.ErrorContains(t, cfg.Validate(), "auto_refresh")

	cfg.Refresh.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"STELLARSAVE_GATEWAY":          "rpc",
		"STELLARSAVE_RPC_URL":          "http://relay:8000",
		"STELLARSAVE_RPC_API_KEY":      "k",
		"STELLARSAVE_SAVINGS_CONTRACT": "CABC",
		"STELLARSAVE_LEDGER_PATH":      "",
		"STELLARSAVE_AUTO_REFRESH":     "45s",
		"STELLARSAVE_GATEWAY_RPS":      "2.5",
	}))
	require.NoError(t, err)

	assert.Equal(t, ModeRPC, cfg.Gateway.Mode)
	assert.Equal(t, "http://relay:8000", cfg.Gateway.RPCURL)
	assert.Equal(t, "k", cfg.Gateway.Headers["X-API-Key"])
	assert.Equal(t, "CABC", cfg.Gateway.Contracts.Savings)
	assert.Equal(t, gateway.DefaultAddresses.RewardToken, cfg.Gateway.Contracts.RewardToken)
	assert.Equal(t, "stellarsave.db", cfg.Ledger.Path, "empty values do not override")
	assert.Equal(t, 45*time.Second, cfg.Refresh.AutoRefresh)
	assert.Equal(t, 2.5, cfg.Gateway.RateLimit.RPS)

	bad := Default()
	assert.Error(t, bad.ApplyEnv(env(map[string]string{"STELLARSAVE_AUTO_REFRESH": "often"})))
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stellarsave.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ledger:\n  path: from-file.db\napi:\n  addr: :7000\n"), 0o644))
	t.Setenv("STELLARSAVE_API_ADDR", ":7100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file.db", cfg.Ledger.Path)
	assert.Equal(t, ":7100", cfg.API.Addr)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("STELLARSAVE_TEST_DOTENV=loaded\n"), 0o644))
	t.Setenv("STELLARSAVE_TEST_DOTENV", "")
	os.Unsetenv("STELLARSAVE_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "absent.env")))
	assert.Equal(t, "loaded", os.Getenv("STELLARSAVE_TEST_DOTENV"))
}
