package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auction.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUCTION_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.RoundDuration())
	assert.Equal(t, 2*time.Second, cfg.EndRetryInterval())
	assert.Equal(t, "fixed_increment", cfg.Auction.BidPolicy)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
auction:
  roundDurationSeconds: 30
  bidPolicy: at_least_minimum
  bidsPerSecond: 2.5
store:
  driver: memory
  users:
    - username: alice
      token: tok-a
redis:
  addr: localhost:6379
`)
	t.Setenv("AUCTION_CONFIG", path)
	t.Setenv("ROUND_DURATION_SECONDS", "10")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.RoundDuration(), "env wins over file")
	assert.Equal(t, "at_least_minimum", cfg.Auction.BidPolicy)
	assert.Equal(t, 2.5, cfg.Auction.BidsPerSecond)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, []StaticUser{{Username: "alice", Token: "tok-a"}}, cfg.Store.Users)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 60*time.Second, cfg.TokenTTL())
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero duration", map[string]string{"ROUND_DURATION_SECONDS": "0"}},
		{"negative duration", map[string]string{"ROUND_DURATION_SECONDS": "-5"}},
		{"unknown policy", map[string]string{"BID_POLICY": "dutch"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUCTION_CONFIG", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingOrBrokenFile(t *testing.T) {
	t.Setenv("AUCTION_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("AUCTION_CONFIG", writeFile(t, "auction: [1, 2"))
	_, err = Load()
	assert.Error(t, err)
}

func TestValidateStaticUsers(t *testing.T) {
	cfg := Default()
	cfg.Store.Users = []StaticUser{{Username: "bob"}}
	assert.Error(t, cfg.Validate())
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, SetupLogging(LogConfig{Level: "debug", Format: "console"}))
	assert.NoError(t, SetupLogging(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, SetupLogging(LogConfig{Level: "loud"}))
}
