package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(newViper(nil))
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.RateLimit.Max)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 2, cfg.Fetch.Retries)
	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, []string{
		"https://dweb.link/ipfs/",
		"https://ipfs.io/ipfs/",
		"https://gateway.ipfs.io/ipfs/",
	}, cfg.Fetch.PublicGateways)
	assert.Equal(t, uint64(100), cfg.Ledger.TokenAmount)
	assert.Equal(t, uint64(50_000_000), cfg.Ledger.FallbackLamports)
	assert.Equal(t, StoreFile, cfg.Fingerprint.Store)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Server.TrustedProxies, "forwarding headers are ignored by default")
	assert.Equal(t, []int{101, 102, 103}, cfg.Tokens.SolanaChainIDs)
	assert.Equal(t, 10*time.Minute, cfg.Tokens.CacheTTL)
	assert.Equal(t, "https://tokenlists.bio.xyz/bio-token-list.json", cfg.Tokens.BioListURL)
}

func TestOverrides(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{
		"RATE_LIMIT_MAX":       20,
		"RATE_LIMIT_WINDOW":    "1m",
		"KAFKA_BROKERS":        "kafka-1:9092, kafka-2:9092",
		"FINGERPRINT_STORE":    "REDIS",
		"REDIS_URL":            "redis://localhost:6379/0",
		"TRUSTED_PROXIES":      "10.0.0.0/8,127.0.0.1",
		"BIO_SOLANA_CHAIN_IDS": "101, mainnet, 103",
	}))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, StoreRedis, cfg.Fingerprint.Store)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.TrustedProxies)
	assert.Equal(t, []int{101, 103}, cfg.Tokens.SolanaChainIDs, "non-numeric ids are skipped")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		errMsg string
	}{
		{"redis store without url", map[string]any{"FINGERPRINT_STORE": "redis"}, "REDIS_URL"},
		{"postgres store without url", map[string]any{"FINGERPRINT_STORE": "postgres"}, "DATABASE_URL"},
		{"s3 store without bucket", map[string]any{"FINGERPRINT_STORE": "s3"}, "FINGERPRINT_S3_BUCKET"},
		{"unknown store", map[string]any{"FINGERPRINT_STORE": "etcd"}, "unknown FINGERPRINT_STORE"},
		{"journal without database", map[string]any{"POSTGRES_JOURNAL_RECORDS": true}, "POSTGRES_JOURNAL_RECORDS"},
		{"zero rate limit", map[string]any{"RATE_LIMIT_MAX": 0}, "RATE_LIMIT_MAX"},
		{"bad trusted proxy", map[string]any{"TRUSTED_PROXIES": "10.0.0.0/8, lb.internal"}, "TRUSTED_PROXIES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromViper(newViper(tt.values))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
