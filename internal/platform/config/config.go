package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"scholar/pkg/platform/middleware/metadata"
	platformstrings "scholar/pkg/platform/strings"
)

// Fingerprint store backends.
const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreS3       = "s3"
)

// Config is the full process configuration, grouped by concern.
type Config struct {
	Server      Server
	Log         Log
	Fetch       Fetch
	Freshness   Freshness
	Tokens      Tokens
	Fingerprint Fingerprint
	Ledger      Ledger
	RateLimit   RateLimit
	Feed        Feed
	Redis       RedisConfig
	Postgres    PostgresConfig
	Kafka       KafkaConfig
	Tracing     TracingConfig
	AWS         AWSConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	DrainTimeout    time.Duration
	AllowedOrigins  []string
	// TrustedProxies are IPs or CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string
}

// Log selects the slog handler.
type Log struct {
	Level  string
	Format string
}

// Fetch configures the content resolver.
type Fetch struct {
	PinataJWT        string
	PinataGatewayURL string
	PinataAPIURL     string
	PublicGateways   []string
	Timeout          time.Duration
	Retries          int
	BackoffBase      time.Duration
	MaxBytes         int64
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Freshness configures the originality oracle.
type Freshness struct {
	TavilyAPIKey      string
	TavilyURL         string
	Timeout           time.Duration
	CacheTTL          time.Duration
	RequestsPerSecond float64
}

// Tokens configures the partner token catalog.
type Tokens struct {
	BioListURL     string
	BiddingListURL string
	// SolanaChainIDs are the token list chain ids checked on chain.
	SolanaChainIDs []int
	CacheTTL       time.Duration
	Timeout        time.Duration
}

// Fingerprint selects where the funded-content set lives.
type Fingerprint struct {
	Store    string
	Path     string
	RedisKey string
	S3Bucket string
	S3Key    string
}

// Ledger configures the on-chain funding wallet.
type Ledger struct {
	RPCURL           string
	AgentPrivateKey  string
	TokenMint        string
	TokenAmount      uint64
	FallbackLamports uint64
	ConfirmTimeout   time.Duration
}

// RateLimit configures the ingress fixed window.
type RateLimit struct {
	Max      int
	Window   time.Duration
	Disabled bool
	Store    string
}

// Feed configures the transition broadcast.
type Feed struct {
	SubscriberBuffer int
	Heartbeat        time.Duration
}

// RedisConfig holds connection settings; an empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig holds connection settings; an empty URL disables Postgres.
type PostgresConfig struct {
	URL            string
	JournalRecords bool
	MaxConns       int32
}

// KafkaConfig configures the transition sink; no brokers disables it.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

// TracingConfig toggles span export.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

// AWSConfig is used by the S3 fingerprint store.
type AWSConfig struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SCHOLAR_ADDR", ":3001")
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("DRAIN_TIMEOUT", 30*time.Second)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PINATA_GATEWAY_URL", "https://gateway.pinata.cloud/ipfs/")
	v.SetDefault("PINATA_API_URL", "https://api.pinata.cloud")
	v.SetDefault("IPFS_PUBLIC_GATEWAYS", "https://dweb.link/ipfs/,https://ipfs.io/ipfs/,https://gateway.ipfs.io/ipfs/")
	v.SetDefault("FETCH_TIMEOUT", 15*time.Second)
	v.SetDefault("FETCH_RETRIES", 2)
	v.SetDefault("FETCH_BACKOFF_BASE", time.Second)
	v.SetDefault("FETCH_MAX_BYTES", int64(20<<20))
	v.SetDefault("FETCH_BREAKER_THRESHOLD", 3)
	v.SetDefault("FETCH_BREAKER_COOLDOWN", time.Minute)

	v.SetDefault("TAVILY_URL", "https://api.tavily.com/search")
	v.SetDefault("FRESHNESS_TIMEOUT", 10*time.Second)
	v.SetDefault("FRESHNESS_CACHE_TTL", time.Hour)
	v.SetDefault("SEARCH_RPS", 1.0)

	v.SetDefault("BIO_TOKEN_LIST_URL", "https://tokenlists.bio.xyz/bio-token-list.json")
	v.SetDefault("BIO_BIDDING_TOKEN_LIST_URL", "https://tokenlists.bio.xyz/bidding-token-list.json")
	v.SetDefault("BIO_SOLANA_CHAIN_IDS", "101,102,103")
	v.SetDefault("TOKEN_LIST_CACHE_TTL", 10*time.Minute)
	v.SetDefault("TOKEN_LIST_TIMEOUT", 8*time.Second)

	v.SetDefault("FINGERPRINT_STORE", StoreFile)
	v.SetDefault("FINGERPRINT_PATH", "funded_hashes.json")
	v.SetDefault("FINGERPRINT_REDIS_KEY", "scholar:fingerprints")
	v.SetDefault("FINGERPRINT_S3_KEY", "fingerprints/funded_hashes.json")

	v.SetDefault("SOLANA_RPC_URL", "https://api.devnet.solana.com")
	v.SetDefault("GRANT_TOKEN_AMOUNT", uint64(100))
	v.SetDefault("GRANT_FALLBACK_LAMPORTS", uint64(50_000_000))
	v.SetDefault("LEDGER_CONFIRM_TIMEOUT", 60*time.Second)

	v.SetDefault("RATE_LIMIT_MAX", 5)
	v.SetDefault("RATE_LIMIT_WINDOW", 15*time.Minute)
	v.SetDefault("RATE_LIMIT_DISABLED", false)
	v.SetDefault("RATE_LIMIT_STORE", "memory")

	v.SetDefault("FEED_SUBSCRIBER_BUFFER", 64)
	v.SetDefault("FEED_HEARTBEAT", 25*time.Second)

	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)

	v.SetDefault("POSTGRES_JOURNAL_RECORDS", false)
	v.SetDefault("POSTGRES_MAX_CONNS", 8)

	v.SetDefault("KAFKA_TOPIC", "scholar.submissions")
	v.SetDefault("KAFKA_PARTITIONS", 3)
	v.SetDefault("KAFKA_REPLICATION_FACTOR", 1)

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_SERVICE_NAME", "scholar")

	v.SetDefault("AWS_REGION", "us-east-1")
}

// Load reads configuration from the environment, after loading an optional
// .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return FromViper(v)
}

// FromViper builds a Config from an already-populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: Server{
			Addr:            v.GetString("SCHOLAR_ADDR"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
			DrainTimeout:    v.GetDuration("DRAIN_TIMEOUT"),
			AllowedOrigins:  platformstrings.SplitList(v.GetString("ALLOWED_ORIGINS")),
			TrustedProxies:  platformstrings.SplitList(v.GetString("TRUSTED_PROXIES")),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Fetch: Fetch{
			PinataJWT:        v.GetString("PINATA_JWT"),
			PinataGatewayURL: v.GetString("PINATA_GATEWAY_URL"),
			PinataAPIURL:     v.GetString("PINATA_API_URL"),
			PublicGateways:   platformstrings.SplitList(v.GetString("IPFS_PUBLIC_GATEWAYS")),
			Timeout:          v.GetDuration("FETCH_TIMEOUT"),
			Retries:          v.GetInt("FETCH_RETRIES"),
			BackoffBase:      v.GetDuration("FETCH_BACKOFF_BASE"),
			MaxBytes:         v.GetInt64("FETCH_MAX_BYTES"),
			BreakerThreshold: v.GetInt("FETCH_BREAKER_THRESHOLD"),
			BreakerCooldown:  v.GetDuration("FETCH_BREAKER_COOLDOWN"),
		},
		Freshness: Freshness{
			TavilyAPIKey:      v.GetString("TAVILY_API_KEY"),
			TavilyURL:         v.GetString("TAVILY_URL"),
			Timeout:           v.GetDuration("FRESHNESS_TIMEOUT"),
			CacheTTL:          v.GetDuration("FRESHNESS_CACHE_TTL"),
			RequestsPerSecond: v.GetFloat64("SEARCH_RPS"),
		},
		Tokens: Tokens{
			BioListURL:     v.GetString("BIO_TOKEN_LIST_URL"),
			BiddingListURL: v.GetString("BIO_BIDDING_TOKEN_LIST_URL"),
			SolanaChainIDs: chainIDs(v.GetString("BIO_SOLANA_CHAIN_IDS")),
			CacheTTL:       v.GetDuration("TOKEN_LIST_CACHE_TTL"),
			Timeout:        v.GetDuration("TOKEN_LIST_TIMEOUT"),
		},
		Fingerprint: Fingerprint{
			Store:    strings.ToLower(v.GetString("FINGERPRINT_STORE")),
			Path:     v.GetString("FINGERPRINT_PATH"),
			RedisKey: v.GetString("FINGERPRINT_REDIS_KEY"),
			S3Bucket: v.GetString("FINGERPRINT_S3_BUCKET"),
			S3Key:    v.GetString("FINGERPRINT_S3_KEY"),
		},
		Ledger: Ledger{
			RPCURL:           v.GetString("SOLANA_RPC_URL"),
			AgentPrivateKey:  v.GetString("AGENT_PRIVATE_KEY"),
			TokenMint:        v.GetString("BIO_TOKEN_MINT"),
			TokenAmount:      v.GetUint64("GRANT_TOKEN_AMOUNT"),
			FallbackLamports: v.GetUint64("GRANT_FALLBACK_LAMPORTS"),
			ConfirmTimeout:   v.GetDuration("LEDGER_CONFIRM_TIMEOUT"),
		},
		RateLimit: RateLimit{
			Max:      v.GetInt("RATE_LIMIT_MAX"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
			Disabled: v.GetBool("RATE_LIMIT_DISABLED"),
			Store:    strings.ToLower(v.GetString("RATE_LIMIT_STORE")),
		},
		Feed: Feed{
			SubscriberBuffer: v.GetInt("FEED_SUBSCRIBER_BUFFER"),
			Heartbeat:        v.GetDuration("FEED_HEARTBEAT"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("REDIS_URL"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
		},
		Postgres: PostgresConfig{
			URL:            v.GetString("DATABASE_URL"),
			JournalRecords: v.GetBool("POSTGRES_JOURNAL_RECORDS"),
			MaxConns:       v.GetInt32("POSTGRES_MAX_CONNS"),
		},
		Kafka: KafkaConfig{
			Brokers:           platformstrings.SplitList(v.GetString("KAFKA_BROKERS")),
			Topic:             v.GetString("KAFKA_TOPIC"),
			Partitions:        v.GetInt32("KAFKA_PARTITIONS"),
			ReplicationFactor: int16(v.GetInt("KAFKA_REPLICATION_FACTOR")),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("TRACING_ENABLED"),
			ServiceName: v.GetString("TRACING_SERVICE_NAME"),
		},
		AWS: AWSConfig{
			Region:       v.GetString("AWS_REGION"),
			Endpoint:     v.GetString("AWS_ENDPOINT_URL"),
			UsePathStyle: v.GetBool("AWS_S3_USE_PATH_STYLE"),
		},
	}
	return cfg, cfg.Validate()
}

// chainIDs parses a comma-separated id list, skipping entries that are not
// integers.
func chainIDs(raw string) []int {
	var out []int
	for _, item := range platformstrings.SplitList(raw) {
		if id, err := strconv.Atoi(item); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// Validate rejects combinations that cannot start.
func (c *Config) Validate() error {
	switch c.Fingerprint.Store {
	case StoreFile:
		if c.Fingerprint.Path == "" {
			return fmt.Errorf("FINGERPRINT_PATH is required for the file store")
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis fingerprint store")
		}
	case StorePostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres fingerprint store")
		}
	case StoreS3:
		if c.Fingerprint.S3Bucket == "" {
			return fmt.Errorf("FINGERPRINT_S3_BUCKET is required for the s3 fingerprint store")
		}
	default:
		return fmt.Errorf("unknown FINGERPRINT_STORE %q", c.Fingerprint.Store)
	}

	if c.RateLimit.Store == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required for the redis rate limit store")
	}
	if c.Postgres.JournalRecords && c.Postgres.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when POSTGRES_JOURNAL_RECORDS is set")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if _, err := metadata.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("FETCH_RETRIES must not be negative")
	}
	return nil
}
