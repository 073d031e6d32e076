package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/auctionhouse/go/internal/auction/ledger"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Auction AuctionConfig `yaml:"auction"`
	Server  ServerConfig  `yaml:"server"`
	NATS    NATSConfig    `yaml:"nats"`
	Redis   RedisConfig   `yaml:"redis"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
}

type AuctionConfig struct {
	RoundDurationSeconds int     `yaml:"roundDurationSeconds"`
	EndRetrySeconds      int     `yaml:"endRetrySeconds"`
	BidPolicy            string  `yaml:"bidPolicy"`
	BidsPerSecond        float64 `yaml:"bidsPerSecond"`
	CurrentBidsLimit     int     `yaml:"currentBidsLimit"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type NATSConfig struct {
	// Empty disables event publishing.
	URL string `yaml:"url"`
}

type RedisConfig struct {
	// Empty disables the token cache.
	Addr            string `yaml:"addr"`
	TokenTTLSeconds int    `yaml:"tokenTTLSeconds"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	// Users are the accounts known to the memory driver.
	Users []StaticUser `yaml:"users"`
}

// StaticUser is a bidder or seller account for the memory driver.
type StaticUser struct {
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Auction: AuctionConfig{
			RoundDurationSeconds: 15,
			EndRetrySeconds:      2,
			BidPolicy:            ledger.PolicyFixedIncrement,
			BidsPerSecond:        5,
			CurrentBidsLimit:     20,
		},
		Server: ServerConfig{Port: "8080"},
		Redis:  RedisConfig{TokenTTLSeconds: 60},
		Store:  StoreConfig{Driver: DriverPostgres},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads .env, then the yaml file named by AUCTION_CONFIG (if any), then
// environment overrides, and validates the result.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("AUCTION_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Auction.RoundDurationSeconds = getEnvAsInt("ROUND_DURATION_SECONDS", c.Auction.RoundDurationSeconds)
	c.Auction.EndRetrySeconds = getEnvAsInt("END_RETRY_SECONDS", c.Auction.EndRetrySeconds)
	c.Auction.BidPolicy = getEnv("BID_POLICY", c.Auction.BidPolicy)
	c.Auction.BidsPerSecond = getEnvAsFloat("BIDS_PER_SECOND", c.Auction.BidsPerSecond)
	c.Auction.CurrentBidsLimit = getEnvAsInt("CURRENT_BIDS_LIMIT", c.Auction.CurrentBidsLimit)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.TokenTTLSeconds = getEnvAsInt("REDIS_TOKEN_TTL_SECONDS", c.Redis.TokenTTLSeconds)
	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Auction.RoundDurationSeconds <= 0 {
		errs = append(errs, fmt.Errorf("roundDurationSeconds must be positive, got %d", c.Auction.RoundDurationSeconds))
	}
	if c.Auction.EndRetrySeconds <= 0 {
		errs = append(errs, fmt.Errorf("endRetrySeconds must be positive, got %d", c.Auction.EndRetrySeconds))
	}
	if _, err := ledger.PolicyByName(c.Auction.BidPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Auction.CurrentBidsLimit < 0 {
		errs = append(errs, fmt.Errorf("currentBidsLimit must not be negative, got %d", c.Auction.CurrentBidsLimit))
	}
	switch c.Store.Driver {
	case DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	for _, u := range c.Store.Users {
		if u.Username == "" || u.Token == "" {
			errs = append(errs, errors.New("static users need a username and a token"))
			break
		}
	}
	return errors.Join(errs...)
}

func (c *Config) RoundDuration() time.Duration {
	return time.Duration(c.Auction.RoundDurationSeconds) * time.Second
}

func (c *Config) EndRetryInterval() time.Duration {
	return time.Duration(c.Auction.EndRetrySeconds) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Redis.TokenTTLSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
