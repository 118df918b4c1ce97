package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
)

// Dedup policies.
const (
	PolicyTransient = "transient"
	PolicyDurable   = "durable"
)

// Ledger backends for the durable policy.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	PollInterval     time.Duration
	FetchTimeout     time.Duration
	FetchConcurrency int
	Sources          []domain.FeedSource
	GovAccountKey    string
	CamerasURL       string

	NotifyURL     string
	NotifyAPIKey  string
	NotifyTimeout time.Duration
	FrontendURL   string

	DedupPolicy   string
	LedgerBackend string
	DatabaseURL   string
	RedisAddr     string

	// Decision stream; disabled when KafkaBrokers is empty.
	KafkaBrokers        []string
	KafkaDecisionsTopic string

	DashboardSource          string
	DashboardRefreshInterval time.Duration
	TrafficCacheTTL          time.Duration
	CameraCacheTTL           time.Duration
}

// DecisionStreamEnabled reports whether decisions should be published to Kafka.
func (c *Config) DecisionStreamEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "2m")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	notifyTimeout, err := parsePositiveDuration("NOTIFY_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	dashboardRefresh, err := parseDuration("DASHBOARD_REFRESH_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}
	trafficTTL, err := parseDuration("TRAFFIC_CACHE_TTL", "30s")
	if err != nil {
		return nil, err
	}
	cameraTTL, err := parseDuration("CAMERA_CACHE_TTL", "60s")
	if err != nil {
		return nil, err
	}
	concurrency, err := parseFetchConcurrency()
	if err != nil {
		return nil, err
	}
	sources, err := LoadSources()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PollInterval:     pollInterval,
		FetchTimeout:     fetchTimeout,
		FetchConcurrency: concurrency,
		Sources:          sources,
		GovAccountKey:    os.Getenv("GOV_FEED_ACCOUNT_KEY"),
		CamerasURL:       sharedcfg.EnvOrDefault("GOV_CAMERAS_URL", "https://datamall2.mytransport.sg/ltaodataservice/Traffic-Imagesv2"),

		NotifyURL:     sharedcfg.EnvOrDefault("NOTIFY_URL", "http://localhost:3002/api/notify"),
		NotifyAPIKey:  os.Getenv("NOTIFY_API_KEY"),
		NotifyTimeout: notifyTimeout,
		FrontendURL:   sharedcfg.EnvOrDefault("FRONTEND_URL", "http://localhost:3000"),

		DedupPolicy:   sharedcfg.EnvOrDefault("DEDUP_POLICY", PolicyTransient),
		LedgerBackend: sharedcfg.EnvOrDefault("LEDGER_BACKEND", BackendPostgres),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),

		KafkaBrokers:        sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaDecisionsTopic: sharedcfg.EnvOrDefault("KAFKA_DECISIONS_TOPIC", "incident-decisions"),

		DashboardSource:          os.Getenv("DASHBOARD_SOURCE"),
		DashboardRefreshInterval: dashboardRefresh,
		TrafficCacheTTL:          trafficTTL,
		CameraCacheTTL:           cameraTTL,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.DashboardSource == "" {
		cfg.DashboardSource = cfg.Sources[0].ID
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.NotifyAPIKey == "" {
		return errors.New("NOTIFY_API_KEY is required")
	}
	if c.NotifyURL == "" {
		return errors.New("NOTIFY_URL is required")
	}
	if len(c.Sources) == 0 {
		return errors.New("at least one feed source is required")
	}

	switch c.DedupPolicy {
	case PolicyTransient:
	case PolicyDurable:
		switch c.LedgerBackend {
		case BackendPostgres:
			if c.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required for the postgres ledger")
			}
		case BackendRedis:
			if c.RedisAddr == "" {
				return errors.New("REDIS_ADDR is required for the redis ledger")
			}
		default:
			return fmt.Errorf("invalid LEDGER_BACKEND %q: must be postgres or redis", c.LedgerBackend)
		}
	default:
		return fmt.Errorf("invalid DEDUP_POLICY %q: must be transient or durable", c.DedupPolicy)
	}

	if c.DecisionStreamEnabled() && c.KafkaDecisionsTopic == "" {
		return errors.New("KAFKA_DECISIONS_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.DashboardSource != "" && !hasSource(c.Sources, c.DashboardSource) {
		return fmt.Errorf("DASHBOARD_SOURCE %q is not a configured feed source", c.DashboardSource)
	}
	return nil
}

func hasSource(sources []domain.FeedSource, id string) bool {
	for _, s := range sources {
		if s.ID == id {
			return true
		}
	}
	return false
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := parseDuration(key, fallback)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

// parseFetchConcurrency reads FETCH_CONCURRENCY. Default: 4. Range: 1-64.
func parseFetchConcurrency() (int, error) {
	s := os.Getenv("FETCH_CONCURRENCY")
	if s == "" {
		return 4, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 64 {
		return 0, errors.New("invalid FETCH_CONCURRENCY: must be 1-64")
	}
	return n, nil
}
