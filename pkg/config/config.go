// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	SearchPassRestartDelay    time.Duration `env:"SEARCH_PASS_RESTART_DELAY"   envDefault:"2s"    envDocs:"delay between attempts of one search pass when an attempt finds nothing"`
	MatchmakingRestartDelay   time.Duration `env:"MATCHMAKING_RESTART_DELAY"   envDefault:"3s"    envDocs:"delay before the policy starts a new, wider search pass"`
	SearchTimeout             time.Duration `env:"SEARCH_TIMEOUT"              envDefault:"30s"   envDocs:"upper bound for a single directory call"`
	ReservationRequestTimeout time.Duration `env:"RESERVATION_REQUEST_TIMEOUT" envDefault:"10s"   envDocs:"upper bound for a reservation request or cancel round trip"`
	ReservationExpiry         time.Duration `env:"RESERVATION_EXPIRY"          envDefault:"20s"   envDocs:"time a reserved player has to arrive before the slot is revoked (0 disables)"`
	MaxReservations           int           `env:"MAX_RESERVATIONS"            envDefault:"16"    envDocs:"slot capacity of a reservation ledger"`
	HandoffStartDelay         time.Duration `env:"HANDOFF_START_DELAY"         envDefault:"3s"    envDocs:"delay before a party follower starts looking for the leader's session"`
	HandoffRetryCount         int           `env:"HANDOFF_RETRY_COUNT"         envDefault:"5"     envDocs:"lookup attempts a party follower makes for the leader's session"`
	HandoffRetryDelay         time.Duration `env:"HANDOFF_RETRY_DELAY"         envDefault:"2s"    envDocs:"delay between follower lookup attempts"`
	HandoffPollInterval       time.Duration `env:"HANDOFF_POLL_INTERVAL"       envDefault:"500ms" envDocs:"interval at which the leader polls member acknowledgements"`
	HandoffTimeout            time.Duration `env:"HANDOFF_TIMEOUT"             envDefault:"10s"   envDocs:"time after which the leader proceeds without every acknowledgement"`
	EloRangeBeforeHosting     int           `env:"ELO_RANGE_BEFORE_HOSTING"    envDefault:"0"     envDocs:"search radius at which the policy stops widening and hosts (0 disables)"`
	MaxSearchResults          int           `env:"MAX_SEARCH_RESULTS"          envDefault:"50"    envDocs:"default result cap of a directory query"`

	BeaconPort       int    `env:"BEACON_PORT"        envDefault:"15000"        envDocs:"port advertised in created sessions for reservation requests"`
	BeaconListenAddr string `env:"BEACON_LISTEN_ADDR" envDefault:":15000"       envDocs:"listen address of the reservation beacon"`
	BeaconSecret     string `env:"BEACON_SECRET"      envDefault:""             envDocs:"HMAC secret for beacon handshake tokens (empty disables)"`
	RedisAddr        string `env:"REDIS_ADDR"         envDefault:""             envDocs:"redis address of the session directory (empty uses in-memory)"`
	RedisPassword    string `env:"REDIS_PASSWORD"     envDefault:""             envDocs:"redis password"`
	RedisDB          int    `env:"REDIS_DB"           envDefault:"0"            envDocs:"redis database index"`
	KafkaBrokers     string `env:"KAFKA_BROKERS"      envDefault:""             envDocs:"comma separated kafka brokers for the event log (empty disables)"`
	KafkaTopic       string `env:"KAFKA_TOPIC"        envDefault:"matchmaking"  envDocs:"event log topic"`
	MetricsAddr      string `env:"METRICS_ADDR"       envDefault:":8080"        envDocs:"prometheus listen address"`
	ZipkinEndpoint   string `env:"ZIPKIN_ENDPOINT"    envDefault:""             envDocs:"zipkin collector endpoint (empty disables tracing export)"`
	LogLevel         string `env:"LOG_LEVEL"          envDefault:"info"         envDocs:"logrus level"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration with every envDefault applied, ignoring the environment.
func Default() *Config {
	return &Config{
		SearchPassRestartDelay:    2 * time.Second,
		MatchmakingRestartDelay:   3 * time.Second,
		SearchTimeout:             30 * time.Second,
		ReservationRequestTimeout: 10 * time.Second,
		ReservationExpiry:         20 * time.Second,
		MaxReservations:           16,
		HandoffStartDelay:         3 * time.Second,
		HandoffRetryCount:         5,
		HandoffRetryDelay:         2 * time.Second,
		HandoffPollInterval:       500 * time.Millisecond,
		HandoffTimeout:            10 * time.Second,
		MaxSearchResults:          50,
		BeaconPort:                15000,
		BeaconListenAddr:          ":15000",
		KafkaTopic:                "matchmaking",
		MetricsAddr:               ":8080",
		LogLevel:                  "info",
	}
}

func (c *Config) Validate() error {
	durations := map[string]time.Duration{
		"SEARCH_PASS_RESTART_DELAY":   c.SearchPassRestartDelay,
		"MATCHMAKING_RESTART_DELAY":   c.MatchmakingRestartDelay,
		"SEARCH_TIMEOUT":              c.SearchTimeout,
		"RESERVATION_REQUEST_TIMEOUT": c.ReservationRequestTimeout,
		"RESERVATION_EXPIRY":          c.ReservationExpiry,
		"HANDOFF_START_DELAY":         c.HandoffStartDelay,
		"HANDOFF_RETRY_DELAY":         c.HandoffRetryDelay,
		"HANDOFF_TIMEOUT":             c.HandoffTimeout,
	}
	for key, d := range durations {
		if d < 0 {
			return fmt.Errorf("%w: %s cannot be negative", ErrInvalidConfig, key)
		}
	}
	if c.HandoffPollInterval <= 0 {
		return fmt.Errorf("%w: HANDOFF_POLL_INTERVAL must be positive", ErrInvalidConfig)
	}
	if c.MaxReservations <= 0 {
		return fmt.Errorf("%w: MAX_RESERVATIONS must be positive", ErrInvalidConfig)
	}
	if c.HandoffRetryCount <= 0 {
		return fmt.Errorf("%w: HANDOFF_RETRY_COUNT must be positive", ErrInvalidConfig)
	}
	if c.EloRangeBeforeHosting < 0 || c.MaxSearchResults < 0 {
		return fmt.Errorf("%w: ELO_RANGE_BEFORE_HOSTING and MAX_SEARCH_RESULTS cannot be negative", ErrInvalidConfig)
	}
	return nil
}
