package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// RateLimitConfig bounds outbound Subscribe traffic per shard
// connection: tokens/s plus a burst size.
type RateLimitConfig struct {
	TokensPerSec float64 `json:"tokensPerSec"`
	Burst        int     `json:"burst"`
}

// Config is the top-level configuration surface: reconnect backoff, heartbeat cadence, cross-thread queue sizing, socket
// keepalive, subscription rate limiting, and worker/client identity.
type Config struct {
	// BackoffBase is the initial reconnect delay.
	BackoffBase time.Duration `json:"backoffBaseMs"`
	// BackoffCap bounds the reconnect delay after repeated failures.
	BackoffCap time.Duration `json:"backoffCapMs"`
	// BackoffJitter randomizes the computed delay by this fraction (0..1).
	BackoffJitter float64 `json:"backoffJitter"`

	// UnsubscribeDedupWindow bounds how long a just-terminated subscription
	// id is remembered so a stray Deliver for it produces at most one
	// Unsubscribe. Default 1000ms.
	UnsubscribeDedupWindow time.Duration `json:"unsubscribeDedupWindowMs"`

	// HeartbeatPeriod is how often a socket emits an aggregated Heartbeat
	// (or HeartbeatDelta) for its multiplexed streams.
	HeartbeatPeriod time.Duration `json:"heartbeatPeriodMs"`
	// HeartbeatTimeout is how long a stream may go without a heartbeat
	// before it is reported unhealthy.
	HeartbeatTimeout time.Duration `json:"heartbeatTimeoutMs"`

	// QueueSize bounds each cross-thread command queue hop (event loop,
	// worker, control room).
	QueueSize int `json:"queueSize"`

	// ConnectionWithoutStreamsKeepalive is how long a SocketEvent with no
	// streams is kept open before it is closed.
	ConnectionWithoutStreamsKeepalive time.Duration `json:"connectionWithoutStreamsKeepaliveMs"`

	// SubscriptionRateLimit gates outbound Subscribe traffic.
	SubscriptionRateLimit RateLimitConfig `json:"subscriptionRateLimit"`

	// NumWorkers is the number of per-shard worker threads a multi-threaded
	// subscriber runs.
	NumWorkers int `json:"numWorkers"`
	// ClientID is an 8-bit worker suffix auto-appended to this process's
	// identity when talking to the control tower.
	ClientID uint8 `json:"clientId"`
}

// Default returns the built-in configuration baseline.
func Default() Config {
	return Config{
		BackoffBase:                       100 * time.Millisecond,
		BackoffCap:                        30 * time.Second,
		BackoffJitter:                     0.2,
		UnsubscribeDedupWindow:            1000 * time.Millisecond,
		HeartbeatPeriod:                   1 * time.Second,
		HeartbeatTimeout:                  15 * time.Second,
		QueueSize:                         4096,
		ConnectionWithoutStreamsKeepalive: 5 * time.Second,
		SubscriptionRateLimit:             RateLimitConfig{TokensPerSec: 1000, Burst: 1000},
		NumWorkers:                        4,
		ClientID:                          0,
	}
}

// durationMs is the JSON-on-the-wire shape for Config: every *Ms field is a
// plain integer number of milliseconds, the same layout operators hand-edit
// in an on-disk config file.
type durationMs struct {
	BackoffBaseMs                       int64            `json:"backoffBaseMs"`
	BackoffCapMs                        int64            `json:"backoffCapMs"`
	BackoffJitter                       float64          `json:"backoffJitter"`
	UnsubscribeDedupWindowMs            int64            `json:"unsubscribeDedupWindowMs"`
	HeartbeatPeriodMs                   int64            `json:"heartbeatPeriodMs"`
	HeartbeatTimeoutMs                  int64            `json:"heartbeatTimeoutMs"`
	QueueSize                           int              `json:"queueSize"`
	ConnectionWithoutStreamsKeepaliveMs int64            `json:"connectionWithoutStreamsKeepaliveMs"`
	SubscriptionRateLimit               RateLimitConfig  `json:"subscriptionRateLimit"`
	NumWorkers                          int              `json:"numWorkers"`
	ClientID                            uint8            `json:"clientId"`
}

func (c Config) toWire() durationMs {
	return durationMs{
		BackoffBaseMs:                       c.BackoffBase.Milliseconds(),
		BackoffCapMs:                        c.BackoffCap.Milliseconds(),
		BackoffJitter:                       c.BackoffJitter,
		UnsubscribeDedupWindowMs:            c.UnsubscribeDedupWindow.Milliseconds(),
		HeartbeatPeriodMs:                   c.HeartbeatPeriod.Milliseconds(),
		HeartbeatTimeoutMs:                  c.HeartbeatTimeout.Milliseconds(),
		QueueSize:                           c.QueueSize,
		ConnectionWithoutStreamsKeepaliveMs: c.ConnectionWithoutStreamsKeepalive.Milliseconds(),
		SubscriptionRateLimit:               c.SubscriptionRateLimit,
		NumWorkers:                          c.NumWorkers,
		ClientID:                            c.ClientID,
	}
}

func (w durationMs) fromWire(base Config) Config {
	c := base
	if w.BackoffBaseMs > 0 {
		c.BackoffBase = time.Duration(w.BackoffBaseMs) * time.Millisecond
	}
	if w.BackoffCapMs > 0 {
		c.BackoffCap = time.Duration(w.BackoffCapMs) * time.Millisecond
	}
	if w.BackoffJitter > 0 {
		c.BackoffJitter = w.BackoffJitter
	}
	if w.UnsubscribeDedupWindowMs > 0 {
		c.UnsubscribeDedupWindow = time.Duration(w.UnsubscribeDedupWindowMs) * time.Millisecond
	}
	if w.HeartbeatPeriodMs > 0 {
		c.HeartbeatPeriod = time.Duration(w.HeartbeatPeriodMs) * time.Millisecond
	}
	if w.HeartbeatTimeoutMs > 0 {
		c.HeartbeatTimeout = time.Duration(w.HeartbeatTimeoutMs) * time.Millisecond
	}
	if w.QueueSize > 0 {
		c.QueueSize = w.QueueSize
	}
	if w.ConnectionWithoutStreamsKeepaliveMs > 0 {
		c.ConnectionWithoutStreamsKeepalive = time.Duration(w.ConnectionWithoutStreamsKeepaliveMs) * time.Millisecond
	}
	if w.SubscriptionRateLimit.TokensPerSec > 0 {
		c.SubscriptionRateLimit = w.SubscriptionRateLimit
	}
	if w.NumWorkers > 0 {
		c.NumWorkers = w.NumWorkers
	}
	if w.ClientID != 0 {
		c.ClientID = w.ClientID
	}
	return c
}

// MarshalJSON renders Config in the on-disk millisecond-integer shape.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.toWire())
}

// UnmarshalJSON parses the on-disk millisecond-integer shape, overlaying
// onto Default() so a partial file only overrides the fields it sets.
func (c *Config) UnmarshalJSON(b []byte) error {
	var w durationMs
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*c = w.fromWire(Default())
	return nil
}

// Load reads configuration from a JSON file. If path is empty, returns
// Default(). Only .json is supported; other extensions are rejected since
// no YAML dependency is wired into this tree.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	ext := filepath.Ext(path)
	if ext != "" && ext != ".json" {
		return Config{}, errors.New("config: unsupported file extension " + ext + ", use .json")
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
