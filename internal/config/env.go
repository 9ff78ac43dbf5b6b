package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays ROCKETSPEED_* environment variables onto cfg, one
// variable per Config knob.
func FromEnv(cfg *Config) {
	if v := envMs("ROCKETSPEED_BACKOFF_BASE_MS"); v > 0 {
		cfg.BackoffBase = v
	}
	if v := envMs("ROCKETSPEED_BACKOFF_CAP_MS"); v > 0 {
		cfg.BackoffCap = v
	}
	if v := os.Getenv("ROCKETSPEED_BACKOFF_JITTER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.BackoffJitter = f
		}
	}
	if v := envMs("ROCKETSPEED_UNSUBSCRIBE_DEDUP_WINDOW_MS"); v > 0 {
		cfg.UnsubscribeDedupWindow = v
	}
	if v := envMs("ROCKETSPEED_HEARTBEAT_PERIOD_MS"); v > 0 {
		cfg.HeartbeatPeriod = v
	}
	if v := envMs("ROCKETSPEED_HEARTBEAT_TIMEOUT_MS"); v > 0 {
		cfg.HeartbeatTimeout = v
	}
	if v := os.Getenv("ROCKETSPEED_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueSize = n
		}
	}
	if v := envMs("ROCKETSPEED_CONNECTION_WITHOUT_STREAMS_KEEPALIVE_MS"); v > 0 {
		cfg.ConnectionWithoutStreamsKeepalive = v
	}
	if v := os.Getenv("ROCKETSPEED_SUBSCRIPTION_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SubscriptionRateLimit.TokensPerSec = f
		}
	}
	if v := os.Getenv("ROCKETSPEED_SUBSCRIPTION_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SubscriptionRateLimit.Burst = n
		}
	}
	if v := os.Getenv("ROCKETSPEED_NUM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumWorkers = n
		}
	}
	if v := os.Getenv("ROCKETSPEED_CLIENT_ID"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 8); err == nil {
			cfg.ClientID = uint8(n)
		}
	}
}

func envMs(name string) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}
