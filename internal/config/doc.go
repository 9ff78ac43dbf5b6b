// Package config loads and overlays the client and server configuration
// surface: reconnect backoff, heartbeat cadence, cross-thread queue
// sizing, socket keepalive, subscription rate limiting, and worker/client
// identity. It exposes a Default() baseline, file-based Load, and an
// environment overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/rocketspeed.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	rt, _ := runtime.Open(runtime.Options{DataDir: config.DefaultDataDir(), Config: cfg})
//	defer rt.Close()
package config
