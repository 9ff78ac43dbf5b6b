// Package runtime composes storage, routing, the log tailer, and the
// control room into a single-node RocketSpeed server. It exposes
// Open/Close, a basic health check, and the publish/subscribe/backlog
// operations the HTTP and gRPC surfaces forward to.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	_, seqno, _ := rt.Publish(context.Background(), "102", "orders", []byte("hello"))
package runtime
