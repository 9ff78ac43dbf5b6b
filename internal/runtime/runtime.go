package runtime

import (
	"context"

	"github.com/google/uuid"

	cfgpkg "github.com/rzbill/rocketspeed/internal/config"
	"github.com/rzbill/rocketspeed/internal/controlroom"
	"github.com/rzbill/rocketspeed/internal/eventloop"
	"github.com/rzbill/rocketspeed/internal/logtailer"
	"github.com/rzbill/rocketspeed/internal/metricsx"
	"github.com/rzbill/rocketspeed/internal/namespace"
	"github.com/rzbill/rocketspeed/internal/router"
	"github.com/rzbill/rocketspeed/internal/rserrors"
	"github.com/rzbill/rocketspeed/internal/storage/logstore"
	pebblestore "github.com/rzbill/rocketspeed/internal/storage/pebble"
	"github.com/rzbill/rocketspeed/internal/wire"
	logpkg "github.com/rzbill/rocketspeed/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	Config  cfgpkg.Config

	// Logger is optional; nil disables logging.
	Logger logpkg.Logger

	// NumShards is the number of control-room shards the static router
	// hashes topics across. Zero defaults to 1.
	NumShards uint32
	// Hosts is the static server list the router assigns shards to. A
	// single-node deployment leaves this empty; GetServerFor then reports
	// NotInitialized, which only the (unbuilt) cross-node forwarding path
	// would ever call.
	Hosts []string
}

// Runtime wires storage, the log tailer, and the control room for a
// single-node instance. All subscribe/publish/backlog traffic targeting a
// shard this node owns flows through the embedded ControlRoom directly;
// nothing here opens a network listener, that is internal/server's job.
type Runtime struct {
	db     *pebblestore.DB
	config cfgpkg.Config
	logger logpkg.Logger
	router router.Router
	logs   *logstore.Store
	loop   *eventloop.Loop
	cancel context.CancelFunc

	metrics *metricsx.Metrics
	deliver *LocalDeliverer
	tailer  *logTailerAdapter
	room    *controlroom.ControlRoom
}

// Open initializes storage and every in-process collaborator and starts
// the control room's event loop.
func Open(opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync})
	if err != nil {
		return nil, err
	}

	numShards := opts.NumShards
	if numShards == 0 {
		numShards = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	rt := &Runtime{
		db:      db,
		config:  opts.Config,
		logger:  logger.WithComponent("runtime"),
		router:  router.NewStaticRouter(numShards, opts.Hosts),
		logs:    logstore.Open(db),
		metrics: metricsx.New(),
		deliver: NewLocalDeliverer(),
	}

	queueSize := opts.Config.QueueSize
	rt.loop = eventloop.New(eventloop.Options{QueueSize: queueSize})
	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	go rt.loop.Run(ctx)

	rt.tailer = newLogTailerAdapter(logtailer.StoreAdapter{Store: rt.logs}, rt.loop, rt.metrics)
	rt.tailer.reader.SetLogger(logger)
	rt.room = controlroom.New(controlroom.Options{
		Router:  rt.router,
		Tailer:  rt.tailer,
		Deliver: rt.deliver,
		Metrics: rt.metrics,
		Loop:    rt.loop,
		Logger:  logger,
	})
	rt.tailer.room = rt.room

	rt.logger.Info("runtime open",
		logpkg.Str("data_dir", opts.DataDir), logpkg.Int("shards", int(numShards)))
	return rt, nil
}

// Close stops the control room's loop and the underlying storage.
func (r *Runtime) Close() error {
	r.logger.Info("runtime closing")
	if r.cancel != nil {
		r.cancel()
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check against the storage layer.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return rserrors.New(rserrors.NotInitialized, "runtime: db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// EnsureNamespace records ns as seen (idempotent) in the namespace registry.
func (r *Runtime) EnsureNamespace(name string) (namespace.Meta, error) {
	return namespace.Touch(r.db, name)
}

// Namespaces lists every namespace the registry has on record.
func (r *Runtime) Namespaces() ([]namespace.Meta, error) {
	return namespace.List(r.db)
}

// Publish appends payload to the log backing (ns, topic), assigning it a
// fresh MsgID, and returns the seqno it was assigned at.
func (r *Runtime) Publish(ctx context.Context, ns, topic string, payload []byte) (wire.MsgID, uint64, error) {
	if _, err := namespace.Touch(r.db, ns); err != nil {
		return wire.MsgID{}, 0, err
	}
	var msgID wire.MsgID
	id := uuid.New()
	copy(msgID[:], id[:])

	logID := uint64(r.router.GetLogID(ns, topic))
	seqno, err := r.logs.Append(ctx, logID, msgID[:], payload)
	if err != nil {
		return wire.MsgID{}, 0, err
	}
	return msgID, seqno, nil
}

// Subscribe registers host as a subscriber of (ns, topic) starting at
// startSeqno, starting tailing the underlying log if this is the topic's
// first subscriber. Blocks until the control room has applied it.
func (r *Runtime) Subscribe(ctx context.Context, host controlroom.HostID, subID uint64, ns, topic string, startSeqno uint64) error {
	if _, err := namespace.Touch(r.db, ns); err != nil {
		return err
	}
	return r.room.SubmitMetadataSync(ctx, controlroom.MessageMetadata{
		Kind: controlroom.MetadataSubscribe, Namespace: ns, Topic: topic,
		SubID: subID, Seqno: startSeqno, Host: host,
	})
}

// Unsubscribe tears down host's subscription to (ns, topic), stopping
// tailing if it was the topic's last subscriber. Blocks until applied.
func (r *Runtime) Unsubscribe(ctx context.Context, host controlroom.HostID, subID uint64, ns, topic string) error {
	return r.room.SubmitMetadataSync(ctx, controlroom.MessageMetadata{
		Kind: controlroom.MetadataUnsubscribe, Namespace: ns, Topic: topic,
		SubID: subID, Host: host,
	})
}

// BacklogQuery answers whether data exists for (ns, topic) in the
// (prevSeqno, nextSeqno] range, from the control room's own bookkeeping.
func (r *Runtime) BacklogQuery(ns, topic string, prevSeqno, nextSeqno uint64) wire.BacklogResult {
	return r.room.BacklogQuery(ns, topic, prevSeqno, nextSeqno)
}

// Watch registers fn to receive every DeliverData the control room sends
// host (Acks are not passed to fn), standing in for the network transport a deployed rocketeer
// server would dial out over. Returns an unregister func.
func (r *Runtime) Watch(host controlroom.HostID, fn DeliveryFunc) func() {
	return r.deliver.Register(host, fn)
}

// DB exposes the underlying storage for advanced operations (internal use
// only: the admin/introspection surface).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime's logger for sibling surfaces (HTTP, gRPC)
// to derive their own component loggers from.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }

// Router exposes the shard/log router for introspection.
func (r *Runtime) Router() router.Router { return r.router }

// Metrics exposes the Prometheus metric set for the HTTP metrics endpoint.
func (r *Runtime) Metrics() *metricsx.Metrics { return r.metrics }

// ControlRoom exposes the control room for introspection (admin surface,
// tests).
func (r *Runtime) ControlRoom() *controlroom.ControlRoom { return r.room }
