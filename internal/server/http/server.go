// Package httpserver exposes a single-node Runtime over plain HTTP:
// health, Prometheus metrics, namespace/publish/subscribe, and the
// BacklogQuery round-trip.
package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rzbill/rocketspeed/internal/controlroom"
	"github.com/rzbill/rocketspeed/internal/runtime"
	"github.com/rzbill/rocketspeed/internal/wire"
	logpkg "github.com/rzbill/rocketspeed/pkg/log"
)

// Server adapts a *runtime.Runtime to HTTP.
type Server struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	srv    *http.Server
	lis    net.Listener
}

// New builds a Server bound to rt. Routes are registered at construction
// time; ListenAndServe starts accepting connections.
func New(rt *runtime.Runtime) *Server {
	mux := http.NewServeMux()
	s := &Server{rt: rt, logger: rt.Logger().WithComponent("http"), srv: &http.Server{Handler: mux}}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.Handle("/v1/metrics", rt.Metrics().Handler())
	mux.HandleFunc("/v1/ns/create", s.handleNSCreate)
	mux.HandleFunc("/v1/topics/publish", s.handlePublish)
	mux.HandleFunc("/v1/topics/subscribe", s.handleSubscribeSSE)
	mux.HandleFunc("/v1/topics/backlog", s.handleBacklogQuery)
	return s
}

// ListenAndServe accepts connections on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases the listener without waiting for in-flight requests.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type nsCreateReq struct {
	Namespace string `json:"namespace"`
}

func (s *Server) handleNSCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req nsCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if _, err := s.rt.EnsureNamespace(req.Namespace); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type publishReq struct {
	Namespace string `json:"namespace"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
}

type publishResp struct {
	MsgID string `json:"msgId"`
	Seqno uint64 `json:"seqno"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req publishReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	msgID, seqno, err := s.rt.Publish(r.Context(), req.Namespace, req.Topic, req.Payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(publishResp{MsgID: hexMsgID(msgID), Seqno: seqno})
}

func hexMsgID(id wire.MsgID) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 0, len(id)*2)
	for _, b := range id {
		buf = append(buf, hextable[b>>4], hextable[b&0xf])
	}
	return string(buf)
}

// handleSubscribeSSE streams every DeliverData the control room sends this
// connection's host as newline-delimited JSON, until the client
// disconnects or the request context is canceled.
func (s *Server) handleSubscribeSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ns := r.URL.Query().Get("namespace")
	topic := r.URL.Query().Get("topic")
	host := r.URL.Query().Get("host")
	if ns == "" || topic == "" || host == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	startSeqno, _ := strconv.ParseUint(r.URL.Query().Get("seqno"), 10, 64)
	subID, _ := strconv.ParseUint(r.URL.Query().Get("subId"), 10, 64)
	if subID == 0 {
		subID = 1
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	type deliveryLine struct {
		Seqno   uint64 `json:"seqno"`
		MsgID   string `json:"msgId"`
		Payload []byte `json:"payload"`
	}

	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	unregister := s.rt.Watch(controlroom.HostID(host), func(namespace, t string, gotSubID, seqno uint64, msgID wire.MsgID, payload []byte) error {
		if err := enc.Encode(deliveryLine{Seqno: seqno, MsgID: hexMsgID(msgID), Payload: payload}); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	defer unregister()

	if err := s.rt.Subscribe(r.Context(), controlroom.HostID(host), subID, ns, topic, startSeqno); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.rt.Unsubscribe(ctx, controlroom.HostID(host), subID, ns, topic)
	}()

	<-r.Context().Done()
}

type backlogResp struct {
	Found bool `json:"found"`
}

func (s *Server) handleBacklogQuery(w http.ResponseWriter, r *http.Request) {
	ns := r.URL.Query().Get("namespace")
	topic := r.URL.Query().Get("topic")
	prev, _ := strconv.ParseUint(r.URL.Query().Get("prevSeqno"), 10, 64)
	next, _ := strconv.ParseUint(r.URL.Query().Get("nextSeqno"), 10, 64)
	result := s.rt.BacklogQuery(ns, topic, prev, next)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(backlogResp{Found: result == wire.BacklogFound})
}
