package httpserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/rocketspeed/internal/config"
	"github.com/rzbill/rocketspeed/internal/runtime"
	pebblestore "github.com/rzbill/rocketspeed/internal/storage/pebble"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	rt, err := runtime.Open(runtime.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	s := New(rt)
	ts := httptest.NewServer(s.srv.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestPublishEndpointReturnsSeqno(t *testing.T) {
	_, ts := newTestServer(t)
	body, _ := json.Marshal(publishReq{Namespace: "ns", Topic: "orders", Payload: []byte("hello")})
	resp, err := http.Post(ts.URL+"/v1/topics/publish", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST publish: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got publishResp
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Seqno != 1 {
		t.Fatalf("expected seqno 1 for first publish, got %d", got.Seqno)
	}
	if len(got.MsgID) != 32 {
		t.Fatalf("expected a 32-char hex MsgID, got %q", got.MsgID)
	}
}

func TestSubscribeSSEStreamsPublishedRecord(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/topics/subscribe?namespace=ns&topic=orders&host=h1&subId=1", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET subscribe: %v", err)
	}
	defer resp.Body.Close()

	// Give the control room a moment to apply the subscribe before
	// publishing, then publish in the background while we read the stream.
	time.Sleep(20 * time.Millisecond)
	go func() {
		body, _ := json.Marshal(publishReq{Namespace: "ns", Topic: "orders", Payload: []byte("hi")})
		_, _ = http.Post(ts.URL+"/v1/topics/publish", "application/json", bytes.NewReader(body))
	}()

	scanner := bufio.NewScanner(resp.Body)
	if !scanner.Scan() {
		t.Fatalf("expected at least one streamed line, scan error: %v", scanner.Err())
	}
	var line struct {
		Seqno   uint64 `json:"seqno"`
		Payload []byte `json:"payload"`
	}
	if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal streamed line: %v", err)
	}
	if string(line.Payload) != "hi" {
		t.Fatalf("expected payload %q, got %q", "hi", line.Payload)
	}
}

func TestBacklogQueryEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/topics/backlog?namespace=ns&topic=orders&prevSeqno=0&nextSeqno=1")
	if err != nil {
		t.Fatalf("GET backlog: %v", err)
	}
	defer resp.Body.Close()
	var got backlogResp
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Found {
		t.Fatalf("expected not found before any subscriber/publish")
	}
}
