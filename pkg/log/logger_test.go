package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newCapturedLogger(level Level, f Formatter) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(
		WithLevel(level),
		WithFormatter(f),
		WithOutput(NewWriterOutput(&buf)),
	)
	return l, &buf
}

func TestLevelGate(t *testing.T) {
	l, buf := newCapturedLogger(WarnLevel, &TextFormatter{})
	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")
	l.Error("kept too")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("sub-level entries leaked: %q", out)
	}
	if got := strings.Count(out, "\n"); got != 2 {
		t.Fatalf("want 2 lines, got %d: %q", got, out)
	}
}

func TestJSONFieldsFlattened(t *testing.T) {
	l, buf := newCapturedLogger(DebugLevel, &JSONFormatter{})
	l.Info("socket open", Str("addr", "127.0.0.1:9000"), Int("streams", 3), Uint64("seqno", 42))

	var obj map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &obj); err != nil {
		t.Fatalf("not valid JSON: %v", err)
	}
	if obj["msg"] != "socket open" || obj["level"] != "INFO" {
		t.Fatalf("bad envelope: %v", obj)
	}
	if obj["addr"] != "127.0.0.1:9000" || obj["streams"] != float64(3) || obj["seqno"] != float64(42) {
		t.Fatalf("fields not flattened: %v", obj)
	}
}

func TestWithBindsFieldsToChildren(t *testing.T) {
	l, buf := newCapturedLogger(DebugLevel, &JSONFormatter{})
	child := l.WithComponent("subscriber").With(Int("shard", 7))
	child.Debug("resubscribe")

	var obj map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &obj); err != nil {
		t.Fatalf("not valid JSON: %v", err)
	}
	if obj["component"] != "subscriber" || obj["shard"] != float64(7) {
		t.Fatalf("bound fields missing: %v", obj)
	}

	// The parent stays untagged.
	buf.Reset()
	l.Debug("bare")
	obj = nil
	if err := json.Unmarshal(buf.Bytes(), &obj); err != nil {
		t.Fatalf("not valid JSON: %v", err)
	}
	if _, ok := obj["component"]; ok {
		t.Fatalf("parent picked up child's fields: %v", obj)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": DebugLevel,
		"INFO":  InfoLevel,
		"Warn":  WarnLevel,
		"error": ErrorLevel,
		"fatal": FatalLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	l := NewNopLogger()
	l.Info("nothing")
	l.With(Str("k", "v")).Error("still nothing")
}
