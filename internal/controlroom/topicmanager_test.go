package controlroom

import "testing"

func TestAddSubscriberTransitions(t *testing.T) {
	tm := NewTopicManager()

	if !tm.AddSubscriber("ns", "t", 1, 1) {
		t.Fatalf("first subscriber should transition empty->non-empty")
	}
	if tm.AddSubscriber("ns", "t", 1, 2) {
		t.Fatalf("second subscriber should not report a transition")
	}
	if tm.TopicCount() != 1 {
		t.Fatalf("expected 1 topic, got %d", tm.TopicCount())
	}
}

func TestRemoveSubscriberTransitions(t *testing.T) {
	tm := NewTopicManager()
	tm.AddSubscriber("ns", "t", 1, 1)
	tm.AddSubscriber("ns", "t", 1, 2)

	if tm.RemoveSubscriber("ns", "t", 1) {
		t.Fatalf("removing one of two subscribers should not empty the topic")
	}
	if !tm.RemoveSubscriber("ns", "t", 2) {
		t.Fatalf("removing the last subscriber should report empty")
	}
	if tm.TopicCount() != 0 {
		t.Fatalf("expected 0 topics after last removal, got %d", tm.TopicCount())
	}
}

func TestRemoveUnknownIsSoftMiss(t *testing.T) {
	tm := NewTopicManager()
	if tm.RemoveSubscriber("ns", "missing", 1) {
		t.Fatalf("removing from an unknown topic must not report a transition")
	}
}

func TestVisitSubscribersAdvancesRange(t *testing.T) {
	tm := NewTopicManager()
	tm.AddSubscriber("ns", "t", 5, 1)
	tm.AddSubscriber("ns", "t", 9, 2)

	var visited []HostNumber
	tm.VisitSubscribers("ns", "t", 0, 8, func(host HostNumber, next uint64) uint64 {
		visited = append(visited, host)
		return next + 1
	})
	if len(visited) != 1 || visited[0] != 1 {
		t.Fatalf("expected only host 1 in range, got %v", visited)
	}

	subs := tm.Subscribers("ns", "t")
	for _, s := range subs {
		if s.Host == 1 && s.NextExpected != 6 {
			t.Fatalf("expected host 1 advanced to 6, got %d", s.NextExpected)
		}
	}
}

func TestReAddUpdatesInPlace(t *testing.T) {
	tm := NewTopicManager()
	tm.AddSubscriber("ns", "t", 1, 1)
	if tm.AddSubscriber("ns", "t", 42, 1) {
		t.Fatalf("re-adding an existing host should not report a transition")
	}
	subs := tm.Subscribers("ns", "t")
	if len(subs) != 1 || subs[0].NextExpected != 42 {
		t.Fatalf("expected in-place update to 42, got %+v", subs)
	}
}

func TestHostMapBijective(t *testing.T) {
	hm := NewHostMap()
	n1 := hm.Number("host-a")
	n2 := hm.Number("host-b")
	if n1 == n2 {
		t.Fatalf("distinct hosts must get distinct numbers")
	}
	if hm.Number("host-a") != n1 {
		t.Fatalf("re-resolving the same host must return the same number")
	}
	id, ok := hm.HostID(n1)
	if !ok || id != "host-a" {
		t.Fatalf("expected host-a, got %q ok=%v", id, ok)
	}
	hm.Forget("host-a")
	if _, ok := hm.HostID(n1); ok {
		t.Fatalf("expected forgotten host to no longer resolve")
	}
}
