package events

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFilterMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  string
		want   bool
	}{
		{"all matches anything", Filter{Kind: FilterAll}, "repo:git_state_changed", true},
		{"base_branch matches its scope", Filter{Kind: FilterBaseBranch}, "base_branch:index_updated", true},
		{"base_branch rejects other scope", Filter{Kind: FilterBaseBranch}, "repo:file_changed", false},
		{"repo matches layer_updated", Filter{Kind: FilterRepo}, "repo:layer_updated", true},
		{
			"worktree matches its own path",
			Filter{Kind: FilterWorktree, WorktreePath: "/wt/a"},
			"worktree:/wt/a:file_changed",
			true,
		},
		{
			"worktree rejects a different path",
			Filter{Kind: FilterWorktree, WorktreePath: "/wt/a"},
			"worktree:/wt/b:file_changed",
			false,
		},
		{"missing colon never matches a scoped filter", Filter{Kind: FilterRepo}, "ping", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.event); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestBroadcasterLeadingEdgeThrottle(t *testing.T) {
	b := New(500 * time.Millisecond)
	clock := time.Now()
	b.now = func() time.Time { return clock }

	var received int32
	b.Subscribe(func(Event) { atomic.AddInt32(&received, 1) })

	b.Publish("repo:layer_updated", nil)
	if received != 1 {
		t.Fatalf("first publish should deliver immediately, got %d deliveries", received)
	}

	b.Publish("repo:layer_updated", nil)
	if received != 1 {
		t.Fatalf("publish inside the window should be dropped, got %d deliveries", received)
	}

	clock = clock.Add(501 * time.Millisecond)
	b.Publish("repo:layer_updated", nil)
	if received != 2 {
		t.Fatalf("publish after the window should deliver, got %d deliveries", received)
	}
}

func TestBroadcasterThrottlesPerEventName(t *testing.T) {
	b := New(500 * time.Millisecond)
	clock := time.Now()
	b.now = func() time.Time { return clock }

	var received int32
	b.Subscribe(func(Event) { atomic.AddInt32(&received, 1) })

	b.Publish("repo:layer_updated", nil)
	b.Publish("repo:git_state_changed", nil)

	if received != 2 {
		t.Errorf("distinct event names should each get their own window, got %d deliveries", received)
	}
}

func TestBroadcasterDeliversToAllSinks(t *testing.T) {
	b := New(time.Millisecond)
	var a, c int32
	b.Subscribe(func(Event) { atomic.AddInt32(&a, 1) })
	b.Subscribe(func(Event) { atomic.AddInt32(&c, 1) })

	b.Publish("repo:layer_updated", LayerUpdateStats{Layer: "working"})

	if a != 1 || c != 1 {
		t.Errorf("expected both sinks to receive the event, got a=%d c=%d", a, c)
	}
}
