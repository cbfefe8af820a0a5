// Package events implements the leading-edge-throttled event broadcaster
// described in spec §4.13: events are serialized as single-line JSON and
// fanned out to subscribers, with at most one emission per event type
// per throttle window.
package events

import (
	"strings"
	"sync"
	"time"
)

// Filter selects which dotted event names a subscription receives, per
// spec §3's EventFilter entity.
type Filter struct {
	Kind         FilterKind
	WorktreePath string
}

// FilterKind is one of the EventFilter variants.
type FilterKind string

const (
	FilterBaseBranch     FilterKind = "base_branch"
	FilterFeatureBranch  FilterKind = "feature_branch"
	FilterActiveWorktree FilterKind = "active_worktree"
	FilterWorktree       FilterKind = "worktree"
	FilterRepo           FilterKind = "repo"
	FilterAll            FilterKind = "all"
)

// Matches reports whether a dotted event name (e.g. "base_branch:index_updated",
// "worktree:/path/to/wt:file_changed", "repo:git_state_changed") is
// delivered to a subscription holding this filter.
func (f Filter) Matches(eventName string) bool {
	if f.Kind == FilterAll {
		return true
	}
	scope, _, found := strings.Cut(eventName, ":")
	if !found {
		return false
	}
	switch f.Kind {
	case FilterBaseBranch, FilterFeatureBranch, FilterActiveWorktree, FilterRepo:
		return scope == string(f.Kind)
	case FilterWorktree:
		if scope != "worktree" {
			return false
		}
		path, _, _ := strings.Cut(strings.TrimPrefix(eventName, "worktree:"), ":")
		return path == f.WorktreePath
	default:
		return false
	}
}

// Event is a single emission: a dotted name and a JSON-serializable
// payload.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload"`
}

// Sink receives every throttled emission. The socket server (C12) fans
// these out over per-connection subscriptions.
type Sink func(Event)

// Broadcaster applies a per-event-type leading-edge throttle: the first
// event of a given name within a window is delivered immediately and
// starts the window; subsequent same-name events arriving before the
// window elapses are dropped, not queued.
type Broadcaster struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
	sinks    []Sink
}

// New creates a Broadcaster with the given throttle window (spec default
// 500ms).
func New(window time.Duration) *Broadcaster {
	return &Broadcaster{
		window:   window,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// Subscribe registers a sink that receives every event this broadcaster
// lets through its throttle.
func (b *Broadcaster) Subscribe(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sink)
}

// Publish attempts to emit name/payload, dropping it if another event of
// the same name was delivered less than window ago.
func (b *Broadcaster) Publish(name string, payload interface{}) {
	b.mu.Lock()
	now := b.now()
	if last, ok := b.lastSent[name]; ok && now.Sub(last) < b.window {
		b.mu.Unlock()
		return
	}
	b.lastSent[name] = now
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.Unlock()

	ev := Event{Name: name, Payload: payload}
	for _, sink := range sinks {
		sink(ev)
	}
}

// LayerUpdateStats is the payload of a layer_updated event (spec §4.6
// step 5).
type LayerUpdateStats struct {
	Layer           string `json:"layer"`
	SymbolsAdded    int    `json:"symbols_added"`
	SymbolsRemoved  int    `json:"symbols_removed"`
	SymbolsModified int    `json:"symbols_modified"`
	FilesTouched    int    `json:"files_touched"`
	DurationMS      int64  `json:"duration_ms"`
}

// GitStateChange is the payload of a git_state_changed event (spec
// §4.9).
type GitStateChange struct {
	Prev GitState `json:"prev"`
	New  GitState `json:"new"`
}

// GitState is the branch/HEAD/worktree snapshot the git poller diffs
// between ticks.
type GitState struct {
	Branch    string   `json:"branch"`
	HeadSHA   string   `json:"head_sha"`
	Worktrees []string `json:"worktrees"`
}
