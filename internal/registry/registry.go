// Package registry implements the repo registry described as C11: one
// RepoContext per repo_hash, created on demand and shared across every
// client connection for that repository.
package registry

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/anthropics/semfora/internal/astcache"
	"github.com/anthropics/semfora/internal/bm25"
	"github.com/anthropics/semfora/internal/cachedir"
	"github.com/anthropics/semfora/internal/events"
	"github.com/anthropics/semfora/internal/layer"
)

// eventThrottleWindow is the leading-edge throttle window every
// RepoContext's Broadcaster applies, per spec §4.13's default.
const eventThrottleWindow = 500 * time.Millisecond

// RepoContext bundles everything one registered repository needs,
// matching spec §3's RepoContext entity.
type RepoContext struct {
	RepoID        string
	BaseRepoPath  string
	BaseBranch    string
	FeatureBranch string
	Worktrees     []string

	CacheDir     *cachedir.CacheDir
	LayeredIndex *layer.LayeredIndex
	BM25         *bm25.Index
	ASTCache     *astcache.Cache
	Broadcaster  *events.Broadcaster

	// EnsureFresh, if set, runs a synchronous delta refresh of this
	// context's layered index and is invoked by query handlers (e.g.
	// search) before answering once the index is past its staleness
	// threshold. Wired in by daemon-level startup, which alone knows how
	// to run the scanner/synchronizer pair; left nil here keeps this
	// package free of that dependency.
	EnsureFresh func() error

	mu          sync.Mutex
	clientCount int

	// OnQuiesce, if set, is invoked the moment client_count drops to zero
	// and quiescence is enabled for this context (e.g. to stop the file
	// watcher). OnResume is invoked when a client reconnects to a
	// quiesced context.
	OnQuiesce func()
	OnResume  func()
	quiesced  bool
	quiesceOK bool
}

// AddClient increments the client count, resuming a quiesced watcher if
// this is the first client back.
func (rc *RepoContext) AddClient() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.clientCount++
	if rc.quiesced {
		rc.quiesced = false
		if rc.OnResume != nil {
			rc.OnResume()
		}
	}
}

// RemoveClient decrements the client count. If it reaches zero and
// quiescence is enabled, OnQuiesce fires.
func (rc *RepoContext) RemoveClient() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.clientCount > 0 {
		rc.clientCount--
	}
	if rc.clientCount == 0 && rc.quiesceOK && !rc.quiesced {
		rc.quiesced = true
		if rc.OnQuiesce != nil {
			rc.OnQuiesce()
		}
	}
}

// ClientCount returns the current number of attached clients.
func (rc *RepoContext) ClientCount() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.clientCount
}

// SetQuiesceOnZeroClient enables or disables watcher quiescence for this
// context (backed by DaemonConfig.QuiesceOnZeroClient).
func (rc *RepoContext) SetQuiesceOnZeroClient(enabled bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.quiesceOK = enabled
}

// Registry is indexed by repo_hash; it holds the shared event
// broadcaster used by the socket server (C12) and hands out (creating
// if absent) a RepoContext per repository root.
type Registry struct {
	// OnCreate, if set, is invoked once for every newly constructed
	// RepoContext before it is published to any caller. Daemon-level
	// startup uses this to run the initial scan and start the
	// watcher/poller/synchronizer trio for the repo without this package
	// depending on any of them. A non-nil error aborts GetOrCreate.
	OnCreate func(rc *RepoContext) error

	mu       sync.Mutex
	contexts map[string]*RepoContext
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{contexts: make(map[string]*RepoContext)}
}

// GetOrCreate resolves directory to its git top-level, canonicalizes it,
// computes its repo_hash, and returns the existing RepoContext for that
// hash or creates one. Per spec §4.10.
func (r *Registry) GetOrCreate(directory string) (*RepoContext, error) {
	repo, err := gogit.PlainOpenWithOptions(directory, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("registry: not a git repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("registry: resolving worktree: %w", err)
	}
	root := wt.Filesystem.Root()

	cd, err := cachedir.Open(root)
	if err != nil {
		return nil, fmt.Errorf("registry: resolving cache dir: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.contexts[cd.RepoHash]; ok {
		return existing, nil
	}

	worktrees, err := listWorktrees(root)
	if err != nil {
		worktrees = []string{root}
	}

	rc := &RepoContext{
		RepoID:       cd.RepoHash,
		BaseRepoPath: root,
		BaseBranch:   resolveBaseBranch(repo),
		Worktrees:    worktrees,
		CacheDir:     cd,
		LayeredIndex: layer.NewLayeredIndex(),
		BM25:         bm25.New(),
		ASTCache:     astcache.New(),
		Broadcaster:  events.New(eventThrottleWindow),
	}
	if r.OnCreate != nil {
		if err := r.OnCreate(rc); err != nil {
			return nil, fmt.Errorf("registry: initializing repo context: %w", err)
		}
	}
	r.contexts[cd.RepoHash] = rc
	return rc, nil
}

// Get returns the RepoContext for repoHash if it has already been
// created, without creating one.
func (r *Registry) Get(repoHash string) (*RepoContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.contexts[repoHash]
	return rc, ok
}

// resolveBaseBranch follows the remote HEAD symbolic ref
// (refs/remotes/origin/HEAD); if that isn't set up, it falls back to
// whichever of main/master exists as a local branch.
func resolveBaseBranch(repo *gogit.Repository) string {
	if ref, err := repo.Reference(plumbing.NewRemoteHEADReferenceName("origin"), true); err == nil {
		return ref.Name().Short()
	}
	for _, candidate := range []string{"main", "master"} {
		if _, err := repo.Reference(plumbing.NewBranchReferenceName(candidate), false); err == nil {
			return candidate
		}
	}
	return "main"
}

// listWorktrees shells out to `git worktree list --porcelain`, per spec
// §4.10; go-git v5 has no native worktree enumeration.
func listWorktrees(root string) ([]string, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		if path, ok := strings.CutPrefix(line, "worktree "); ok {
			paths = append(paths, path)
		}
	}
	return paths, nil
}
