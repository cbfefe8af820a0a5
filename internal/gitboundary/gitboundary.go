// Package gitboundary polls a repository's branch, HEAD, and worktree
// state on a fixed interval and publishes git_state_changed events when
// any of it moves, per spec §4.9.
package gitboundary

import (
	"bufio"
	"errors"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/anthropics/semfora/internal/events"
)

// ErrNoGit is returned when root is not a git repository.
var ErrNoGit = errors.New("gitboundary: not a git repository")

// Poller polls repo state and publishes repo:git_state_changed on the
// given broadcaster only when the observed state actually differs from
// the previous tick.
type Poller struct {
	root        string
	interval    time.Duration
	repo        *gogit.Repository
	broadcaster *events.Broadcaster

	mu   sync.Mutex
	last events.GitState

	stop chan struct{}
	done chan struct{}
}

// New opens root as a git repository and prepares a Poller with the
// given tick interval (spec default 2s).
func New(root string, interval time.Duration, broadcaster *events.Broadcaster) (*Poller, error) {
	repo, err := gogit.PlainOpen(root)
	if err != nil {
		return nil, ErrNoGit
	}
	return &Poller{
		root:        root,
		interval:    interval,
		repo:        repo,
		broadcaster: broadcaster,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Start begins polling in a background goroutine.
func (p *Poller) Start() {
	go p.run()
}

// Stop halts the poll loop.
func (p *Poller) Stop() {
	close(p.stop)
	<-p.done
}

func (p *Poller) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Poller) tick() {
	current, err := p.Snapshot()
	if err != nil {
		return
	}

	p.mu.Lock()
	prev := p.last
	changed := prev.Branch != current.Branch ||
		prev.HeadSHA != current.HeadSHA ||
		!sameWorktrees(prev.Worktrees, current.Worktrees)
	p.last = current
	p.mu.Unlock()

	if changed && p.broadcaster != nil {
		p.broadcaster.Publish("repo:git_state_changed", events.GitStateChange{Prev: prev, New: current})
	}
}

// Snapshot reads the current branch, HEAD SHA, and worktree list without
// comparing against the previous tick.
func (p *Poller) Snapshot() (events.GitState, error) {
	head, err := p.repo.Head()
	if err != nil {
		return events.GitState{}, err
	}

	branch := ""
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	worktrees, err := listWorktrees(p.root)
	if err != nil {
		worktrees = nil
	}

	return events.GitState{
		Branch:    branch,
		HeadSHA:   head.Hash().String(),
		Worktrees: worktrees,
	}, nil
}

// IsDescendant reports whether candidateSHA's commit has ancestorSHA's
// commit among its ancestors (inclusive). Used to tell a fast-forward
// from a rebase or branch switch: if the new HEAD is not a descendant of
// the previously indexed SHA, the layers need a full rebuild rather than
// an incremental update (spec §4.9).
func (p *Poller) IsDescendant(ancestorSHA, candidateSHA string) (bool, error) {
	if ancestorSHA == "" || ancestorSHA == candidateSHA {
		return true, nil
	}
	candidate, err := p.repo.CommitObject(plumbing.NewHash(candidateSHA))
	if err != nil {
		return false, err
	}
	ancestor, err := p.repo.CommitObject(plumbing.NewHash(ancestorSHA))
	if err != nil {
		return false, err
	}
	return candidate.IsAncestor(ancestor)
}

func sameWorktrees(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// listWorktrees shells out to `git worktree list --porcelain`: go-git has
// no native worktree enumeration, and the porcelain format is a stable,
// documented contract.
func listWorktrees(root string) ([]string, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var paths []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if path, ok := strings.CutPrefix(line, "worktree "); ok {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
