package cli

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anthropics/semfora/internal/config"
	"github.com/anthropics/semfora/internal/gitboundary"
	"github.com/anthropics/semfora/internal/registry"
	"github.com/anthropics/semfora/internal/sync"
	"github.com/anthropics/semfora/internal/watcher"
)

// repoRuntime holds the background goroutines one registered repository
// owns: the debounced file watcher (C9), the git boundary poller (C10),
// and the synchronizer (C8) that turns the watcher's batches into layer
// updates. daemonRuntime.Close stops every repoRuntime it created.
type repoRuntime struct {
	watcher *watcher.Watcher
	poller  *gitboundary.Poller
	done    chan struct{}
}

// daemonRuntime is installed as Registry.OnCreate so every newly
// registered repository gets an initial scan and a live watcher/poller
// pair, without the registry package depending on any of them.
type daemonRuntime struct {
	cfg    *config.Config
	logger *zap.Logger

	repos []*repoRuntime
}

func newDaemonRuntime(cfg *config.Config, logger *zap.Logger) *daemonRuntime {
	return &daemonRuntime{cfg: cfg, logger: logger}
}

// onCreate is wired as registry.Registry.OnCreate.
func (d *daemonRuntime) onCreate(rc *registry.RepoContext) error {
	d.logger.Info("scanning repository", zap.String("repo", rc.BaseRepoPath))
	if err := initialScan(rc); err != nil {
		return err
	}

	classifier, err := sync.NewDefaultClassifier(rc.BaseRepoPath, rc.BaseBranch)
	if err != nil {
		return fmt.Errorf("cli: building layer classifier: %w", err)
	}
	synchronizer := sync.New(rc.BaseRepoPath, rc.CacheDir, rc.LayeredIndex, rc.BM25, rc.ASTCache, rc.Broadcaster, classifier)
	synchronizer.StaleAfterCommits = d.cfg.Layers.StaleAfterCommits
	synchronizer.StaleAfterSeconds = int64(d.cfg.Layers.StaleAfterSeconds)

	poller, err := gitboundary.New(rc.BaseRepoPath, time.Duration(d.cfg.Layers.GitPollIntervalMS)*time.Millisecond, rc.Broadcaster)
	if err != nil {
		return fmt.Errorf("cli: starting git boundary poller: %w", err)
	}
	synchronizer.CommitsBehind = func(indexedSHA string) (int, error) {
		current, err := poller.Snapshot()
		if err != nil {
			return 0, err
		}
		if descendant, err := poller.IsDescendant(indexedSHA, current.HeadSHA); err != nil || !descendant {
			// A non-descendant HEAD (rebase, branch switch) is always
			// treated as maximally stale; EnsureFresh re-scans rather than
			// trying to count commits against a history that moved.
			return d.cfg.Layers.StaleAfterCommits + 1, nil
		}
		return 0, nil
	}

	rc.EnsureFresh = func() error {
		stale, err := synchronizer.CheckStaleness(rc.LayeredIndex.Working.Meta)
		if err != nil {
			return err
		}
		if !stale {
			return nil
		}
		d.logger.Info("index stale, re-scanning", zap.String("repo", rc.BaseRepoPath))
		return initialScan(rc)
	}

	w, err := watcher.New(rc.BaseRepoPath, time.Duration(d.cfg.Watch.DebounceMS)*time.Millisecond, d.cfg.Watch.ExtraIgnores)
	if err != nil {
		return fmt.Errorf("cli: starting file watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("cli: starting file watcher: %w", err)
	}
	poller.Start()

	rt := &repoRuntime{watcher: w, poller: poller, done: make(chan struct{})}
	go d.pumpChanges(rc, synchronizer, w, rt.done)

	// Quiescence (spec §4.10's quiesce_on_zero_client) would stop the
	// watcher and poller while no client is attached; Watcher and Poller
	// are both start-once (their stop channel can't be reopened), so
	// quiescing here would need a restartable wrapper neither type
	// currently provides. Left unwired; see DESIGN.md.
	d.repos = append(d.repos, rt)
	return nil
}

// pumpChanges feeds every debounced batch the watcher produces into the
// synchronizer until done is closed.
func (d *daemonRuntime) pumpChanges(rc *registry.RepoContext, synchronizer *sync.Synchronizer, w *watcher.Watcher, done chan struct{}) {
	for {
		select {
		case changes, ok := <-w.Changes:
			if !ok {
				return
			}
			stats, results := synchronizer.ProcessBatch(changes)
			for _, r := range results {
				if r.Err != nil {
					d.logger.Warn("re-extraction failed", zap.String("path", r.Path), zap.Error(r.Err))
				}
			}
			if stats.FilesTouched > 0 {
				d.logger.Debug("applied watcher batch",
					zap.String("repo", rc.BaseRepoPath),
					zap.Int("files_touched", stats.FilesTouched))
			}
		case <-done:
			return
		}
	}
}

// Close stops every repository's watcher and poller.
func (d *daemonRuntime) Close() {
	for _, rt := range d.repos {
		close(rt.done)
		rt.watcher.Stop()
		rt.poller.Stop()
	}
}
