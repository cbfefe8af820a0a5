package sync

import (
	"fmt"

	gogit "github.com/go-git/go-git/v5"
)

// DefaultClassifier routes a changed path to Working, Branch, or Base
// following spec §4.7 step 3: a dirty working tree always routes to
// Working; otherwise a checkout of the recorded base branch routes to
// Base, and anything else (a feature branch, checked-out clean) routes
// to Branch.
type DefaultClassifier struct {
	Repo       *gogit.Repository
	BaseBranch string
}

// NewDefaultClassifier opens root as a git repository.
func NewDefaultClassifier(root, baseBranch string) (*DefaultClassifier, error) {
	repo, err := gogit.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("sync: opening repository: %w", err)
	}
	return &DefaultClassifier{Repo: repo, BaseBranch: baseBranch}, nil
}

// ClassifyChange implements Classifier.
func (c *DefaultClassifier) ClassifyChange(path string) (LayerName, error) {
	wt, err := c.Repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("sync: resolving worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("sync: reading status: %w", err)
	}
	if !status.IsClean() {
		return LayerWorking, nil
	}

	head, err := c.Repo.Head()
	if err != nil {
		return "", fmt.Errorf("sync: resolving HEAD: %w", err)
	}
	if head.Name().IsBranch() && head.Name().Short() == c.BaseBranch {
		return LayerBase, nil
	}
	return LayerBranch, nil
}
