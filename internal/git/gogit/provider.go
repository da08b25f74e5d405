// Package gogit implements the git application ports on top of go-git,
// with fsnotify-driven change events per repository.
package gogit

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/zjrosen/switchyard/internal/git/application"
	domain "github.com/zjrosen/switchyard/internal/git/domain"
	"github.com/zjrosen/switchyard/internal/log"
	"github.com/zjrosen/switchyard/internal/pubsub"
)

// Provider tracks a set of repositories and fans out their change events.
type Provider struct {
	mu      sync.RWMutex
	repos   map[string]*Repository
	broker  *pubsub.Broker[domain.RepositoryEvent]
	watcher *refWatcher
}

var _ application.Provider = (*Provider)(nil)

// NewProvider creates a provider with an active filesystem watcher.
func NewProvider() (*Provider, error) {
	p := &Provider{
		repos:  make(map[string]*Repository),
		broker: pubsub.NewBroker[domain.RepositoryEvent](),
	}
	w, err := newRefWatcher(p.handleFsChange)
	if err != nil {
		return nil, fmt.Errorf("creating ref watcher: %w", err)
	}
	p.watcher = w
	return p, nil
}

// Open starts tracking the repository rooted at or above path.
// Opening an already-tracked repository returns the existing handle.
func (p *Provider) Open(path string) (application.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotGitRepo, path)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree for %s: %w", path, err)
	}
	root := filepath.Clean(wt.Filesystem.Root())

	p.mu.Lock()
	if existing, ok := p.repos[root]; ok {
		p.mu.Unlock()
		return existing, nil
	}
	r := &Repository{root: root, repo: repo}
	p.repos[root] = r
	p.mu.Unlock()

	if err := p.watcher.watch(root); err != nil {
		log.Warn(log.CatGit, "Watching repository failed; change events disabled", "path", root, "error", err)
	}

	log.Info(log.CatGit, "Repository opened", "path", root)
	p.broker.Publish(domain.RepositoryEvent{Type: domain.EventOpened, Path: root})
	return r, nil
}

// Repositories returns all tracked repositories.
func (p *Provider) Repositories() []application.Repository {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]application.Repository, 0, len(p.repos))
	for _, r := range p.repos {
		out = append(out, r)
	}
	return out
}

// Get returns the tracked repository for the given root path.
func (p *Provider) Get(path string) (application.Repository, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.repos[filepath.Clean(path)]
	return r, ok
}

// Events returns a stream of repository lifecycle and change events.
func (p *Provider) Events() *pubsub.Subscription[domain.RepositoryEvent] {
	return p.broker.Subscribe()
}

// Close stops the watcher. Tracked handles stay usable for direct reads.
func (p *Provider) Close() error {
	return p.watcher.close()
}

// handleFsChange receives debounced watcher callbacks keyed by repository root.
func (p *Provider) handleFsChange(root string, gone bool) {
	if gone {
		p.mu.Lock()
		delete(p.repos, root)
		p.mu.Unlock()
		log.Info(log.CatGit, "Repository closed", "path", root)
		p.broker.Publish(domain.RepositoryEvent{Type: domain.EventClosed, Path: root})
		return
	}
	log.Debug(log.CatGit, "Repository state changed", "path", root)
	p.broker.Publish(domain.RepositoryEvent{Type: domain.EventChanged, Path: root})
}

// Repository is a go-git backed implementation of application.Repository.
type Repository struct {
	mu   sync.Mutex
	root string
	repo *gogit.Repository
}

var _ application.Repository = (*Repository)(nil)

// Root returns the working-copy root path.
func (r *Repository) Root() string { return r.root }

// Head returns the current branch short name, or "" for a detached HEAD.
func (r *Repository) Head() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	if !ref.Name().IsBranch() {
		return "", nil
	}
	return ref.Name().Short(), nil
}

// Branches returns all local branches with the current one flagged.
func (r *Repository) Branches() ([]domain.BranchInfo, error) {
	head, err := r.Head()
	if err != nil {
		head = ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	defer iter.Close()

	var branches []domain.BranchInfo
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		branches = append(branches, domain.BranchInfo{
			Name:      name,
			IsCurrent: name == head,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating branches: %w", err)
	}
	return branches, nil
}

// LastCommitTime returns the committer timestamp of the branch tip.
func (r *Repository) LastCommitTime(branch string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hash, err := r.repo.ResolveRevision(plumbing.Revision(branch))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", domain.ErrBranchNotFound, branch)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading commit %s: %w", hash, err)
	}
	return commit.Committer.When, nil
}

// RemoteHead resolves refs/remotes/<remote>/HEAD to a branch short name.
func (r *Repository) RemoteHead(remote string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refName := plumbing.ReferenceName("refs/remotes/" + remote + "/HEAD")
	ref, err := r.repo.Reference(refName, false)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrNoRemoteHead, remote)
	}
	if ref.Type() != plumbing.SymbolicReference {
		return "", fmt.Errorf("%w: %s is not symbolic", domain.ErrNoRemoteHead, refName)
	}
	target := ref.Target().Short()
	return strings.TrimPrefix(target, remote+"/"), nil
}

// RemoteURL returns the first fetch URL of the named remote.
func (r *Repository) RemoteURL(remote string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rem, err := r.repo.Remote(remote)
	if err != nil {
		return "", fmt.Errorf("looking up remote %s: %w", remote, err)
	}
	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %s has no URLs", remote)
	}
	return urls[0], nil
}

// Checkout switches the working tree to the named branch.
func (r *Repository) Checkout(branch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	err = wt.Checkout(&gogit.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(branch)})
	if err != nil {
		return fmt.Errorf("checking out %s: %w", branch, err)
	}
	return nil
}
