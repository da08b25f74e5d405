package tracker

import (
	"github.com/zjrosen/switchyard/internal/git/application"
	"github.com/zjrosen/switchyard/internal/log"
)

// FallbackBaseBranch is used when the remote HEAD symbolic-ref cannot be
// resolved (no remote, detached, lookup error).
const FallbackBaseBranch = "main"

// ResolveBaseBranch derives the canonical upstream default branch for a
// repository from the remote's HEAD pointer. Best-effort and fork-safe:
// callers must never treat the fallback as an error.
func ResolveBaseBranch(repo application.Repository, remote string) string {
	name, err := repo.RemoteHead(remote)
	if err != nil {
		log.Warn(log.CatTracker, "Base branch resolution failed, using fallback",
			"repo", repo.Root(), "remote", remote, "fallback", FallbackBaseBranch, "error", err)
		return FallbackBaseBranch
	}
	return name
}
