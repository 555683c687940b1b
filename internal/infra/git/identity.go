package git

import (
	gogit "github.com/go-git/go-git/v5"

	"ops-agent/internal/domain/model"
	"ops-agent/pkg/log"
)

const shortHashLen = 7

// Identity returns the abbreviated HEAD commit of the repository in dir, or
// model.UnknownIdentity when dir is not a readable repository.
func Identity(dir string) string {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		log.Debug("release is not a git repository", "path", dir, "error", err)
		return model.UnknownIdentity
	}
	head, err := repo.Head()
	if err != nil {
		log.Debug("failed to resolve release HEAD", "path", dir, "error", err)
		return model.UnknownIdentity
	}
	return head.Hash().String()[:shortHashLen]
}
