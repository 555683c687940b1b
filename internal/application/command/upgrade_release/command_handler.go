package upgrade_release

import (
	"context"
	"io"

	"ops-agent/internal/application/config"
	"ops-agent/internal/application/jobs"
	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/service/lifecycle"
	"ops-agent/pkg/log"
)

// Upgrader activates a revision and reverts on failure.
type Upgrader interface {
	Upgrade(ctx context.Context, rev model.Revision, out io.Writer) (*lifecycle.Outcome, error)
}

// UpgradeReleaseHandler handles the UpgradeReleaseCommand
type UpgradeReleaseHandler struct {
	config *config.Config
	jobs   *jobs.Runner
	op     Upgrader
}

// Handle executes the UpgradeReleaseCommand
func (h *UpgradeReleaseHandler) Handle(ctx context.Context, cmd UpgradeReleaseCommand) error {
	rev, err := h.config.Revision(cmd.Repo, cmd.Ref)
	if err != nil {
		return err
	}
	if err := rev.Validate(); err != nil {
		return err
	}
	log.Debug("processing upgrade request", "repo", rev.Source, "ref", rev.Ref)

	_, err = h.jobs.Run(ctx, cmd.JobID, model.ActionUpgrade, rev, func(ctx context.Context, out io.Writer) (string, error) {
		outcome, err := h.op.Upgrade(ctx, rev, out)
		if outcome == nil {
			return "", err
		}
		return outcome.Commit, err
	})
	return err
}

// NewUpgradeReleaseHandler creates a new UpgradeReleaseHandler
func NewUpgradeReleaseHandler(config *config.Config, runner *jobs.Runner, op Upgrader) *UpgradeReleaseHandler {
	return &UpgradeReleaseHandler{
		config: config,
		jobs:   runner,
		op:     op,
	}
}
