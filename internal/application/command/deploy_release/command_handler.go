package deploy_release

import (
	"context"
	"io"

	"ops-agent/internal/application/config"
	"ops-agent/internal/application/jobs"
	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/service/lifecycle"
	"ops-agent/pkg/log"
)

// Deployer activates a revision.
type Deployer interface {
	Deploy(ctx context.Context, rev model.Revision, out io.Writer) (*lifecycle.Outcome, error)
}

// DeployReleaseHandler handles the DeployReleaseCommand
type DeployReleaseHandler struct {
	config *config.Config
	jobs   *jobs.Runner
	op     Deployer
}

// Handle executes the DeployReleaseCommand
func (h *DeployReleaseHandler) Handle(ctx context.Context, cmd DeployReleaseCommand) error {
	rev, err := h.config.Revision(cmd.Repo, cmd.Ref)
	if err != nil {
		return err
	}
	if err := rev.Validate(); err != nil {
		return err
	}
	log.Debug("processing deploy request", "repo", rev.Source, "ref", rev.Ref)

	_, err = h.jobs.Run(ctx, cmd.JobID, model.ActionDeploy, rev, func(ctx context.Context, out io.Writer) (string, error) {
		outcome, err := h.op.Deploy(ctx, rev, out)
		if outcome == nil {
			return "", err
		}
		return outcome.Commit, err
	})
	return err
}

// NewDeployReleaseHandler creates a new DeployReleaseHandler
func NewDeployReleaseHandler(config *config.Config, runner *jobs.Runner, op Deployer) *DeployReleaseHandler {
	return &DeployReleaseHandler{
		config: config,
		jobs:   runner,
		op:     op,
	}
}
