package rollback_release

import (
	"context"
	"io"

	"ops-agent/internal/application/jobs"
	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/service/lifecycle"
)

type RollBacker interface {
	Rollback(ctx context.Context) (*lifecycle.Outcome, error)
}

// RollbackReleaseHandler handles the RollbackReleaseCommand
type RollbackReleaseHandler struct {
	jobs *jobs.Runner
	op   RollBacker
}

// Handle executes the RollbackReleaseCommand
func (h *RollbackReleaseHandler) Handle(ctx context.Context, cmd RollbackReleaseCommand) error {
	_, err := h.jobs.Run(ctx, cmd.JobID, model.ActionRollback, model.Revision{}, func(ctx context.Context, _ io.Writer) (string, error) {
		outcome, err := h.op.Rollback(ctx)
		if outcome == nil {
			return "", err
		}
		return outcome.Commit, err
	})
	return err
}

// NewRollbackReleaseHandler creates a new RollbackReleaseHandler
func NewRollbackReleaseHandler(runner *jobs.Runner, op RollBacker) *RollbackReleaseHandler {
	return &RollbackReleaseHandler{jobs: runner, op: op}
}
