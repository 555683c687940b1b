package stop_service

import (
	"context"
	"io"

	"ops-agent/internal/application/jobs"
	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/service/lifecycle"
	"ops-agent/pkg/log"
)

type Stopper interface {
	Stop(ctx context.Context) (*lifecycle.Outcome, error)
}

// StopServiceHandler handles the StopServiceCommand
type StopServiceHandler struct {
	jobs *jobs.Runner
	op   Stopper
}

// Handle executes the StopServiceCommand
func (h *StopServiceHandler) Handle(ctx context.Context, cmd StopServiceCommand) error {
	log.Debug("processing stop request", "job_id", cmd.JobID)
	_, err := h.jobs.Run(ctx, cmd.JobID, model.ActionStop, model.Revision{}, func(ctx context.Context, _ io.Writer) (string, error) {
		outcome, err := h.op.Stop(ctx)
		if outcome == nil {
			return "", err
		}
		return outcome.Commit, err
	})
	return err
}

// NewStopServiceHandler creates a new StopServiceHandler
func NewStopServiceHandler(runner *jobs.Runner, op Stopper) *StopServiceHandler {
	return &StopServiceHandler{jobs: runner, op: op}
}
