package download_release

import (
	"context"
	"io"

	"ops-agent/internal/application/config"
	"ops-agent/internal/application/jobs"
	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/service/lifecycle"
	"ops-agent/pkg/log"
)

// Downloader fetches a revision into the current slot.
type Downloader interface {
	Download(ctx context.Context, rev model.Revision, out io.Writer) (*lifecycle.Outcome, error)
}

// DownloadReleaseHandler handles the DownloadReleaseCommand
type DownloadReleaseHandler struct {
	config *config.Config
	jobs   *jobs.Runner
	op     Downloader
}

// Handle executes the DownloadReleaseCommand
func (h *DownloadReleaseHandler) Handle(ctx context.Context, cmd DownloadReleaseCommand) error {
	rev, err := h.config.Revision(cmd.Repo, cmd.Ref)
	if err != nil {
		return err
	}
	if err := rev.Validate(); err != nil {
		return err
	}
	log.Debug("processing download request", "repo", rev.Source, "ref", rev.Ref)

	_, err = h.jobs.Run(ctx, cmd.JobID, model.ActionDownload, rev, func(ctx context.Context, out io.Writer) (string, error) {
		outcome, err := h.op.Download(ctx, rev, out)
		if outcome == nil {
			return "", err
		}
		return outcome.Commit, err
	})
	return err
}

// NewDownloadReleaseHandler creates a new DownloadReleaseHandler
func NewDownloadReleaseHandler(config *config.Config, runner *jobs.Runner, op Downloader) *DownloadReleaseHandler {
	return &DownloadReleaseHandler{
		config: config,
		jobs:   runner,
		op:     op,
	}
}
