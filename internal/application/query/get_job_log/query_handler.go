package get_job_log

import (
	"context"
	"fmt"

	"ops-agent/internal/application/jobs"
	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/repository"
	"ops-agent/pkg/log"
)

// GetJobLogQueryHandler handles the GetJobLogQuery
type GetJobLogQueryHandler struct {
	history  repository.HistoryRepository
	maxLines int
}

// Handle executes the GetJobLogQuery and returns the result
func (h *GetJobLogQueryHandler) Handle(_ context.Context, query GetJobLogQuery) (*model.JobLog, error) {
	if query.JobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}
	job, err := h.history.Get(query.JobID)
	if err != nil {
		return nil, err
	}

	lines, next, err := jobs.ReadLog(job.LogPath, query.Offset, h.maxLines)
	if err != nil {
		log.Warn("job log unreadable", "job_id", job.ID, "path", job.LogPath, "error", err)
		return &model.JobLog{Job: job, Lines: []string{}, NextOffset: max(query.Offset, 0)}, nil
	}
	return &model.JobLog{Job: job, Lines: lines, NextOffset: next}, nil
}

// NewGetJobLogQueryHandler creates a new GetJobLogQueryHandler. maxLines caps
// the lines returned per call.
func NewGetJobLogQueryHandler(history repository.HistoryRepository, maxLines int) *GetJobLogQueryHandler {
	return &GetJobLogQueryHandler{history: history, maxLines: maxLines}
}
