package get_status

import (
	"context"

	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/repository"
	"ops-agent/pkg/log"
)

// StatusReader reports the service state.
type StatusReader interface {
	Status(ctx context.Context) model.ServiceStatus
}

// ActiveJobReader reports the running job, if any.
type ActiveJobReader interface {
	ActiveJob() string
}

// CapabilityReader lists the external tools and their versions.
type CapabilityReader interface {
	ToMap() map[string]string
}

// GetStatusQueryHandler handles the GetStatusQuery
type GetStatusQueryHandler struct {
	status       StatusReader
	jobs         ActiveJobReader
	history      repository.HistoryRepository
	capabilities CapabilityReader
}

// Handle executes the GetStatusQuery and returns the result
func (h *GetStatusQueryHandler) Handle(ctx context.Context, _ GetStatusQuery) (*model.AgentStatus, error) {
	st := &model.AgentStatus{
		ServiceStatus: h.status.Status(ctx),
		ActiveJob:     h.jobs.ActiveJob(),
		Capabilities:  h.capabilities.ToMap(),
	}
	if h.history != nil {
		last, err := h.history.Latest()
		if err != nil {
			log.Warn("failed to load last job", "error", err)
		}
		st.LastJob = last
	}
	return st, nil
}

// NewGetStatusQueryHandler creates a new GetStatusQueryHandler
func NewGetStatusQueryHandler(status StatusReader, jobs ActiveJobReader, history repository.HistoryRepository, capabilities CapabilityReader) *GetStatusQueryHandler {
	return &GetStatusQueryHandler{
		status:       status,
		jobs:         jobs,
		history:      history,
		capabilities: capabilities,
	}
}
