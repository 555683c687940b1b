package get_history

import (
	"context"

	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/repository"
)

const defaultLimit = 20

// GetHistoryQueryHandler handles the GetHistoryQuery
type GetHistoryQueryHandler struct {
	history repository.HistoryRepository
}

// Handle executes the GetHistoryQuery and returns the result
func (h *GetHistoryQueryHandler) Handle(_ context.Context, query GetHistoryQuery) ([]*model.Job, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	return h.history.List(limit)
}

// NewGetHistoryQueryHandler creates a new GetHistoryQueryHandler
func NewGetHistoryQueryHandler(history repository.HistoryRepository) *GetHistoryQueryHandler {
	return &GetHistoryQueryHandler{history: history}
}
