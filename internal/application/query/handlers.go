package query

import (
	"ops-agent/internal/application/config"
	"ops-agent/internal/application/jobs"
	"ops-agent/internal/application/query/get_history"
	"ops-agent/internal/application/query/get_job_log"
	"ops-agent/internal/application/query/get_status"
	"ops-agent/internal/domain/repository"
	"ops-agent/internal/domain/service/lifecycle"
	"ops-agent/pkg/capabilities"
	"ops-agent/pkg/cqrs"
	"ops-agent/pkg/log"
)

func RegisterQueryHandlers(b cqrs.QueryBus, config *config.Config, runner *jobs.Runner, orchestrator *lifecycle.Orchestrator,
	history repository.HistoryRepository, caps *capabilities.CapabilityFactory) error {
	if err := b.Register(get_status.NewGetStatusQueryHandler(orchestrator, runner, history, caps)); err != nil {
		return log.Errorf("failed to register get status query handler: %w", err)
	}

	if err := b.Register(get_history.NewGetHistoryQueryHandler(history)); err != nil {
		return log.Errorf("failed to register get history query handler: %w", err)
	}

	if err := b.Register(get_job_log.NewGetJobLogQueryHandler(history, config.MaxLogLines)); err != nil {
		return log.Errorf("failed to register get job log query handler: %w", err)
	}

	return nil
}
