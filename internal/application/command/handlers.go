package command

import (
	"ops-agent/internal/application/command/deploy_release"
	"ops-agent/internal/application/command/download_release"
	"ops-agent/internal/application/command/rollback_release"
	"ops-agent/internal/application/command/stop_service"
	"ops-agent/internal/application/command/upgrade_release"
	"ops-agent/internal/application/config"
	"ops-agent/internal/application/jobs"
	"ops-agent/internal/domain/service/lifecycle"
	"ops-agent/pkg/cqrs"
	"ops-agent/pkg/log"
)

func RegisterCommandHandlers(b cqrs.CommandBus, config *config.Config, runner *jobs.Runner, orchestrator *lifecycle.Orchestrator) error {
	if err := b.Register(download_release.NewDownloadReleaseHandler(config, runner, orchestrator)); err != nil {
		return log.Errorf("failed to register download release handler: %w", err)
	}

	if err := b.Register(deploy_release.NewDeployReleaseHandler(config, runner, orchestrator)); err != nil {
		return log.Errorf("failed to register deploy release handler: %w", err)
	}

	if err := b.Register(upgrade_release.NewUpgradeReleaseHandler(config, runner, orchestrator)); err != nil {
		return log.Errorf("failed to register upgrade release handler: %w", err)
	}

	if err := b.Register(rollback_release.NewRollbackReleaseHandler(runner, orchestrator)); err != nil {
		return log.Errorf("failed to register rollback release handler: %w", err)
	}

	if err := b.Register(stop_service.NewStopServiceHandler(runner, orchestrator)); err != nil {
		return log.Errorf("failed to register stop service handler: %w", err)
	}

	return nil
}
