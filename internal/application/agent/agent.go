package agent

import (
	"context"
	"fmt"
	"os"

	"ops-agent/internal/application"
	"ops-agent/internal/application/command"
	"ops-agent/internal/application/command/deploy_release"
	"ops-agent/internal/application/command/download_release"
	"ops-agent/internal/application/command/rollback_release"
	"ops-agent/internal/application/command/stop_service"
	"ops-agent/internal/application/command/upgrade_release"
	"ops-agent/internal/application/config"
	"ops-agent/internal/application/jobs"
	"ops-agent/internal/application/query"
	"ops-agent/internal/application/query/get_history"
	"ops-agent/internal/application/query/get_job_log"
	"ops-agent/internal/application/query/get_status"
	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/service/lifecycle"
	"ops-agent/internal/infra/build"
	"ops-agent/internal/infra/git"
	"ops-agent/internal/infra/health"
	"ops-agent/internal/infra/history"
	"ops-agent/internal/infra/release"
	"ops-agent/pkg/capabilities"
	"ops-agent/pkg/cqrs"
	"ops-agent/pkg/execx"
	"ops-agent/pkg/log"
	"ops-agent/pkg/metrics"
)

// minFreeDisk is required on the base path before fetching a release.
const minFreeDisk = 256 << 20

// Agent wires the lifecycle components behind the command and query buses.
type Agent struct {
	config     *config.Config
	commandBus cqrs.CommandBus
	queryBus   cqrs.QueryBus
	jobs       *jobs.Runner
	history    *history.Store
	closers    []func()
}

// NewAgent creates a new agent instance
func NewAgent(ctx context.Context, cfg *config.Config) (*Agent, error) {
	historyStore, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, err
	}
	a := &Agent{config: cfg, history: historyStore}
	a.closers = append(a.closers, func() {
		if err := historyStore.Close(); err != nil {
			log.Warn("failed to close history store", "error", err)
		}
	})

	runner := execx.NewRunner()
	supervisor, closeSupervisor, err := application.NewSupervisorRepository(cfg, runner)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeSupervisor)

	probe, err := health.NewProbe(cfg.Health.Type, cfg.Health.Host, cfg.Port, cfg.Health.PollInterval)
	if err != nil {
		a.Close()
		return nil, err
	}

	recorder := metrics.NewOperations()
	orchestrator := lifecycle.NewOrchestrator(
		lifecycle.Options{
			Unit:          cfg.ServiceUnit(),
			HealthTimeout: cfg.Health.Timeout,
			PollInterval:  cfg.Health.PollInterval,
		},
		git.NewFetcher(runner, cfg.RetryPolicy(), nil, recorder),
		build.NewRunner(runner),
		supervisor,
		release.NewStore(cfg.BasePath, git.Identity),
		probe,
		recorder,
	)

	caps := capabilities.NewCapabilityFactory()
	a.jobs = jobs.NewRunner(jobs.Options{
		LogsPath:        cfg.GetLogsPath(),
		LockPath:        cfg.GetLockPath(),
		MetricsTextfile: cfg.Metrics.Textfile,
		Preflight:       preflight(cfg, caps),
	}, historyStore, recorder)

	a.commandBus = cqrs.NewCommandBus(ctx)
	if err := command.RegisterCommandHandlers(a.commandBus, cfg, a.jobs, orchestrator); err != nil {
		a.Close()
		return nil, err
	}
	a.queryBus = cqrs.NewQueryBus()
	if err := query.RegisterQueryHandlers(a.queryBus, cfg, a.jobs, orchestrator, historyStore, caps); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// preflight checks the host tools and disk space an action needs.
func preflight(cfg *config.Config, caps *capabilities.CapabilityFactory) func(model.Action) error {
	return func(action model.Action) error {
		var required []string
		if action.TakesRevision() {
			required = append(required, capabilities.CapabilityGit)
		}
		if action != model.ActionDownload && cfg.Supervisor == config.SupervisorTypeSystemd {
			required = append(required, capabilities.CapabilitySystemctl)
		}
		if err := caps.Require(required...); err != nil {
			return err
		}
		if action.TakesRevision() {
			if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
				return err
			}
			return capabilities.RequireDisk(cfg.BasePath, minFreeDisk)
		}
		return nil
	}
}

// Run dispatches the lifecycle command for action and returns the job id.
// On failure the id is returned only when the job was recorded, which is not
// the case for preflight or lock rejections.
func (a *Agent) Run(ctx context.Context, action model.Action, repo, ref string) (string, error) {
	jobID := a.jobs.NewJobID()
	var cmd cqrs.Command
	switch action {
	case model.ActionDownload:
		cmd = download_release.DownloadReleaseCommand{JobID: jobID, Repo: repo, Ref: ref}
	case model.ActionDeploy:
		cmd = deploy_release.DeployReleaseCommand{JobID: jobID, Repo: repo, Ref: ref}
	case model.ActionUpgrade:
		cmd = upgrade_release.UpgradeReleaseCommand{JobID: jobID, Repo: repo, Ref: ref}
	case model.ActionRollback:
		cmd = rollback_release.RollbackReleaseCommand{JobID: jobID}
	case model.ActionStop:
		cmd = stop_service.StopServiceCommand{JobID: jobID}
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
	if err := a.commandBus.Dispatch(ctx, cmd); err != nil {
		if _, herr := a.history.Get(jobID); herr != nil {
			return "", err
		}
		return jobID, err
	}
	return jobID, nil
}

// Status returns the service and agent state.
func (a *Agent) Status(ctx context.Context) (*model.AgentStatus, error) {
	res, err := a.queryBus.Dispatch(ctx, get_status.GetStatusQuery{})
	if err != nil {
		return nil, err
	}
	return res.(*model.AgentStatus), nil
}

// History returns up to limit recent jobs.
func (a *Agent) History(ctx context.Context, limit int) ([]*model.Job, error) {
	res, err := a.queryBus.Dispatch(ctx, get_history.GetHistoryQuery{Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.([]*model.Job), nil
}

// JobLog returns a job and its log lines from offset.
func (a *Agent) JobLog(ctx context.Context, jobID string, offset int) (*model.JobLog, error) {
	res, err := a.queryBus.Dispatch(ctx, get_job_log.GetJobLogQuery{JobID: jobID, Offset: offset})
	if err != nil {
		return nil, err
	}
	return res.(*model.JobLog), nil
}

// Close waits for in-flight commands and releases resources.
func (a *Agent) Close() {
	if a.commandBus != nil {
		a.commandBus.Shutdown()
		a.commandBus.WaitForCompletion()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
