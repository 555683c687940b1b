package application

import (
	"fmt"

	"ops-agent/internal/application/config"
	"ops-agent/internal/domain/repository"
	"ops-agent/internal/infra/supervisor/docker"
	"ops-agent/internal/infra/supervisor/systemd"
	"ops-agent/pkg/execx"
	"ops-agent/pkg/log"
)

// NewSupervisorRepository returns the supervisor backend selected by the
// configuration. The returned close function releases backend resources.
func NewSupervisorRepository(cfg *config.Config, runner execx.Runner) (repository.SupervisorRepository, func(), error) {
	switch cfg.Supervisor {
	case config.SupervisorTypeSystemd:
		return systemd.NewSupervisor(systemd.Options{
			UnitDir:       cfg.Systemd.UnitDir,
			EnvDir:        cfg.Systemd.EnvDir,
			ActiveTimeout: cfg.Health.Timeout,
			PollInterval:  cfg.Health.PollInterval,
		}, runner), func() {}, nil

	case config.SupervisorTypeDocker:
		dockerClient, err := docker.NewClient()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Docker client: %w", err)
		}
		closeFn := func() {
			if err := dockerClient.Close(); err != nil {
				log.Warn("failed to close Docker client", "error", err)
			}
		}
		return docker.NewSupervisor(docker.Options{
			Image:         cfg.Docker.Image,
			ActiveTimeout: cfg.Health.Timeout,
			PollInterval:  cfg.Health.PollInterval,
		}, dockerClient), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unsupported supervisor type: %s", cfg.Supervisor)
	}
}
