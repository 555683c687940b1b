// Package docker supervises the service as a long-running container that
// runs the current release from a bind mount.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/repository"
	"ops-agent/pkg/backoff"
	"ops-agent/pkg/log"
)

const (
	// Type is the supervisor type name.
	Type = "docker"

	appDir       = "/app"
	managedLabel = "ops-agent.service"
)

// API is the part of the Docker Engine client the supervisor uses.
type API interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
}

var _ API = (*client.Client)(nil)

// Options configures the container and the active-state wait.
type Options struct {
	Image         string
	ActiveTimeout time.Duration
	PollInterval  time.Duration
	SettleChecks  int
	Sleep         backoff.Sleeper
	// PullOutput receives image pull progress. Nil discards it.
	PullOutput io.Writer
}

// Supervisor implements repository.SupervisorRepository on the Docker Engine API.
type Supervisor struct {
	opts Options
	api  API
}

var _ repository.SupervisorRepository = (*Supervisor)(nil)

// NewClient connects to the engine configured by the DOCKER_* environment.
func NewClient() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

func NewSupervisor(opts Options, api API) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.ActiveTimeout <= 0 {
		opts.ActiveTimeout = 30 * time.Second
	}
	if opts.SettleChecks < 1 {
		opts.SettleChecks = 2
	}
	if opts.PullOutput == nil {
		opts.PullOutput = io.Discard
	}
	return &Supervisor{opts: opts, api: api}
}

func (s *Supervisor) Type() string { return Type }

// EnsureDefinition creates the container when no container with the service
// name exists. An existing container is left as it is.
func (s *Supervisor) EnsureDefinition(ctx context.Context, unit model.ServiceUnit) (bool, error) {
	if err := unit.Validate(); err != nil {
		return false, fmt.Errorf("invalid service unit: %w", err)
	}
	_, err := s.api.ContainerInspect(ctx, unit.Name)
	if err == nil {
		log.Debug("container already present, leaving it unchanged", "container", unit.Name)
		return false, nil
	}
	if !client.IsErrNotFound(err) {
		return false, fmt.Errorf("failed to inspect container %s: %w", unit.Name, err)
	}

	if err := s.pull(ctx); err != nil {
		return false, err
	}

	cfg := &container.Config{
		Image:      s.opts.Image,
		Cmd:        []string{"sh", "-c", unit.StartCommand},
		WorkingDir: appDir,
		Env:        envList(unit.Env),
		Labels:     map[string]string{managedLabel: unit.Name},
	}
	hostCfg := &container.HostConfig{
		Binds:         []string{unit.WorkingDir + ":" + appDir},
		NetworkMode:   container.NetworkMode("host"),
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyAlways},
	}
	resp, err := s.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, unit.Name)
	if err != nil {
		return false, fmt.Errorf("failed to create container %s: %w", unit.Name, err)
	}
	for _, w := range resp.Warnings {
		log.Warn("docker create warning", "container", unit.Name, "warning", w)
	}
	log.Info("created service container", "container", unit.Name, "id", resp.ID, "image", s.opts.Image)
	return true, nil
}

func (s *Supervisor) pull(ctx context.Context) error {
	rc, err := s.api.ImagePull(ctx, s.opts.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", s.opts.Image, err)
	}
	defer rc.Close()
	if _, err := io.Copy(s.opts.PullOutput, rc); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", s.opts.Image, err)
	}
	return nil
}

// Restart restarts the container and waits until it is running and not
// restarting for SettleChecks consecutive polls.
func (s *Supervisor) Restart(ctx context.Context, name string) error {
	if err := s.api.ContainerRestart(ctx, name, container.StopOptions{}); err != nil {
		return fmt.Errorf("%w: restart container %s: %w", model.ErrSupervision, name, err)
	}

	streak := 0
	err := backoff.Poll(ctx, s.opts.ActiveTimeout, s.opts.PollInterval, s.opts.Sleep, func(ctx context.Context) error {
		running, err := s.IsActive(ctx, name)
		if err != nil || !running {
			streak = 0
			if err == nil {
				err = fmt.Errorf("container %s is not running", name)
			}
			return err
		}
		streak++
		if streak < s.opts.SettleChecks {
			return errors.New("waiting for container to settle")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrSupervision, err)
	}
	return nil
}

func (s *Supervisor) Stop(ctx context.Context, name string) error {
	if err := s.api.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		return fmt.Errorf("%w: failed to stop container %s: %w", model.ErrSupervision, name, err)
	}
	return nil
}

// IsActive reports whether the container is running and not in a restart loop.
func (s *Supervisor) IsActive(ctx context.Context, name string) (bool, error) {
	info, err := s.api.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	if info.ContainerJSONBase == nil || info.State == nil {
		return false, nil
	}
	return info.State.Running && !info.State.Restarting, nil
}

func envList(vars map[string]string) []string {
	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
