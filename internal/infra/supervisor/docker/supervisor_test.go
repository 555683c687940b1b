package docker

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ops-agent/internal/domain/model"
)

type fakeEngine struct {
	exists   bool
	states   []container.State
	created  []*container.Config
	hosts    []*container.HostConfig
	pulls    []string
	restarts int
	stopped  []string
}

func (f *fakeEngine) ContainerInspect(_ context.Context, name string) (container.InspectResponse, error) {
	if !f.exists {
		return container.InspectResponse{}, cerrdefs.ErrNotFound.WithMessage("No such container: " + name)
	}
	st := container.State{Running: true}
	if len(f.states) > 0 {
		st, f.states = f.states[0], f.states[1:]
	}
	return container.InspectResponse{ContainerJSONBase: &container.ContainerJSONBase{Name: name, State: &st}}, nil
}

func (f *fakeEngine) ContainerCreate(_ context.Context, cfg *container.Config, host *container.HostConfig,
	_ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
	f.created = append(f.created, cfg)
	f.hosts = append(f.hosts, host)
	f.exists = true
	return container.CreateResponse{ID: "c0ffee"}, nil
}

func (f *fakeEngine) ContainerRestart(context.Context, string, container.StopOptions) error {
	f.restarts++
	if !f.exists {
		return errors.New("no such container")
	}
	return nil
}

func (f *fakeEngine) ContainerStop(_ context.Context, name string, _ container.StopOptions) error {
	if !f.exists {
		return cerrdefs.ErrNotFound.WithMessage("No such container: " + name)
	}
	f.stopped = append(f.stopped, name)
	return nil
}

func (f *fakeEngine) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.pulls = append(f.pulls, ref)
	return io.NopCloser(strings.NewReader(`{"status":"Pull complete"}`)), nil
}

func newTestSupervisor(api API) *Supervisor {
	return NewSupervisor(Options{
		Image:         "node:20-alpine",
		ActiveTimeout: 3 * time.Second,
		PollInterval:  time.Second,
		Sleep:         func(context.Context, time.Duration) error { return nil },
	}, api)
}

var unit = model.ServiceUnit{
	Name:         "patch-system",
	WorkingDir:   "/opt/patch-system/releases/current",
	StartCommand: "npm start",
	Env:          map[string]string{"PORT": "3000"},
	RestartSec:   5,
}

func TestEnsureDefinitionCreatesOnce(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSupervisor(engine)

	created, err := s.EnsureDefinition(context.Background(), unit)
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, engine.created, 1)
	assert.Equal(t, []string{"node:20-alpine"}, engine.pulls)

	cfg, host := engine.created[0], engine.hosts[0]
	assert.Equal(t, []string{"sh", "-c", "npm start"}, []string(cfg.Cmd))
	assert.Equal(t, []string{"PORT=3000"}, cfg.Env)
	assert.Equal(t, "/app", cfg.WorkingDir)
	assert.Equal(t, []string{"/opt/patch-system/releases/current:/app"}, host.Binds)
	assert.Equal(t, container.RestartPolicyAlways, host.RestartPolicy.Name)

	created, err = s.EnsureDefinition(context.Background(), unit)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, engine.created, 1)
}

func TestRestartDetectsRestartLoop(t *testing.T) {
	loop := container.State{Running: true, Restarting: true}
	engine := &fakeEngine{exists: true, states: []container.State{loop, loop, loop, loop, loop}}
	s := newTestSupervisor(engine)

	err := s.Restart(context.Background(), "patch-system")
	require.ErrorIs(t, err, model.ErrSupervision)
}

func TestRestartSettles(t *testing.T) {
	engine := &fakeEngine{exists: true, states: []container.State{{Restarting: true}, {Running: true}, {Running: true}}}
	s := newTestSupervisor(engine)
	require.NoError(t, s.Restart(context.Background(), "patch-system"))
	assert.Equal(t, 1, engine.restarts)
}

func TestIsActiveMissingContainer(t *testing.T) {
	s := newTestSupervisor(&fakeEngine{})
	active, err := s.IsActive(context.Background(), "patch-system")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestStopStopsContainer(t *testing.T) {
	engine := &fakeEngine{exists: true}
	s := newTestSupervisor(engine)

	require.NoError(t, s.Stop(context.Background(), "patch-system"))
	assert.Equal(t, []string{"patch-system"}, engine.stopped)

	engine.exists = false
	err := s.Stop(context.Background(), "patch-system")
	assert.ErrorIs(t, err, model.ErrSupervision)
}
