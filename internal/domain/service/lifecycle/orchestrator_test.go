package lifecycle

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/repository"
)

const (
	stagingPath = "/srv/releases/staging"
	currentPath = "/srv/releases/current"
)

// fakeReleases keeps slot content as commit strings; "" means absent.
type fakeReleases struct {
	current, backup, staging string
	meta                     model.DeploymentMetadata
	mutations                int
}

type fakeStaging struct{ r *fakeReleases }

func (s fakeStaging) Path() string { return stagingPath }
func (s fakeStaging) Discard()     { s.r.staging = "" }

func (r *fakeReleases) AcquireStaging() (repository.Staging, error) {
	r.mutations++
	return fakeStaging{r}, nil
}

func (r *fakeReleases) Promote(repository.Staging) (string, error) {
	r.mutations++
	if r.staging == "" {
		return "", errors.New("staging is empty")
	}
	if r.current != "" {
		r.backup = r.current
	}
	r.current, r.staging = r.staging, ""
	return r.current, nil
}

func (r *fakeReleases) Revert() (string, error) {
	if r.backup == "" {
		return "", model.ErrNoBackupAvailable
	}
	r.mutations++
	r.current, r.backup = r.backup, ""
	return r.current, nil
}

func (r *fakeReleases) Rotate() error {
	r.mutations++
	r.backup, r.current = r.current, ""
	return nil
}

func (r *fakeReleases) CurrentPath() string { return currentPath }
func (r *fakeReleases) HasCurrent() bool    { return r.current != "" }
func (r *fakeReleases) HasBackup() bool     { return r.backup != "" }

func (r *fakeReleases) CurrentIdentity() string {
	if r.current == "" {
		return model.UnknownIdentity
	}
	return r.current
}

func (r *fakeReleases) WriteMetadata(identity, ref string) error {
	r.mutations++
	now := time.Now()
	r.meta = model.DeploymentMetadata{Commit: identity, Ref: ref, UpdatedAt: &now}
	return nil
}

func (r *fakeReleases) ReadMetadata() model.DeploymentMetadata { return r.meta }

// fakeSource writes "<ref>-commit" into the staging or current slot.
type fakeSource struct {
	r     *fakeReleases
	fail  map[string]bool
	calls int
}

func (s *fakeSource) Fetch(_ context.Context, rev model.Revision, target string, _ io.Writer) error {
	s.calls++
	if s.fail[rev.Ref] {
		return errors.New("remote branch " + rev.Ref + " not found")
	}
	switch target {
	case stagingPath:
		s.r.staging = rev.Ref + "-commit"
	case currentPath:
		s.r.current = rev.Ref + "-commit"
	}
	return nil
}

type fakeBuilder struct {
	err   error
	calls int
	// after runs once the build finished.
	after func()
}

func (b *fakeBuilder) Build(context.Context, string, io.Writer) error {
	b.calls++
	if b.after != nil {
		b.after()
	}
	return b.err
}

type fakeSupervisor struct {
	defined  bool
	created  int
	restarts int
	// failRestarts makes the first n restarts fail.
	failRestarts int
	stopped      []string
	stopErr      error
}

func (s *fakeSupervisor) Type() string { return "fake" }

func (s *fakeSupervisor) EnsureDefinition(context.Context, model.ServiceUnit) (bool, error) {
	if s.defined {
		return false, nil
	}
	s.defined = true
	s.created++
	return true, nil
}

func (s *fakeSupervisor) Restart(ctx context.Context, _ string) error {
	s.restarts++
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.restarts <= s.failRestarts {
		return errors.New("unit entered failed state")
	}
	return nil
}

func (s *fakeSupervisor) Stop(_ context.Context, name string) error {
	s.stopped = append(s.stopped, name)
	return s.stopErr
}

func (s *fakeSupervisor) IsActive(context.Context, string) (bool, error) {
	return s.restarts > s.failRestarts, nil
}

type fakeProbe struct {
	err   error
	check func(ctx context.Context) error
}

func (p *fakeProbe) Check(ctx context.Context) error {
	if p.check != nil {
		return p.check(ctx)
	}
	return p.err
}

type fixture struct {
	releases   *fakeReleases
	source     *fakeSource
	builder    *fakeBuilder
	supervisor *fakeSupervisor
	probe      *fakeProbe
	orch       *Orchestrator
}

func newFixture() *fixture {
	r := &fakeReleases{}
	f := &fixture{
		releases:   r,
		source:     &fakeSource{r: r, fail: map[string]bool{}},
		builder:    &fakeBuilder{},
		supervisor: &fakeSupervisor{},
		probe:      &fakeProbe{},
	}
	opts := Options{
		Unit:          model.ServiceUnit{Name: "patch-system", StartCommand: "npm start"},
		HealthTimeout: 2 * time.Second,
		PollInterval:  time.Second,
		Sleep:         func(context.Context, time.Duration) error { return nil },
	}
	f.orch = NewOrchestrator(opts, f.source, f.builder, f.supervisor, f.releases, f.probe, nil)
	return f
}

func rev(ref string) model.Revision {
	return model.Revision{Source: "https://github.com/acme/patch-system.git", Ref: ref}
}

func TestInvalidInputsMutateNothing(t *testing.T) {
	bad := []model.Revision{
		{Source: "https://github.com/acme/app.git", Ref: "main; rm -rf /"},
		{Source: "https://github.com/acme/app.git", Ref: ""},
		{Source: "--upload-pack=touch /tmp/x", Ref: "main"},
		{Source: "http://github.com/acme/app.git", Ref: "main"},
		{Source: "https://github.com/acme/$(id).git", Ref: "main"},
	}
	ctx := context.Background()
	for _, r := range bad {
		f := newFixture()
		ops := map[string]func() error{
			"download": func() error { _, err := f.orch.Download(ctx, r, io.Discard); return err },
			"deploy":   func() error { _, err := f.orch.Deploy(ctx, r, io.Discard); return err },
			"upgrade":  func() error { _, err := f.orch.Upgrade(ctx, r, io.Discard); return err },
		}
		for name, run := range ops {
			err := run()
			require.ErrorIs(t, err, model.ErrValidation, "%s %v", name, r)
			assert.Equal(t, model.StageValidate, model.StageOf(err))
		}
		assert.Zero(t, f.releases.mutations)
		assert.Zero(t, f.source.calls)
		assert.Zero(t, f.supervisor.restarts)
	}
}

func TestDeployFirstRelease(t *testing.T) {
	f := newFixture()
	out, err := f.orch.Deploy(context.Background(), rev("main"), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "main-commit", out.Commit)
	assert.Equal(t, "main-commit", f.releases.current)
	assert.Empty(t, f.releases.backup)
	assert.Empty(t, f.releases.staging)
	assert.Equal(t, "main-commit", f.releases.meta.Commit)
	assert.Equal(t, "main", f.releases.meta.Ref)
	assert.Equal(t, 1, f.supervisor.created)
	assert.Equal(t, 1, f.supervisor.restarts)
}

func TestDeployHealthFailureLeavesReleaseActive(t *testing.T) {
	f := newFixture()
	f.releases.current = "v1-commit"
	f.probe.err = errors.New("connection refused")

	_, err := f.orch.Deploy(context.Background(), rev("v2"), io.Discard)
	require.ErrorIs(t, err, model.ErrSupervision)
	assert.Equal(t, model.StageSupervise, model.StageOf(err))

	assert.Equal(t, "v2-commit", f.releases.current)
	assert.Equal(t, "v1-commit", f.releases.backup)
	assert.Equal(t, "v2", f.releases.meta.Ref)
}

func TestUpgradeFetchFailureLeavesSlotsUnchanged(t *testing.T) {
	f := newFixture()
	f.releases.current, f.releases.backup = "v1-commit", "v0-commit"
	f.source.fail["bad-ref"] = true

	_, err := f.orch.Upgrade(context.Background(), rev("bad-ref"), io.Discard)
	require.ErrorIs(t, err, model.ErrFetch)
	assert.Equal(t, model.StageFetch, model.StageOf(err))

	assert.Equal(t, "v1-commit", f.releases.current)
	assert.Equal(t, "v0-commit", f.releases.backup)
	assert.Empty(t, f.releases.staging)
	assert.Zero(t, f.builder.calls)
	assert.Zero(t, f.supervisor.restarts)
}

func TestUpgradeBuildFailureDiscardsStaging(t *testing.T) {
	f := newFixture()
	f.releases.current = "v1-commit"
	f.builder.err = errors.New("npm ci exited with 1")

	_, err := f.orch.Upgrade(context.Background(), rev("v2"), io.Discard)
	require.ErrorIs(t, err, model.ErrBuild)
	assert.Equal(t, model.StageBuild, model.StageOf(err))

	assert.Equal(t, "v1-commit", f.releases.current)
	assert.Empty(t, f.releases.backup)
	assert.Empty(t, f.releases.staging)
}

func TestUpgradeHealthFailureReverts(t *testing.T) {
	f := newFixture()
	f.releases.current = "v1-commit"
	f.supervisor.failRestarts = 1

	out, err := f.orch.Upgrade(context.Background(), rev("v2"), io.Discard)
	require.ErrorIs(t, err, model.ErrSupervision)
	assert.Contains(t, err.Error(), "unit entered failed state")

	require.NotNil(t, out)
	assert.True(t, out.RolledBack)
	assert.Equal(t, "v1-commit", f.releases.current)
	assert.Empty(t, f.releases.backup)
	assert.Equal(t, model.RollbackRef, f.releases.meta.Ref)
	assert.Equal(t, f.releases.CurrentIdentity(), f.releases.meta.Commit)
	assert.Equal(t, 2, f.supervisor.restarts)
}

func TestUpgradeInterruptedDuringHealthWaitRestoresPrevious(t *testing.T) {
	f := newFixture()
	f.releases.current = "v1-commit"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.probe.check = func(context.Context) error {
		if f.releases.current == "v2-commit" {
			cancel()
			return errors.New("connection refused")
		}
		return nil
	}

	out, err := f.orch.Upgrade(ctx, rev("v2"), io.Discard)
	require.ErrorIs(t, err, model.ErrSupervision)
	assert.NotErrorIs(t, err, context.Canceled)

	require.NotNil(t, out)
	assert.True(t, out.RolledBack)
	assert.Equal(t, "v1-commit", f.releases.current)
	assert.Equal(t, model.RollbackRef, f.releases.meta.Ref)
	assert.Equal(t, 2, f.supervisor.restarts)
	active, _ := f.supervisor.IsActive(context.Background(), "patch-system")
	assert.True(t, active)
}

func TestDeployInterruptedAfterPromotionStillRestarts(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.builder.after = cancel

	out, err := f.orch.Deploy(ctx, rev("v1"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "v1-commit", out.Commit)
	assert.Equal(t, 1, f.supervisor.restarts)
}

func TestRollbackCompletesOnCancelledContext(t *testing.T) {
	f := newFixture()
	f.releases.current, f.releases.backup = "v2-commit", "v1-commit"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.orch.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1-commit", out.Commit)
	assert.Equal(t, 1, f.supervisor.restarts)
}

func TestUpgradeRevertFailureKeepsOriginalError(t *testing.T) {
	f := newFixture()
	f.probe.err = errors.New("connection refused")

	_, err := f.orch.Upgrade(context.Background(), rev("v1"), io.Discard)
	require.ErrorIs(t, err, model.ErrSupervision)
	assert.NotErrorIs(t, err, model.ErrNoBackupAvailable)
	assert.Equal(t, "v1-commit", f.releases.current)
}

func TestUpgradeSuccessKeepsBackup(t *testing.T) {
	f := newFixture()
	f.releases.current = "v1-commit"
	f.supervisor.defined = true

	out, err := f.orch.Upgrade(context.Background(), rev("v2"), io.Discard)
	require.NoError(t, err)
	assert.False(t, out.RolledBack)
	assert.Equal(t, "v2-commit", f.releases.current)
	assert.Equal(t, "v1-commit", f.releases.backup)
	assert.Zero(t, f.supervisor.created)
}

func TestRollbackWithoutBackup(t *testing.T) {
	f := newFixture()
	f.releases.current = "v1-commit"

	_, err := f.orch.Rollback(context.Background())
	require.ErrorIs(t, err, model.ErrNoBackupAvailable)
	assert.Equal(t, model.StageRevert, model.StageOf(err))
	assert.Zero(t, f.releases.mutations)
	assert.Equal(t, "v1-commit", f.releases.current)
}

func TestRollbackIsSingleShot(t *testing.T) {
	f := newFixture()
	f.releases.current, f.releases.backup = "v2-commit", "v1-commit"

	out, err := f.orch.Rollback(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1-commit", out.Commit)
	assert.Equal(t, model.RollbackRef, f.releases.meta.Ref)
	assert.Equal(t, "v1-commit", f.releases.meta.Commit)

	_, err = f.orch.Rollback(context.Background())
	require.ErrorIs(t, err, model.ErrNoBackupAvailable)
	assert.Equal(t, "v1-commit", f.releases.current)
}

func TestRollbackRestartFailureIsTerminal(t *testing.T) {
	f := newFixture()
	f.releases.current, f.releases.backup = "v2-commit", "v1-commit"
	f.supervisor.failRestarts = 5

	_, err := f.orch.Rollback(context.Background())
	require.ErrorIs(t, err, model.ErrSupervision)
	assert.Equal(t, "v1-commit", f.releases.current)
	assert.Equal(t, 1, f.supervisor.restarts)
}

func TestDownloadRotatesCurrent(t *testing.T) {
	f := newFixture()
	f.releases.current = "v1-commit"

	out, err := f.orch.Download(context.Background(), rev("v2"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "v2-commit", out.Commit)
	assert.Equal(t, "v1-commit", f.releases.backup)
	assert.Equal(t, "v2-commit", f.releases.meta.Commit)
	assert.Zero(t, f.builder.calls)
	assert.Zero(t, f.supervisor.restarts)
}

func TestDownloadFetchFailureLeavesCurrentAbsent(t *testing.T) {
	f := newFixture()
	f.releases.current = "v1-commit"
	f.source.fail["nope"] = true

	_, err := f.orch.Download(context.Background(), rev("nope"), io.Discard)
	require.ErrorIs(t, err, model.ErrFetch)
	assert.False(t, f.releases.HasCurrent())
	assert.Equal(t, "v1-commit", f.releases.backup)
}

func TestMetadataMatchesCurrentIdentity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	steps := []func() error{
		func() error { _, err := f.orch.Download(ctx, rev("v1"), io.Discard); return err },
		func() error { _, err := f.orch.Deploy(ctx, rev("v2"), io.Discard); return err },
		func() error { _, err := f.orch.Upgrade(ctx, rev("v3"), io.Discard); return err },
		func() error { _, err := f.orch.Rollback(ctx); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		assert.Equal(t, f.releases.CurrentIdentity(), f.releases.meta.Commit, "step %d", i)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture()
	_, err := f.orch.Deploy(context.Background(), rev("main"), io.Discard)
	require.NoError(t, err)

	st := f.orch.Status(context.Background())
	assert.Equal(t, "patch-system", st.Service)
	assert.Equal(t, "fake", st.Supervisor)
	assert.True(t, st.Active)
	assert.True(t, st.Healthy)
	assert.True(t, st.HasCurrent)
	assert.False(t, st.HasBackup)
	assert.Equal(t, "main-commit", st.Version.Commit)

	f.probe.err = errors.New("connection refused")
	st = f.orch.Status(context.Background())
	assert.False(t, st.Healthy)
	assert.Equal(t, "connection refused", st.HealthErr)
}

func TestStopLeavesReleasesAlone(t *testing.T) {
	f := newFixture()
	_, err := f.orch.Deploy(context.Background(), rev("main"), io.Discard)
	require.NoError(t, err)
	before := f.releases.mutations

	out, err := f.orch.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main-commit", out.Commit)
	assert.Equal(t, []string{"patch-system"}, f.supervisor.stopped)
	assert.Equal(t, before, f.releases.mutations)

	f.supervisor.stopErr = errors.New("unit not loaded")
	_, err = f.orch.Stop(context.Background())
	assert.ErrorIs(t, err, model.ErrSupervision)
	assert.Equal(t, model.StageSupervise, model.StageOf(err))
}
