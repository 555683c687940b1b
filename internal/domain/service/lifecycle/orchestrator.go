// Package lifecycle drives the download, deploy, upgrade and rollback
// operations over the source, build, release and supervisor collaborators,
// and owns the recovery policy when one of them fails.
//
// The orchestrator assumes a single writer. Callers serialize operations per
// service, see the job runner in internal/application/jobs.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/repository"
	"ops-agent/pkg/backoff"
	"ops-agent/pkg/log"
	"ops-agent/pkg/metrics"
)

// Options configures the managed service and how long to wait for it.
type Options struct {
	Unit          model.ServiceUnit
	HealthTimeout time.Duration
	PollInterval  time.Duration
	// Sleep is used between health polls. Nil means real time.
	Sleep backoff.Sleeper
}

// Outcome describes the release left current by a successful operation, or
// by a failed upgrade that was reverted.
type Outcome struct {
	Commit     string
	Ref        string
	RolledBack bool
}

// Orchestrator composes the lifecycle collaborators.
type Orchestrator struct {
	opts       Options
	source     repository.SourceRepository
	builder    repository.BuildRepository
	supervisor repository.SupervisorRepository
	releases   repository.ReleaseRepository
	probe      repository.HealthProbe
	recorder   metrics.Recorder
}

// NewOrchestrator creates an Orchestrator. probe and recorder may be nil.
func NewOrchestrator(
	opts Options,
	source repository.SourceRepository,
	builder repository.BuildRepository,
	supervisor repository.SupervisorRepository,
	releases repository.ReleaseRepository,
	probe repository.HealthProbe,
	recorder metrics.Recorder,
) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 30 * time.Second
	}
	if opts.Unit.RestartSec == 0 {
		opts.Unit.RestartSec = model.DefaultRestartSec
	}
	return &Orchestrator{
		opts:       opts,
		source:     source,
		builder:    builder,
		supervisor: supervisor,
		releases:   releases,
		probe:      probe,
		recorder:   recorder,
	}
}

// Download fetches rev straight into the current slot, rotating any existing
// release into backup first. The service is not touched.
func (o *Orchestrator) Download(ctx context.Context, rev model.Revision, out io.Writer) (*Outcome, error) {
	const op = model.ActionDownload
	if err := rev.Validate(); err != nil {
		return nil, model.NewOperationError(op, model.StageValidate, model.ErrValidation, err)
	}

	if o.releases.HasCurrent() {
		log.Info("rotating current release into backup")
		if err := o.releases.Rotate(); err != nil {
			return nil, model.NewOperationError(op, model.StageActivate, model.ErrActivation, err)
		}
	}

	log.Info("fetching source", "source", rev.Source, "ref", rev.Ref)
	if err := o.source.Fetch(ctx, rev, o.releases.CurrentPath(), out); err != nil {
		return nil, model.NewOperationError(op, model.StageFetch, model.ErrFetch, err)
	}

	commit := o.releases.CurrentIdentity()
	if err := o.releases.WriteMetadata(commit, rev.Ref); err != nil {
		return nil, model.NewOperationError(op, model.StageActivate, model.ErrActivation, err)
	}
	log.Info("download complete", "commit", commit, "ref", rev.Ref)
	return &Outcome{Commit: commit, Ref: rev.Ref}, nil
}

// Deploy fetches, builds and activates rev, then restarts the service. A
// service that does not come up leaves the new release active.
func (o *Orchestrator) Deploy(ctx context.Context, rev model.Revision, out io.Writer) (*Outcome, error) {
	const op = model.ActionDeploy
	commit, err := o.stageAndPromote(ctx, op, rev, out)
	if err != nil {
		return nil, err
	}
	// Once the release is active the operation runs to its terminal outcome.
	ctx = context.WithoutCancel(ctx)
	if err := o.startService(ctx); err != nil {
		log.Error("service unhealthy after deploy, release left active", "commit", commit, "error", err)
		return nil, model.NewOperationError(op, model.StageSupervise, model.ErrSupervision, err)
	}
	log.Info("deploy complete", "commit", commit, "ref", rev.Ref)
	return &Outcome{Commit: commit, Ref: rev.Ref}, nil
}

// Upgrade is Deploy with compensation: when the service fails to come up on
// the new release, the previous release is restored and restarted. The
// returned error is always the original failure.
func (o *Orchestrator) Upgrade(ctx context.Context, rev model.Revision, out io.Writer) (*Outcome, error) {
	const op = model.ActionUpgrade
	commit, err := o.stageAndPromote(ctx, op, rev, out)
	if err != nil {
		return nil, err
	}

	// Cancellation after promotion would strand the host between releases,
	// so the restart and any compensation ignore it.
	ctx = context.WithoutCancel(ctx)
	startErr := o.startService(ctx)
	if startErr == nil {
		log.Info("upgrade complete", "commit", commit, "ref", rev.Ref)
		return &Outcome{Commit: commit, Ref: rev.Ref}, nil
	}

	log.Error("service unhealthy after upgrade, reverting", "commit", commit, "error", startErr)
	outcome := o.compensate(ctx)
	return outcome, model.NewOperationError(op, model.StageSupervise, model.ErrSupervision, startErr)
}

// compensate restores the backup release. Failures are logged only. It never
// observes cancellation of ctx.
func (o *Orchestrator) compensate(ctx context.Context) *Outcome {
	ctx = context.WithoutCancel(ctx)
	restored, err := o.releases.Revert()
	if err != nil {
		log.Error("automatic revert failed", "error", err)
		o.observeAutoRollback(false)
		return nil
	}
	if err := o.releases.WriteMetadata(restored, model.RollbackRef); err != nil {
		log.Error("writing metadata after automatic revert failed", "error", err)
	}
	if err := o.startService(ctx); err != nil {
		log.Error("restored release did not come up", "commit", restored, "error", err)
		o.observeAutoRollback(false)
		return &Outcome{Commit: restored, Ref: model.RollbackRef, RolledBack: true}
	}
	log.Info("restored previous release", "commit", restored)
	o.observeAutoRollback(true)
	return &Outcome{Commit: restored, Ref: model.RollbackRef, RolledBack: true}
}

// Rollback restores the backup release and restarts the service.
func (o *Orchestrator) Rollback(ctx context.Context) (*Outcome, error) {
	const op = model.ActionRollback
	if !o.releases.HasBackup() {
		return nil, model.NewOperationError(op, model.StageRevert, model.ErrNoBackupAvailable, model.ErrNoBackupAvailable)
	}

	ctx = context.WithoutCancel(ctx)
	restored, err := o.releases.Revert()
	if err != nil {
		kind := model.ErrActivation
		if errors.Is(err, model.ErrNoBackupAvailable) {
			kind = model.ErrNoBackupAvailable
		}
		return nil, model.NewOperationError(op, model.StageRevert, kind, err)
	}
	if err := o.releases.WriteMetadata(restored, model.RollbackRef); err != nil {
		return nil, model.NewOperationError(op, model.StageActivate, model.ErrActivation, err)
	}

	if err := o.startService(ctx); err != nil {
		return nil, model.NewOperationError(op, model.StageSupervise, model.ErrSupervision, err)
	}
	log.Info("rollback complete", "commit", restored)
	return &Outcome{Commit: restored, Ref: model.RollbackRef, RolledBack: true}, nil
}

// Stop stops the service without touching the releases.
func (o *Orchestrator) Stop(ctx context.Context) (*Outcome, error) {
	const op = model.ActionStop
	name := o.opts.Unit.Name
	if err := o.supervisor.Stop(context.WithoutCancel(ctx), name); err != nil {
		return nil, model.NewOperationError(op, model.StageSupervise, model.ErrSupervision, err)
	}
	meta := o.releases.ReadMetadata()
	log.Info("service stopped", "service", name, "commit", meta.Commit)
	return &Outcome{Commit: meta.Commit, Ref: meta.Ref}, nil
}

// Status reports the deployed release and whether the service is up.
func (o *Orchestrator) Status(ctx context.Context) model.ServiceStatus {
	st := model.ServiceStatus{
		Service:    o.opts.Unit.Name,
		Supervisor: o.supervisor.Type(),
		Version:    o.releases.ReadMetadata(),
		HasCurrent: o.releases.HasCurrent(),
		HasBackup:  o.releases.HasBackup(),
	}

	active, err := o.supervisor.IsActive(ctx, o.opts.Unit.Name)
	if err != nil {
		log.Debug("querying service state failed", "error", err)
	}
	st.Active = active

	if o.probe == nil {
		st.Healthy = active
		return st
	}
	if err := o.probe.Check(ctx); err != nil {
		st.HealthErr = err.Error()
	} else {
		st.Healthy = true
	}
	return st
}

// stageAndPromote runs validate, fetch, build and promote, and records the
// new release in the metadata. Staging is discarded on every path.
func (o *Orchestrator) stageAndPromote(ctx context.Context, op model.Action, rev model.Revision, out io.Writer) (string, error) {
	if err := rev.Validate(); err != nil {
		return "", model.NewOperationError(op, model.StageValidate, model.ErrValidation, err)
	}

	stg, err := o.releases.AcquireStaging()
	if err != nil {
		return "", model.NewOperationError(op, model.StageFetch, model.ErrActivation, err)
	}
	defer stg.Discard()

	log.Info("fetching source", "source", rev.Source, "ref", rev.Ref)
	if err := o.source.Fetch(ctx, rev, stg.Path(), out); err != nil {
		return "", model.NewOperationError(op, model.StageFetch, model.ErrFetch, err)
	}

	log.Info("building release")
	if err := o.builder.Build(ctx, stg.Path(), out); err != nil {
		return "", model.NewOperationError(op, model.StageBuild, model.ErrBuild, err)
	}

	commit, err := o.releases.Promote(stg)
	if err != nil {
		return "", model.NewOperationError(op, model.StageActivate, model.ErrActivation, err)
	}
	if err := o.releases.WriteMetadata(commit, rev.Ref); err != nil {
		return "", model.NewOperationError(op, model.StageActivate, model.ErrActivation, err)
	}
	log.Info("release promoted", "commit", commit, "ref", rev.Ref)
	return commit, nil
}

// startService makes sure the process definition exists, restarts the
// service and waits for the health probe.
func (o *Orchestrator) startService(ctx context.Context) error {
	unit := o.opts.Unit
	unit.WorkingDir = o.releases.CurrentPath()

	created, err := o.supervisor.EnsureDefinition(ctx, unit)
	if err != nil {
		return fmt.Errorf("ensure service definition: %w", err)
	}
	if created {
		log.Info("created service definition", "service", unit.Name, "supervisor", o.supervisor.Type())
	}

	if err := o.supervisor.Restart(ctx, unit.Name); err != nil {
		return err
	}
	if o.probe == nil {
		return nil
	}
	if err := backoff.Poll(ctx, o.opts.HealthTimeout, o.opts.PollInterval, o.opts.Sleep, o.probe.Check); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

func (o *Orchestrator) observeAutoRollback(ok bool) {
	if o.recorder != nil {
		o.recorder.ObserveAutoRollback(ok)
	}
}
