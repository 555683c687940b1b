// Package jobs runs lifecycle operations as jobs: one at a time per host,
// each with its own log file and a history record.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/repository"
	"ops-agent/pkg/flock"
	"ops-agent/pkg/log"
	"ops-agent/pkg/metrics"
)

// Work is the body of a job. It writes tool output to out and returns the
// commit left current.
type Work func(ctx context.Context, out io.Writer) (commit string, err error)

// Options configures where jobs keep their logs and lock.
type Options struct {
	LogsPath string
	LockPath string
	// MetricsTextfile, when set, receives the metrics after every job.
	MetricsTextfile string
	// Stdout also receives job output. Nil means os.Stdout.
	Stdout io.Writer
	// Preflight, when set, runs before the lock is taken. Its error rejects
	// the job.
	Preflight func(action model.Action) error
}

// Runner serializes jobs with a file lock and records their outcome.
type Runner struct {
	opts     Options
	history  repository.HistoryRepository
	metrics  *metrics.Operations
	now      func() time.Time
	newID    func() string
	// restored is set once the metrics were seeded from the textfile.
	restored bool
}

func NewRunner(opts Options, history repository.HistoryRepository, m *metrics.Operations) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &Runner{
		opts:    opts,
		history: history,
		metrics: m,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Run executes work as job id, generating an id when empty. It fails with
// model.ErrJobRunning without running work when another job holds the lock.
// The returned job is non-nil whenever work ran.
func (r *Runner) Run(ctx context.Context, id string, action model.Action, rev model.Revision, work Work) (*model.Job, error) {
	if id == "" {
		id = r.newID()
	}
	if r.opts.Preflight != nil {
		if err := r.opts.Preflight(action); err != nil {
			return nil, fmt.Errorf("preflight for %s failed: %w", action, err)
		}
	}

	lock, err := flock.TryLock(r.opts.LockPath, id)
	if errors.Is(err, flock.ErrLocked) {
		return nil, fmt.Errorf("%w: %s", model.ErrJobRunning, flock.Holder(r.opts.LockPath))
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("failed to release job lock", "error", err)
		}
	}()
	r.restoreMetrics()

	job := &model.Job{
		ID:        id,
		Action:    action,
		Repo:      rev.Source,
		Ref:       rev.Ref,
		Status:    model.JobStatusRunning,
		StartedAt: r.now().UTC(),
	}
	job.LogPath = getLogPath(r.opts.LogsPath, string(action), id, job.StartedAt)

	logFile, err := os.Create(job.LogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create job log: %w", err)
	}
	defer logFile.Close()

	r.save(job)
	fmt.Fprintf(logFile, "=== Job %s (ID: %s) ===\n", action, id)
	if action.TakesRevision() {
		fmt.Fprintf(logFile, "Repository: %s\nRef: %s\n", rev.Source, rev.Ref)
	}
	fmt.Fprintf(logFile, "Started: %s\n=== Output ===\n\n", job.StartedAt.Format(time.RFC3339))

	restore := log.Tee(logFile)
	log.Info("job started", "job_id", id, "action", action)
	commit, workErr := work(ctx, io.MultiWriter(r.opts.Stdout, logFile))
	r.finish(job, commit, workErr)
	if workErr != nil {
		log.Error("job failed", "job_id", id, "action", action, "stage", job.Stage, "error", workErr)
	} else {
		log.Info("job completed", "job_id", id, "action", action, "commit", commit)
	}
	restore()

	fmt.Fprintf(logFile, "\n=== Job %s (Exit Code: %d) ===\n", job.Status, *job.ExitCode)
	r.save(job)
	r.observe(job)
	return job, workErr
}

func (r *Runner) finish(job *model.Job, commit string, err error) {
	finished := r.now().UTC()
	job.FinishedAt = &finished
	job.Commit = commit

	code := 0
	job.Status = model.JobStatusSuccess
	if err != nil {
		code = 1
		job.Status = model.JobStatusFailed
		job.Stage = model.StageOf(err)
		job.Error = err.Error()
	}
	job.ExitCode = &code
}

func (r *Runner) save(job *model.Job) {
	if r.history == nil {
		return
	}
	if err := r.history.Save(job); err != nil {
		log.Warn("failed to record job history", "job_id", job.ID, "error", err)
	}
}

func (r *Runner) observe(job *model.Job) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveOperation(string(job.Action), string(job.Status), job.Duration())
	if err := r.metrics.WriteTextfile(r.opts.MetricsTextfile); err != nil {
		log.Warn("failed to write metrics textfile", "path", r.opts.MetricsTextfile, "error", err)
	}
}

// restoreMetrics seeds the metrics from the previous textfile. It runs under
// the job lock so that two agents never start from the same snapshot.
func (r *Runner) restoreMetrics() {
	if r.metrics == nil || r.restored {
		return
	}
	r.restored = true
	if err := r.metrics.Restore(r.opts.MetricsTextfile); err != nil {
		log.Warn("starting metrics from zero", "path", r.opts.MetricsTextfile, "error", err)
	}
}

// NewJobID returns a fresh job id.
func (r *Runner) NewJobID() string {
	return r.newID()
}

// ActiveJob returns the id of the running job, or "" when none runs.
func (r *Runner) ActiveJob() string {
	return flock.ActiveHolder(r.opts.LockPath)
}

// getLogPath returns <logsDir>/<YYYYMMDDhhmmss>_<action>_<id>.log.
func getLogPath(logsDir, action, id string, started time.Time) string {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		log.Printf("Failed to create log directory: %v", err)
	}
	filename := fmt.Sprintf("%s_%s_%s.log", started.Format("20060102150405"), action, id)
	return filepath.Join(logsDir, filename)
}
