// Package git acquires release source with the git CLI and reads the
// identity of a checked-out release with go-git.
package git

import (
	"context"
	"fmt"
	"io"
	"os"

	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/repository"
	"ops-agent/pkg/backoff"
	"ops-agent/pkg/execx"
	"ops-agent/pkg/log"
	"ops-agent/pkg/metrics"
)

// Fetcher clones one revision per attempt into a clean directory.
type Fetcher struct {
	runner   execx.Runner
	policy   backoff.Policy
	sleep    backoff.Sleeper
	recorder metrics.Recorder
}

var _ repository.SourceRepository = (*Fetcher)(nil)

// NewFetcher creates a Fetcher. A nil sleep waits in real time.
func NewFetcher(runner execx.Runner, policy backoff.Policy, sleep backoff.Sleeper, recorder metrics.Recorder) *Fetcher {
	return &Fetcher{runner: runner, policy: policy, sleep: sleep, recorder: recorder}
}

// Fetch validates rev and clones it into target, retrying with backoff.
// Partial content is removed before every attempt and after the last one fails.
func (f *Fetcher) Fetch(ctx context.Context, rev model.Revision, target string, out io.Writer) error {
	if err := rev.Validate(); err != nil {
		return err
	}

	err := backoff.Retry(ctx, f.policy, f.sleep, func(attempt int) error {
		if err := os.RemoveAll(target); err != nil {
			return &backoff.Permanent{Err: fmt.Errorf("failed to clear %s: %w", target, err)}
		}
		log.Info("cloning source", "attempt", attempt, "max_attempts", f.policy.MaxAttempts, "ref", rev.Ref)

		_, err := f.runner.Run(ctx, cloneCmd(rev, target, out))
		f.observe(err == nil)
		if err != nil {
			log.Warn("clone attempt failed", "attempt", attempt, "error", err)
		}
		return err
	})
	if err == nil {
		return nil
	}

	if rmErr := os.RemoveAll(target); rmErr != nil {
		log.Warn("failed to remove partial checkout", "path", target, "error", rmErr)
	}
	return fmt.Errorf("%w: %s: %w", model.ErrFetch, rev, err)
}

func (f *Fetcher) observe(ok bool) {
	if f.recorder != nil {
		f.recorder.ObserveFetchAttempt(ok)
	}
}

func cloneCmd(rev model.Revision, target string, out io.Writer) execx.Cmd {
	return execx.Cmd{
		Name: "git",
		Args: []string{
			"clone", "--depth", "1", "--single-branch",
			"--branch=" + rev.Ref,
			"--", rev.Source, target,
		},
		Env:      []string{"GIT_TERMINAL_PROMPT=0"},
		Isolated: true,
		Out:      out,
	}
}
