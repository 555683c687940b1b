// Package build runs the install and build steps a release declares. Tool
// output is passed through untouched; only the exit status matters.
package build

import (
	"context"
	"fmt"
	"io"

	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/repository"
	"ops-agent/pkg/execx"
	"ops-agent/pkg/log"
)

// Runner implements repository.BuildRepository.
type Runner struct {
	exec execx.Runner
}

var _ repository.BuildRepository = (*Runner)(nil)

func NewRunner(exec execx.Runner) *Runner {
	return &Runner{exec: exec}
}

// Build installs dependencies and runs the build action, when declared.
func (r *Runner) Build(ctx context.Context, dir string, out io.Writer) error {
	m, err := DetectManifest(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrBuild, err)
	}
	if m == nil {
		log.Info("no build manifest found, skipping build", "path", dir)
		return nil
	}

	steps := []struct {
		name string
		cmd  *execx.Cmd
	}{
		{"install", m.InstallCmd()},
		{"build", m.BuildCmd()},
	}
	for _, step := range steps {
		if step.cmd == nil {
			log.Info("build step not declared, skipping", "step", step.name, "manifest", m.Kind())
			continue
		}
		cmd := *step.cmd
		cmd.Dir = dir
		cmd.Out = out

		log.Info("running build step", "step", step.name, "cmd", cmd.String())
		if _, err := r.exec.Run(ctx, cmd); err != nil {
			return fmt.Errorf("%w: %s step: %w", model.ErrBuild, step.name, err)
		}
	}
	return nil
}
