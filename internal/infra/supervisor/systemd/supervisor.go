// Package systemd supervises the service as a systemd unit.
package systemd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/repository"
	"ops-agent/pkg/backoff"
	"ops-agent/pkg/env"
	"ops-agent/pkg/execx"
	"ops-agent/pkg/files"
	"ops-agent/pkg/log"
)

// Type is the supervisor type name.
const Type = "systemd"

// Options locates unit and environment files and bounds the active-state wait.
type Options struct {
	UnitDir string
	EnvDir  string
	// ActiveTimeout bounds how long Restart waits for the unit to settle.
	ActiveTimeout time.Duration
	PollInterval  time.Duration
	// SettleChecks is how many consecutive active readings count as up.
	SettleChecks int
	Sleep        backoff.Sleeper
}

// Supervisor implements repository.SupervisorRepository with systemctl.
type Supervisor struct {
	opts   Options
	runner execx.Runner
}

var _ repository.SupervisorRepository = (*Supervisor)(nil)

func NewSupervisor(opts Options, runner execx.Runner) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.ActiveTimeout <= 0 {
		opts.ActiveTimeout = 30 * time.Second
	}
	if opts.SettleChecks < 1 {
		opts.SettleChecks = 2
	}
	return &Supervisor{opts: opts, runner: runner}
}

func (s *Supervisor) Type() string { return Type }

func (s *Supervisor) unitPath(name string) string {
	return filepath.Join(s.opts.UnitDir, name+".service")
}

func (s *Supervisor) envPath(name string) string {
	return filepath.Join(s.opts.EnvDir, name+".env")
}

// EnsureDefinition writes and enables the unit when it does not exist yet.
func (s *Supervisor) EnsureDefinition(ctx context.Context, unit model.ServiceUnit) (bool, error) {
	if err := unit.Validate(); err != nil {
		return false, fmt.Errorf("invalid service unit: %w", err)
	}
	path := s.unitPath(unit.Name)
	if files.Exists(path) {
		log.Debug("unit already present, leaving it unchanged", "unit", path)
		return false, nil
	}

	if err := env.Save(s.envPath(unit.Name), unit.Env); err != nil {
		return false, err
	}
	content, err := renderUnit(unit, s.envPath(unit.Name))
	if err != nil {
		return false, err
	}
	if err := files.WriteAtomic(path, content, 0o644); err != nil {
		return false, fmt.Errorf("failed to write unit: %w", err)
	}

	if err := s.systemctl(ctx, "daemon-reload"); err != nil {
		return false, err
	}
	if err := s.systemctl(ctx, "enable", unit.Name+".service"); err != nil {
		return false, err
	}
	log.Info("installed systemd unit", "unit", path)
	return true, nil
}

// Restart restarts the unit and waits until systemd reports it active for
// SettleChecks consecutive polls.
func (s *Supervisor) Restart(ctx context.Context, name string) error {
	if err := s.systemctl(ctx, "restart", name+".service"); err != nil {
		return fmt.Errorf("%w: %w", model.ErrSupervision, err)
	}

	streak := 0
	err := backoff.Poll(ctx, s.opts.ActiveTimeout, s.opts.PollInterval, s.opts.Sleep, func(ctx context.Context) error {
		state := s.state(ctx, name)
		if state != "active" {
			streak = 0
			return fmt.Errorf("unit %s is %s", name, state)
		}
		streak++
		if streak < s.opts.SettleChecks {
			return errors.New("waiting for unit to settle")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrSupervision, err)
	}
	return nil
}

func (s *Supervisor) Stop(ctx context.Context, name string) error {
	if err := s.systemctl(ctx, "stop", name+".service"); err != nil {
		return fmt.Errorf("%w: %w", model.ErrSupervision, err)
	}
	return nil
}

func (s *Supervisor) IsActive(ctx context.Context, name string) (bool, error) {
	return s.state(ctx, name) == "active", nil
}

// state returns the ActiveState reported by systemctl is-active. The command
// exits non-zero for every state except active, so the output is what counts.
func (s *Supervisor) state(ctx context.Context, name string) string {
	out, err := s.runner.Run(ctx, execx.Cmd{Name: "systemctl", Args: []string{"is-active", name + ".service"}})
	state := strings.TrimSpace(out)
	if state == "" {
		if err != nil {
			return "unknown"
		}
		return "active"
	}
	return state
}

func (s *Supervisor) systemctl(ctx context.Context, args ...string) error {
	if _, err := s.runner.Run(ctx, execx.Cmd{Name: "systemctl", Args: args}); err != nil {
		return fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
