package repository

import (
	"context"

	"ops-agent/internal/domain/model"
)

// SupervisorRepository manages the process definition of the service and its lifecycle.
type SupervisorRepository interface {
	// Type names the backend, e.g. "systemd".
	Type() string

	// EnsureDefinition creates the process definition when missing and
	// reports whether it did. An existing definition is never rewritten.
	EnsureDefinition(ctx context.Context, unit model.ServiceUnit) (bool, error)

	// Restart restarts the service and returns nil only after it is
	// confirmed active. Errors match model.ErrSupervision.
	Restart(ctx context.Context, name string) error

	Stop(ctx context.Context, name string) error

	IsActive(ctx context.Context, name string) (bool, error)
}

// HealthProbe checks that the service answers on its port.
type HealthProbe interface {
	Check(ctx context.Context) error
}
