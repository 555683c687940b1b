package model

// DefaultRestartSec is the supervised process's crash-restart delay in seconds.
const DefaultRestartSec = 5

// ServiceUnit is the process supervision definition for the managed service.
type ServiceUnit struct {
	Name         string `validate:"required,service_name"`
	WorkingDir   string `validate:"required"`
	StartCommand string `validate:"required"`
	Env          map[string]string
	RestartSec   int `validate:"gte=0"`
}

// Validate checks the unit fields.
func (u ServiceUnit) Validate() error {
	return Validator().Struct(u)
}
