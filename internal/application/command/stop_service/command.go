package stop_service

// StopServiceCommand stops the managed service. Releases are left as they are.
type StopServiceCommand struct {
	JobID string
}

// Name returns the name of the command
func (c StopServiceCommand) Name() string {
	return "StopService"
}
