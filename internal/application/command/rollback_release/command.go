package rollback_release

// RollbackReleaseCommand restores the backup release and restarts the service.
type RollbackReleaseCommand struct {
	JobID string
}

// Name returns the name of the command
func (c RollbackReleaseCommand) Name() string {
	return "RollbackRelease"
}
