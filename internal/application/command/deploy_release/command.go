package deploy_release

// DeployReleaseCommand fetches, builds and activates a revision and
// restarts the service. Empty Repo and Ref fall back to the configured
// defaults.
type DeployReleaseCommand struct {
	JobID string
	Repo  string
	Ref   string
}

// Name returns the name of the command
func (c DeployReleaseCommand) Name() string {
	return "DeployRelease"
}
