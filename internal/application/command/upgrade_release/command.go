package upgrade_release

// UpgradeReleaseCommand is a deploy that restores the previous release when
// the service does not come up. Empty Repo and Ref fall back to the
// configured defaults.
type UpgradeReleaseCommand struct {
	JobID string
	Repo  string
	Ref   string
}

// Name returns the name of the command
func (c UpgradeReleaseCommand) Name() string {
	return "UpgradeRelease"
}
