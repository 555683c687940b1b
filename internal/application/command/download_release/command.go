package download_release

// DownloadReleaseCommand fetches a revision straight into the current
// release slot without touching the service. Empty Repo and Ref fall back
// to the configured defaults.
type DownloadReleaseCommand struct {
	JobID string
	Repo  string
	Ref   string
}

// Name returns the name of the command
func (c DownloadReleaseCommand) Name() string {
	return "DownloadRelease"
}
