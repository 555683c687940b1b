package repository

import "ops-agent/internal/domain/model"

// Staging is a scoped staging slot. Discard is safe to call after the slot
// has been promoted.
type Staging interface {
	Path() string
	Discard()
}

// ReleaseRepository owns the current, backup and staging slots and the
// deployment metadata. Callers must serialize access.
type ReleaseRepository interface {
	// AcquireStaging returns an empty staging slot.
	AcquireStaging() (Staging, error)

	// Promote moves current to backup, when present, and staging to current.
	// It returns the identity of the new current release.
	Promote(stg Staging) (string, error)

	// Revert drops current and moves backup into its place. It fails with
	// model.ErrNoBackupAvailable when there is no backup.
	Revert() (string, error)

	// Rotate moves current to backup without a replacement.
	Rotate() error

	CurrentPath() string
	HasCurrent() bool
	HasBackup() bool

	// CurrentIdentity returns the identity of the current release or
	// model.UnknownIdentity.
	CurrentIdentity() string

	WriteMetadata(identity, ref string) error
	ReadMetadata() model.DeploymentMetadata
}
