package model

import "time"

const (
	// UnknownIdentity is reported when a release's commit cannot be determined.
	UnknownIdentity = "unknown"
	// RollbackRef is recorded as the ref of a release restored from backup.
	RollbackRef = "rollback"
)

// DeploymentMetadata records what the current release slot holds.
type DeploymentMetadata struct {
	Commit    string     `json:"deployed_commit"`
	Ref       string     `json:"deployed_ref"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// UnknownMetadata is reported when no metadata record exists or it is unreadable.
func UnknownMetadata() DeploymentMetadata {
	return DeploymentMetadata{Commit: UnknownIdentity, Ref: UnknownIdentity}
}

// IsRollback reports whether the current release was restored from backup.
func (m DeploymentMetadata) IsRollback() bool {
	return m.Ref == RollbackRef
}
