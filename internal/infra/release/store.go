// Package release keeps the current, backup and staging release slots on
// disk and the metadata record describing the current one.
package release

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/repository"
	"ops-agent/pkg/files"
	"ops-agent/pkg/log"
)

const (
	releasesDir  = "releases"
	currentSlot  = "current"
	backupSlot   = "backup"
	stagingSlot  = "staging"
	metadataFile = ".deploy_meta.json"
)

// IdentityFunc returns the content identity of the release in dir.
type IdentityFunc func(dir string) string

// Store implements repository.ReleaseRepository over directories under
// <base>/releases. Slot moves are single renames within that directory.
type Store struct {
	base     string
	dir      string
	identity IdentityFunc
	now      func() time.Time
}

var _ repository.ReleaseRepository = (*Store)(nil)

// NewStore creates a Store rooted at base.
func NewStore(base string, identity IdentityFunc) *Store {
	if identity == nil {
		identity = func(string) string { return model.UnknownIdentity }
	}
	return &Store{
		base:     base,
		dir:      filepath.Join(base, releasesDir),
		identity: identity,
		now:      time.Now,
	}
}

func (s *Store) slot(name string) string { return filepath.Join(s.dir, name) }

// CurrentPath returns the directory the service runs from.
func (s *Store) CurrentPath() string { return s.slot(currentSlot) }

// BackupPath returns the directory holding the previous release.
func (s *Store) BackupPath() string { return s.slot(backupSlot) }

// MetadataPath returns the path of the deployment metadata record.
func (s *Store) MetadataPath() string { return filepath.Join(s.base, metadataFile) }

func (s *Store) HasCurrent() bool { return files.DirExists(s.CurrentPath()) }
func (s *Store) HasBackup() bool  { return files.DirExists(s.BackupPath()) }

// CurrentIdentity returns the identity of the current release.
func (s *Store) CurrentIdentity() string {
	if !s.HasCurrent() {
		return model.UnknownIdentity
	}
	return s.identity(s.CurrentPath())
}

// Staging is a staging slot acquired from a Store.
type Staging struct {
	path     string
	promoted bool
}

func (st *Staging) Path() string { return st.path }

// Discard removes the staging directory unless it was promoted.
func (st *Staging) Discard() {
	if st.promoted {
		return
	}
	if err := os.RemoveAll(st.path); err != nil {
		log.Warn("failed to discard staging slot", "path", st.path, "error", err)
	}
}

// AcquireStaging clears any leftover staging content and returns the slot.
func (s *Store) AcquireStaging() (repository.Staging, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create releases directory: %w", err)
	}
	path := s.slot(stagingSlot)
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to clear staging slot: %w", err)
	}
	return &Staging{path: path}, nil
}

// Promote makes the staged release current, keeping the previous current as
// the only backup. On failure the slots are put back as they were.
func (s *Store) Promote(stg repository.Staging) (string, error) {
	st, ok := stg.(*Staging)
	if !ok || st.promoted {
		return "", fmt.Errorf("staging slot was not acquired from this store")
	}
	if !files.DirExists(st.path) {
		return "", fmt.Errorf("staging slot %s is empty", st.path)
	}

	trash, err := s.moveAside(s.BackupPath())
	if err != nil {
		return "", err
	}

	movedCurrent := false
	if s.HasCurrent() {
		if err := os.Rename(s.CurrentPath(), s.BackupPath()); err != nil {
			s.restore(trash, s.BackupPath())
			return "", fmt.Errorf("failed to move current release to backup: %w", err)
		}
		movedCurrent = true
	}

	if err := os.Rename(st.path, s.CurrentPath()); err != nil {
		if movedCurrent {
			s.restore(s.BackupPath(), s.CurrentPath())
		}
		s.restore(trash, s.BackupPath())
		return "", fmt.Errorf("failed to activate staged release: %w", err)
	}
	st.promoted = true
	s.purge(trash)

	return s.identity(s.CurrentPath()), nil
}

// Revert replaces current with backup. Backup is consumed.
func (s *Store) Revert() (string, error) {
	if !s.HasBackup() {
		return "", model.ErrNoBackupAvailable
	}

	trash, err := s.moveAside(s.CurrentPath())
	if err != nil {
		return "", err
	}
	if err := os.Rename(s.BackupPath(), s.CurrentPath()); err != nil {
		s.restore(trash, s.CurrentPath())
		return "", fmt.Errorf("failed to restore backup release: %w", err)
	}
	s.purge(trash)

	return s.identity(s.CurrentPath()), nil
}

// Rotate moves current into backup, replacing any older backup, and leaves
// no current release.
func (s *Store) Rotate() error {
	if !s.HasCurrent() {
		return nil
	}
	trash, err := s.moveAside(s.BackupPath())
	if err != nil {
		return err
	}
	if err := os.Rename(s.CurrentPath(), s.BackupPath()); err != nil {
		s.restore(trash, s.BackupPath())
		return fmt.Errorf("failed to move current release to backup: %w", err)
	}
	s.purge(trash)
	return nil
}

// moveAside renames path to a unique trash name. It returns "" when path
// does not exist.
func (s *Store) moveAside(path string) (string, error) {
	if !files.Exists(path) {
		return "", nil
	}
	trash := filepath.Join(s.dir, ".trash-"+filepath.Base(path)+"-"+strconv.FormatInt(s.now().UnixNano(), 10))
	if err := os.Rename(path, trash); err != nil {
		return "", fmt.Errorf("failed to move %s aside: %w", path, err)
	}
	return trash, nil
}

func (s *Store) restore(from, to string) {
	if from == "" {
		return
	}
	if err := os.Rename(from, to); err != nil {
		log.Error("failed to restore release slot", "from", from, "to", to, "error", err)
	}
}

func (s *Store) purge(trash string) {
	if trash == "" {
		return
	}
	if err := os.RemoveAll(trash); err != nil {
		log.Warn("failed to remove old release", "path", trash, "error", err)
	}
}

// WriteMetadata replaces the metadata record.
func (s *Store) WriteMetadata(identity, ref string) error {
	now := s.now().UTC()
	meta := model.DeploymentMetadata{Commit: identity, Ref: ref, UpdatedAt: &now}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode deployment metadata: %w", err)
	}
	if err := files.WriteAtomic(s.MetadataPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write deployment metadata: %w", err)
	}
	return nil
}

// ReadMetadata returns the metadata record, or unknown values when it is
// missing or unreadable.
func (s *Store) ReadMetadata() model.DeploymentMetadata {
	data, err := os.ReadFile(s.MetadataPath())
	if err != nil {
		return model.UnknownMetadata()
	}
	var meta model.DeploymentMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		log.Warn("deployment metadata is corrupt", "path", s.MetadataPath(), "error", err)
		return model.UnknownMetadata()
	}
	if meta.Commit == "" {
		meta.Commit = model.UnknownIdentity
	}
	if meta.Ref == "" {
		meta.Ref = model.UnknownIdentity
	}
	return meta
}
