package release

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ops-agent/internal/domain/model"
)

// markerIdentity reads the VERSION file written by stage.
func markerIdentity(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "VERSION"))
	if err != nil {
		return model.UnknownIdentity
	}
	return string(data)
}

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), markerIdentity)
}

func stage(t *testing.T, s *Store, version string) *Staging {
	t.Helper()
	stg, err := s.AcquireStaging()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(stg.Path(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stg.Path(), "VERSION"), []byte(version), 0o644))
	return stg.(*Staging)
}

func slotVersion(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "VERSION"))
	require.NoError(t, err)
	return string(data)
}

func TestPromoteWithoutCurrent(t *testing.T) {
	s := newStore(t)
	stg := stage(t, s, "v1")

	id, err := s.Promote(stg)
	require.NoError(t, err)
	assert.Equal(t, "v1", id)
	assert.Equal(t, "v1", slotVersion(t, s.CurrentPath()))
	assert.False(t, s.HasBackup())
	assert.NoDirExists(t, stg.Path())

	stg.Discard()
	assert.True(t, s.HasCurrent())
}

func TestPromoteKeepsSingleBackup(t *testing.T) {
	s := newStore(t)
	for _, v := range []string{"v1", "v2", "v3"} {
		_, err := s.Promote(stage(t, s, v))
		require.NoError(t, err)
	}
	assert.Equal(t, "v3", slotVersion(t, s.CurrentPath()))
	assert.Equal(t, "v2", slotVersion(t, s.BackupPath()))

	entries, err := os.ReadDir(filepath.Join(s.base, releasesDir))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"current", "backup"}, names)
}

func TestPromoteEmptyStagingFails(t *testing.T) {
	s := newStore(t)
	_, err := s.Promote(stage(t, s, "v1"))
	require.NoError(t, err)

	stg, err := s.AcquireStaging()
	require.NoError(t, err)
	_, err = s.Promote(stg)
	require.Error(t, err)
	assert.Equal(t, "v1", slotVersion(t, s.CurrentPath()))
	assert.False(t, s.HasBackup())
}

func TestDiscardRemovesStaging(t *testing.T) {
	s := newStore(t)
	stg := stage(t, s, "v1")
	stg.Discard()
	assert.NoDirExists(t, stg.Path())
	assert.False(t, s.HasCurrent())
}

func TestRevertIsSingleShot(t *testing.T) {
	s := newStore(t)
	_, err := s.Revert()
	require.ErrorIs(t, err, model.ErrNoBackupAvailable)

	_, err = s.Promote(stage(t, s, "v1"))
	require.NoError(t, err)
	_, err = s.Promote(stage(t, s, "v2"))
	require.NoError(t, err)

	id, err := s.Revert()
	require.NoError(t, err)
	assert.Equal(t, "v1", id)
	assert.Equal(t, "v1", slotVersion(t, s.CurrentPath()))
	assert.False(t, s.HasBackup())

	_, err = s.Revert()
	require.ErrorIs(t, err, model.ErrNoBackupAvailable)
	assert.Equal(t, "v1", slotVersion(t, s.CurrentPath()))
}

func TestRotate(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Rotate())

	_, err := s.Promote(stage(t, s, "v1"))
	require.NoError(t, err)
	require.NoError(t, s.Rotate())
	assert.False(t, s.HasCurrent())
	assert.Equal(t, "v1", slotVersion(t, s.BackupPath()))
}

func TestMetadataRoundTrip(t *testing.T) {
	s := newStore(t)
	assert.Equal(t, model.UnknownMetadata(), s.ReadMetadata())

	require.NoError(t, s.WriteMetadata("abc1234", "main"))
	meta := s.ReadMetadata()
	assert.Equal(t, "abc1234", meta.Commit)
	assert.Equal(t, "main", meta.Ref)
	require.NotNil(t, meta.UpdatedAt)

	raw, err := os.ReadFile(s.MetadataPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"deployed_commit": "abc1234"`)
	assert.Contains(t, string(raw), `"deployed_ref": "main"`)
	assert.Contains(t, string(raw), `"updated_at"`)
}

func TestCorruptMetadataReadsUnknown(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.MetadataPath(), []byte("{not json"), 0o644))
	assert.Equal(t, model.UnknownMetadata(), s.ReadMetadata())
}
