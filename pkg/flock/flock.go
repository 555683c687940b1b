// Package flock provides an exclusive, non-blocking advisory file lock used to
// keep a single lifecycle operation running per managed service.
package flock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned by TryLock when another holder owns the lock.
var ErrLocked = errors.New("lock is held by another process")

// Lock is an acquired file lock.
type Lock struct {
	f *os.File
}

// TryLock acquires an exclusive lock on path without blocking. The holder
// string is written into the file so that a losing caller can report who
// owns the lock.
func TryLock(path, holder string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(holder), 0)
	}
	return &Lock{f: f}, nil
}

// Holder returns the holder string recorded in the lock file at path.
func Holder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ActiveHolder returns the holder of a live lock at path, or "" when nobody
// holds it. It never takes the exclusive lock and never modifies the file, so
// it does not race with TryLock. Only a file that names a holder is checked
// with a shared lock, which tells a live holder from one left by a crash.
func ActiveHolder(path string) string {
	holder := Holder(path)
	if holder == "" {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return holder
		}
		return ""
	}
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return ""
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = l.f.Truncate(0)
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	cerr := l.f.Close()
	l.f = nil
	if err != nil {
		return err
	}
	return cerr
}
