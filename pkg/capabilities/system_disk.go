package capabilities

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DiskAvailable returns the bytes available to unprivileged users on the
// filesystem holding path.
func DiskAvailable(path string) (uint64, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return fs.Bavail * uint64(fs.Bsize), nil
}

// RequireDisk fails when less than min bytes are available at path.
func RequireDisk(path string, min uint64) error {
	if min == 0 {
		return nil
	}
	avail, err := DiskAvailable(path)
	if err != nil {
		return err
	}
	if avail < min {
		return fmt.Errorf("only %d MiB free at %s, need %d MiB", avail>>20, path, min>>20)
	}
	return nil
}
