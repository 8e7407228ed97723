//go:build unix

package memory

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// mapRegion reserves an anonymous, private mapping outside of the Go heap
func mapRegion(size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to map %d bytes for arena", size)
	}

	return data, unix.Munmap, nil
}
