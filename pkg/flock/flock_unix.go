//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

// Package flock wraps BSD advisory file locks. Locks are attached to the
// open file descriptor and are released implicitly when the process exits.
package flock

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrLocked is returned when a non-blocking lock attempt conflicts with a
// lock held by another process.
var ErrLocked = errors.New("file already locked by another process")

// Exclusive takes a non-blocking exclusive lock on f.
func Exclusive(f *os.File) error {
	return lock(f, unix.LOCK_EX|unix.LOCK_NB)
}

// Shared takes a non-blocking shared lock on f.
func Shared(f *os.File) error {
	return lock(f, unix.LOCK_SH|unix.LOCK_NB)
}

// Unlock releases any lock held on f.
func Unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

func lock(f *os.File, how int) error {
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		if err == unix.EWOULDBLOCK {
			return ErrLocked
		}
		return err
	}
	return nil
}
