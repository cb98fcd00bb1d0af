//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

// Package mmap provides a way to memory-map a file.
package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

// MapRead memory-maps an open file read-only and shared. Mapping the
// caller's descriptor rather than reopening the path keeps the map tied to
// the file the caller inspected, even if the path is renamed over in
// between.
func MapRead(f *os.File, sz int64) ([]byte, error) {
	if sz == 0 {
		fi, err := f.Stat()
		if err != nil {
			return nil, err
		}
		sz = fi.Size()
	}
	if sz == 0 {
		return nil, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(sz), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// MapWrite memory-maps an open file read-write and shared, so that stores
// written through the map are visible to other processes mapping the same
// file.
func MapWrite(f *os.File, sz int64) ([]byte, error) {
	if sz == 0 {
		fi, err := f.Stat()
		if err != nil {
			return nil, err
		}
		sz = fi.Size()
	}
	if sz == 0 {
		return nil, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(sz), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// Sync flushes the mapped region back to its file synchronously.
func Sync(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Msync(data, unix.MS_SYNC)
}

// Unmap closes the memory-map.
func Unmap(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}
