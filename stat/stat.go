// Package stat implements the statistics engine of the file distribution
// daemon: fixed-layout counter rows persisted in memory-mapped files, the
// periodic sampler that advances them, the year rollover archiver, and the
// attach/rebuild protocol that reconciles stores with the current host and
// directory roster.
package stat

import "time"

const (
	// SampleInterval is the fixed wall-clock distance between two counter
	// samples.
	SampleInterval = 5 * time.Second

	// HoursPerDay and DaysPerYear size the day and year bucket vectors.
	// DaysPerYear includes the leap day.
	HoursPerDay = 24
	DaysPerYear = 366

	// SecsPerHour is the number of interval buckets in one hour of the
	// hour vector.
	SecsPerHour = 3600 / int(SampleInterval/time.Second)

	// MaxFilesPerScan bounds how many files a producer can complete within
	// one sample interval. Used to tell a 32-bit counter wrap apart from a
	// producer restart.
	MaxFilesPerScan = 100

	// MaxParallelJobs is the number of producer job slots that can send to
	// one destination concurrently.
	MaxParallelJobs = 5

	// MaxHostAliasLen and MaxDirAliasLen bound the alias fields of the
	// persisted rows, terminating NUL included.
	MaxHostAliasLen = 16
	MaxDirAliasLen  = 40
)

// Cell is one output bucket: the activity of a destination host during one
// sample interval (hour vector), one hour (day vector) or one day (year
// vector). Layout in the mapped file, native byte order:
//
//	 0.. 7  bytes sent (float64)
//	 8..11  files sent (uint32)
//	12..15  errors (uint32)
//	16..19  connections (uint32)
//	20..23  reserved
type Cell struct {
	Bytes       float64
	Files       uint32
	Errors      uint32
	Connections uint32
	_           [4]byte
}

// InCell is one input bucket: the activity of a watched directory during
// one slot. Layout, native byte order:
//
//	 0.. 7  bytes received (float64)
//	 8..11  files received (uint32)
//	12..15  reserved
type InCell struct {
	Bytes float64
	Files uint32
	_     [4]byte
}

func (c *Cell) add(files uint32, bytes float64, errors, connections uint32) {
	c.Files += files
	c.Bytes += bytes
	c.Errors += errors
	c.Connections += connections
}

func (c *InCell) add(files uint32, bytes float64) {
	c.Files += files
	c.Bytes += bytes
}

func putAlias(dst []byte, alias string) {
	for i := range dst {
		dst[i] = 0
	}
	n := len(alias)
	if n > len(dst)-1 {
		n = len(dst) - 1
	}
	copy(dst, alias[:n])
}

func aliasString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
