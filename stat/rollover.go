package stat

import (
	"io"
	"os"
	"time"
	"unsafe"
)

// rolloverPosition returns the grid position rows are reset to after a year
// rollover. A rollover sample landing in the very last minute of a year is
// routed to the first slot of the new year, so the trailing leap second
// does not leave the indices one hour behind.
func rolloverPosition(now time.Time) Position {
	p := PositionAt(now)
	u := now.UTC()
	if u.Hour() == 23 && u.Minute() == 59 && p.Day >= 363 {
		p.Day, p.Hour, p.Sec = 0, 0, 0
	}
	return p
}

// fullLayoutLeftovers reports last year's statistics files that are still
// in the full live layout. They appear when the daemon was down across a
// year boundary: the rollover that would have reduced them to the archive
// layout never ran, and year queries against them fail until an operator
// truncates them.
func fullLayoutLeftovers(workDir string, year int) []string {
	var stale []string
	check := func(path string, stride int) {
		f, err := os.Open(path)
		if err != nil {
			return
		}
		defer f.Close()
		var hdr [HeaderSize]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			return
		}
		n := int64(*(*int32)(unsafe.Pointer(&hdr[0])))
		fi, err := f.Stat()
		if err != nil || n <= 0 {
			return
		}
		if fi.Size() == HeaderSize+n*int64(stride) {
			stale = append(stale, path)
		}
	}
	check(OutputPath(workDir, year-1), OutputRowSize)
	check(InputPath(workDir, year-1), InputRowSize)
	return stale
}

// RolloverOutput archives the finished year of an output store and resets
// the live buckets.
//
// The live file is renamed to the new year's name first; the mapping stays
// valid because the inode does not change. A reduced archive (alias, start
// time, year vector) is then written under the finished year's name via
// the staging protocol, and finally the live year, day and hour vectors
// are zeroed in place. If the rename fails the archive is skipped and the
// live counters continue under the old name.
func RolloverOutput(s *OutputFile, workDir string, oldYear, newYear int, now time.Time) error {
	if err := s.Rename(OutputPath(workDir, newYear)); err != nil {
		return err
	}

	rows := s.Rows()

	arch, err := CreateOutputArchive(OutputStagePath(workDir), len(rows))
	if err == nil {
		archRows := arch.Rows()
		for i := range rows {
			archRows[i].Alias = rows[i].Alias
			archRows[i].StartTime = rows[i].StartTime
			archRows[i].Year = rows[i].Year
		}
		err = arch.PublishAndClose(OutputPath(workDir, oldYear))
	}

	pos := rolloverPosition(now)
	for i := range rows {
		rows[i].Year = [DaysPerYear]Cell{}
		rows[i].Day = [HoursPerDay]Cell{}
		rows[i].Hour = [SecsPerHour]Cell{}
		rows[i].setPosition(pos)
	}
	if ferr := s.Flush(); err == nil {
		err = ferr
	}
	return err
}

// RolloverInput archives the finished year of an input store and resets the
// live buckets.
func RolloverInput(s *InputFile, workDir string, oldYear, newYear int, now time.Time) error {
	if err := s.Rename(InputPath(workDir, newYear)); err != nil {
		return err
	}

	rows := s.Rows()

	arch, err := CreateInputArchive(InputStagePath(workDir), len(rows))
	if err == nil {
		archRows := arch.Rows()
		for i := range rows {
			archRows[i].Alias = rows[i].Alias
			archRows[i].StartTime = rows[i].StartTime
			archRows[i].Year = rows[i].Year
		}
		err = arch.PublishAndClose(InputPath(workDir, oldYear))
	}

	pos := rolloverPosition(now)
	for i := range rows {
		rows[i].Year = [DaysPerYear]InCell{}
		rows[i].Day = [HoursPerDay]InCell{}
		rows[i].Hour = [SecsPerHour]InCell{}
		rows[i].setPosition(pos)
	}
	if ferr := s.Flush(); err == nil {
		err = ferr
	}
	return err
}
