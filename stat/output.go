package stat

import "time"

// OutputRow is the persisted state of one destination host. The struct is
// mapped directly onto the statistics file, so field order and padding are
// part of the on-disk format. Stride: 26736 bytes.
//
//	    0..   15  host alias, NUL terminated
//	   16..   23  start time, seconds since the epoch (int64)
//	   24..   35  day, hour and second indices (int32 each)
//	   36..   39  reserved
//	   40.. 8823  year vector, one Cell per day
//	 8824.. 9399  day vector, one Cell per hour
//	 9400..26679  hour vector, one Cell per sample interval
//	26680..26735  previous raw producer snapshots
type OutputRow struct {
	Alias     [MaxHostAliasLen]byte
	StartTime int64
	DayIndex  int32
	HourIndex int32
	SecIndex  int32
	_         int32
	Year      [DaysPerYear]Cell
	Day       [HoursPerDay]Cell
	Hour      [SecsPerHour]Cell

	// Previous raw totals read from the producer view, used to compute
	// per-interval deltas. Bytes are tracked per job slot.
	PrevBytes       [MaxParallelJobs]float64
	PrevFiles       uint32
	PrevErrors      uint32
	PrevConnections uint32
	_               [4]byte
}

// ArchiveOutputRow is the reduced row stored in year archives: per-day
// resolution only. Stride: 8808 bytes.
type ArchiveOutputRow struct {
	Alias     [MaxHostAliasLen]byte
	StartTime int64
	Year      [DaysPerYear]Cell
}

// AliasString returns the row alias without trailing NULs.
func (r *OutputRow) AliasString() string { return aliasString(r.Alias[:]) }

// AliasString returns the row alias without trailing NULs.
func (r *ArchiveOutputRow) AliasString() string { return aliasString(r.Alias[:]) }

// Position returns the bucket indices persisted in the row.
func (r *OutputRow) Position(year int32) Position {
	return Position{Year: year, Day: r.DayIndex, Hour: r.HourIndex, Sec: r.SecIndex}
}

func (r *OutputRow) setPosition(p Position) {
	r.DayIndex, r.HourIndex, r.SecIndex = p.Day, p.Hour, p.Sec
}

// init prepares a freshly created row: alias and start time are set and
// the indices point at the current slot. The previous raw snapshots stay
// zero, so the first sample credits the producer's running totals to the
// row in one delta.
func (r *OutputRow) init(alias string, now time.Time) {
	*r = OutputRow{}
	putAlias(r.Alias[:], alias)
	r.StartTime = now.Unix()
	r.setPosition(PositionAt(now))
}
