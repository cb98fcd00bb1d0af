package stat

import "time"

// InputRow is the persisted state of one watched directory. Mapped directly
// onto the input statistics file. Stride: 17840 bytes.
//
//	    0..   39  directory alias, NUL terminated
//	   40..   47  start time, seconds since the epoch (int64)
//	   48..   59  day, hour and second indices (int32 each)
//	   60..   63  reserved
//	   64.. 5919  year vector, one InCell per day
//	 5920.. 6303  day vector, one InCell per hour
//	 6304..17823  hour vector, one InCell per sample interval
//	17824..17839  previous raw producer snapshots
type InputRow struct {
	Alias     [MaxDirAliasLen]byte
	StartTime int64
	DayIndex  int32
	HourIndex int32
	SecIndex  int32
	_         int32
	Year      [DaysPerYear]InCell
	Day       [HoursPerDay]InCell
	Hour      [SecsPerHour]InCell

	PrevBytes float64
	PrevFiles uint32
	_         [4]byte
}

// ArchiveInputRow is the reduced row stored in input year archives.
// Stride: 5904 bytes.
type ArchiveInputRow struct {
	Alias     [MaxDirAliasLen]byte
	StartTime int64
	Year      [DaysPerYear]InCell
}

// AliasString returns the row alias without trailing NULs.
func (r *InputRow) AliasString() string { return aliasString(r.Alias[:]) }

// AliasString returns the row alias without trailing NULs.
func (r *ArchiveInputRow) AliasString() string { return aliasString(r.Alias[:]) }

// Position returns the bucket indices persisted in the row.
func (r *InputRow) Position(year int32) Position {
	return Position{Year: year, Day: r.DayIndex, Hour: r.HourIndex, Sec: r.SecIndex}
}

func (r *InputRow) setPosition(p Position) {
	r.DayIndex, r.HourIndex, r.SecIndex = p.Day, p.Hour, p.Sec
}

func (r *InputRow) init(alias string, now time.Time) {
	*r = InputRow{}
	putAlias(r.Alias[:], alias)
	r.StartTime = now.Unix()
	r.setPosition(PositionAt(now))
}
