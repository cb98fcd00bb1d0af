package stat

import "time"

// Position locates the current bucket in the statistics grid: the calendar
// year, the day of that year, the hour of that day and the interval slot of
// that hour.
type Position struct {
	Year int32
	Day  int32 // 0..DaysPerYear-1
	Hour int32 // 0..HoursPerDay-1
	Sec  int32 // 0..SecsPerHour; == SecsPerHour means an hour carry is pending
}

// PositionAt maps a clock reading to grid indices. All calendar arithmetic
// is done in UTC.
func PositionAt(now time.Time) Position {
	u := now.UTC()
	day := int32(u.YearDay() - 1)
	if day > DaysPerYear-1 {
		day = DaysPerYear - 1
	}
	return Position{
		Year: int32(u.Year()),
		Day:  day,
		Hour: int32(u.Hour()),
		Sec:  int32((u.Minute()*60 + u.Second()) / int(SampleInterval/time.Second)),
	}
}

// Skew classifies the deviation between the indices persisted in the store
// and the ones computed from the clock.
type Skew int

const (
	// SkewNone: stored and computed indices agree.
	SkewNone Skew = iota

	// SkewRetry: the second index is off by exactly one interval, or
	// wrapped across the hour boundary. Timer drift, not corruption; skip
	// this sample and check again next tick.
	SkewRetry

	// SkewAbsorbed: the computed hour trails the stored hour right at the
	// top of the hour. NTP slew; keep the stored indices.
	SkewAbsorbed

	// SkewCorrectSec: the second index is wrong beyond drift. Adopt the
	// computed value; the current bucket keeps its content.
	SkewCorrectSec

	// SkewCorrectHour: the hour or day index is wrong. Adopt the computed
	// position and zero the bucket of the fresh hour.
	SkewCorrectHour
)

// Carries reports index wraps into the next-higher resolution.
type Carries struct {
	Hour bool
	Day  bool
	Year bool
}

// Advance compares the stored grid position against the one computed from
// now and reports how the sampler should proceed. The stored position is
// expected to have any pending local carries already applied.
func Advance(stored Position, now time.Time) (computed Position, skew Skew, carries Carries) {
	computed = PositionAt(now)

	if computed.Year != stored.Year {
		// Both directions archive; a clock rollback is logged by the
		// caller and the archive keeps the newer year's name.
		carries.Year = true
		carries.Day = computed.Day != stored.Day
		carries.Hour = computed.Hour != stored.Hour
		return computed, SkewNone, carries
	}

	sameHour := computed.Hour == stored.Hour && computed.Day == stored.Day
	if sameHour && computed.Sec == stored.Sec {
		return computed, SkewNone, carries
	}

	// One interval of drift in either direction is benign.
	if sameHour && (computed.Sec == stored.Sec+1 || computed.Sec == stored.Sec-1) {
		return computed, SkewRetry, carries
	}

	// Wrap from the last slot to the first across the hour boundary.
	if int(stored.Sec) == SecsPerHour-1 && computed.Sec == 0 &&
		(computed.Hour-stored.Hour+HoursPerDay)%HoursPerDay == 1 {
		return computed, SkewRetry, carries
	}

	// NTP slews the clock backwards over the top of the hour: the computed
	// hour is one behind while the wall clock sits in the last seconds of
	// the old hour.
	u := now.UTC()
	if (stored.Hour-computed.Hour+HoursPerDay)%HoursPerDay == 1 &&
		u.Minute() == 59 && u.Second() > 54 {
		return computed, SkewAbsorbed, carries
	}

	if sameHour {
		return computed, SkewCorrectSec, carries
	}

	carries.Hour = computed.Hour != stored.Hour
	carries.Day = computed.Day != stored.Day
	return computed, SkewCorrectHour, carries
}
