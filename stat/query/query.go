// Package query projects the bucket vectors of the statistics stores into
// operator reports: arbitrary minute, hour, day and year slices in human,
// CSV or bare-number form.
package query

import (
	"fmt"
	"io"
	"time"

	"github.com/afdtools/afdstats/stat"
)

// Axis selects the time slice of a query.
type Axis int

const (
	AxisMinute Axis = iota
	AxisMinuteRange
	AxisMinuteSummary
	AxisHour
	AxisHourSummary
	AxisDay
	AxisDaySummary
	AxisYear
)

// Mode selects the output rendering.
type Mode int

const (
	ModeNormal Mode = iota
	ModeCSV
	ModeTotalsOnly
)

// Stamp selects the report timestamp header.
type Stamp int

const (
	StampNone Stamp = iota
	StampHuman
	StampEpoch
)

// Options describes one query.
type Options struct {
	WorkDir  string
	FilePath string // overrides the year-derived store path
	DirArea  string // directory status area, for input name and remote lookups
	Input    bool   // query the input (directory) store

	Axis Axis
	Arg  int // axis argument; -1 when absent

	Mode       Mode
	Stamp      Stamp
	ShowName   bool // input: print full directory name instead of alias
	ShowBoth   bool // input: print alias and name
	RemoteOnly bool // input: only remote directories

	Aliases []string // restrict to these aliases; empty means all

	Out io.Writer
	Now func() time.Time
}

// Totals is the sum of one or more buckets. Files, errors and connections
// are widened so sums over a year cannot overflow; bytes stay in 64-bit
// floating point throughout.
type Totals struct {
	Files       uint64
	Bytes       float64
	Errors      uint64
	Connections uint64
}

func (t *Totals) addCell(c stat.Cell) {
	t.Files += uint64(c.Files)
	t.Bytes += c.Bytes
	t.Errors += uint64(c.Errors)
	t.Connections += uint64(c.Connections)
}

func (t *Totals) addInCell(c stat.InCell) {
	t.Files += uint64(c.Files)
	t.Bytes += c.Bytes
}

func (t *Totals) add(o Totals) {
	t.Files += o.Files
	t.Bytes += o.Bytes
	t.Errors += o.Errors
	t.Connections += o.Connections
}

// row is a store row reduced to bucket accessors, so the axis arithmetic is
// written once for both store layouts.
type row struct {
	alias  string
	name   string
	remote bool
	pos    stat.Position

	year func(d int) Totals
	day  func(h int) Totals
	hour func(s int) Totals
}

// Run executes one query and renders it to opts.Out.
func Run(opts Options) error {
	now := opts.Now()

	year := now.UTC().Year()
	if opts.Axis == AxisYear && opts.Arg > 0 {
		return runArchive(opts, year-opts.Arg, now)
	}

	rows, closeStore, err := openLive(opts, year)
	if err != nil {
		return err
	}
	defer closeStore()

	rows = filterRows(rows, opts)

	report := buildReport(rows, opts, now)
	return render(report, opts, now)
}

const bucketsPerMinute = 60 / int(stat.SampleInterval/time.Second)

// buildReport applies the axis arithmetic to the selected rows.
func buildReport(rows []row, opts Options, now time.Time) report {
	rep := report{input: opts.Input, axis: opts.Axis}

	switch opts.Axis {
	case AxisMinute:
		if opts.Arg < 0 {
			rep.title = "minute statistics (last hour)"
			rep.perRow(rows, hourVectorTotal)
		} else {
			rep.title = fmt.Sprintf("minute statistics (%d min ago)", opts.Arg)
			rep.perRow(rows, func(r row) Totals { return minuteBack(r, opts.Arg) })
		}
	case AxisMinuteRange:
		n := opts.Arg
		if n > 60 {
			n = 60
		}
		rep.title = fmt.Sprintf("minute statistics (last %d min)", n)
		rep.perRow(rows, func(r row) Totals { return minuteRange(r, n) })
	case AxisMinuteSummary:
		n := opts.Arg
		if n <= 0 || n > 60 {
			n = 60
		}
		rep.title = fmt.Sprintf("minute summary (last %d min)", n)
		for x := n - 1; x >= 0; x-- {
			var t Totals
			for _, r := range rows {
				t.add(minuteBack(r, x))
			}
			rep.buckets = append(rep.buckets, bucket{label: fmt.Sprintf("-%3d min", x), totals: t})
		}
	case AxisHour:
		if opts.Arg < 0 {
			rep.title = "hour statistics (last 24 hours)"
			rep.perRow(rows, dayVectorTotal)
		} else {
			rep.title = fmt.Sprintf("hour statistics (%d h ago)", opts.Arg)
			rep.perRow(rows, func(r row) Totals { return hourBack(r, opts.Arg) })
		}
	case AxisHourSummary:
		rep.title = "hour summary (last 24 hours)"
		for x := stat.HoursPerDay - 1; x >= 0; x-- {
			var t Totals
			for _, r := range rows {
				t.add(hourBack(r, x))
			}
			rep.buckets = append(rep.buckets, bucket{label: fmt.Sprintf("-%3d h", x), totals: t})
		}
	case AxisDay:
		if opts.Arg < 0 {
			rep.title = "day statistics (this year)"
			rep.perRow(rows, yearToDateTotal)
		} else {
			rep.title = fmt.Sprintf("day statistics (%d d ago)", opts.Arg)
			rep.perRow(rows, func(r row) Totals { return dayBack(r, opts.Arg) })
		}
	case AxisDaySummary:
		rep.title = "day summary (this year)"
		var daysSoFar int
		if len(rows) > 0 {
			daysSoFar = int(rows[0].pos.Day)
		}
		for x := daysSoFar; x >= 0; x-- {
			var t Totals
			for _, r := range rows {
				t.add(dayBack(r, x))
			}
			rep.buckets = append(rep.buckets, bucket{label: fmt.Sprintf("-%3d d", x), totals: t})
		}
	case AxisYear:
		rep.title = fmt.Sprintf("year statistics %d", now.UTC().Year())
		rep.perRow(rows, yearToDateTotal)
	}

	return rep
}

// hourVectorTotal sums every interval bucket of the hour vector.
func hourVectorTotal(r row) Totals {
	var t Totals
	for s := 0; s < stat.SecsPerHour; s++ {
		t.add(r.hour(s))
	}
	return t
}

// minuteRange sums the interval buckets of the last n minutes, wrapping
// through the end of the hour vector when the range crosses slot zero.
func minuteRange(r row, n int) Totals {
	var t Totals
	sec := int(r.pos.Sec) % stat.SecsPerHour
	left := sec - n*bucketsPerMinute
	if left < 0 {
		for s := stat.SecsPerHour + left; s < stat.SecsPerHour; s++ {
			t.add(r.hour(s))
		}
		for s := 0; s < sec; s++ {
			t.add(r.hour(s))
		}
		return t
	}
	for s := left; s < sec; s++ {
		t.add(r.hour(s))
	}
	return t
}

// minuteBack sums the interval buckets of the single minute x minutes back.
func minuteBack(r row, x int) Totals {
	var t Totals
	sec := int(r.pos.Sec)
	j := (sec - x*bucketsPerMinute) % stat.SecsPerHour
	if j < 0 {
		j += stat.SecsPerHour
	}
	for s := 0; s < bucketsPerMinute; s++ {
		t.add(r.hour((j + s) % stat.SecsPerHour))
	}
	return t
}

// dayVectorTotal sums every hour bucket of the day vector.
func dayVectorTotal(r row) Totals {
	var t Totals
	for h := 0; h < stat.HoursPerDay; h++ {
		t.add(r.day(h))
	}
	return t
}

// hourBack returns the day-vector bucket x hours back; x == 0 is the hour
// in progress.
func hourBack(r row, x int) Totals {
	j := (int(r.pos.Hour) - x) % stat.HoursPerDay
	if j < 0 {
		j += stat.HoursPerDay
	}
	return r.day(j)
}

// dayBack returns the activity of the day x days back: the in-progress day
// for x == 0, the year-vector bucket otherwise. Days before the start of
// the year vector are all zero.
func dayBack(r row, x int) Totals {
	if x == 0 {
		return dayVectorTotal(r)
	}
	if x >= stat.DaysPerYear {
		return Totals{}
	}
	j := (int(r.pos.Day) - x) % stat.DaysPerYear
	if j < 0 {
		j += stat.DaysPerYear
	}
	return r.year(j)
}

// yearToDateTotal sums the completed days of the year vector plus the day
// in progress.
func yearToDateTotal(r row) Totals {
	var t Totals
	for d := 0; d < stat.DaysPerYear; d++ {
		t.add(r.year(d))
	}
	t.add(dayVectorTotal(r))
	return t
}

func filterRows(rows []row, opts Options) []row {
	out := rows[:0:0]
	for _, r := range rows {
		if opts.RemoteOnly && !r.remote {
			continue
		}
		if len(opts.Aliases) > 0 && !containsAlias(opts.Aliases, r.alias) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func containsAlias(aliases []string, alias string) bool {
	for _, a := range aliases {
		if a == alias {
			return true
		}
	}
	return false
}
