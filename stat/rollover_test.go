package stat

import (
	"os"
	"testing"
	"time"
)

func TestRolloverOutputArchivesYear(t *testing.T) {
	dir := newWorkDir(t)
	start := time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)

	f, _, err := RebuildOutput(dir, 2023, hostView("A", "B"), start)
	if err != nil {
		t.Fatal(err)
	}
	rows := f.Rows()
	var expYear [DaysPerYear]Cell
	for d := 0; d < DaysPerYear; d++ {
		expYear[d] = Cell{Bytes: float64(d), Files: uint32(d)}
		rows[0].Year[d] = expYear[d]
	}
	rows[0].Day[23] = Cell{Bytes: 5, Files: 1}
	rows[0].Hour[700] = Cell{Bytes: 5, Files: 1}

	now := time.Date(2023, 12, 31, 23, 59, 55, 0, time.UTC)
	if err := RolloverOutput(f, dir, 2023, 2024, now); err != nil {
		t.Fatal(err)
	}

	// The live store now carries the new year's name and empty buckets.
	if f.Path != OutputPath(dir, 2024) {
		t.Fatalf("live path = %s, want %s", f.Path, OutputPath(dir, 2024))
	}
	for i := range rows {
		if rows[i].Year != ([DaysPerYear]Cell{}) || rows[i].Day != ([HoursPerDay]Cell{}) || rows[i].Hour != ([SecsPerHour]Cell{}) {
			t.Fatalf("row %d buckets not zeroed after rollover", i)
		}
		if p := rows[i].Position(2024); p.Day != 0 || p.Hour != 0 || p.Sec != 0 {
			t.Fatalf("row %d position = %+v, want the first slot of the year", i, p)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(OutputPath(dir, 2024)); err != nil {
		t.Fatal(err)
	}

	// The finished year's name now holds the reduced archive, with the
	// per-day vector preserved byte for byte.
	arch, err := OpenOutputArchive(OutputPath(dir, 2023), ModeSnapshot)
	if err != nil {
		t.Fatal(err)
	}
	defer arch.Close()

	archRows := arch.Rows()
	if len(archRows) != 2 {
		t.Fatalf("archive rows = %d, want 2", len(archRows))
	}
	if got := archRows[0].AliasString(); got != "A" {
		t.Fatalf("archive row 0 alias = %q, want A", got)
	}
	if archRows[0].StartTime != start.Unix() {
		t.Fatalf("archive row 0 start time = %d, want %d", archRows[0].StartTime, start.Unix())
	}
	if archRows[0].Year != expYear {
		t.Fatalf("archived year vector differs from the live one before rollover")
	}
}

func TestRolloverInputArchivesYear(t *testing.T) {
	dir := newWorkDir(t)
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	view := &MemDirView{Aliases: []string{"ftp-in"}}
	f, _, err := RebuildInput(dir, 2023, view, start)
	if err != nil {
		t.Fatal(err)
	}
	rows := f.Rows()
	rows[0].Year[100] = InCell{Bytes: 4096, Files: 7}

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := RolloverInput(f, dir, 2023, 2024, now); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	arch, err := OpenInputArchive(InputPath(dir, 2023), ModeSnapshot)
	if err != nil {
		t.Fatal(err)
	}
	defer arch.Close()

	got := arch.Rows()[0]
	if got.AliasString() != "ftp-in" {
		t.Fatalf("archive alias = %q, want ftp-in", got.AliasString())
	}
	if got.Year[100] != (InCell{Bytes: 4096, Files: 7}) {
		t.Fatalf("archive year bucket = %+v", got.Year[100])
	}
}

func TestRolloverPositionLeapSecondWindow(t *testing.T) {
	// A sample in the last minute of the year is routed to the first slot
	// of the new year.
	now := time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)
	if p := rolloverPosition(now); p.Day != 0 || p.Hour != 0 || p.Sec != 0 {
		t.Fatalf("rolloverPosition = %+v, want {Day:0 Hour:0 Sec:0}", p)
	}

	// Mid-year the computed indices stand.
	mid := time.Date(2024, 1, 1, 0, 0, 10, 0, time.UTC)
	if p := rolloverPosition(mid); p != PositionAt(mid) {
		t.Fatalf("rolloverPosition = %+v, want %+v", p, PositionAt(mid))
	}
}

func TestFullLayoutLeftovers(t *testing.T) {
	dir := newWorkDir(t)

	// An output store left in the full layout by a daemon that was down
	// over new year.
	f, err := CreateOutput(OutputStagePath(dir), 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Promote(OutputPath(dir, 2023)); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	// An input store that was archived normally.
	a, err := CreateInputArchive(InputStagePath(dir), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.PublishAndClose(InputPath(dir, 2023)); err != nil {
		t.Fatal(err)
	}

	got := fullLayoutLeftovers(dir, 2024)
	if len(got) != 1 || got[0] != OutputPath(dir, 2023) {
		t.Fatalf("leftovers = %v, want only the unarchived output store", got)
	}
	if got := fullLayoutLeftovers(dir, 2023); got != nil {
		t.Fatalf("leftovers one year earlier = %v, want none", got)
	}
}
