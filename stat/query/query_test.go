package query

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/afdtools/afdstats/stat"
)

func newWorkDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{stat.LogDir(dir), stat.FifoDir(dir)} {
		if err := os.MkdirAll(sub, 0755); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// writeOutputStore creates a live output store and hands the rows to fill
// to the caller before publishing it under the year's name.
func writeOutputStore(t *testing.T, dir string, year, n int, fill func(rows []stat.OutputRow)) {
	t.Helper()
	f, err := stat.CreateOutput(stat.OutputStagePath(dir), n)
	if err != nil {
		t.Fatal(err)
	}
	fill(f.Rows())
	if err := f.Promote(stat.OutputPath(dir, year)); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRunMinuteRange(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 27, 0, time.UTC)
	dir := newWorkDir(t)

	// Every interval bucket holds one file; the row sits at slot 5.
	writeOutputStore(t, dir, 2024, 1, func(rows []stat.OutputRow) {
		copy(rows[0].Alias[:], "A")
		rows[0].SecIndex = 5
		for s := range rows[0].Hour {
			rows[0].Hour[s] = stat.Cell{Files: 1, Bytes: 10}
		}
	})

	var buf bytes.Buffer
	err := Run(Options{
		WorkDir: dir,
		Axis:    AxisMinuteRange,
		Arg:     1,
		Mode:    ModeTotalsOnly,
		Out:     &buf,
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatal(err)
	}

	// One minute spans twelve five-second buckets, wrapping through the
	// end of the hour vector.
	if got, exp := buf.String(), "12 120 0 0\n"; got != exp {
		t.Fatalf("totals = %q, want %q", got, exp)
	}
}

func TestRunYearRoutesToArchive(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	dir := newWorkDir(t)

	f, err := stat.CreateOutputArchive(stat.OutputStagePath(dir), 1)
	if err != nil {
		t.Fatal(err)
	}
	rows := f.Rows()
	copy(rows[0].Alias[:], "A")
	for d := 0; d < 100; d++ {
		rows[0].Year[d] = stat.Cell{Files: 2, Bytes: 20}
	}
	if err := f.Promote(stat.OutputPath(dir, 2023)); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	err = Run(Options{
		WorkDir: dir,
		Axis:    AxisYear,
		Arg:     1, // one year back
		Mode:    ModeTotalsOnly,
		Out:     &buf,
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, exp := buf.String(), "200 2000 0 0\n"; got != exp {
		t.Fatalf("totals = %q, want %q", got, exp)
	}
}

func TestRunAliasFilterAndCSV(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	dir := newWorkDir(t)

	writeOutputStore(t, dir, 2024, 2, func(rows []stat.OutputRow) {
		copy(rows[0].Alias[:], "keep")
		rows[0].Year[0] = stat.Cell{Files: 3, Bytes: 30, Errors: 1, Connections: 2}
		copy(rows[1].Alias[:], "drop")
		rows[1].Year[0] = stat.Cell{Files: 9, Bytes: 90}
	})

	var buf bytes.Buffer
	err := Run(Options{
		WorkDir: dir,
		Axis:    AxisYear,
		Arg:     -1,
		Mode:    ModeCSV,
		Aliases: []string{"keep"},
		Out:     &buf,
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatal(err)
	}

	got := buf.String()
	if !strings.Contains(got, "keep;3;30;1;2\n") {
		t.Fatalf("CSV missing the kept row:\n%s", got)
	}
	if strings.Contains(got, "drop") {
		t.Fatalf("CSV contains a filtered row:\n%s", got)
	}
	if !strings.Contains(got, "total;3;30;1;2\n") {
		t.Fatalf("CSV missing the total line:\n%s", got)
	}
}

func TestRunDayBack(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	dir := newWorkDir(t)

	writeOutputStore(t, dir, 2024, 1, func(rows []stat.OutputRow) {
		copy(rows[0].Alias[:], "A")
		rows[0].DayIndex = 166
		rows[0].Year[165] = stat.Cell{Files: 7, Bytes: 70} // yesterday
		rows[0].Day[3] = stat.Cell{Files: 1, Bytes: 1}     // today, ignored
	})

	var buf bytes.Buffer
	err := Run(Options{
		WorkDir: dir,
		Axis:    AxisDay,
		Arg:     1,
		Mode:    ModeTotalsOnly,
		Out:     &buf,
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, exp := buf.String(), "7 70 0 0\n"; got != exp {
		t.Fatalf("totals = %q, want %q", got, exp)
	}
}

func TestRunMissingStoreReportsAbsolutePath(t *testing.T) {
	dir := newWorkDir(t)
	err := Run(Options{
		WorkDir: dir,
		Axis:    AxisYear,
		Arg:     -1,
		Out:     &bytes.Buffer{},
		Now:     time.Now,
	})
	if err == nil {
		t.Fatal("expected an error for a missing store")
	}
	if !strings.Contains(err.Error(), dir) {
		t.Fatalf("error does not name the store path: %v", err)
	}
}

func TestFormatBytes(t *testing.T) {
	for _, tt := range []struct {
		in  float64
		exp string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.00 KB"},
		{3 * 1 << 20, "3.00 MB"},
		{5 * 1 << 30, "5.00 GB"},
		{1 << 40, "1.00 TB"},
		{1 << 50, "1.00 PB"},
		{1 << 60, "1.00 EB"},
	} {
		if got := formatBytes(tt.in); got != tt.exp {
			t.Fatalf("formatBytes(%v) = %q, want %q", tt.in, got, tt.exp)
		}
	}
}

func TestRunCSVShowBothSplitsFields(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	dir := newWorkDir(t)

	f, err := stat.CreateInput(stat.InputStagePath(dir), 1)
	if err != nil {
		t.Fatal(err)
	}
	rows := f.Rows()
	copy(rows[0].Alias[:], "inbox")
	rows[0].Year[0] = stat.InCell{Files: 4, Bytes: 40}
	if err := f.Promote(stat.InputPath(dir, 2024)); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	area := stat.DirAreaPath(dir)
	var rec stat.DirRecord
	rec.SetAlias("inbox")
	rec.SetName("/data/inbox")
	if err := stat.WriteDirArea(area, []stat.DirRecord{rec}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	err = Run(Options{
		WorkDir:  dir,
		DirArea:  area,
		Input:    true,
		Axis:     AxisYear,
		Arg:      -1,
		Mode:     ModeCSV,
		ShowBoth: true,
		Out:      &buf,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatal(err)
	}

	// Alias and directory name come out as two semicolon fields, not one.
	if got := buf.String(); !strings.Contains(got, "inbox;/data/inbox;4;40\n") {
		t.Fatalf("CSV row not split into alias and name fields:\n%s", got)
	}
}
