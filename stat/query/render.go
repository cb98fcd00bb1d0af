package query

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

// report is a finished query: either one totals line per row, or a list of
// labelled summary buckets.
type report struct {
	title string
	input bool
	axis  Axis

	rows    []reportRow
	buckets []bucket
}

type reportRow struct {
	alias  string
	name   string
	totals Totals
}

type bucket struct {
	label  string
	totals Totals
}

func (rep *report) perRow(rows []row, f func(row) Totals) {
	for _, r := range rows {
		rep.rows = append(rep.rows, reportRow{alias: r.alias, name: r.name, totals: f(r)})
	}
}

func (rep *report) grandTotal() Totals {
	var t Totals
	for _, r := range rep.rows {
		t.add(r.totals)
	}
	for _, b := range rep.buckets {
		t.add(b.totals)
	}
	return t
}

// render writes the report in the selected mode.
func render(rep report, opts Options, now time.Time) error {
	switch opts.Mode {
	case ModeTotalsOnly:
		return renderTotals(rep, opts)
	case ModeCSV:
		return renderCSV(rep, opts, now)
	default:
		return renderNormal(rep, opts, now)
	}
}

func renderTotals(rep report, opts Options) error {
	t := rep.grandTotal()
	var err error
	if rep.input {
		_, err = fmt.Fprintf(opts.Out, "%d %.0f\n", t.Files, t.Bytes)
	} else {
		_, err = fmt.Fprintf(opts.Out, "%d %.0f %d %d\n", t.Files, t.Bytes, t.Errors, t.Connections)
	}
	return err
}

func renderCSV(rep report, opts Options, now time.Time) error {
	w := opts.Out
	if err := writeStamp(w, opts, now); err != nil {
		return err
	}
	for _, b := range rep.buckets {
		if err := writeCSVTotals(w, rep.input, strings.TrimSpace(b.label), b.totals); err != nil {
			return err
		}
	}
	for _, r := range rep.rows {
		label := rowLabel(r, opts)
		if rep.input && opts.ShowBoth {
			// Alias and full name are separate fields in CSV output.
			label = r.alias + ";" + r.name
		}
		if err := writeCSVTotals(w, rep.input, label, r.totals); err != nil {
			return err
		}
	}
	return writeCSVTotals(w, rep.input, "total", rep.grandTotal())
}

func writeCSVTotals(w interface{ Write([]byte) (int, error) }, input bool, label string, t Totals) error {
	var err error
	if input {
		_, err = fmt.Fprintf(w, "%s;%d;%.0f\n", label, t.Files, t.Bytes)
	} else {
		_, err = fmt.Fprintf(w, "%s;%d;%.0f;%d;%d\n", label, t.Files, t.Bytes, t.Errors, t.Connections)
	}
	return err
}

func renderNormal(rep report, opts Options, now time.Time) error {
	if err := writeStamp(opts.Out, opts, now); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(opts.Out, "%s\n", rep.title); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(opts.Out, 2, 0, 2, ' ', tabwriter.AlignRight)
	if rep.input {
		fmt.Fprintf(tw, "\t%s\tfiles\tsize\t\n", leftCol(rep, opts))
	} else {
		fmt.Fprintf(tw, "\t%s\tfiles\tsize\terrors\tconnects\t\n", leftCol(rep, opts))
	}
	for _, b := range rep.buckets {
		writeNormalTotals(tw, rep.input, b.label, b.totals)
	}
	for _, r := range rep.rows {
		writeNormalTotals(tw, rep.input, rowLabel(r, opts), r.totals)
	}
	writeNormalTotals(tw, rep.input, "total", rep.grandTotal())
	return tw.Flush()
}

func leftCol(rep report, opts Options) string {
	if len(rep.buckets) > 0 {
		return "interval"
	}
	if rep.input {
		if opts.ShowName {
			return "directory"
		}
		return "alias"
	}
	return "host"
}

func writeNormalTotals(w *tabwriter.Writer, input bool, label string, t Totals) {
	if input {
		fmt.Fprintf(w, "\t%s\t%d\t%s\t\n", label, t.Files, formatBytes(t.Bytes))
		return
	}
	fmt.Fprintf(w, "\t%s\t%d\t%s\t%d\t%d\t\n", label, t.Files, formatBytes(t.Bytes), t.Errors, t.Connections)
}

// rowLabel picks alias, full name or both for the left column of a per-row
// line. Name display only applies to input reports.
func rowLabel(r reportRow, opts Options) string {
	if !opts.Input {
		return r.alias
	}
	switch {
	case opts.ShowBoth:
		return r.alias + " " + r.name
	case opts.ShowName:
		return r.name
	default:
		return r.alias
	}
}

func writeStamp(w interface{ Write([]byte) (int, error) }, opts Options, now time.Time) error {
	switch opts.Stamp {
	case StampHuman:
		_, err := fmt.Fprintf(w, "%s\n", now.UTC().Format("Mon Jan  2 15:04:05 2006"))
		return err
	case StampEpoch:
		_, err := fmt.Fprintf(w, "%d\n", now.Unix())
		return err
	}
	return nil
}

// byte scale, 1024 based
var byteUnits = []struct {
	limit float64
	div   float64
	unit  string
}{
	{1 << 60, 1 << 60, "EB"},
	{1 << 50, 1 << 50, "PB"},
	{1 << 40, 1 << 40, "TB"},
	{1 << 30, 1 << 30, "GB"},
	{1 << 20, 1 << 20, "MB"},
	{1 << 10, 1 << 10, "KB"},
}

// formatBytes scales a byte count to the largest unit that keeps the value
// above one. Negative counts cannot occur in well-formed stores and are
// shown raw so corruption is visible.
func formatBytes(b float64) string {
	if b < 0 {
		return fmt.Sprintf("%.0f B", b)
	}
	for _, u := range byteUnits {
		if b >= u.limit {
			return fmt.Sprintf("%.2f %s", b/u.div, u.unit)
		}
	}
	return fmt.Sprintf("%.0f B", b)
}
