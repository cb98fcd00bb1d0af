package query

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/afdtools/afdstats/stat"
)

// DirAttrs resolves roster attributes the input store does not carry: the
// full directory name and whether the directory is remote. Populated from
// the directory status area when available.
type dirAttrs struct {
	name   map[string]string
	remote map[string]bool
}

func loadDirAttrs(path string) dirAttrs {
	attrs := dirAttrs{name: map[string]string{}, remote: map[string]bool{}}
	if path == "" {
		return attrs
	}
	area, err := stat.OpenDirArea(path)
	if err != nil {
		// Roster attributes are best effort; queries fall back to the
		// alias.
		return attrs
	}
	defer area.Close()
	for i := 0; i < area.Len(); i++ {
		attrs.name[area.Alias(i)] = area.Name(i)
		attrs.remote[area.Alias(i)] = area.IsRemote(i)
	}
	return attrs
}

// openLive maps the current-year store and reduces its rows to bucket
// accessors. The returned closer must be called after rendering; the
// accessors read the mapped region.
func openLive(opts Options, year int) ([]row, func(), error) {
	if opts.Input {
		path := opts.FilePath
		if path == "" {
			path = stat.InputPath(opts.WorkDir, year)
		}
		f, err := stat.OpenInput(path, stat.ModeSnapshot)
		if err != nil {
			return nil, nil, pathError(path, err)
		}
		attrs := loadDirAttrs(opts.DirArea)

		var rows []row
		rr := f.Rows()
		for i := range rr {
			r := &rr[i]
			alias := r.AliasString()
			name := attrs.name[alias]
			if name == "" {
				name = alias
			}
			rows = append(rows, row{
				alias:  alias,
				name:   name,
				remote: attrs.remote[alias],
				pos:    r.Position(int32(year)),
				year:   func(d int) Totals { var t Totals; t.addInCell(r.Year[d]); return t },
				day:    func(h int) Totals { var t Totals; t.addInCell(r.Day[h]); return t },
				hour:   func(s int) Totals { var t Totals; t.addInCell(r.Hour[s]); return t },
			})
		}
		return rows, func() { f.Close() }, nil
	}

	path := opts.FilePath
	if path == "" {
		path = stat.OutputPath(opts.WorkDir, year)
	}
	f, err := stat.OpenOutput(path, stat.ModeSnapshot)
	if err != nil {
		return nil, nil, pathError(path, err)
	}

	var rows []row
	rr := f.Rows()
	for i := range rr {
		r := &rr[i]
		rows = append(rows, row{
			alias: r.AliasString(),
			name:  r.AliasString(),
			pos:   r.Position(int32(year)),
			year:  func(d int) Totals { var t Totals; t.addCell(r.Year[d]); return t },
			day:   func(h int) Totals { var t Totals; t.addCell(r.Day[h]); return t },
			hour:  func(s int) Totals { var t Totals; t.addCell(r.Hour[s]); return t },
		})
	}
	return rows, func() { f.Close() }, nil
}

// runArchive renders a year query against the reduced archive store of a
// past year.
func runArchive(opts Options, year int, now time.Time) error {
	rep := report{input: opts.Input, axis: AxisYear,
		title: fmt.Sprintf("year statistics %d (archive)", year)}

	if opts.Input {
		path := opts.FilePath
		if path == "" {
			path = stat.InputPath(opts.WorkDir, year)
		}
		f, err := stat.OpenInputArchive(path, stat.ModeSnapshot)
		if err != nil {
			return pathError(path, err)
		}
		defer f.Close()
		attrs := loadDirAttrs(opts.DirArea)

		var rows []row
		rr := f.Rows()
		for i := range rr {
			r := &rr[i]
			alias := r.AliasString()
			name := attrs.name[alias]
			if name == "" {
				name = alias
			}
			rows = append(rows, row{
				alias:  alias,
				name:   name,
				remote: attrs.remote[alias],
				year:   func(d int) Totals { var t Totals; t.addInCell(r.Year[d]); return t },
			})
		}
		rows = filterRows(rows, opts)
		rep.perRow(rows, archiveYearTotal)
		return render(rep, opts, now)
	}

	path := opts.FilePath
	if path == "" {
		path = stat.OutputPath(opts.WorkDir, year)
	}
	f, err := stat.OpenOutputArchive(path, stat.ModeSnapshot)
	if err != nil {
		return pathError(path, err)
	}
	defer f.Close()

	var rows []row
	rr := f.Rows()
	for i := range rr {
		r := &rr[i]
		rows = append(rows, row{
			alias: r.AliasString(),
			name:  r.AliasString(),
			year:  func(d int) Totals { var t Totals; t.addCell(r.Year[d]); return t },
		})
	}
	rows = filterRows(rows, opts)
	rep.perRow(rows, archiveYearTotal)
	return render(rep, opts, now)
}

func archiveYearTotal(r row) Totals {
	var t Totals
	for d := 0; d < stat.DaysPerYear; d++ {
		t.add(r.year(d))
	}
	return t
}

// pathError reports store open failures with the absolute path, so the
// operator sees exactly which file was rejected.
func pathError(path string, err error) error {
	if abs, aerr := filepath.Abs(path); aerr == nil {
		path = abs
	}
	return fmt.Errorf("%s: %w", path, err)
}
