package stat

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

// RebuildOutput attaches the output store for year, reconciling its row set
// against the current host roster: rows whose alias is still in the roster
// are carried over verbatim, rows for new aliases are freshly initialised,
// rows for dropped aliases are left behind. The reconciled store is written
// to the staging file and atomically renamed over the target, so a reader
// sees either the old file or the new one. Returns the attached store and
// the previous row count for diagnostics.
func RebuildOutput(workDir string, year int, view HostView, now time.Time) (*OutputFile, int, error) {
	path := OutputPath(workDir, year)

	old, err := OpenOutput(path, ModeReadWrite)
	var oldCount int
	switch {
	case err == nil:
		oldCount = old.RowCount()
	case errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrEmptyFile):
		// No usable previous store; the file may also have vanished
		// between lock attempt and open.
		old = nil
	default:
		return nil, 0, err
	}

	n := view.Len()
	fresh, err := CreateOutput(OutputStagePath(workDir), n)
	if err != nil {
		if old != nil {
			old.Close()
		}
		return nil, 0, err
	}

	rows := fresh.Rows()
	var oldRows []OutputRow
	if old != nil {
		oldRows = old.Rows()
	}
	for i := 0; i < n; i++ {
		alias := view.Alias(i)
		j := findOutputRow(oldRows, alias)
		if j >= 0 {
			rows[i] = oldRows[j]
		} else {
			rows[i].init(alias, now)
		}
	}

	if err := fresh.Promote(path); err != nil {
		stage := fresh.Path
		fresh.Close()
		os.Remove(stage)
		if old != nil {
			old.Close()
		}
		return nil, 0, err
	}
	if old != nil {
		old.Close()
	}
	return fresh, oldCount, nil
}

// RebuildInput is the input-store counterpart of RebuildOutput.
func RebuildInput(workDir string, year int, view DirView, now time.Time) (*InputFile, int, error) {
	path := InputPath(workDir, year)

	old, err := OpenInput(path, ModeReadWrite)
	var oldCount int
	switch {
	case err == nil:
		oldCount = old.RowCount()
	case errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrEmptyFile):
		old = nil
	default:
		return nil, 0, err
	}

	n := view.Len()
	fresh, err := CreateInput(InputStagePath(workDir), n)
	if err != nil {
		if old != nil {
			old.Close()
		}
		return nil, 0, err
	}

	rows := fresh.Rows()
	var oldRows []InputRow
	if old != nil {
		oldRows = old.Rows()
	}
	for i := 0; i < n; i++ {
		alias := view.Alias(i)
		j := findInputRow(oldRows, alias)
		if j >= 0 {
			rows[i] = oldRows[j]
		} else {
			rows[i].init(alias, now)
		}
	}

	if err := fresh.Promote(path); err != nil {
		stage := fresh.Path
		fresh.Close()
		os.Remove(stage)
		if old != nil {
			old.Close()
		}
		return nil, 0, err
	}
	if old != nil {
		old.Close()
	}
	return fresh, oldCount, nil
}

func findOutputRow(rows []OutputRow, alias string) int {
	for i := range rows {
		if rows[i].AliasString() == alias {
			return i
		}
	}
	return -1
}

func findInputRow(rows []InputRow, alias string) int {
	for i := range rows {
		if rows[i].AliasString() == alias {
			return i
		}
	}
	return -1
}
