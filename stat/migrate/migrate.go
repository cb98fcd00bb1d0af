// Package migrate rewrites statistics stores between schema layouts: it
// upgrades stores written by older releases to the current layout and
// truncates current stores to the reduced archive layout.
package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/afdtools/afdstats/pkg/flock"
	"github.com/afdtools/afdstats/pkg/mmap"
	"github.com/afdtools/afdstats/stat"
)

// Kind tells which store family a file belongs to.
type Kind int

const (
	KindOutput Kind = iota
	KindInput
)

func (k Kind) String() string {
	if k == KindInput {
		return "input"
	}
	return "output"
}

// DetectKind classifies a store file by its base name. Input store names
// carry the "istatistic" infix.
func DetectKind(path string) (Kind, error) {
	base := filepath.Base(path)
	switch {
	case strings.Contains(base, stat.InputFilePrefix):
		return KindInput, nil
	case strings.Contains(base, stat.OutputFilePrefix):
		return KindOutput, nil
	}
	return 0, errors.Errorf("%s: not a statistics file", base)
}

// The layouts written before the year vector grew its leap day. These rows
// carried a per-century vector that no release ever read back, and the
// output row tracked a single previous byte counter instead of one per
// parallel job.
type legacyOutputRow struct {
	Alias     [stat.MaxHostAliasLen]byte
	StartTime int64
	DayIndex  int32
	HourIndex int32
	SecIndex  int32
	_         int32

	Year    [365]stat.Cell
	Century [100]stat.Cell
	Day     [stat.HoursPerDay]stat.Cell
	Hour    [stat.SecsPerHour]stat.Cell

	PrevBytes       float64
	PrevFiles       uint32
	PrevErrors      uint32
	PrevConnections uint32
	_               [4]byte
}

type legacyInputRow struct {
	Alias     [stat.MaxDirAliasLen]byte
	StartTime int64
	DayIndex  int32
	HourIndex int32
	SecIndex  int32
	_         int32

	Year    [365]stat.InCell
	Century [100]stat.InCell
	Day     [stat.HoursPerDay]stat.InCell
	Hour    [stat.SecsPerHour]stat.InCell

	PrevBytes float64
	PrevFiles uint32
	_         [4]byte
}

const (
	legacyOutputStride = int(unsafe.Sizeof(legacyOutputRow{}))
	legacyInputStride  = int(unsafe.Sizeof(legacyInputRow{}))
)

// source is a raw, exclusively locked view of a store file. The exclusive
// lock guarantees no sampler is writing while we rewrite.
type source struct {
	f    *os.File
	data []byte

	version byte
	count   int
	stride  int
}

func openSource(path string) (*source, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if err := flock.Exclusive(f); err != nil {
		f.Close()
		if err == flock.ErrLocked {
			return nil, errors.Errorf("%s: store is in use", path)
		}
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() < stat.HeaderSize {
		f.Close()
		return nil, errors.Errorf("%s: too small for a statistics file", path)
	}
	data, err := mmap.MapWrite(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	s := &source{f: f, data: data}
	s.count = int(*(*int32)(unsafe.Pointer(&data[0])))
	s.version = data[stat.HeaderSize-1]
	if s.count > 0 {
		body := len(data) - stat.HeaderSize
		if body%s.count != 0 {
			s.close()
			return nil, errors.Errorf("%s: size %d does not divide into %d rows", path, len(data), s.count)
		}
		s.stride = body / s.count
	}
	return s, nil
}

func (s *source) close() error {
	return multierr.Combine(mmap.Unmap(s.data), flock.Unlock(s.f), s.f.Close())
}

func (s *source) rowBytes(i int) []byte {
	off := stat.HeaderSize + i*s.stride
	return s.data[off : off+s.stride]
}

// Convert upgrades a store written in a legacy layout to the current one.
// A store already in the current layout is left untouched. The rewrite
// goes through a ".NEW" sibling and a rename, so the original survives any
// failure.
func Convert(path string) (converted bool, err error) {
	kind, err := DetectKind(path)
	if err != nil {
		return false, err
	}
	src, err := openSource(path)
	if err != nil {
		return false, err
	}
	defer func() { err = multierr.Append(err, src.close()) }()

	if src.version != stat.CurrentVersion {
		return false, errors.Errorf("%s: version %d is outside the supported conversion range", path, src.version)
	}
	if src.count == 0 {
		return false, nil
	}
	stage := path + ".NEW"

	switch {
	case kind == KindOutput && src.stride == stat.OutputRowSize:
		return false, nil
	case kind == KindInput && src.stride == stat.InputRowSize:
		return false, nil
	case kind == KindOutput && src.stride == legacyOutputStride:
		return true, convertOutput(src, stage, path)
	case kind == KindInput && src.stride == legacyInputStride:
		return true, convertInput(src, stage, path)
	}
	return false, errors.Errorf("%s: unrecognised %s row size %d", path, kind, src.stride)
}

func convertOutput(src *source, stage, final string) error {
	dst, err := stat.CreateOutput(stage, src.count)
	if err != nil {
		return err
	}
	rows := dst.Rows()
	for i := 0; i < src.count; i++ {
		old := (*legacyOutputRow)(unsafe.Pointer(&src.rowBytes(i)[0]))
		row := &rows[i]

		row.Alias = old.Alias
		row.StartTime = old.StartTime
		row.DayIndex = old.DayIndex
		row.HourIndex = old.HourIndex
		row.SecIndex = old.SecIndex
		copy(row.Year[:], old.Year[:]) // slot 365 stays zero
		row.Day = old.Day
		row.Hour = old.Hour
		row.PrevBytes[0] = old.PrevBytes
		row.PrevFiles = old.PrevFiles
		row.PrevErrors = old.PrevErrors
		row.PrevConnections = old.PrevConnections
	}
	if err := dst.Promote(final); err != nil {
		dst.Close()
		os.Remove(stage)
		return err
	}
	return dst.Close()
}

func convertInput(src *source, stage, final string) error {
	dst, err := stat.CreateInput(stage, src.count)
	if err != nil {
		return err
	}
	rows := dst.Rows()
	for i := 0; i < src.count; i++ {
		old := (*legacyInputRow)(unsafe.Pointer(&src.rowBytes(i)[0]))
		row := &rows[i]

		row.Alias = old.Alias
		row.StartTime = old.StartTime
		row.DayIndex = old.DayIndex
		row.HourIndex = old.HourIndex
		row.SecIndex = old.SecIndex
		copy(row.Year[:], old.Year[:])
		row.Day = old.Day
		row.Hour = old.Hour
		row.PrevBytes = old.PrevBytes
		row.PrevFiles = old.PrevFiles
	}
	if err := dst.Promote(final); err != nil {
		dst.Close()
		os.Remove(stage)
		return err
	}
	return dst.Close()
}

// Truncate rewrites a current-layout store into the reduced archive layout,
// shedding the day and hour vectors and the previous raw counters. History
// at day granularity is preserved.
func Truncate(path string) (err error) {
	kind, err := DetectKind(path)
	if err != nil {
		return err
	}
	src, err := openSource(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, src.close()) }()

	if src.version != stat.CurrentVersion {
		return errors.Errorf("%s: version %d is outside the supported conversion range", path, src.version)
	}
	stage := path + ".NEW"

	switch {
	case kind == KindOutput && src.stride == stat.OutputRowSize:
		return truncateOutput(src, stage, path)
	case kind == KindInput && src.stride == stat.InputRowSize:
		return truncateInput(src, stage, path)
	case kind == KindOutput && src.stride == stat.ArchiveOutputRowSize,
		kind == KindInput && src.stride == stat.ArchiveInputRowSize:
		return nil // already truncated
	}
	return errors.Errorf("%s: unrecognised %s row size %d", path, kind, src.stride)
}

func truncateOutput(src *source, stage, final string) error {
	dst, err := stat.CreateOutputArchive(stage, src.count)
	if err != nil {
		return err
	}
	rows := dst.Rows()
	for i := 0; i < src.count; i++ {
		old := (*stat.OutputRow)(unsafe.Pointer(&src.rowBytes(i)[0]))
		rows[i].Alias = old.Alias
		rows[i].StartTime = old.StartTime
		rows[i].Year = old.Year
	}
	if err := dst.Promote(final); err != nil {
		dst.Close()
		os.Remove(stage)
		return err
	}
	return dst.Close()
}

func truncateInput(src *source, stage, final string) error {
	dst, err := stat.CreateInputArchive(stage, src.count)
	if err != nil {
		return err
	}
	rows := dst.Rows()
	for i := 0; i < src.count; i++ {
		old := (*stat.InputRow)(unsafe.Pointer(&src.rowBytes(i)[0]))
		rows[i].Alias = old.Alias
		rows[i].StartTime = old.StartTime
		rows[i].Year = old.Year
	}
	if err := dst.Promote(final); err != nil {
		dst.Close()
		os.Remove(stage)
		return err
	}
	return dst.Close()
}

// Info describes a store file without modifying it.
type Info struct {
	Path    string
	Kind    Kind
	Version byte
	Rows    int
	Stride  int
	Size    int64
	Layout  string
}

// Inspect reads the header of a store file and classifies its layout.
func Inspect(path string) (Info, error) {
	kind, err := DetectKind(path)
	if err != nil {
		return Info{}, err
	}
	src, err := openSource(path)
	if err != nil {
		return Info{}, err
	}
	defer src.close()

	info := Info{
		Path:    path,
		Kind:    kind,
		Version: src.version,
		Rows:    src.count,
		Stride:  src.stride,
		Size:    int64(len(src.data)),
	}
	switch {
	case kind == KindOutput && src.stride == stat.OutputRowSize,
		kind == KindInput && src.stride == stat.InputRowSize:
		info.Layout = "current"
	case kind == KindOutput && src.stride == legacyOutputStride,
		kind == KindInput && src.stride == legacyInputStride:
		info.Layout = "legacy"
	case kind == KindOutput && src.stride == stat.ArchiveOutputRowSize,
		kind == KindInput && src.stride == stat.ArchiveInputRowSize:
		info.Layout = "archive"
	case src.count == 0:
		info.Layout = "empty"
	default:
		info.Layout = fmt.Sprintf("unknown (row size %d)", src.stride)
	}
	return info, nil
}
