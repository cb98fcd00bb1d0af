package stat

import (
	"os"
	"path/filepath"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/afdtools/afdstats/pkg/file"
	"github.com/afdtools/afdstats/pkg/flock"
	"github.com/afdtools/afdstats/pkg/mmap"
)

const (
	// HeaderSize is the fixed word-offset preamble before the first row of
	// every statistics file.
	HeaderSize = 8

	// versionOffset is the byte index of the version tag inside the
	// header. It is a fixed offset, not derived from sizeof(int) at run
	// time, so files stay compatible across hosts.
	versionOffset = 7

	// CurrentVersion is the layout version written by this code.
	CurrentVersion = 0
)

var (
	// ErrBadVersion marks a store whose layout version this build does not
	// understand. Fatal everywhere except the migration tool.
	ErrBadVersion = errors.New("statistics file version not recognized")

	// ErrCorruptSize marks a store whose size does not match the header
	// row count and row stride.
	ErrCorruptSize = errors.New("statistics file size does not match row layout")

	// ErrEmptyFile marks an existing store of size zero, treated as
	// absent during attach.
	ErrEmptyFile = errors.New("statistics file is empty")
)

// Mode selects how a store is opened.
type Mode int

const (
	// ModeReadWrite maps the file writable and holds an exclusive
	// advisory lock for the lifetime of the handle. Used by the sampler
	// and the migration tool.
	ModeReadWrite Mode = iota

	// ModeSnapshot maps the file read-only without locking. A sample
	// interval may straddle the read; report granularity makes that
	// acceptable.
	ModeSnapshot
)

// File is a memory-mapped statistics store: a fixed header followed by
// densely packed rows of one stride.
type File struct {
	Path string

	mode   Mode
	stride int
	f      *os.File
	data   []byte
}

// Row strides, part of the on-disk format.
const (
	OutputRowSize        = int(unsafe.Sizeof(OutputRow{}))
	InputRowSize         = int(unsafe.Sizeof(InputRow{}))
	ArchiveOutputRowSize = int(unsafe.Sizeof(ArchiveOutputRow{}))
	ArchiveInputRowSize  = int(unsafe.Sizeof(ArchiveInputRow{}))
)

func attach(path string, stride int, mode Mode) (*File, error) {
	s := &File{Path: path, mode: mode, stride: stride}

	if err := func() error {
		var err error
		if mode == ModeReadWrite {
			if s.f, err = os.OpenFile(path, os.O_RDWR, 0); err != nil {
				return err
			}
			if err = flock.Exclusive(s.f); err != nil {
				return errors.Wrapf(err, "%s", path)
			}
		} else {
			if s.f, err = os.Open(path); err != nil {
				return err
			}
		}

		fi, err := s.f.Stat()
		if err != nil {
			return err
		}
		size := fi.Size()
		if size == 0 {
			return ErrEmptyFile
		}
		if size < HeaderSize || (size-HeaderSize)%int64(stride) != 0 {
			return errors.Wrapf(ErrCorruptSize, "%s", path)
		}

		if mode == ModeReadWrite {
			s.data, err = mmap.MapWrite(s.f, size)
		} else {
			s.data, err = mmap.MapRead(s.f, size)
		}
		if err != nil {
			return err
		}

		if v := s.Version(); v != CurrentVersion {
			return errors.Wrapf(ErrBadVersion, "%s: version %d", path, v)
		}
		if int64(s.RowCount())*int64(stride)+HeaderSize != size {
			return errors.Wrapf(ErrCorruptSize, "%s: header says %d rows", path, s.RowCount())
		}
		return nil
	}(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// create allocates a store of n rows at the staging path. The file is
// seek-allocated with a single zero byte, mapped writable and given a
// current-version header. The caller fills the rows and then promotes the
// staged file over its final location.
func create(stagePath string, stride, n int) (*File, error) {
	s := &File{Path: stagePath, mode: ModeReadWrite, stride: stride}

	if err := func() error {
		var err error
		if s.f, err = os.OpenFile(stagePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644); err != nil {
			return err
		}
		if err = flock.Exclusive(s.f); err != nil {
			return errors.Wrapf(err, "%s", stagePath)
		}

		size := int64(HeaderSize + n*stride)
		if _, err = s.f.Seek(size-1, 0); err != nil {
			return err
		}
		if _, err = s.f.Write([]byte{0}); err != nil {
			return err
		}

		if s.data, err = mmap.MapWrite(s.f, size); err != nil {
			return err
		}

		*(*int32)(unsafe.Pointer(&s.data[0])) = int32(n)
		s.data[versionOffset] = CurrentVersion
		return nil
	}(); err != nil {
		s.Close()
		os.Remove(stagePath)
		return nil, err
	}

	return s, nil
}

// Promote atomically renames the staged file over final. The mapping stays
// valid; a rename does not change the inode.
func (s *File) Promote(final string) error {
	if err := mmap.Sync(s.data); err != nil {
		return err
	}
	if err := file.RenameFile(s.Path, final); err != nil {
		return err
	}
	s.Path = final
	return file.SyncDir(filepath.Dir(final))
}

// PublishAndClose closes the staged store and moves it to final. Meant for
// archives, which are never written again once placed: with the mapping
// released the move can fall back to a copy when rename fails, for
// instance when the staging and final directories sit on different
// filesystems.
func (s *File) PublishAndClose(final string) error {
	stage := s.Path
	if err := s.Close(); err != nil {
		os.Remove(stage)
		return err
	}
	if err := file.RenameFile(stage, final); err != nil {
		if err = file.MoveFileWithReplacement(stage, final); err != nil {
			os.Remove(stage)
			return err
		}
	}
	return file.SyncDir(filepath.Dir(final))
}

// Rename moves the live file to path without disturbing the mapping.
func (s *File) Rename(path string) error {
	if err := file.RenameFile(s.Path, path); err != nil {
		return err
	}
	s.Path = path
	return nil
}

// RowCount returns the row count recorded in the header.
func (s *File) RowCount() int {
	if len(s.data) < HeaderSize {
		return 0
	}
	return int(*(*int32)(unsafe.Pointer(&s.data[0])))
}

// Version returns the layout version tag from the header.
func (s *File) Version() byte {
	if len(s.data) < HeaderSize {
		return 0
	}
	return s.data[versionOffset]
}

// Stride returns the row stride in bytes.
func (s *File) Stride() int { return s.stride }

// Flush synchronously writes the mapped region back to the file.
func (s *File) Flush() error {
	if s.mode != ModeReadWrite {
		return nil
	}
	return mmap.Sync(s.data)
}

// Close flushes (when writable), unmaps and releases the lock.
func (s *File) Close() (err error) {
	if s.data != nil {
		if s.mode == ModeReadWrite {
			err = multierr.Append(err, mmap.Sync(s.data))
		}
		err = multierr.Append(err, mmap.Unmap(s.data))
		s.data = nil
	}
	if s.f != nil {
		if s.mode == ModeReadWrite {
			err = multierr.Append(err, flock.Unlock(s.f))
		}
		err = multierr.Append(err, s.f.Close())
		s.f = nil
	}
	return err
}

func fileRows[T any](s *File) []T {
	n := s.RowCount()
	if n <= 0 || len(s.data) <= HeaderSize {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&s.data[HeaderSize])), n)
}

// OutputFile is a store of OutputRow records.
type OutputFile struct{ *File }

// Rows returns a typed view over the mapped rows.
func (s *OutputFile) Rows() []OutputRow { return fileRows[OutputRow](s.File) }

// OpenOutput attaches an existing output store.
func OpenOutput(path string, mode Mode) (*OutputFile, error) {
	f, err := attach(path, OutputRowSize, mode)
	if err != nil {
		return nil, err
	}
	return &OutputFile{f}, nil
}

// CreateOutput allocates a staged output store of n rows.
func CreateOutput(stagePath string, n int) (*OutputFile, error) {
	f, err := create(stagePath, OutputRowSize, n)
	if err != nil {
		return nil, err
	}
	return &OutputFile{f}, nil
}

// InputFile is a store of InputRow records.
type InputFile struct{ *File }

// Rows returns a typed view over the mapped rows.
func (s *InputFile) Rows() []InputRow { return fileRows[InputRow](s.File) }

// OpenInput attaches an existing input store.
func OpenInput(path string, mode Mode) (*InputFile, error) {
	f, err := attach(path, InputRowSize, mode)
	if err != nil {
		return nil, err
	}
	return &InputFile{f}, nil
}

// CreateInput allocates a staged input store of n rows.
func CreateInput(stagePath string, n int) (*InputFile, error) {
	f, err := create(stagePath, InputRowSize, n)
	if err != nil {
		return nil, err
	}
	return &InputFile{f}, nil
}

// ArchiveOutputFile is a year archive of reduced output rows.
type ArchiveOutputFile struct{ *File }

// Rows returns a typed view over the mapped rows.
func (s *ArchiveOutputFile) Rows() []ArchiveOutputRow { return fileRows[ArchiveOutputRow](s.File) }

// OpenOutputArchive attaches an output year archive.
func OpenOutputArchive(path string, mode Mode) (*ArchiveOutputFile, error) {
	f, err := attach(path, ArchiveOutputRowSize, mode)
	if err != nil {
		return nil, err
	}
	return &ArchiveOutputFile{f}, nil
}

// CreateOutputArchive allocates a staged output year archive of n rows.
func CreateOutputArchive(stagePath string, n int) (*ArchiveOutputFile, error) {
	f, err := create(stagePath, ArchiveOutputRowSize, n)
	if err != nil {
		return nil, err
	}
	return &ArchiveOutputFile{f}, nil
}

// ArchiveInputFile is a year archive of reduced input rows.
type ArchiveInputFile struct{ *File }

// Rows returns a typed view over the mapped rows.
func (s *ArchiveInputFile) Rows() []ArchiveInputRow { return fileRows[ArchiveInputRow](s.File) }

// OpenInputArchive attaches an input year archive.
func OpenInputArchive(path string, mode Mode) (*ArchiveInputFile, error) {
	f, err := attach(path, ArchiveInputRowSize, mode)
	if err != nil {
		return nil, err
	}
	return &ArchiveInputFile{f}, nil
}

// CreateInputArchive allocates a staged input year archive of n rows.
func CreateInputArchive(stagePath string, n int) (*ArchiveInputFile, error) {
	f, err := create(stagePath, ArchiveInputRowSize, n)
	if err != nil {
		return nil, err
	}
	return &ArchiveInputFile{f}, nil
}
