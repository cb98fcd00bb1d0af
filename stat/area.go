package stat

import "unsafe"

// The transfer and ingest subsystems export their lifetime totals through
// mmapped status areas with the same header convention as the statistics
// stores: row count, version byte, then fixed records.

// HostRecord is one entry of the transfer status area. Stride: 112 bytes.
type HostRecord struct {
	Alias        [MaxHostAliasLen]byte
	RealHostname [40]byte
	FilesDone    uint32
	Connections  uint32
	Errors       uint32
	_            [4]byte
	BytesDone    [MaxParallelJobs]float64
}

// SetAlias stores alias NUL terminated.
func (r *HostRecord) SetAlias(alias string) { putAlias(r.Alias[:], alias) }

// SetRealHostname stores the real hostname NUL terminated.
func (r *HostRecord) SetRealHostname(name string) { putAlias(r.RealHostname[:], name) }

// DirRecord is one entry of the directory status area. Stride: 184 bytes.
type DirRecord struct {
	Alias         [MaxDirAliasLen]byte
	Name          [128]byte
	Remote        byte
	_             [3]byte
	FilesReceived uint32
	BytesReceived float64
}

// SetAlias stores alias NUL terminated.
func (r *DirRecord) SetAlias(alias string) { putAlias(r.Alias[:], alias) }

// SetName stores the full directory name NUL terminated.
func (r *DirRecord) SetName(name string) { putAlias(r.Name[:], name) }

var (
	hostRecordStride = int(unsafe.Sizeof(HostRecord{}))
	dirRecordStride  = int(unsafe.Sizeof(DirRecord{}))
)

// HostArea is a mapped transfer status area. It implements HostView.
type HostArea struct{ *File }

// OpenHostArea maps a transfer status area read-only.
func OpenHostArea(path string) (*HostArea, error) {
	f, err := attach(path, hostRecordStride, ModeSnapshot)
	if err != nil {
		return nil, err
	}
	return &HostArea{f}, nil
}

// Records returns a typed view over the mapped records.
func (a *HostArea) Records() []HostRecord { return fileRows[HostRecord](a.File) }

func (a *HostArea) Len() int           { return a.RowCount() }
func (a *HostArea) Alias(i int) string { return aliasString(a.Records()[i].Alias[:]) }
func (a *HostArea) IsGroup(i int) bool { return a.Records()[i].RealHostname[0] == GroupIndicator }
func (a *HostArea) FilesDone(i int) uint32 {
	return a.Records()[i].FilesDone
}
func (a *HostArea) BytesDone(i int) []float64 {
	return a.Records()[i].BytesDone[:]
}
func (a *HostArea) Connections(i int) uint32 { return a.Records()[i].Connections }
func (a *HostArea) Errors(i int) uint32      { return a.Records()[i].Errors }

// DirArea is a mapped directory status area. It implements DirView.
type DirArea struct{ *File }

// OpenDirArea maps a directory status area read-only.
func OpenDirArea(path string) (*DirArea, error) {
	f, err := attach(path, dirRecordStride, ModeSnapshot)
	if err != nil {
		return nil, err
	}
	return &DirArea{f}, nil
}

// Records returns a typed view over the mapped records.
func (a *DirArea) Records() []DirRecord { return fileRows[DirRecord](a.File) }

func (a *DirArea) Len() int            { return a.RowCount() }
func (a *DirArea) Alias(i int) string  { return aliasString(a.Records()[i].Alias[:]) }
func (a *DirArea) Name(i int) string   { return aliasString(a.Records()[i].Name[:]) }
func (a *DirArea) IsRemote(i int) bool { return a.Records()[i].Remote != 0 }
func (a *DirArea) FilesReceived(i int) uint32 {
	return a.Records()[i].FilesReceived
}
func (a *DirArea) BytesReceived(i int) float64 { return a.Records()[i].BytesReceived }

// WriteHostArea writes a transfer status area; used by simulators and
// tests standing in for the transfer subsystem.
func WriteHostArea(path string, records []HostRecord) error {
	f, err := create(path+".NEW", hostRecordStride, len(records))
	if err != nil {
		return err
	}
	copy(fileRows[HostRecord](f), records)
	if err := f.Promote(path); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteDirArea writes a directory status area.
func WriteDirArea(path string, records []DirRecord) error {
	f, err := create(path+".NEW", dirRecordStride, len(records))
	if err != nil {
		return err
	}
	copy(fileRows[DirRecord](f), records)
	if err := f.Promote(path); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
