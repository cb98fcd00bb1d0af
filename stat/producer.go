package stat

// GroupIndicator marks a group entry: when it is the leading byte of a
// host's real-hostname field the entry aggregates other hosts and produces
// no traffic of its own. The sampler advances such rows but never
// accumulates counters into them.
const GroupIndicator = 1

// HostView is the read-only producer view over the transfer subsystem's
// status area: monotonic lifetime totals per destination host, in roster
// order.
type HostView interface {
	Len() int
	Alias(i int) string
	IsGroup(i int) bool
	FilesDone(i int) uint32
	BytesDone(i int) []float64 // one total per parallel job slot
	Connections(i int) uint32
	Errors(i int) uint32
}

// DirView is the read-only producer view over the ingest subsystem's
// status area: monotonic lifetime totals per watched directory.
type DirView interface {
	Len() int
	Alias(i int) string
	Name(i int) string
	IsRemote(i int) bool
	FilesReceived(i int) uint32
	BytesReceived(i int) float64
}

// MemHostView is an in-memory HostView. Tests and simulators mutate the
// slices between samples.
type MemHostView struct {
	Aliases []string
	Groups  []bool
	Files   []uint32
	Bytes   [][]float64
	Conns   []uint32
	Errs    []uint32
}

func (v *MemHostView) Len() int             { return len(v.Aliases) }
func (v *MemHostView) Alias(i int) string   { return v.Aliases[i] }
func (v *MemHostView) IsGroup(i int) bool   { return i < len(v.Groups) && v.Groups[i] }
func (v *MemHostView) FilesDone(i int) uint32 {
	if i < len(v.Files) {
		return v.Files[i]
	}
	return 0
}
func (v *MemHostView) BytesDone(i int) []float64 {
	if i < len(v.Bytes) {
		return v.Bytes[i]
	}
	return nil
}
func (v *MemHostView) Connections(i int) uint32 {
	if i < len(v.Conns) {
		return v.Conns[i]
	}
	return 0
}
func (v *MemHostView) Errors(i int) uint32 {
	if i < len(v.Errs) {
		return v.Errs[i]
	}
	return 0
}

// MemDirView is an in-memory DirView.
type MemDirView struct {
	Aliases []string
	Names   []string
	Remote  []bool
	Files   []uint32
	Bytes   []float64
}

func (v *MemDirView) Len() int           { return len(v.Aliases) }
func (v *MemDirView) Alias(i int) string { return v.Aliases[i] }
func (v *MemDirView) Name(i int) string {
	if i < len(v.Names) {
		return v.Names[i]
	}
	return v.Aliases[i]
}
func (v *MemDirView) IsRemote(i int) bool { return i < len(v.Remote) && v.Remote[i] }
func (v *MemDirView) FilesReceived(i int) uint32 {
	if i < len(v.Files) {
		return v.Files[i]
	}
	return 0
}
func (v *MemDirView) BytesReceived(i int) float64 {
	if i < len(v.Bytes) {
		return v.Bytes[i]
	}
	return 0
}
