package stat

import (
	"fmt"
	"path/filepath"
)

// Statistics files live under <work dir>/log, one per calendar year;
// staging files for atomic rebuilds live under <work dir>/fifo.
const (
	OutputFilePrefix = "afd_statistic_file"
	InputFilePrefix  = "afd_istatistic_file"

	logDirName  = "log"
	fifoDirName = "fifo"
)

// LogDir returns the directory holding the statistics files.
func LogDir(workDir string) string { return filepath.Join(workDir, logDirName) }

// FifoDir returns the directory holding staging files.
func FifoDir(workDir string) string { return filepath.Join(workDir, fifoDirName) }

// OutputPath returns the output statistics file for a year.
func OutputPath(workDir string, year int) string {
	return filepath.Join(workDir, logDirName, fmt.Sprintf("%s.%d", OutputFilePrefix, year))
}

// InputPath returns the input statistics file for a year.
func InputPath(workDir string, year int) string {
	return filepath.Join(workDir, logDirName, fmt.Sprintf("%s.%d", InputFilePrefix, year))
}

// OutputStagePath returns the staging sibling used while rebuilding the
// output store.
func OutputStagePath(workDir string) string {
	return filepath.Join(workDir, fifoDirName, "."+OutputFilePrefix+".NEW")
}

// InputStagePath returns the staging sibling used while rebuilding the
// input store.
func InputStagePath(workDir string) string {
	return filepath.Join(workDir, fifoDirName, "."+InputFilePrefix+".NEW")
}

// HostAreaPath returns the host status area exported by the transfer
// subsystem.
func HostAreaPath(workDir string) string {
	return filepath.Join(workDir, fifoDirName, "host_status_area")
}

// DirAreaPath returns the directory status area exported by the ingest
// subsystem.
func DirAreaPath(workDir string) string {
	return filepath.Join(workDir, fifoDirName, "dir_status_area")
}
