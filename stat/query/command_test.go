package query

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/afdtools/afdstats/stat"
)

func TestCommandRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, stat.OutputFilePrefix+".stats")

	f, err := stat.CreateOutput(path+".NEW", 1)
	if err != nil {
		t.Fatal(err)
	}
	copy(f.Rows()[0].Alias[:], "A")
	f.Rows()[0].Year[0] = stat.Cell{Files: 5, Bytes: 50}
	if err := f.Promote(path); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	cmd := &Command{Stdout: &out, Stderr: &out, Name: "afdstat"}
	if err := cmd.Run("-f", path, "-y", "-T"); err != nil {
		t.Fatal(err)
	}
	if got, exp := out.String(), "5 50 0 0\n"; got != exp {
		t.Fatalf("output = %q, want %q", got, exp)
	}
}

func TestCommandRejectsUnknownOption(t *testing.T) {
	cmd := &Command{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}, Name: "afdstat"}
	err := cmd.Run("-x")
	if err == nil || !strings.Contains(err.Error(), "-x") {
		t.Fatalf("err = %v, want an unknown-option error naming -x", err)
	}
}

func TestCommandInputOnlyFlags(t *testing.T) {
	cmd := &Command{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}, Name: "afdstat"}
	if err := cmd.Run("-R"); err == nil {
		t.Fatal("-R must be rejected for host statistics")
	}
}

func TestCommandOptionalAxisValue(t *testing.T) {
	// The value after -d is optional: a following alias must not be
	// swallowed as a day count.
	dir := t.TempDir()
	path := filepath.Join(dir, stat.OutputFilePrefix+".stats")

	f, err := stat.CreateOutput(path+".NEW", 2)
	if err != nil {
		t.Fatal(err)
	}
	copy(f.Rows()[0].Alias[:], "A")
	f.Rows()[0].Day[0] = stat.Cell{Files: 1, Bytes: 1}
	copy(f.Rows()[1].Alias[:], "B")
	f.Rows()[1].Day[0] = stat.Cell{Files: 2, Bytes: 2}
	if err := f.Promote(path); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := &Command{Stdout: &out, Stderr: os.Stderr, Name: "afdstat"}
	if err := cmd.Run("-f", path, "-d", "-T", "B"); err != nil {
		t.Fatal(err)
	}
	if got, exp := out.String(), "2 2 0 0\n"; got != exp {
		t.Fatalf("output = %q, want %q", got, exp)
	}
}
