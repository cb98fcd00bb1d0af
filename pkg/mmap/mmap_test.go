package mmap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/afdtools/afdstats/pkg/mmap"
)

func TestMapReadTracksDescriptorNotPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store")
	if err := os.WriteFile(path, []byte("first"), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	// Another file is renamed over the path before the map is taken; the
	// mapping must still read the file the descriptor was opened on.
	next := filepath.Join(dir, "store.NEW")
	if err := os.WriteFile(next, []byte("second and longer"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(next, path); err != nil {
		t.Fatal(err)
	}

	data, err := mmap.MapRead(f, 5)
	if err != nil {
		t.Fatal(err)
	}
	defer mmap.Unmap(data)

	if got := string(data); got != "first" {
		t.Fatalf("mapped %q, want the opened file's content", got)
	}
}

func TestMapWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store")
	if err := os.WriteFile(path, make([]byte, 8), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	data, err := mmap.MapWrite(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	copy(data, "abcdefgh")
	if err := mmap.Sync(data); err != nil {
		t.Fatal(err)
	}
	if err := mmap.Unmap(data); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abcdefgh" {
		t.Fatalf("file content = %q after sync", got)
	}
}
