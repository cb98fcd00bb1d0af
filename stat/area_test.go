package stat

import (
	"path/filepath"
	"testing"
)

func TestHostAreaRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host_status_area")

	var a, g HostRecord
	a.SetAlias("ber")
	a.SetRealHostname("ber.example.net")
	a.FilesDone = 12
	a.Connections = 3
	a.Errors = 1
	a.BytesDone[0] = 4096
	g.SetAlias("all-ber")
	g.RealHostname[0] = GroupIndicator

	if err := WriteHostArea(path, []HostRecord{a, g}); err != nil {
		t.Fatal(err)
	}

	area, err := OpenHostArea(path)
	if err != nil {
		t.Fatal(err)
	}
	defer area.Close()

	if area.Len() != 2 {
		t.Fatalf("Len = %d, want 2", area.Len())
	}
	if got := area.Alias(0); got != "ber" {
		t.Fatalf("alias = %q, want ber", got)
	}
	if area.IsGroup(0) || !area.IsGroup(1) {
		t.Fatal("group flag wrong")
	}
	if got := area.FilesDone(0); got != 12 {
		t.Fatalf("files done = %d, want 12", got)
	}
	if got := area.BytesDone(0)[0]; got != 4096 {
		t.Fatalf("bytes done[0] = %v, want 4096", got)
	}
}

func TestDirAreaRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir_status_area")

	var d DirRecord
	d.SetAlias("wmo-in")
	d.SetName("/data/incoming/wmo")
	d.Remote = 1
	d.FilesReceived = 9
	d.BytesReceived = 512

	if err := WriteDirArea(path, []DirRecord{d}); err != nil {
		t.Fatal(err)
	}

	area, err := OpenDirArea(path)
	if err != nil {
		t.Fatal(err)
	}
	defer area.Close()

	if got := area.Name(0); got != "/data/incoming/wmo" {
		t.Fatalf("name = %q", got)
	}
	if !area.IsRemote(0) {
		t.Fatal("remote flag lost")
	}
	if got := area.FilesReceived(0); got != 9 {
		t.Fatalf("files received = %d, want 9", got)
	}
}
