package inventory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/imgharvest/internal/digest"
	"github.com/nao1215/imgharvest/internal/model"
	"github.com/nao1215/imgharvest/internal/remote/remotetest"
)

var (
	t1 = time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 = time.Date(2022, 7, 4, 18, 30, 0, 0, time.UTC)
)

func library() *remotetest.MemoryStore {
	m := remotetest.NewMemoryStore()
	m.Put("/Photos/PhotoLibrary/a.jpg", []byte("same bytes"), t1)
	m.Put("/Photos/PhotoLibrary/trip/b.jpg", []byte("same bytes"), t2)
	m.Put("/Photos/PhotoLibrary/trip/deeper/c.png", []byte("other"), t2)
	m.Put("/Photos/PhotoLibrary/.DS_Store", []byte("junk"), t2)
	m.Put("/Photos/Elsewhere/x.jpg", []byte("outside root"), t1)
	return m
}

func TestWalk(t *testing.T) {
	t.Parallel()

	w := NewWalker(library())
	records, err := w.Walk(context.Background(), "/Photos/PhotoLibrary")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	var paths []string
	for _, r := range records {
		paths = append(paths, r.Path)
	}
	want := []string{
		"/Photos/PhotoLibrary/.DS_Store",
		"/Photos/PhotoLibrary/a.jpg",
		"/Photos/PhotoLibrary/trip/b.jpg",
		"/Photos/PhotoLibrary/trip/deeper/c.png",
	}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Fatalf("paths = %v, want %v", paths, want)
	}

	byPath := make(map[string]model.RemoteFileRecord)
	for _, r := range records {
		byPath[r.Path] = r
	}
	a, b := byPath[want[1]], byPath[want[2]]
	if a.Digest != b.Digest {
		t.Error("identical bytes produced different digests")
	}
	if a.Digest != digest.Default().Sum([]byte("same bytes")) {
		t.Error("digest does not match the default hasher")
	}
	if !a.Created.Equal(t1) || a.Size != int64(len("same bytes")) {
		t.Errorf("record = %+v", a)
	}
}

func TestWalkSkipHidden(t *testing.T) {
	t.Parallel()

	records, err := NewWalker(library(), WithSkipHidden(true)).Walk(context.Background(), "/Photos/PhotoLibrary")
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range records {
		if strings.Contains(r.Path, ".DS_Store") {
			t.Errorf("hidden file inventoried: %s", r.Path)
		}
	}
}

func TestWalkMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := NewWalker(library()).Walk(context.Background(), "/Nope")
	if !errors.Is(err, ErrRootUnavailable) {
		t.Errorf("error = %v, want ErrRootUnavailable", err)
	}
}

func TestWalkDeepTree(t *testing.T) {
	t.Parallel()

	m := remotetest.NewMemoryStore()
	p := "/root"
	for range 500 {
		p += "/d"
	}
	m.Put(p+"/leaf.jpg", []byte("leaf"), t1)

	calls := 0
	records, err := NewWalker(m, WithProgress(func(int, string) { calls++ })).Walk(context.Background(), "/root")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || calls != 1 {
		t.Errorf("records = %d, progress calls = %d", len(records), calls)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache", "nas_images.json")
	precise := time.Date(2023, 5, 6, 7, 8, 9, 123456789, time.UTC)
	in := []model.RemoteFileRecord{
		{Path: "/a.jpg", Digest: "d1", Created: model.NewTimestamp(t1), Size: 10},
		{Path: "/b.jpg", Digest: "d1", Created: model.NewTimestamp(t2), Size: 10},
		{Path: "/c.jpg", Digest: "d2", Created: model.NewTimestamp(precise), Size: 10},
	}
	if err := SaveSnapshot(path, in); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	out, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(out) != 3 || !out[1].Created.Equal(t2) || out[0].Digest != "d1" {
		t.Fatalf("loaded = %+v", out)
	}
	if !out[2].Created.Equal(precise) {
		t.Errorf("creation date = %v, want %v with nanoseconds kept", out[2].Created.Time, precise)
	}
}

func TestLoadLegacySnapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nas_images.json")
	legacy := `[
		{"path": "/Photos/PhotoLibrary/a.jpg", "hash": "abc", "creation_date": 1614589200.5, "size": 100},
		{"path": "/Photos/PhotoLibrary/b.jpg", "hash": "abc", "creation_date": "2022-07-04 18:30:00", "size": 100}
	]`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}
	records, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if records[0].Created.Unix() != 1614589200 {
		t.Errorf("numeric creation date = %v", records[0].Created)
	}
	if !records[1].Created.Equal(t2) {
		t.Errorf("string creation date = %v", records[1].Created)
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	t.Parallel()

	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "none.json")); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("error = %v, want ErrNoSnapshot", err)
	}
}
