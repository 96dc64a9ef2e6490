package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/imgharvest/internal/config"
	"github.com/nao1215/imgharvest/internal/metadata"
	"github.com/nao1215/imgharvest/internal/model"
)

// newGallery serves one page linking four images: two distinct images,
// a byte-identical copy of the first and an icon below any sane minimum.
// Tests crawl it with one worker so the copy is always seen second.
func newGallery(t *testing.T) *httptest.Server {
	t.Helper()
	photo := bytes.Repeat([]byte{'a'}, 200)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body>
<img src="/a.jpg"><img src="/b.png"><img src="/copy-of-a.jpg"><img src="/icon.gif">
</body></html>`)
	})
	mux.HandleFunc("/a.jpg", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(photo) })
	mux.HandleFunc("/copy-of-a.jpg", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(photo) })
	mux.HandleFunc("/b.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{'b'}, 300))
	})
	mux.HandleFunc("/icon.gif", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("GIF89")) })

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func decodeSession(t *testing.T, out string) model.SessionReport {
	t.Helper()
	var rep model.SessionReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("invalid session JSON %q: %v", out, err)
	}
	return rep
}

// TestNewCrawlCmd tests the crawl command creation.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()
	for name, def := range map[string]string{
		"depth":         fmt.Sprint(config.DefaultMaxDepth),
		"workers":       fmt.Sprint(config.DefaultMaxWorkers),
		"retries":       fmt.Sprint(config.DefaultRetryCeiling),
		"hash":          config.DefaultHashAlgorithm,
		"content-dedup": "true",
		"sync":          "false",
		"remote":        config.DefaultRemoteKind,
	} {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			t.Errorf("expected %s flag", name)
			continue
		}
		if flag.DefValue != def {
			t.Errorf("%s: default = %q, want %q", name, flag.DefValue, def)
		}
	}
}

func TestCrawlDownloadsAndDeduplicates(t *testing.T) {
	t.Parallel()

	srv := newGallery(t)
	dir := t.TempDir()
	output := filepath.Join(dir, "images")
	metaFile := filepath.Join(dir, "image_info.json")
	args := []string{
		"--db-dir", filepath.Join(dir, "db"),
		"crawl", "--depth", "0", "--folder", "gallery",
		"--output", output, "--metadata-file", metaFile,
		"--min-size", "100", "--retries", "1", "--workers", "1", "--exif=false", "--json",
		srv.URL + "/",
	}

	stdout, stderr, err := runCLI(t, "", args...)
	if err != nil {
		t.Fatalf("crawl failed: %v\nstderr: %s", err, stderr)
	}
	rep := decodeSession(t, stdout)
	if rep.Folder != "gallery" {
		t.Errorf("folder = %q, want gallery", rep.Folder)
	}
	if rep.PagesFetched != 1 {
		t.Errorf("pages fetched = %d, want 1", rep.PagesFetched)
	}
	if rep.ImagesDownloaded != 2 || rep.ImagesDuplicate != 1 || rep.ImagesTooSmall != 1 {
		t.Errorf("downloaded/duplicate/small = %d/%d/%d, want 2/1/1",
			rep.ImagesDownloaded, rep.ImagesDuplicate, rep.ImagesTooSmall)
	}
	for _, name := range []string{"a.jpg", "b.png"} {
		if !exists(filepath.Join(output, "gallery", name)) {
			t.Errorf("expected %s to be downloaded", name)
		}
	}
	for _, name := range []string{"copy-of-a.jpg", "icon.gif"} {
		if exists(filepath.Join(output, "gallery", name)) {
			t.Errorf("did not expect %s on disk", name)
		}
	}

	store, err := metadata.Open(metaFile)
	if err != nil {
		t.Fatalf("metadata file: %v", err)
	}
	if !store.Has(srv.URL + "/a.jpg") {
		t.Error("expected a.jpg in the metadata file")
	}

	// A second run finds every stored URL in the metadata file.
	stdout, stderr, err = runCLI(t, "", args...)
	if err != nil {
		t.Fatalf("second crawl failed: %v\nstderr: %s", err, stderr)
	}
	rep = decodeSession(t, stdout)
	if rep.ImagesDownloaded != 0 || rep.ImagesKnown != 3 {
		t.Errorf("second run downloaded/known = %d/%d, want 0/3", rep.ImagesDownloaded, rep.ImagesKnown)
	}

	// Both sessions were recorded.
	stdout, _, err = runCLI(t, "", "--db-dir", filepath.Join(dir, "db"), "history", "--json")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var rows []struct {
		Folder string `json:"folder"`
	}
	if err := json.Unmarshal([]byte(stdout), &rows); err != nil {
		t.Fatalf("invalid history JSON %q: %v", stdout, err)
	}
	if len(rows) != 2 || rows[0].Folder != "gallery" {
		t.Errorf("history = %+v, want two gallery sessions", rows)
	}
}

func TestCrawlWithSyncMove(t *testing.T) {
	t.Parallel()

	srv := newGallery(t)
	dir := t.TempDir()
	nas := t.TempDir()
	output := filepath.Join(dir, "images")
	cfg := fmt.Sprintf("remote:\n  kind: local\n  base_dir: %s\n  root: /library\n", nas)

	stdout, stderr, err := runCLI(t, cfg,
		"crawl", "--depth", "0", "--folder", "gallery", "--no-history",
		"--output", output, "--metadata-file", filepath.Join(dir, "meta.json"),
		"--min-size", "100", "--retries", "1", "--workers", "1", "--exif=false", "--json",
		"--sync", "--move",
		srv.URL+"/",
	)
	if err != nil {
		t.Fatalf("crawl failed: %v\nstderr: %s", err, stderr)
	}
	rep := decodeSession(t, stdout)
	if rep.Sync == nil {
		t.Fatal("expected a sync report")
	}
	if rep.Sync.Transferred != 2 || !rep.Sync.LocalDirRemoved {
		t.Errorf("sync = %+v, want 2 transferred and local dir removed", rep.Sync)
	}
	for _, name := range []string{"a.jpg", "b.png"} {
		if !exists(filepath.Join(nas, "library", "gallery", name)) {
			t.Errorf("expected %s in the remote library", name)
		}
	}
	if exists(filepath.Join(output, "gallery")) {
		t.Error("expected the local folder to be removed after the move")
	}
}

func TestCrawlConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "no jobs",
			args: []string{"crawl", "--no-history"},
			want: "configuration error",
		},
		{
			name: "folder with two urls",
			args: []string{"crawl", "--no-history", "--folder", "x", "https://a.example/", "https://b.example/"},
			want: "--folder requires exactly one URL",
		},
		{
			name: "json and markdown",
			args: []string{"crawl", "--no-history", "--json", "--markdown", "https://a.example/"},
			want: "configuration error",
		},
		{
			name: "sync without remote host",
			args: []string{"crawl", "--no-history", "--sync", "https://a.example/"},
			want: "configuration error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := runCLI(t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}
