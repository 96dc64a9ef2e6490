package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// newLibrary creates a local remote library holding one duplicate pair
// (older x/a.jpg, newer y/a.jpg), one unique photo and one tiny file.
func newLibrary(t *testing.T) (nas string, configBody string) {
	t.Helper()
	nas = t.TempDir()
	lib := filepath.Join(nas, "library")

	writeFile(t, filepath.Join(lib, "x", "a.jpg"), 400, 'a')
	writeFile(t, filepath.Join(lib, "y", "a.jpg"), 400, 'a')
	writeFile(t, filepath.Join(lib, "y", "b.jpg"), 600, 'b')
	writeFile(t, filepath.Join(lib, "y", "tiny.jpg"), 5, 't')

	older := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	if err := os.Chtimes(filepath.Join(lib, "x", "a.jpg"), older, older); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(filepath.Join(lib, "y", "a.jpg"), newer, newer); err != nil {
		t.Fatal(err)
	}
	return nas, fmt.Sprintf("remote:\n  kind: local\n  base_dir: %s\n  root: /library\n", nas)
}

func TestDedupCmd(t *testing.T) {
	t.Parallel()

	nas, cfg := newLibrary(t)
	dir := t.TempDir()
	inv := filepath.Join(dir, "inventory.json")
	db := filepath.Join(dir, "db")
	lib := filepath.Join(nas, "library")

	// Without --yes only the plan is printed.
	stdout, stderr, err := runCLI(t, cfg, "--db-dir", db, "dedup", "--inventory-file", inv)
	if err != nil {
		t.Fatalf("dedup failed: %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(stdout, "/library/y/a.jpg") {
		t.Errorf("plan does not list the newer copy: %q", stdout)
	}
	if !strings.Contains(stderr, "--yes") {
		t.Errorf("expected a --yes hint, got %q", stderr)
	}
	if !exists(filepath.Join(lib, "y", "a.jpg")) {
		t.Fatal("dedup deleted a file without --yes")
	}
	if !exists(inv) {
		t.Fatal("expected an inventory snapshot")
	}

	// The cached inventory drives the real run.
	stdout, stderr, err = runCLI(t, cfg, "--db-dir", db, "dedup", "--inventory-file", inv, "--use-cache", "--yes")
	if err != nil {
		t.Fatalf("dedup --yes failed: %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(stdout, "Deleted 1 files") {
		t.Errorf("unexpected result: %q", stdout)
	}
	if exists(filepath.Join(lib, "y", "a.jpg")) {
		t.Error("expected the newer copy to be deleted")
	}
	for _, keep := range []string{"x/a.jpg", "y/b.jpg", "y/tiny.jpg"} {
		if !exists(filepath.Join(lib, filepath.FromSlash(keep))) {
			t.Errorf("expected %s to survive", keep)
		}
	}

	// The snapshot no longer lists the deleted copy, so a second cached
	// run finds nothing to do.
	stdout, _, err = runCLI(t, cfg, "--db-dir", db, "dedup", "--inventory-file", inv, "--use-cache", "--yes", "--json")
	if err != nil {
		t.Fatalf("second dedup failed: %v", err)
	}
	var plan struct {
		Deletions int `json:"deletions"`
	}
	if err := json.Unmarshal([]byte(stdout), &plan); err != nil {
		t.Fatalf("invalid plan JSON %q: %v", stdout, err)
	}
	if plan.Deletions != 0 {
		t.Errorf("second run planned %d deletions, want 0", plan.Deletions)
	}

	stdout, _, err = runCLI(t, cfg, "--db-dir", db, "history", "deletions", "--json")
	if err != nil {
		t.Fatalf("history deletions failed: %v", err)
	}
	var listing deletionListing
	if err := json.Unmarshal([]byte(stdout), &listing); err != nil {
		t.Fatalf("invalid deletions JSON %q: %v", stdout, err)
	}
	if len(listing.Deletions) != 1 || listing.Deletions[0].Reason != "duplicate" {
		t.Errorf("deletions = %+v, want one duplicate", listing.Deletions)
	}
	if listing.Totals["duplicate"] != 1 {
		t.Errorf("totals = %v", listing.Totals)
	}
}

func TestDedupKeepsNewestWithDeleteOlder(t *testing.T) {
	t.Parallel()

	nas, cfg := newLibrary(t)
	dir := t.TempDir()
	lib := filepath.Join(nas, "library")

	_, stderr, err := runCLI(t, cfg, "dedup", "--no-history",
		"--inventory-file", filepath.Join(dir, "inv.json"),
		"--policy", "delete-older", "--yes")
	if err != nil {
		t.Fatalf("dedup failed: %v\nstderr: %s", err, stderr)
	}
	if exists(filepath.Join(lib, "x", "a.jpg")) {
		t.Error("expected the older copy to be deleted")
	}
	if !exists(filepath.Join(lib, "y", "a.jpg")) {
		t.Error("expected the newer copy to survive")
	}
}

func TestDedupInvalidPolicy(t *testing.T) {
	t.Parallel()

	_, cfg := newLibrary(t)
	_, _, err := runCLI(t, cfg, "dedup", "--no-history", "--policy", "keep-all")
	if err == nil || !strings.Contains(err.Error(), "configuration error") {
		t.Errorf("error = %v, want configuration error", err)
	}
}

func TestPurgeCmd(t *testing.T) {
	t.Parallel()

	nas, cfg := newLibrary(t)
	dir := t.TempDir()
	lib := filepath.Join(nas, "library")
	inv := filepath.Join(dir, "inv.json")

	t.Run("dry run lists small files", func(t *testing.T) {
		stdout, _, err := runCLI(t, cfg, "purge", "--no-history", "--inventory-file", inv, "--size", "10", "--dry-run", "--yes")
		if err != nil {
			t.Fatalf("purge failed: %v", err)
		}
		if !strings.Contains(stdout, "/library/y/tiny.jpg") {
			t.Errorf("plan does not list tiny.jpg: %q", stdout)
		}
		if !exists(filepath.Join(lib, "y", "tiny.jpg")) {
			t.Error("dry run deleted a file")
		}
	})

	t.Run("deletes small files only", func(t *testing.T) {
		_, stderr, err := runCLI(t, cfg, "purge", "--no-history", "--inventory-file", inv, "--size", "10", "--yes")
		if err != nil {
			t.Fatalf("purge failed: %v\nstderr: %s", err, stderr)
		}
		if exists(filepath.Join(lib, "y", "tiny.jpg")) {
			t.Error("expected tiny.jpg to be deleted")
		}
		for _, keep := range []string{"x/a.jpg", "y/a.jpg", "y/b.jpg"} {
			if !exists(filepath.Join(lib, filepath.FromSlash(keep))) {
				t.Errorf("purge must not delete %s", keep)
			}
		}
	})

	t.Run("rejects a zero threshold", func(t *testing.T) {
		_, _, err := runCLI(t, cfg, "purge", "--no-history", "--size", "0")
		if err == nil || !strings.Contains(err.Error(), "configuration error") {
			t.Errorf("error = %v, want configuration error", err)
		}
	})
}
