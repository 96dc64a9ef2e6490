package remotetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/imgharvest/internal/remote"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryStore()

	if err := m.CreateDirectory(ctx, "/Photos/trip"); err != nil {
		t.Fatalf("CreateDirectory() error = %v", err)
	}
	if err := m.Store(ctx, "/Photos/trip/a.jpg", []byte("alpha")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := m.Store(ctx, "/Missing/a.jpg", []byte("alpha")); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("Store(missing parent) error = %v, want ErrNotFound", err)
	}
	data, err := m.Retrieve(ctx, "/Photos/trip/a.jpg")
	if err != nil || string(data) != "alpha" {
		t.Errorf("Retrieve() = %q, %v", data, err)
	}
	if ok, err := remote.Exists(ctx, m, "/Photos/trip", "a.jpg"); !ok || err != nil {
		t.Errorf("Exists() = %v, %v", ok, err)
	}

	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Put("/deep/nested/x.jpg", []byte("x"), created)
	if !m.HasDir("/deep/nested") {
		t.Error("Put did not create parents")
	}
	entries, _ := m.List(ctx, "/deep/nested")
	if len(entries) != 1 || !entries[0].Created.Equal(created) {
		t.Errorf("entries = %+v", entries)
	}
	if err := m.Delete(ctx, "/deep/nested"); err == nil {
		t.Error("deleting a non-empty directory should fail")
	}

	if err := m.Delete(ctx, "/Photos/trip/a.jpg"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Retrieve(ctx, "/Photos/trip/a.jpg"); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("Retrieve(deleted) error = %v, want ErrNotFound", err)
	}
	if _, err := m.List(ctx, "/Nowhere"); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("List(missing) error = %v, want ErrNotFound", err)
	}

	m.FailStore = map[string]error{"/deep/fail.jpg": errors.New("disk full")}
	if err := m.Store(ctx, "/deep/fail.jpg", nil); err == nil {
		t.Error("FailStore was not applied")
	}
}
