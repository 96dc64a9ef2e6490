package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/imgharvest/internal/model"
	"github.com/nao1215/imgharvest/internal/remote/remotetest"
)

var (
	t1 = time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 = time.Date(2022, 7, 4, 18, 30, 0, 0, time.UTC)
	t3 = time.Date(2023, 1, 15, 12, 0, 0, 0, time.UTC)
)

func rec(p, digest string, created time.Time, size int64) model.RemoteFileRecord {
	return model.RemoteFileRecord{Path: p, Digest: digest, Created: model.NewTimestamp(created), Size: size}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    DatePolicy
		wantErr bool
	}{
		{"", DeleteNewer, false},
		{"delete-newer", DeleteNewer, false},
		{"newer", DeleteNewer, false},
		{"Oldest-First", DeleteNewer, false},
		{"delete-older", DeleteOlder, false},
		{"older", DeleteOlder, false},
		{"newest-first", DeleteOlder, false},
		{"sideways", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPolicy) {
					t.Fatalf("ParsePolicy(%q) error = %v, want ErrInvalidPolicy", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePolicy(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFindDuplicates(t *testing.T) {
	t.Parallel()

	records := []model.RemoteFileRecord{
		rec("/lib/b/x.jpg", "aa", t1, 100),
		rec("/lib/a/x.jpg", "aa", t2, 100),
		rec("/lib/only.jpg", "bb", t1, 100),
		rec("/lib/c.jpg", "00", t1, 5),
		rec("/lib/d.jpg", "00", t3, 5),
		rec("/lib/nohash.jpg", "", t1, 5),
		rec("/lib/nohash2.jpg", "", t1, 5),
	}
	groups := FindDuplicates(records)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Digest != "00" || groups[1].Digest != "aa" {
		t.Errorf("groups not ordered by digest: %q, %q", groups[0].Digest, groups[1].Digest)
	}
	if groups[1].Files[0].Path != "/lib/a/x.jpg" {
		t.Errorf("members not ordered by path: %v", groups[1].Files)
	}
	for _, g := range groups {
		if g.Size() < 2 {
			t.Errorf("group %s has %d members", g.Digest, g.Size())
		}
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	g := model.DuplicateGroup{Digest: "aa", Files: []model.RemoteFileRecord{
		rec("/p/second.jpg", "aa", t2, 10),
		rec("/p/first.jpg", "aa", t1, 10),
	}}

	t.Run("newer policy deletes the later copy", func(t *testing.T) {
		t.Parallel()
		policy, err := ParsePolicy("newer")
		if err != nil {
			t.Fatal(err)
		}
		res := Resolve(g, policy)
		if res.Keep.Path != "/p/first.jpg" {
			t.Errorf("kept %s, want /p/first.jpg", res.Keep.Path)
		}
		if len(res.Delete) != 1 || res.Delete[0].Path != "/p/second.jpg" {
			t.Errorf("deleted %v, want [/p/second.jpg]", res.Delete)
		}
	})

	t.Run("delete-older keeps the later copy", func(t *testing.T) {
		t.Parallel()
		res := Resolve(g, DeleteOlder)
		if res.Keep.Path != "/p/second.jpg" {
			t.Errorf("kept %s, want /p/second.jpg", res.Keep.Path)
		}
	})

	t.Run("ties broken by path", func(t *testing.T) {
		t.Parallel()
		tie := model.DuplicateGroup{Digest: "aa", Files: []model.RemoteFileRecord{
			rec("/z.jpg", "aa", t1, 1),
			rec("/a.jpg", "aa", t1, 1),
		}}
		for _, p := range []DatePolicy{DeleteNewer, DeleteOlder} {
			if got := Resolve(tie, p).Keep.Path; got != "/a.jpg" {
				t.Errorf("%s: kept %s, want /a.jpg", p, got)
			}
		}
	})

	t.Run("input group untouched", func(t *testing.T) {
		t.Parallel()
		_ = Resolve(g, DeleteNewer)
		if g.Files[0].Path != "/p/second.jpg" {
			t.Error("Resolve reordered the caller's slice")
		}
	})
}

func TestResolveKeepsExactlyOne(t *testing.T) {
	t.Parallel()

	for k := 2; k <= 6; k++ {
		files := make([]model.RemoteFileRecord, 0, k)
		for i := range k {
			files = append(files, rec("/f/"+string(rune('a'+i))+".jpg", "dd", t1.Add(time.Duration(k-i)*time.Hour), 1))
		}
		g := model.DuplicateGroup{Digest: "dd", Files: files}
		for _, p := range []DatePolicy{DeleteNewer, DeleteOlder} {
			res := Resolve(g, p)
			if len(res.Delete) != k-1 {
				t.Fatalf("k=%d %s: deleted %d, want %d", k, p, len(res.Delete), k-1)
			}
			for _, d := range res.Delete {
				if d.Path == res.Keep.Path {
					t.Fatalf("k=%d %s: survivor %s also deleted", k, p, d.Path)
				}
				if p == DeleteNewer && d.Created.Before(res.Keep.Created.Time) {
					t.Errorf("k=%d: deleted %s older than survivor", k, d.Path)
				}
				if p == DeleteOlder && d.Created.After(res.Keep.Created.Time) {
					t.Errorf("k=%d: deleted %s newer than survivor", k, d.Path)
				}
			}
		}
	}
}

func TestPlanSizePurge(t *testing.T) {
	t.Parallel()

	records := []model.RemoteFileRecord{
		rec("/c.jpg", "1", t1, 10001),
		rec("/b.jpg", "2", t1, 10000),
		rec("/a.jpg", "3", t1, 0),
	}
	got := PlanSizePurge(records, 10000)
	if len(got) != 2 || got[0].Path != "/a.jpg" || got[1].Path != "/b.jpg" {
		t.Errorf("PlanSizePurge = %v, want /a.jpg and /b.jpg", got)
	}
	if got := PlanSizePurge(records, 0); len(got) != 0 {
		t.Errorf("zero threshold selected %d records", len(got))
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()

	records := []model.RemoteFileRecord{
		rec("/a.jpg", "aa", t1, 50),
		rec("/b.jpg", "aa", t2, 50),
		rec("/c.jpg", "cc", t1, 900),
	}

	plan := Plan(records, PlanOptions{Duplicates: true, Policy: DeleteNewer, PurgeThreshold: 100})
	if plan.Scanned != 3 {
		t.Errorf("Scanned = %d, want 3", plan.Scanned)
	}
	if plan.Policy != string(DeleteNewer) {
		t.Errorf("Policy = %q", plan.Policy)
	}
	// /b.jpg is both a duplicate and undersized; it must appear once.
	dels := plan.Deletions()
	if len(dels) != 2 || dels[0].Path != "/b.jpg" || dels[1].Path != "/a.jpg" {
		t.Errorf("Deletions = %v", dels)
	}
	if plan.ReclaimableBytes() != 100 {
		t.Errorf("ReclaimableBytes = %d, want 100", plan.ReclaimableBytes())
	}

	purgeOnly := Plan(records, PlanOptions{PurgeThreshold: 100})
	if len(purgeOnly.Groups) != 0 || len(purgeOnly.Purge) != 2 {
		t.Errorf("purge-only plan = %+v", purgeOnly)
	}
	if !Plan(records, PlanOptions{}).Empty() {
		t.Error("plan with no passes should be empty")
	}
}

type recorderFunc func(ctx context.Context, r model.RemoteFileRecord, reason string) error

func (f recorderFunc) RecordDeletion(ctx context.Context, r model.RemoteFileRecord, reason string) error {
	return f(ctx, r, reason)
}

func TestResolverExecute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := remotetest.NewMemoryStore()
	store.Put("/lib/a.jpg", []byte("same"), t1)
	store.Put("/lib/b.jpg", []byte("same"), t2)
	store.Put("/lib/c.jpg", []byte("same"), t3)
	store.Put("/lib/tiny.jpg", []byte("x"), t1)
	store.Put("/lib/locked.jpg", []byte("y"), t1)
	store.FailDelete = map[string]error{"/lib/locked.jpg": errors.New("access denied")}

	records := []model.RemoteFileRecord{
		rec("/lib/a.jpg", "s", t1, 4),
		rec("/lib/b.jpg", "s", t2, 4),
		rec("/lib/c.jpg", "s", t3, 4),
		rec("/lib/tiny.jpg", "t", t1, 1),
		rec("/lib/locked.jpg", "l", t1, 1),
	}
	plan := Plan(records, PlanOptions{Duplicates: true, Policy: DeleteOlder, PurgeThreshold: 1})

	reasons := map[string]string{}
	resolver := NewResolver(store, WithRecorder(recorderFunc(func(_ context.Context, r model.RemoteFileRecord, reason string) error {
		reasons[r.Path] = reason
		return nil
	})))
	result, err := resolver.Execute(ctx, plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(result.Deleted) != 3 {
		t.Errorf("deleted %d files, want 3", len(result.Deleted))
	}
	if len(result.Failed) != 1 || result.Failed[0].Record.Path != "/lib/locked.jpg" {
		t.Errorf("failed = %v, want /lib/locked.jpg", result.Failed)
	}
	if !store.Has("/lib/c.jpg") {
		t.Error("newest duplicate should survive delete-older")
	}
	for _, p := range []string{"/lib/a.jpg", "/lib/b.jpg", "/lib/tiny.jpg"} {
		if store.Has(p) {
			t.Errorf("%s still present", p)
		}
	}
	if reasons["/lib/a.jpg"] != string(ReasonDuplicate) || reasons["/lib/tiny.jpg"] != string(ReasonUndersized) {
		t.Errorf("recorded reasons = %v", reasons)
	}
	if result.FreedBytes() != 9 {
		t.Errorf("FreedBytes = %d, want 9", result.FreedBytes())
	}
}

func TestResolverExecuteCanceled(t *testing.T) {
	t.Parallel()

	store := remotetest.NewMemoryStore()
	store.Put("/a.jpg", []byte("a"), t1)
	plan := &model.ResolutionPlan{Purge: []model.RemoteFileRecord{rec("/a.jpg", "a", t1, 1)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewResolver(store).Execute(ctx, plan); !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute error = %v, want context.Canceled", err)
	}
	if !store.Has("/a.jpg") {
		t.Error("file deleted despite canceled context")
	}
}
