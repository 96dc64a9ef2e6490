package remote

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/middleware"
)

func TestClean(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                        "/",
		"Photos/PhotoLibrary/":    "/Photos/PhotoLibrary",
		`\Photos\PhotoLibrary\x`:  "/Photos/PhotoLibrary/x",
		"/Photos/../../etc":       "/etc",
		"/Photos//PhotoLibrary/.": "/Photos/PhotoLibrary",
	}
	for in, want := range tests {
		if got := Clean(in); got != want {
			t.Errorf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Join("/Photos/PhotoLibrary", "trip-2024", "a.jpg"); got != "/Photos/PhotoLibrary/trip-2024/a.jpg" {
		t.Errorf("Join() = %q", got)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Kind{"local": KindLocal, "SMB": KindSMB, " s3 ": KindS3} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "ftp"} {
		if _, err := ParseKind(in); !errors.Is(err, ErrUnknownKind) {
			t.Errorf("ParseKind(%q) error = %v, want ErrUnknownKind", in, err)
		}
	}
}

func TestConnectErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, err := Connect(ctx, Options{Kind: "ftp"}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind error = %v", err)
	}
	if _, err := Connect(ctx, Options{Kind: KindLocal, BaseDir: filepath.Join(t.TempDir(), "missing")}); !errors.Is(err, ErrConnect) {
		t.Errorf("missing local dir error = %v, want ErrConnect", err)
	}
	if _, err := Connect(ctx, Options{Kind: KindSMB}); !errors.Is(err, ErrConnect) {
		t.Errorf("SMB without host error = %v, want ErrConnect", err)
	}
	if _, err := Connect(ctx, Options{Kind: KindS3}); !errors.Is(err, ErrConnect) {
		t.Errorf("S3 without bucket error = %v, want ErrConnect", err)
	}
}

func TestSMBConnectionRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	_ = ln.Close()

	_, err = Connect(context.Background(), Options{
		Kind:    KindSMB,
		Host:    "127.0.0.1",
		Port:    addr.Port,
		Timeout: 2 * time.Second,
	})
	if !errors.Is(err, ErrConnect) {
		t.Errorf("error = %v, want ErrConnect", err)
	}
}

func TestSMBPath(t *testing.T) {
	t.Parallel()

	if got := smbPath("/Photos/PhotoLibrary/a.jpg"); got != `Photos\PhotoLibrary\a.jpg` {
		t.Errorf("smbPath() = %q", got)
	}
	if got := smbPath("/"); got != "" {
		t.Errorf("smbPath(/) = %q, want empty", got)
	}
}

// storeContract exercises the behaviour every backend must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.CreateDirectory(ctx, "/Photos/trip"); err != nil {
		t.Fatalf("CreateDirectory() error = %v", err)
	}
	if err := s.Store(ctx, "/Photos/trip/a.jpg", []byte("alpha")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := s.Store(ctx, "/Photos/top.jpg", []byte("top")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	entries, err := s.List(ctx, "/Photos")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var sawDir, sawFile bool
	for _, e := range entries {
		switch e.Name {
		case "trip":
			sawDir = e.IsDir
		case "top.jpg":
			sawFile = !e.IsDir && e.Size == 3
		}
	}
	if !sawDir || !sawFile {
		t.Errorf("List() = %+v", entries)
	}

	data, err := s.Retrieve(ctx, "/Photos/trip/a.jpg")
	if err != nil || string(data) != "alpha" {
		t.Errorf("Retrieve() = %q, %v", data, err)
	}
	if ok, err := Exists(ctx, s, "/Photos/trip", "a.jpg"); !ok || err != nil {
		t.Errorf("Exists() = %v, %v", ok, err)
	}
	if ok, err := Exists(ctx, s, "/Nowhere", "a.jpg"); ok || err != nil {
		t.Errorf("Exists(missing dir) = %v, %v", ok, err)
	}

	if err := s.Delete(ctx, "/Photos/trip/a.jpg"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Retrieve(ctx, "/Photos/trip/a.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Retrieve(deleted) error = %v, want ErrNotFound", err)
	}
	if _, err := s.List(ctx, "/Nowhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("List(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLocalStore(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	s, err := NewLocalStore(base)
	if err != nil {
		t.Fatal(err)
	}
	storeContract(t, s)

	if _, err := os.Stat(filepath.Join(base, "Photos", "top.jpg")); err != nil {
		t.Errorf("file not under base dir: %v", err)
	}
	if err := s.Store(context.Background(), "/../../escape.jpg", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(base, "escape.jpg")); err != nil {
		t.Errorf("path escaped the base dir: %v", err)
	}
	if err := s.Delete(context.Background(), "/"); err == nil {
		t.Error("deleting the root should fail")
	}
}

func mockS3(output any, err error) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Finalize.Add(
			middleware.FinalizeMiddlewareFunc("MockS3", func(context.Context, middleware.FinalizeInput, middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
				return middleware.FinalizeOutput{Result: output}, middleware.Metadata{}, err
			}),
			middleware.Before,
		)
	}
}

func TestS3StoreList(t *testing.T) {
	t.Parallel()

	modified := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	output := &s3.ListObjectsV2Output{
		CommonPrefixes: []types.CommonPrefix{{Prefix: aws.String("Photos/trip/")}},
		Contents: []types.Object{
			{Key: aws.String("Photos/"), Size: aws.Int64(0)},
			{Key: aws.String("Photos/a.jpg"), Size: aws.Int64(1234), LastModified: aws.Time(modified)},
		},
	}
	client := s3.NewFromConfig(aws.Config{Region: "us-east-1"}, func(o *s3.Options) {
		o.APIOptions = append(o.APIOptions, mockS3(output, nil))
	})
	s := NewS3Store(client, "library")

	entries, err := s.List(context.Background(), "/Photos")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() = %+v, want dir and file", entries)
	}
	if entries[0].Name != "trip" || !entries[0].IsDir {
		t.Errorf("dir entry = %+v", entries[0])
	}
	if entries[1].Name != "a.jpg" || entries[1].Size != 1234 || !entries[1].Created.Equal(modified) {
		t.Errorf("file entry = %+v", entries[1])
	}
}

func TestS3StoreErrors(t *testing.T) {
	t.Parallel()

	client := s3.NewFromConfig(aws.Config{Region: "us-east-1"}, func(o *s3.Options) {
		o.APIOptions = append(o.APIOptions, mockS3(nil, &types.NoSuchKey{}))
	})
	s := NewS3Store(client, "library")
	if _, err := s.Retrieve(context.Background(), "/missing.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Retrieve() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(context.Background(), "/"); err == nil {
		t.Error("deleting the bucket root should fail")
	}
}

func TestObjectKeys(t *testing.T) {
	t.Parallel()

	if got := objectKey("/Photos/a.jpg"); got != "Photos/a.jpg" {
		t.Errorf("objectKey() = %q", got)
	}
	if got := dirPrefix("/"); got != "" {
		t.Errorf("dirPrefix(/) = %q", got)
	}
	if got := dirPrefix("/Photos/trip/"); got != "Photos/trip/" {
		t.Errorf("dirPrefix() = %q", got)
	}
}
