package remote

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Store errors.
var (
	// ErrConnect is returned when a backend cannot be reached or
	// authenticated against.
	ErrConnect = errors.New("cannot connect to remote store")

	// ErrNotFound is returned for paths that do not exist.
	ErrNotFound = errors.New("remote path not found")

	// ErrUnknownKind is returned for unsupported backend names.
	ErrUnknownKind = errors.New("unknown remote store kind")

	// ErrMissingOption is returned when a backend option is required but empty.
	ErrMissingOption = errors.New("missing remote store option")
)

// Entry is one item of a directory listing.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	Created time.Time
}

// Store is the set of operations performed against a remote file store.
type Store interface {
	// List returns the entries of dir, excluding "." and "..".
	List(ctx context.Context, dir string) ([]Entry, error)

	// CreateDirectory creates dir and any missing parents.
	CreateDirectory(ctx context.Context, dir string) error

	// Retrieve returns the full contents of the file at p.
	Retrieve(ctx context.Context, p string) ([]byte, error)

	// Store writes data to p, replacing any existing file.
	Store(ctx context.Context, p string, data []byte) error

	// Delete removes the file or empty directory at p.
	Delete(ctx context.Context, p string) error

	// Close releases the connection.
	Close() error
}

// Kind names a backend.
type Kind string

const (
	// KindLocal is a directory on the local filesystem.
	KindLocal Kind = "local"
	// KindSMB is an SMB share.
	KindSMB Kind = "smb"
	// KindS3 is an S3 bucket.
	KindS3 Kind = "s3"
)

// DefaultSMBPort is the standard SMB over TCP port.
const DefaultSMBPort = 445

// Options describes how to reach a store.
type Options struct {
	Kind Kind

	// Host and Port address the SMB server.
	Host string
	Port int

	// Share is the SMB share name.
	Share string

	// Username and Password authenticate to SMB, or are the access key
	// and secret key for S3. Empty S3 credentials use the default chain.
	Username string
	Password string
	Domain   string

	// BaseDir is the local directory that backs KindLocal.
	BaseDir string

	// Bucket, Region and Endpoint configure KindS3. Endpoint is only
	// needed for S3-compatible servers.
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool

	// Timeout bounds connection establishment.
	Timeout time.Duration
}

// ParseKind converts a configured name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindLocal, KindSMB, KindS3:
		return k, nil
	case "":
		return "", fmt.Errorf("%w: empty", ErrUnknownKind)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Connect opens the backend described by opts.
func Connect(ctx context.Context, opts Options) (Store, error) {
	switch opts.Kind {
	case KindLocal:
		return openLocal(opts)
	case KindSMB:
		return dialSMB(ctx, opts)
	case KindS3:
		return connectS3(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(opts.Kind))
	}
}

// Join joins path elements into a clean absolute store path.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}

// Clean normalises p to an absolute slash-separated path.
func Clean(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return path.Clean("/" + p)
}

// Exists reports whether name is an entry of dir. A missing dir yields false.
func Exists(ctx context.Context, s Store, dir, name string) (bool, error) {
	entries, err := s.List(ctx, dir)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Name == name {
			return true, nil
		}
	}
	return false, nil
}
