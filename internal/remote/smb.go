package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hirochachacha/go-smb2"
)

// DefaultShare is the share mounted when none is configured.
const DefaultShare = "home"

// SMBStore is a mounted SMB share.
type SMBStore struct {
	conn    net.Conn
	session *smb2.Session
	share   *smb2.Share
}

func dialSMB(ctx context.Context, opts Options) (*SMBStore, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("%w: %w: host", ErrConnect, ErrMissingOption)
	}
	port := opts.Port
	if port == 0 {
		port = DefaultSMBPort
	}
	shareName := opts.Share
	if shareName == "" {
		shareName = DefaultShare
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(opts.Host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	dialer := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     opts.Username,
			Password: opts.Password,
			Domain:   opts.Domain,
		},
	}
	session, err := dialer.DialContext(dialCtx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	share, err := session.Mount(shareName)
	if err != nil {
		_ = session.Logoff()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: mount %s: %w", ErrConnect, shareName, err)
	}

	return &SMBStore{conn: conn, session: session, share: share}, nil
}

// smbPath converts a store path to the share-relative backslash form.
func smbPath(p string) string {
	return strings.ReplaceAll(strings.TrimPrefix(Clean(p), "/"), "/", `\`)
}

func (s *SMBStore) withContext(ctx context.Context) *smb2.Share {
	return s.share.WithContext(ctx)
}

// List implements Store.
func (s *SMBStore) List(ctx context.Context, dir string) ([]Entry, error) {
	infos, err := s.withContext(ctx).ReadDir(smbPath(dir))
	if err != nil {
		return nil, mapSMBError(err)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if name == "." || name == ".." {
			continue
		}
		e := Entry{Name: name, IsDir: info.IsDir(), Created: info.ModTime()}
		if stat, ok := info.Sys().(*smb2.FileStat); ok && !stat.CreationTime.IsZero() {
			e.Created = stat.CreationTime
		}
		if !e.IsDir {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// CreateDirectory implements Store.
func (s *SMBStore) CreateDirectory(ctx context.Context, dir string) error {
	p := smbPath(dir)
	if p == "" {
		return nil
	}
	return mapSMBError(s.withContext(ctx).MkdirAll(p, 0o755))
}

// Retrieve implements Store.
func (s *SMBStore) Retrieve(ctx context.Context, p string) ([]byte, error) {
	data, err := s.withContext(ctx).ReadFile(smbPath(p))
	if err != nil {
		return nil, mapSMBError(err)
	}
	return data, nil
}

// Store implements Store.
func (s *SMBStore) Store(ctx context.Context, p string, data []byte) error {
	return mapSMBError(s.withContext(ctx).WriteFile(smbPath(p), data, 0o644))
}

// Delete implements Store.
func (s *SMBStore) Delete(ctx context.Context, p string) error {
	return mapSMBError(s.withContext(ctx).Remove(smbPath(p)))
}

// Close unmounts the share and logs off.
func (s *SMBStore) Close() error {
	var errs []error
	if err := s.share.Umount(); err != nil {
		errs = append(errs, err)
	}
	if err := s.session.Logoff(); err != nil {
		errs = append(errs, err)
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func mapSMBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
