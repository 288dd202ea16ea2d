package storage

import (
	"bytes"
	"context"
	"net"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/secsy/goftp"

	"github.com/cperrin88/mediafetch/pkg/errors"
)

const (
	defaultFTPPort    = "21"
	defaultFTPTimeout = 30 * time.Second
	ftpFileNotFound   = 550
)

func init() {
	Register("ftp", newFTPStore)
}

// FTPStore uploads media to a directory on an FTP server. Each call dials its
// own connection.
type FTPStore struct {
	Host     string
	BasePath string
	config   goftp.Config
}

func newFTPStore(_ context.Context, u *url.URL, opts Options) (Store, error) {
	return NewFTPStore(u, opts.FTP)
}

// NewFTPStore builds an FTP store from a ftp://[user[:pass]@]host[:port]/base URI.
func NewFTPStore(u *url.URL, opts FTPOptions) (*FTPStore, error) {
	if u.Hostname() == "" {
		return nil, errors.Wrap(errors.ErrInvalidStoreURI, "ftp URI without host")
	}
	port := u.Port()
	if port == "" {
		port = defaultFTPPort
	}

	user, password := opts.User, opts.Password
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			password = p
		}
	}
	if user == "" {
		user = "anonymous"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultFTPTimeout
	}

	return &FTPStore{
		Host:     net.JoinHostPort(u.Hostname(), port),
		BasePath: strings.TrimRight(u.Path, "/"),
		config: goftp.Config{
			User:               user,
			Password:           password,
			ConnectionsPerHost: 1,
			Timeout:            timeout,
			ActiveTransfers:    !opts.Passive,
		},
	}, nil
}

// Passive reports whether data connections are opened by the client.
func (s *FTPStore) Passive() bool { return !s.config.ActiveTransfers }

// Persist uploads data, creating missing remote directories first.
func (s *FTPStore) Persist(ctx context.Context, p string, data []byte, _ Meta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := goftp.DialConfig(s.config, s.Host)
	if err != nil {
		return errors.Wrapf(errors.ErrStorageFailure, "ftp dial %s: %v", s.Host, err)
	}
	defer client.Close()

	full := s.remotePath(p)
	s.makeDirs(client, path.Dir(full))
	if err := client.Store(full, bytes.NewReader(data)); err != nil {
		return errors.Wrapf(errors.ErrStorageFailure, "ftp store %s: %v", full, err)
	}
	return nil
}

// Stat asks the server for the file's modification time. FTP has no standard
// checksum command, so Checksum is always empty.
func (s *FTPStore) Stat(ctx context.Context, p string) (Stat, error) {
	if err := ctx.Err(); err != nil {
		return Stat{}, err
	}
	client, err := goftp.DialConfig(s.config, s.Host)
	if err != nil {
		return Stat{}, errors.Wrapf(errors.ErrStorageFailure, "ftp dial %s: %v", s.Host, err)
	}
	defer client.Close()

	info, err := client.Stat(s.remotePath(p))
	if err != nil {
		if ftpErr, ok := err.(goftp.Error); ok && ftpErr.Code() == ftpFileNotFound {
			return Stat{}, ErrNotFound
		}
		return Stat{}, errors.Wrapf(errors.ErrStorageFailure, "ftp stat %s: %v", p, err)
	}
	return Stat{ModTime: info.ModTime()}, nil
}

func (s *FTPStore) remotePath(p string) string {
	return path.Join("/", s.BasePath, p)
}

// makeDirs creates every component of dir. Errors are ignored since most
// servers report existing directories as failures.
func (s *FTPStore) makeDirs(client *goftp.Client, dir string) {
	cur := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		cur += "/" + part
		_, _ = client.Mkdir(cur)
	}
}
