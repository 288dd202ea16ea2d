package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/fsutil"
)

func init() {
	Register("file", newFSStore)
}

// FSStore keeps media on the local filesystem below Root.
type FSStore struct {
	Root string
}

// NewFSStore returns a filesystem store rooted at root.
func NewFSStore(root string) *FSStore {
	return &FSStore{Root: filepath.Clean(root)}
}

func newFSStore(_ context.Context, u *url.URL, _ Options) (Store, error) {
	root := u.Path
	if u.Opaque != "" {
		root = u.Opaque
	}
	if u.Host != "" && u.Host != "localhost" {
		return nil, errors.Wrapf(errors.ErrInvalidStoreURI, "file URI with remote host %q", u.Host)
	}
	if root == "" {
		return nil, errors.Wrap(errors.ErrInvalidStoreURI, "file URI without path")
	}
	return NewFSStore(root), nil
}

// Persist writes data atomically, creating parent directories as needed.
func (s *FSStore) Persist(_ context.Context, path string, data []byte, _ Meta) error {
	abs, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(abs, data, fsutil.FileModeDefault); err != nil {
		return errors.Wrapf(errors.ErrStorageFailure, "write %s: %v", path, err)
	}
	return nil
}

// Stat reports the file's modification time and MD5 checksum.
func (s *FSStore) Stat(_ context.Context, path string) (Stat, error) {
	abs, err := s.resolve(path)
	if err != nil {
		return Stat{}, err
	}
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return Stat{}, ErrNotFound
	}
	if err != nil {
		return Stat{}, errors.Wrapf(errors.ErrStorageFailure, "stat %s: %v", path, err)
	}
	sum, err := fsutil.FileMD5(abs)
	if err != nil {
		return Stat{}, errors.Wrapf(errors.ErrStorageFailure, "checksum %s: %v", path, err)
	}
	return Stat{ModTime: info.ModTime(), Checksum: sum}, nil
}

// resolve maps a store path to an absolute file path, refusing paths that
// escape the root.
func (s *FSStore) resolve(path string) (string, error) {
	abs := filepath.Join(s.Root, filepath.FromSlash(path))
	rel, err := filepath.Rel(s.Root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(errors.ErrStorageFailure, "path %q escapes store root", path)
	}
	return abs, nil
}
