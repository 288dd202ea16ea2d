// Package archive exports a filesystem media store to a tar.gz file and
// restores one from it.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mholt/archives"

	"github.com/cperrin88/mediafetch/pkg/fsutil"
)

// Manager handles store export and import.
type Manager struct{}

// NewManager creates a new Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// Summary describes what an export or import touched.
type Summary struct {
	Files int
	Bytes int64
}

// Export writes every file below root into a gzip compressed tarball at
// archivePath. Entry names are relative to root, so full/ and thumbs/ end up
// at the top of the archive. The archive only appears once complete.
func (am *Manager) Export(ctx context.Context, root, archivePath string) (Summary, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to get absolute path for store root: %w", err)
	}
	size, count, err := fsutil.DirUsage(absRoot)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to scan store root: %w", err)
	}

	files, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		absRoot + string(os.PathSeparator): "",
	})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read files from disk: %w", err)
	}

	if err := fsutil.EnsureFileDir(archivePath); err != nil {
		return Summary{}, fmt.Errorf("failed to create archive directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(archivePath), ".mf-export-*.tmp")
	if err != nil {
		return Summary{}, fmt.Errorf("failed to create output file %s: %w", archivePath, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}
	if err := format.Archive(ctx, tmp, files); err != nil {
		_ = tmp.Close()
		return Summary{}, fmt.Errorf("failed to create archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Summary{}, fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Chmod(tmpPath, fsutil.FileModeDefault); err != nil {
		return Summary{}, err
	}
	if err := fsutil.Move(tmpPath, archivePath); err != nil {
		return Summary{}, fmt.Errorf("failed to move archive into place: %w", err)
	}
	return Summary{Files: count, Bytes: size}, nil
}

// Import extracts the regular files of archivePath below root, replacing
// objects that already exist. Symlinks and other special entries are skipped.
func (am *Manager) Import(ctx context.Context, archivePath, root string) (Summary, error) {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to open archive file: %w", err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	var sum Summary
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		n, err := am.importEntry(fsys, path, root, d)
		if err != nil {
			return err
		}
		sum.Files++
		sum.Bytes += n
		return nil
	})
	return sum, err
}

// importEntry writes one archive entry below root and keeps its mtime, which
// the freshness check relies on.
func (am *Manager) importEntry(fsys fs.FS, path, root string, d fs.DirEntry) (int64, error) {
	if !fs.ValidPath(path) {
		return 0, fmt.Errorf("invalid archive entry %q", path)
	}
	info, err := d.Info()
	if err != nil {
		return 0, fmt.Errorf("failed to get file info for %s: %w", path, err)
	}

	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	target := filepath.Join(root, filepath.FromSlash(path))
	if err := fsutil.WriteFileAtomic(target, data, fsutil.FileModeDefault); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := os.Chtimes(target, info.ModTime(), info.ModTime()); err != nil {
		return 0, fmt.Errorf("failed to set modification time for %s: %w", target, err)
	}
	return int64(len(data)), nil
}
