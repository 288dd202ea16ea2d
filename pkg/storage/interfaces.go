//go:generate mockgen -destination=mocks/store.go . Store

package storage

import (
	"context"
	"time"
)

// Store persists media bytes under a relative path and reports what it
// already holds. Implementations must tolerate re-persisting the same path
// with the same bytes.
type Store interface {
	// Persist writes data at path (slash separated, relative to the store root).
	Persist(ctx context.Context, path string, data []byte, meta Meta) error

	// Stat reports the modification time and, when the backend knows it, the
	// checksum of the object at path. It returns ErrNotFound when absent.
	Stat(ctx context.Context, path string) (Stat, error)
}

// Meta carries optional attributes stored alongside the bytes.
type Meta struct {
	ContentType string
}

// Stat describes a stored object. A zero ModTime means the backend could not
// report one.
type Stat struct {
	ModTime  time.Time
	Checksum string
}

// Options configure the backend selected by URI.
type Options struct {
	URI string
	FTP FTPOptions
	S3  S3Options
	GCS GCSOptions
}

// FTPOptions configure the FTP backend. Credentials embedded in the URI take
// precedence over User and Password.
type FTPOptions struct {
	User     string
	Password string
	Passive  bool
	Timeout  time.Duration
}

// S3Options configure the S3 compatible backend.
type S3Options struct {
	ACL         string
	EndpointURL string // custom endpoint for self-hosted S3 compatible services
	UseSSL      bool
	VerifySSL   bool
	Region      string
	AccessKey   string
	SecretKey   string
}

// GCSOptions configure the Google Cloud Storage backend.
type GCSOptions struct {
	ProjectID string
	ACL       string
}
