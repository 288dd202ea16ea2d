package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cperrin88/mediafetch/pkg/errors"
)

const defaultS3Endpoint = "s3.amazonaws.com"

func init() {
	Register("s3", newS3Store)
}

// objectAPI is the subset of *minio.Client used by S3Store.
type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// S3Store persists media as objects in an S3 compatible bucket.
type S3Store struct {
	Bucket string
	Prefix string
	ACL    string
	client objectAPI
}

func newS3Store(_ context.Context, u *url.URL, opts Options) (Store, error) {
	return NewS3Store(u, opts.S3)
}

// NewS3Store builds a store for an s3://bucket/prefix URI.
func NewS3Store(u *url.URL, opts S3Options) (*S3Store, error) {
	if u.Host == "" {
		return nil, errors.Wrap(errors.ErrInvalidStoreURI, "s3 URI without bucket")
	}

	endpoint, secure, err := s3Endpoint(opts)
	if err != nil {
		return nil, err
	}

	var creds *credentials.Credentials
	if opts.AccessKey != "" || opts.SecretKey != "" {
		creds = credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	mopts := &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: opts.Region,
	}
	if secure && !opts.VerifySSL {
		tr, err := minio.DefaultTransport(secure)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrStorageFailure, "s3 transport: %v", err)
		}
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via verify_ssl
		mopts.Transport = http.RoundTripper(tr)
	}

	client, err := minio.New(endpoint, mopts)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrStorageFailure, "s3 client: %v", err)
	}
	return newS3StoreWithClient(u.Host, u.Path, opts.ACL, client), nil
}

func newS3StoreWithClient(bucket, prefix, acl string, client objectAPI) *S3Store {
	return &S3Store{
		Bucket: bucket,
		Prefix: strings.Trim(prefix, "/"),
		ACL:    acl,
		client: client,
	}
}

// s3Endpoint resolves the host to talk to. An explicit endpoint URL decides
// TLS by its scheme; otherwise UseSSL does.
func s3Endpoint(opts S3Options) (string, bool, error) {
	if opts.EndpointURL == "" {
		return defaultS3Endpoint, opts.UseSSL, nil
	}
	eu, err := url.Parse(opts.EndpointURL)
	if err != nil || eu.Host == "" {
		return "", false, errors.Wrapf(errors.ErrInvalidStoreURI, "s3 endpoint %q", opts.EndpointURL)
	}
	return eu.Host, eu.Scheme == "https", nil
}

// Persist uploads data as a single object.
func (s *S3Store) Persist(ctx context.Context, path string, data []byte, meta Meta) error {
	popts := minio.PutObjectOptions{ContentType: meta.ContentType}
	if s.ACL != "" {
		popts.UserMetadata = map[string]string{"x-amz-acl": s.ACL}
	}
	key := joinKey(s.Prefix, path)
	if _, err := s.client.PutObject(ctx, s.Bucket, key, bytes.NewReader(data), int64(len(data)), popts); err != nil {
		return errors.Wrapf(errors.ErrStorageFailure, "s3 put %s/%s: %v", s.Bucket, key, err)
	}
	return nil
}

// Stat returns the object's last modified time and ETag.
func (s *S3Store) Stat(ctx context.Context, path string) (Stat, error) {
	key := joinKey(s.Prefix, path)
	info, err := s.client.StatObject(ctx, s.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
			return Stat{}, ErrNotFound
		}
		return Stat{}, errors.Wrapf(errors.ErrStorageFailure, "s3 stat %s/%s: %v", s.Bucket, key, err)
	}
	return Stat{ModTime: info.LastModified, Checksum: strings.Trim(info.ETag, `"`)}, nil
}
