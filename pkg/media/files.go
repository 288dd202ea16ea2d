package media

import (
	"context"

	"github.com/gabriel-vasile/mimetype"

	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/fetch"
	"github.com/cperrin88/mediafetch/pkg/fingerprint"
	"github.com/cperrin88/mediafetch/pkg/hooks"
	"github.com/cperrin88/mediafetch/pkg/storage"
)

// FileProcessor stores response bodies as they are.
type FileProcessor struct {
	base
}

// NewFileProcessor creates a FileProcessor.
func NewFileProcessor(opts ProcessorOptions) *FileProcessor {
	return &FileProcessor{base: newBase(opts)}
}

// Path keeps the extension of the URL.
func (p *FileProcessor) Path(ctx context.Context, req Request) (string, error) {
	return p.namer.Primary(ctx, req, hooks.KindFile, fingerprint.Ext(req.URL))
}

// Process persists the body and records its MD5 checksum and detected type.
func (p *FileProcessor) Process(ctx context.Context, req Request, path string, resp *fetch.Response) Outcome {
	req, path, resp, err := p.accept(ctx, p, req, path, resp)
	if err != nil {
		return Failure(req.URL, err)
	}

	mt := mimetype.Detect(resp.Body)
	if err := p.store.Persist(ctx, path, resp.Body, storage.Meta{ContentType: mt.String()}); err != nil {
		return Failure(req.URL, storeError(err))
	}

	return Outcome{
		URL:      req.URL,
		Path:     path,
		Checksum: md5Hex(resp.Body),
		Status:   StatusDownloaded,
		MIME:     mt.String(),
	}
}

func storeError(err error) error {
	if errors.Is(err, errors.ErrStorageFailure) {
		return err
	}
	return errors.Wrap(errors.ErrStorageFailure, err.Error())
}
