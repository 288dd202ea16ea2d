package media

import (
	"context"
	"image"
	"sort"

	"github.com/gabriel-vasile/mimetype"

	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/fetch"
	"github.com/cperrin88/mediafetch/pkg/hooks"
	"github.com/cperrin88/mediafetch/pkg/imageproc"
	"github.com/cperrin88/mediafetch/pkg/storage"
)

// ImageProcessor normalizes images to JPEG, filters them by size and derives
// thumbnails.
type ImageProcessor struct {
	base
	minWidth  int
	minHeight int
	thumbs    map[string]imageproc.Size
}

// NewImageProcessor creates an ImageProcessor.
func NewImageProcessor(opts ProcessorOptions) *ImageProcessor {
	return &ImageProcessor{
		base:      newBase(opts),
		minWidth:  opts.MinWidth,
		minHeight: opts.MinHeight,
		thumbs:    opts.Thumbs,
	}
}

// Path always uses the normalized extension.
func (p *ImageProcessor) Path(ctx context.Context, req Request) (string, error) {
	return p.namer.Primary(ctx, req, hooks.KindImage, imageproc.Ext)
}

// Process decodes the body and stores the normalized primary and its
// thumbnails. Thumbnails are derived even when the primary is rejected for
// being too small.
func (p *ImageProcessor) Process(ctx context.Context, req Request, path string, resp *fetch.Response) Outcome {
	req, path, resp, err := p.accept(ctx, p, req, path, resp)
	if err != nil {
		return Failure(req.URL, err)
	}

	src, err := imageproc.Decode(resp.Body)
	if err != nil {
		return Failure(req.URL, err)
	}
	img := imageproc.Normalize(src)
	thumbs := p.thumbnails(ctx, req, img)
	mt := mimetype.Detect(resp.Body).String()

	if b := img.Bounds(); b.Dx() < p.minWidth || b.Dy() < p.minHeight {
		out := Failure(req.URL, errors.Wrapf(errors.ErrSizeRejected, "%dx%d, minimum %dx%d",
			b.Dx(), b.Dy(), p.minWidth, p.minHeight))
		out.Thumbs = thumbs
		out.MIME = mt
		return out
	}

	data, err := imageproc.EncodeJPEG(img)
	if err != nil {
		return Failure(req.URL, err)
	}
	if err := p.store.Persist(ctx, path, data, storage.Meta{ContentType: imageproc.ContentType}); err != nil {
		out := Failure(req.URL, storeError(err))
		out.Thumbs = thumbs
		return out
	}

	return Outcome{
		URL:      req.URL,
		Path:     path,
		Checksum: md5Hex(data),
		Status:   StatusDownloaded,
		MIME:     mt,
		Thumbs:   thumbs,
	}
}

// thumbnails derives every configured thumbnail in name order. Each one
// succeeds or fails on its own.
func (p *ImageProcessor) thumbnails(ctx context.Context, req Request, img image.Image) []Thumb {
	if len(p.thumbs) == 0 {
		return nil
	}
	names := make([]string, 0, len(p.thumbs))
	for name := range p.thumbs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Thumb, 0, len(names))
	for _, name := range names {
		th := p.thumbnail(ctx, req, img, name)
		th.Reason = Reason(th.Err)
		out = append(out, th)
	}
	return out
}

func (p *ImageProcessor) thumbnail(ctx context.Context, req Request, img image.Image, name string) Thumb {
	th := Thumb{Name: name}
	path, err := p.namer.Thumb(ctx, req, name, imageproc.Ext)
	if err != nil {
		th.Err = err
		return th
	}
	data, err := imageproc.EncodeJPEG(imageproc.Thumbnail(img, p.thumbs[name]))
	if err != nil {
		th.Err = err
		return th
	}
	if err := p.store.Persist(ctx, path, data, storage.Meta{ContentType: imageproc.ContentType}); err != nil {
		th.Err = storeError(err)
		return th
	}
	th.Path = path
	th.Checksum = md5Hex(data)
	return th
}
