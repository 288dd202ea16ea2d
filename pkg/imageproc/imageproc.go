// Package imageproc turns fetched image bytes into the normalized JPEG
// primaries and thumbnails the image pipeline stores.
package imageproc

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register the webp decoder

	"github.com/cperrin88/mediafetch/pkg/errors"
)

// JPEGQuality is used for every encoded derivative.
const JPEGQuality = 85

// Ext and ContentType describe the normalized encoding.
const (
	Ext         = ".jpg"
	ContentType = "image/jpeg"
)

// Size is a bounding box in pixels.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Decode parses data in any registered format, applying EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrDecodeFailure, err.Error())
	}
	return img, nil
}

// Normalize flattens img onto a white background so transparency survives the
// conversion to an opaque RGB encoding.
func Normalize(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// Thumbnail shrinks img to fit inside box keeping its aspect ratio. Images
// already inside the box are returned unscaled.
func Thumbnail(img image.Image, box Size) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() <= box.Width && b.Dy() <= box.Height {
		return imaging.Clone(img)
	}
	return imaging.Fit(img, box.Width, box.Height, imaging.Lanczos)
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, errors.Wrap(errors.ErrDecodeFailure, err.Error())
	}
	return buf.Bytes(), nil
}
