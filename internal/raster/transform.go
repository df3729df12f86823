// Package raster implements the canvas transforms behind an edit request:
// decoding uploads, cropping to a native-space rectangle, and letterboxing to
// a target aspect ratio with transparent padding for outpainting.
//
// Every transform re-encodes losslessly as PNG so repeated edit rounds never
// compound compression artifacts. All functions are pure and deterministic.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"studio/internal/domain"
)

// Decode validates and measures an uploaded payload, returning a Raster that
// keeps the original bytes. Supported formats are PNG, JPEG and WEBP.
func Decode(data []byte) (domain.Raster, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.Raster{}, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	bounds := img.Bounds()
	return domain.Raster{
		Data:   data,
		MIME:   "image/" + format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// Crop extracts rect from the source raster. The output is sized exactly
// rect.Dx() x rect.Dy(); rectangles reaching outside the source are rejected.
func Crop(src domain.Raster, rect image.Rectangle) (domain.Raster, error) {
	if rect.Empty() {
		return domain.Raster{}, domain.Invalid("crop", "rectangle is empty")
	}
	img, err := decode(src)
	if err != nil {
		return domain.Raster{}, err
	}
	full := image.Rect(0, 0, src.Width, src.Height)
	if !rect.In(full) {
		return domain.Raster{}, domain.Invalid("crop", "rectangle outside image bounds")
	}
	out := imaging.Crop(img, rect)
	return encodePNG(out)
}

// Pad letterboxes the source raster to the target aspect ratio. The new
// canvas fully contains the source, the source is centered, and all newly
// introduced area is fully transparent.
//
// Sizing rule: when the source is wider than the target the width is kept and
// the height grows to round(width/ratio); otherwise the height is kept and
// the width grows to round(height*ratio). Re-padding to the same ratio
// therefore returns unchanged dimensions.
func Pad(src domain.Raster, ratio float64) (domain.Raster, error) {
	if ratio <= 0 {
		return domain.Raster{}, domain.Invalid("aspect_ratio", "must be positive")
	}
	img, err := decode(src)
	if err != nil {
		return domain.Raster{}, err
	}
	size := PaddedSize(image.Pt(src.Width, src.Height), ratio)
	offX := int(math.Round(float64(size.X-src.Width) / 2))
	offY := int(math.Round(float64(size.Y-src.Height) / 2))

	dst := imaging.New(size.X, size.Y, color.NRGBA{})
	dst = imaging.Paste(dst, img, image.Pt(offX, offY))
	return encodePNG(dst)
}

// PaddedSize computes the canvas dimensions Pad will produce for a source of
// the given size and target ratio.
func PaddedSize(src image.Point, ratio float64) image.Point {
	srcRatio := float64(src.X) / float64(src.Y)
	if srcRatio > ratio {
		return image.Pt(src.X, int(math.Round(float64(src.X)/ratio)))
	}
	return image.Pt(int(math.Round(float64(src.Y)*ratio)), src.Y)
}

func decode(src domain.Raster) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return img, nil
}

func encodePNG(img image.Image) (domain.Raster, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return domain.Raster{}, fmt.Errorf("encode png: %w", err)
	}
	bounds := img.Bounds()
	return domain.Raster{
		Data:   buf.Bytes(),
		MIME:   "image/png",
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
