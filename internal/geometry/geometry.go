// Package geometry implements the display-space crop pipeline: fitting an
// image preview inside a container, positioning and sizing a crop rectangle
// over it, and converting the result back to native pixel coordinates.
//
// Two coordinate systems are in play. Display space is the (possibly
// scaled-down) preview shown to the user; native space is the original image
// pixels. Values never cross between the two without going through ToNative.
package geometry

import (
	"image"
	"math"
)

// MinCropSize is the smallest crop rectangle edge, in display pixels, that a
// resize gesture may produce. Anything smaller is rejected as a no-op.
const MinCropSize = 20

// Size is a width/height pair in display pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle in display pixels. For crop rectangles
// the origin is relative to the rendered image box, not the container.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Ratio returns the rectangle's width/height aspect ratio.
func (r Rect) Ratio() float64 {
	if r.Height == 0 {
		return 0
	}
	return r.Width / r.Height
}

// RenderedBounds contain-fits an image of the given native size inside the
// container, preserving aspect ratio. The returned rectangle carries the
// rendered width/height and the centering offset within the container.
func RenderedBounds(container Size, native image.Point) Rect {
	if container.Width <= 0 || container.Height <= 0 || native.X <= 0 || native.Y <= 0 {
		return Rect{}
	}
	scale := math.Min(container.Width/float64(native.X), container.Height/float64(native.Y))
	w := float64(native.X) * scale
	h := float64(native.Y) * scale
	return Rect{
		X:      (container.Width - w) / 2,
		Y:      (container.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}

// InitCrop returns the centered rectangle of the given aspect ratio with
// maximal area inside bounds. If the target ratio is wider than the rendered
// box the rectangle spans the full width, otherwise the full height.
func InitCrop(bounds Rect, ratio float64) Rect {
	if ratio <= 0 || bounds.Width <= 0 || bounds.Height <= 0 {
		return Rect{}
	}
	var w, h float64
	if ratio > bounds.Width/bounds.Height {
		w = bounds.Width
		h = w / ratio
	} else {
		h = bounds.Height
		w = h * ratio
	}
	return Rect{
		X:      (bounds.Width - w) / 2,
		Y:      (bounds.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}

// DragMove translates start by (dx, dy) and clamps the result so the
// rectangle never leaves the rendered image area.
func DragMove(start Rect, dx, dy float64, bounds Rect) Rect {
	out := start
	out.X = clamp(start.X+dx, 0, bounds.Width-start.Width)
	out.Y = clamp(start.Y+dy, 0, bounds.Height-start.Height)
	return out
}

// DragResize grows the rectangle's width by dx, recomputes the height from
// the fixed aspect ratio, and clamps so the far edges stay inside bounds.
// The gesture is rejected (start returned unchanged) if either dimension
// would fall below MinCropSize.
func DragResize(start Rect, dx, ratio float64, bounds Rect) Rect {
	if ratio <= 0 {
		return start
	}
	w := start.Width + dx
	h := w / ratio
	if start.X+w > bounds.Width {
		w = bounds.Width - start.X
		h = w / ratio
	}
	if start.Y+h > bounds.Height {
		h = bounds.Height - start.Y
		w = h * ratio
	}
	if w < MinCropSize || h < MinCropSize {
		return start
	}
	out := start
	out.Width = w
	out.Height = h
	return out
}

// ToNative converts a display-space crop rectangle into native pixel
// coordinates. Each axis scales independently and each edge rounds to the
// nearest integer pixel on its own, so the resulting width can differ by one
// pixel from rounding the display width directly. That matches the on-screen
// selection edge-for-edge and is asserted by tests rather than "fixed".
func ToNative(display Rect, rendered Rect, native image.Point) image.Rectangle {
	if rendered.Width <= 0 || rendered.Height <= 0 {
		return image.Rectangle{}
	}
	sx := float64(native.X) / rendered.Width
	sy := float64(native.Y) / rendered.Height
	x0 := int(math.Round(display.X * sx))
	y0 := int(math.Round(display.Y * sy))
	x1 := int(math.Round((display.X + display.Width) * sx))
	y1 := int(math.Round((display.Y + display.Height) * sy))
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, native.X, native.Y))
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
