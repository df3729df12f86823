package domain

// Raster is an encoded image payload together with its pixel dimensions.
// Rasters are immutable once produced: crop, pad, and remote edits all
// return fresh values instead of mutating the source.
type Raster struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Ratio returns the width/height aspect ratio, or 0 for a degenerate raster.
func (r Raster) Ratio() float64 {
	if r.Height <= 0 {
		return 0
	}
	return float64(r.Width) / float64(r.Height)
}

// Empty reports whether the raster carries no pixel data.
func (r Raster) Empty() bool {
	return len(r.Data) == 0
}

// MaxUploadBytes is the hard limit applied to uploaded files before any
// decoding is attempted.
const MaxUploadBytes = 4 << 20

// AllowedUploadMIMEs lists the accepted upload formats.
var AllowedUploadMIMEs = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
}
