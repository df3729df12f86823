package geometry

import "errors"

// AspectSource identifies where the crop target ratio comes from.
type AspectSource int

const (
	// SourceNone means no target ratio is selected and cropping is inactive.
	SourceNone AspectSource = iota
	// SourceFixed means the user picked a fixed ratio token such as 16:9.
	SourceFixed
	// SourceReference means the ratio tracks the attached reference image.
	SourceReference
)

// Interaction is the pointer-gesture state of an active crop rectangle.
type Interaction int

const (
	InteractionNone Interaction = iota
	InteractionDragging
	InteractionResizing
)

var (
	// ErrNoReference is returned when reference-sourced cropping is selected
	// without a reference image attached.
	ErrNoReference = errors.New("geometry: no reference image attached")
	// ErrCropInactive is returned for gestures while no crop rectangle exists.
	ErrCropInactive = errors.New("geometry: crop rectangle not active")
)

// CropController couples the aspect-ratio selection, the reference-image
// presence, and the crop rectangle into one validated state machine. The
// original behavior scattered these conditionals across UI callbacks; here
// every transition goes through an explicit method and invalid ones are
// rejected instead of silently ignored.
//
// States: Idle (no source selected, no rectangle) and Active (rectangle
// displayed). Within Active, pointer gestures run a nested
// None -> Dragging/Resizing -> None machine driven by Start/Move/End events.
type CropController struct {
	source      AspectSource
	ratio       float64
	bounds      Rect
	rect        Rect
	interaction Interaction
	gestureFrom Rect
}

// NewCropController starts in the Idle state over the given rendered bounds.
func NewCropController(bounds Rect) *CropController {
	return &CropController{bounds: bounds}
}

// SetBounds replaces the rendered bounds, re-centering any active rectangle
// at its target ratio. Called when the preview is re-laid-out.
func (c *CropController) SetBounds(bounds Rect) {
	c.bounds = bounds
	if c.Active() {
		c.rect = InitCrop(bounds, c.ratio)
	}
}

// SelectFixed activates cropping at a fixed ratio token's numeric value.
func (c *CropController) SelectFixed(ratio float64) error {
	if ratio <= 0 {
		return errors.New("geometry: ratio must be positive")
	}
	c.source = SourceFixed
	c.ratio = ratio
	c.activate()
	return nil
}

// SelectOriginal resets to the Idle state: no target ratio, no rectangle.
func (c *CropController) SelectOriginal() {
	c.source = SourceNone
	c.ratio = 0
	c.deactivate()
}

// SelectReference switches the ratio source to the reference image. The
// transition is only valid while a reference is attached.
func (c *CropController) SelectReference(refRatio float64) error {
	if refRatio <= 0 {
		return ErrNoReference
	}
	c.source = SourceReference
	c.ratio = refRatio
	c.activate()
	return nil
}

// ReferenceAttached records a newly attached reference image. If the
// reference is the selected ratio source the rectangle picks up its ratio.
func (c *CropController) ReferenceAttached(refRatio float64) {
	if c.source != SourceReference || refRatio <= 0 {
		return
	}
	c.ratio = refRatio
	c.activate()
}

// ReferenceRemoved records the reference image going away. If it was the
// active ratio source the selection falls back to the original aspect and
// cropping deactivates.
func (c *CropController) ReferenceRemoved() {
	if c.source != SourceReference {
		return
	}
	c.SelectOriginal()
}

// Active reports whether a crop rectangle is currently displayed.
func (c *CropController) Active() bool {
	return c.source != SourceNone && c.ratio > 0
}

// Source returns the current aspect-ratio source.
func (c *CropController) Source() AspectSource {
	return c.source
}

// Ratio returns the current target aspect ratio, 0 while Idle.
func (c *CropController) Ratio() float64 {
	return c.ratio
}

// Bounds returns the rendered bounds the rectangle is constrained to.
func (c *CropController) Bounds() Rect {
	return c.bounds
}

// Rect returns the crop rectangle and whether one is active.
func (c *CropController) Rect() (Rect, bool) {
	if !c.Active() {
		return Rect{}, false
	}
	return c.rect, true
}

// StartDrag begins a move gesture from the current rectangle.
func (c *CropController) StartDrag() error {
	return c.startGesture(InteractionDragging)
}

// StartResize begins a resize gesture from the current rectangle.
func (c *CropController) StartResize() error {
	return c.startGesture(InteractionResizing)
}

// Move applies the cumulative pointer delta since the gesture started.
// Outside a gesture it is a one-shot move/resize from the current rectangle.
func (c *CropController) Move(dx, dy float64) error {
	if !c.Active() {
		return ErrCropInactive
	}
	from := c.gestureFrom
	if c.interaction == InteractionNone {
		from = c.rect
	}
	switch c.interaction {
	case InteractionResizing:
		c.rect = DragResize(from, dx, c.ratio, c.bounds)
	default:
		c.rect = DragMove(from, dx, dy, c.bounds)
	}
	return nil
}

// Resize applies a one-shot resize delta outside a gesture.
func (c *CropController) Resize(dx float64) error {
	if !c.Active() {
		return ErrCropInactive
	}
	if c.interaction == InteractionResizing {
		c.rect = DragResize(c.gestureFrom, dx, c.ratio, c.bounds)
		return nil
	}
	c.rect = DragResize(c.rect, dx, c.ratio, c.bounds)
	return nil
}

// End finishes the current gesture, leaving the rectangle where it landed.
func (c *CropController) End() {
	c.interaction = InteractionNone
	c.gestureFrom = Rect{}
}

// Interaction returns the current gesture state.
func (c *CropController) Interaction() Interaction {
	return c.interaction
}

func (c *CropController) startGesture(kind Interaction) error {
	if !c.Active() {
		return ErrCropInactive
	}
	c.interaction = kind
	c.gestureFrom = c.rect
	return nil
}

func (c *CropController) activate() {
	c.interaction = InteractionNone
	c.rect = InitCrop(c.bounds, c.ratio)
}

func (c *CropController) deactivate() {
	c.interaction = InteractionNone
	c.rect = Rect{}
}
