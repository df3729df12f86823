// Package session owns the mutable editing state for one user session: the
// ordered version history, the active version pointer, the optional reference
// image, and the crop interaction state. All other parts of the pipeline are
// pure; whatever they produce only becomes visible here.
package session

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/geometry"
	"studio/internal/imagegen"
)

// VersionSource records how a history entry came to be.
type VersionSource string

const (
	SourceUpload VersionSource = "upload"
	SourceEdit   VersionSource = "edit"
)

// Version is one entry in a session's history.
type Version struct {
	Index     int
	Raster    domain.Raster
	Source    VersionSource
	CreatedAt time.Time
}

// Session holds the state of one editing session. History is append-only
// except for branch truncation: appending while an older version is active
// discards everything after it first, editor-undo style.
type Session struct {
	ID uuid.UUID

	mu        sync.Mutex
	versions  []Version
	active    int
	reference *domain.Raster
	aspect    imagegen.AspectSelection
	crop      *geometry.CropController
	inFlight  bool
	touched   time.Time
}

func newSession(original domain.Raster) *Session {
	return &Session{
		ID: uuid.New(),
		versions: []Version{{
			Index:     0,
			Raster:    original,
			Source:    SourceUpload,
			CreatedAt: time.Now(),
		}},
		aspect:  imagegen.AspectSelection{Mode: imagegen.AspectOriginal},
		crop:    geometry.NewCropController(geometry.Rect{}),
		touched: time.Now(),
	}
}

// Active returns the currently selected version.
func (s *Session) Active() Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[s.active]
}

// Version returns the history entry at index.
func (s *Session) Version(index int) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.versions) {
		return Version{}, fmt.Errorf("%w: version %d", domain.ErrNotFound, index)
	}
	return s.versions[index], nil
}

// History returns a copy of the version list.
func (s *Session) History() []Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Version, len(s.versions))
	copy(out, s.versions)
	return out
}

// Append records a newly produced raster as the active version. If the
// active version is not the latest, all entries after it are discarded first.
func (s *Session) Append(r domain.Raster) Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = s.versions[:s.active+1]
	v := Version{
		Index:     len(s.versions),
		Raster:    r,
		Source:    SourceEdit,
		CreatedAt: time.Now(),
	}
	s.versions = append(s.versions, v)
	s.active = v.Index
	return v
}

// Select makes the version at index active. The next Append will branch from
// here, discarding any forward history.
func (s *Session) Select(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.versions) {
		return fmt.Errorf("%w: version %d", domain.ErrNotFound, index)
	}
	s.active = index
	return nil
}

// ActiveIndex returns the index of the active version.
func (s *Session) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// BeginEdit marks an edit in flight. At most one edit runs per session;
// concurrent attempts get domain.ErrEditInFlight.
func (s *Session) BeginEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return domain.ErrEditInFlight
	}
	s.inFlight = true
	return nil
}

// EndEdit clears the in-flight marker.
func (s *Session) EndEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
}

// EditInFlight reports whether an edit is currently running.
func (s *Session) EditInFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// AttachReference stores the reference image. If the aspect selection tracks
// the reference, the crop rectangle retargets to its ratio.
func (s *Session) AttachReference(r domain.Raster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reference = &r
	s.crop.ReferenceAttached(r.Ratio())
}

// RemoveReference drops the reference image. If it was the aspect-ratio
// source the selection falls back to the original aspect and cropping stops.
func (s *Session) RemoveReference() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reference = nil
	s.crop.ReferenceRemoved()
	if s.aspect.Mode == imagegen.AspectReference {
		s.aspect = imagegen.AspectSelection{Mode: imagegen.AspectOriginal}
	}
}

// Reference returns the attached reference image, if any.
func (s *Session) Reference() (domain.Raster, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reference == nil {
		return domain.Raster{}, false
	}
	return *s.reference, true
}

// SetAspect applies a validated aspect selection, driving the crop state
// machine. Selecting reference mode without a reference attached is invalid.
func (s *Session) SetAspect(sel imagegen.AspectSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch sel.Mode {
	case imagegen.AspectOriginal:
		s.crop.SelectOriginal()
	case imagegen.AspectFixed:
		ratio, err := imagegen.ParseRatioToken(sel.Ratio)
		if err != nil {
			return err
		}
		if err := s.crop.SelectFixed(ratio); err != nil {
			return err
		}
	case imagegen.AspectReference:
		if s.reference == nil {
			return domain.Invalid("aspect_mode", "reference mode requires an attached reference image")
		}
		if err := s.crop.SelectReference(s.reference.Ratio()); err != nil {
			return err
		}
	default:
		return domain.Invalid("aspect_mode", fmt.Sprintf("unsupported value %q", sel.Mode))
	}
	s.aspect = sel
	return nil
}

// Aspect returns the current aspect selection.
func (s *Session) Aspect() imagegen.AspectSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aspect
}

// SetLayout recomputes the rendered bounds for the active version inside the
// given container and hands them to the crop controller.
func (s *Session) SetLayout(container geometry.Size) geometry.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.versions[s.active].Raster
	bounds := geometry.RenderedBounds(container, image.Pt(active.Width, active.Height))
	s.crop.SetBounds(bounds)
	return bounds
}

// CropRect returns the crop rectangle in display space, if cropping is active.
func (s *Session) CropRect() (geometry.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crop.Rect()
}

// CropStartDrag, CropStartResize, CropMove, CropResize and CropEnd forward
// pointer gesture events to the crop state machine under the session lock.
func (s *Session) CropStartDrag() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crop.StartDrag()
}

func (s *Session) CropStartResize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crop.StartResize()
}

func (s *Session) CropMove(dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crop.Move(dx, dy)
}

func (s *Session) CropResize(dx float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crop.Resize(dx)
}

func (s *Session) CropEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crop.End()
}

// NativeCrop converts the display-space crop rectangle into pixel
// coordinates on the active version. ok is false when no crop is active or
// the preview has not been laid out yet.
func (s *Session) NativeCrop() (image.Rectangle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rect, ok := s.crop.Rect()
	if !ok {
		return image.Rectangle{}, false
	}
	bounds := s.crop.Bounds()
	if bounds.Width <= 0 || bounds.Height <= 0 {
		return image.Rectangle{}, false
	}
	active := s.versions[s.active].Raster
	return geometry.ToNative(rect, bounds, image.Pt(active.Width, active.Height)), true
}

// CropActive reports whether a crop rectangle is displayed.
func (s *Session) CropActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crop.Active()
}

// TargetRatio returns the aspect ratio the output should have, resolving the
// reference ratio when that is the selected source. ok is false in original
// mode.
func (s *Session) TargetRatio() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.crop.Active() {
		return 0, false
	}
	return s.crop.Ratio(), true
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()
}

func (s *Session) lastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}
