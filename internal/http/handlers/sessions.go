package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/geometry"
	"studio/internal/imagegen"
	"studio/internal/raster"
	"studio/internal/session"
)

const uploadField = "image"

type cropView struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type sessionView struct {
	ID           string                   `json:"id"`
	ActiveIndex  int                      `json:"active_index"`
	VersionCount int                      `json:"version_count"`
	Width        int                      `json:"width"`
	Height       int                      `json:"height"`
	MIME         string                   `json:"mime"`
	Aspect       imagegen.AspectSelection `json:"aspect"`
	HasReference bool                     `json:"has_reference"`
	Crop         *cropView                `json:"crop,omitempty"`
	EditInFlight bool                     `json:"edit_in_flight"`
}

func viewOf(sess *session.Session) sessionView {
	active := sess.Active()
	v := sessionView{
		ID:           sess.ID.String(),
		ActiveIndex:  sess.ActiveIndex(),
		VersionCount: len(sess.History()),
		Width:        active.Raster.Width,
		Height:       active.Raster.Height,
		MIME:         active.Raster.MIME,
		Aspect:       sess.Aspect(),
		HasReference: hasReference(sess),
		EditInFlight: sess.EditInFlight(),
	}
	if rect, ok := sess.CropRect(); ok {
		v.Crop = &cropView{X: rect.X, Y: rect.Y, W: rect.Width, H: rect.Height}
	}
	return v
}

func hasReference(sess *session.Session) bool {
	_, ok := sess.Reference()
	return ok
}

func pathID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// readImageUpload pulls one image file out of a multipart form, enforcing
// the size cap and MIME allowlist before decoding.
func readImageUpload(r *http.Request, field string) (domain.Raster, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return domain.Raster{}, domain.Invalid(field, "image file required")
	}
	defer file.Close()

	if header.Size > domain.MaxUploadBytes {
		return domain.Raster{}, fmt.Errorf("%w: %d bytes over %d limit", errUploadTooLarge, header.Size, domain.MaxUploadBytes)
	}
	data, err := io.ReadAll(io.LimitReader(file, domain.MaxUploadBytes+1))
	if err != nil {
		return domain.Raster{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > domain.MaxUploadBytes {
		return domain.Raster{}, fmt.Errorf("%w: body over %d limit", errUploadTooLarge, domain.MaxUploadBytes)
	}

	sniffed := http.DetectContentType(data)
	if _, ok := domain.AllowedUploadMIMEs[sniffed]; !ok {
		return domain.Raster{}, domain.Invalid(field, fmt.Sprintf("unsupported format %s, expected PNG, JPEG or WEBP", sniffed))
	}
	return raster.Decode(data)
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(domain.MaxUploadBytes + 1<<20); err != nil {
		a.domainError(w, domain.Invalid("body", "multipart form expected"))
		return
	}
	img, err := readImageUpload(r, uploadField)
	if err != nil {
		a.domainError(w, err)
		return
	}
	sess := a.Sessions.Create(img)
	a.Log.Info().Str("session_id", sess.ID.String()).
		Int("width", img.Width).Int("height", img.Height).
		Msg("session created")
	a.json(w, http.StatusCreated, viewOf(sess))
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromPath(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, viewOf(sess))
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.Delete(pathID(r)); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) AttachReference(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromPath(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(domain.MaxUploadBytes + 1<<20); err != nil {
		a.domainError(w, domain.Invalid("body", "multipart form expected"))
		return
	}
	ref, err := readImageUpload(r, uploadField)
	if err != nil {
		a.domainError(w, err)
		return
	}
	sess.AttachReference(ref)
	a.json(w, http.StatusOK, viewOf(sess))
}

func (a *App) RemoveReference(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromPath(w, r)
	if !ok {
		return
	}
	sess.RemoveReference()
	a.json(w, http.StatusOK, viewOf(sess))
}

type aspectRequest struct {
	Mode  string `json:"mode"`
	Ratio string `json:"ratio"`
}

func (a *App) SetAspect(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromPath(w, r)
	if !ok {
		return
	}
	var req aspectRequest
	if err := decodeJSON(r, &req); err != nil {
		a.domainError(w, err)
		return
	}
	sel, err := imagegen.ParseAspectSelection(req.Mode, req.Ratio)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if err := sess.SetAspect(sel); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewOf(sess))
}

type layoutRequest struct {
	Container geometry.Size `json:"container"`
}

// SetLayout records the preview container size so display-space crop
// coordinates can later be mapped back to pixels.
func (a *App) SetLayout(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromPath(w, r)
	if !ok {
		return
	}
	var req layoutRequest
	if err := decodeJSON(r, &req); err != nil {
		a.domainError(w, err)
		return
	}
	if req.Container.Width <= 0 || req.Container.Height <= 0 {
		a.domainError(w, domain.Invalid("container", "width and height must be positive"))
		return
	}
	bounds := sess.SetLayout(req.Container)
	resp := map[string]any{"bounds": bounds}
	if rect, ok := sess.CropRect(); ok {
		resp["crop"] = cropView{X: rect.X, Y: rect.Y, W: rect.Width, H: rect.Height}
	}
	a.json(w, http.StatusOK, resp)
}

type gestureRequest struct {
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	Commit bool    `json:"commit"`
}

func (a *App) CropMove(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromPath(w, r)
	if !ok {
		return
	}
	var req gestureRequest
	if err := decodeJSON(r, &req); err != nil {
		a.domainError(w, err)
		return
	}
	if err := sess.CropStartDrag(); err != nil {
		a.domainError(w, err)
		return
	}
	if err := sess.CropMove(req.DX, req.DY); err != nil {
		a.domainError(w, err)
		return
	}
	if req.Commit {
		sess.CropEnd()
	}
	a.json(w, http.StatusOK, viewOf(sess))
}

func (a *App) CropResize(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromPath(w, r)
	if !ok {
		return
	}
	var req gestureRequest
	if err := decodeJSON(r, &req); err != nil {
		a.domainError(w, err)
		return
	}
	if err := sess.CropStartResize(); err != nil {
		a.domainError(w, err)
		return
	}
	if err := sess.CropResize(req.DX); err != nil {
		a.domainError(w, err)
		return
	}
	if req.Commit {
		sess.CropEnd()
	}
	a.json(w, http.StatusOK, viewOf(sess))
}
