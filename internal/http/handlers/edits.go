package handlers

import (
	"image"
	"net/http"

	"studio/internal/domain"
	"studio/internal/imagegen"
	"studio/internal/middleware"
	"studio/internal/providers/genai"
	"studio/internal/raster"
	"studio/internal/session"
)

type editRequest struct {
	Instruction string `json:"instruction"`
	Quality     string `json:"quality"`
}

type editResponse struct {
	ActiveIndex int         `json:"active_index"`
	Version     versionView `json:"version"`
	Session     sessionView `json:"session"`
}

// CreateEdit runs the full pipeline for one edit: resolve the active
// version, apply the crop, pad to the target ratio when needed, compile the
// instruction, call the remote backend, and append the result. History is
// only touched after the backend succeeds; any failure leaves the session
// exactly as it was.
func (a *App) CreateEdit(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromPath(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		a.domainError(w, err)
		return
	}
	if req.Instruction == "" {
		a.domainError(w, domain.Invalid("instruction", "instruction required"))
		return
	}
	quality, err := imagegen.ParseQuality(req.Quality)
	if err != nil {
		a.domainError(w, err)
		return
	}

	if err := sess.BeginEdit(); err != nil {
		a.domainError(w, err)
		return
	}
	defer sess.EndEdit()

	working := sess.Active().Raster
	if rect, ok := sess.NativeCrop(); ok {
		working, err = raster.Crop(working, rect)
		if err != nil {
			a.domainError(w, err)
			return
		}
	}

	outpainting := false
	if ratio, ok := sess.TargetRatio(); ok {
		target := raster.PaddedSize(image.Pt(working.Width, working.Height), ratio)
		if target != image.Pt(working.Width, working.Height) {
			working, err = raster.Pad(working, ratio)
			if err != nil {
				a.domainError(w, err)
				return
			}
			outpainting = true
		}
	}

	ref, hasRef := sess.Reference()
	instruction := imagegen.BuildInstruction(imagegen.EditSpec{
		Instruction:  req.Instruction,
		Width:        working.Width,
		Height:       working.Height,
		Outpainting:  outpainting,
		HasReference: hasRef,
		Quality:      quality,
	})

	edit := genai.EditRequest{
		Primary:     working,
		Instruction: instruction,
		RequestID:   middleware.RequestIDFromContext(r.Context()),
	}
	if hasRef {
		edit.Reference = &ref
	}

	result, err := a.Editor.Edit(r.Context(), edit)
	if err != nil {
		a.Log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("edit failed")
		a.domainError(w, err)
		return
	}

	version := sess.Append(result)
	a.savePreferences(r, sess, req.Instruction)

	a.json(w, http.StatusCreated, editResponse{
		ActiveIndex: sess.ActiveIndex(),
		Version:     versionViewOf(version, true),
		Session:     viewOf(sess),
	})
}

// savePreferences persists the last instruction and aspect choice. Failures
// are logged and swallowed: preference storage never fails an edit.
func (a *App) savePreferences(r *http.Request, sess *session.Session, instruction string) {
	sel := sess.Aspect()
	token := string(sel.Mode)
	if sel.Mode == imagegen.AspectFixed {
		token = sel.Ratio
	}
	prefs := domain.Preferences{Instruction: instruction, AspectRatio: token}
	if err := a.Prefs.Save(r.Context(), prefs); err != nil {
		a.Log.Warn().Err(err).Msg("preference save failed")
	}
}
