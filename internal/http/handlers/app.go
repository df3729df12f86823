package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"studio/internal/adapter/repo"
	"studio/internal/domain"
	"studio/internal/geometry"
	"studio/internal/infra"
	"studio/internal/providers/genai"
	"studio/internal/session"
)

// Editor is the remote edit backend. *genai.Client satisfies it; tests plug
// in stubs.
type Editor interface {
	Edit(ctx context.Context, req genai.EditRequest) (domain.Raster, error)
}

type App struct {
	Log      infra.Logger
	Sessions *session.Store
	Editor   Editor
	Prefs    repo.PreferenceStore
}

func NewApp(log infra.Logger, sessions *session.Store, editor Editor, prefs repo.PreferenceStore) *App {
	return &App{Log: log, Sessions: sessions, Editor: editor, Prefs: prefs}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Invalid("body", "invalid json payload")
	}
	return nil
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

// errUploadTooLarge marks an upload rejected on size alone, before decoding.
var errUploadTooLarge = errors.New("upload exceeds size limit")

// domainError maps the error taxonomy onto HTTP statuses. Validation and
// decode failures are the caller's to fix; safety blocks and empty responses
// surface as distinct statuses so the client can phrase them differently.
func (a *App) domainError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		a.error(w, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.Is(err, errUploadTooLarge):
		a.error(w, http.StatusRequestEntityTooLarge, "validation_error", err.Error())
	case errors.Is(err, domain.ErrDecode):
		a.error(w, http.StatusBadRequest, "decode_error", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrEditInFlight):
		a.error(w, http.StatusConflict, "edit_in_flight", err.Error())
	case errors.Is(err, domain.ErrSafetyBlocked):
		a.error(w, http.StatusUnprocessableEntity, "safety_blocked", err.Error())
	case errors.Is(err, domain.ErrNoImageReturned):
		a.error(w, http.StatusBadGateway, "no_image_returned", err.Error())
	case errors.Is(err, domain.ErrProviderFailure):
		a.error(w, http.StatusBadGateway, "transport_error", err.Error())
	case errors.Is(err, geometry.ErrCropInactive), errors.Is(err, geometry.ErrNoReference):
		a.error(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		a.Log.Error().Err(err).Msg("unhandled error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) sessionFromPath(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := a.Sessions.Get(pathID(r))
	if err != nil {
		a.domainError(w, err)
		return nil, false
	}
	return sess, true
}
