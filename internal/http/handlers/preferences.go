package handlers

import (
	"net/http"

	"studio/internal/domain"
)

func (a *App) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := a.Prefs.Load(r.Context())
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, prefs)
}

func (a *App) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs domain.Preferences
	if err := decodeJSON(r, &prefs); err != nil {
		a.domainError(w, err)
		return
	}
	if err := a.Prefs.Save(r.Context(), prefs); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, prefs)
}
