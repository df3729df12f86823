package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/session"
	"studio/pkg/zip"
)

type versionView struct {
	Index     int       `json:"index"`
	Source    string    `json:"source"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	MIME      string    `json:"mime"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func versionViewOf(v session.Version, active bool) versionView {
	return versionView{
		Index:     v.Index,
		Source:    string(v.Source),
		Width:     v.Raster.Width,
		Height:    v.Raster.Height,
		MIME:      v.Raster.MIME,
		Active:    active,
		CreatedAt: v.CreatedAt,
	}
}

func (a *App) ListHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromPath(w, r)
	if !ok {
		return
	}
	activeIdx := sess.ActiveIndex()
	history := sess.History()
	views := make([]versionView, 0, len(history))
	for _, v := range history {
		views = append(views, versionViewOf(v, v.Index == activeIdx))
	}
	a.json(w, http.StatusOK, map[string]any{
		"active_index": activeIdx,
		"versions":     views,
	})
}

func pathIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid("index", fmt.Sprintf("invalid version index %q", raw))
	}
	return idx, nil
}

// SelectVersion moves the active pointer. The next edit appended from here
// discards everything after the selected version.
func (a *App) SelectVersion(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromPath(w, r)
	if !ok {
		return
	}
	idx, err := pathIndex(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if err := sess.Select(idx); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewOf(sess))
}

func (a *App) VersionImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromPath(w, r)
	if !ok {
		return
	}
	idx, err := pathIndex(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	version, err := sess.Version(idx)
	if err != nil {
		a.domainError(w, err)
		return
	}
	w.Header().Set("Content-Type", version.Raster.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(version.Raster.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(version.Raster.Data)
}

// HistoryArchive streams the whole session history as a zip download.
func (a *App) HistoryArchive(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromPath(w, r)
	if !ok {
		return
	}
	history := sess.History()
	assets := make([]zip.Asset, 0, len(history))
	for _, v := range history {
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("version-%03d%s", v.Index, extForMIME(v.Raster.MIME)),
			MIME:     v.Raster.MIME,
			Data:     v.Raster.Data,
		})
	}
	payload := zip.ArchiveAssets(assets)
	if payload == nil {
		a.error(w, http.StatusInternalServerError, "internal", "archive failed")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.ID.String()+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func extForMIME(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
