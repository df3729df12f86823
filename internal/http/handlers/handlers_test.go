package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"studio/internal/adapter/repo"
	"studio/internal/domain"
	"studio/internal/geometry"
	"studio/internal/providers/genai"
	"studio/internal/raster"
	"studio/internal/session"
	"studio/internal/storage"
)

type stubEditor struct {
	mu     sync.Mutex
	last   *genai.EditRequest
	result domain.Raster
	err    error
}

func (s *stubEditor) Edit(ctx context.Context, req genai.EditRequest) (domain.Raster, error) {
	s.mu.Lock()
	s.last = &req
	s.mu.Unlock()
	if s.err != nil {
		return domain.Raster{}, s.err
	}
	return s.result, nil
}

func (s *stubEditor) lastRequest() *genai.EditRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func pngRaster(t *testing.T, width, height int) domain.Raster {
	t.Helper()
	r, err := raster.Decode(pngBytes(t, width, height))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return r
}

func multipartImage(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile(uploadField, "upload.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func newTestApp(t *testing.T) (*App, *stubEditor, http.Handler) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	editor := &stubEditor{result: pngRaster(t, 64, 64)}
	app := NewApp(zerolog.Nop(), session.NewStore(0, zerolog.Nop()), editor, repo.NewPreferencesFile(store))

	r := chi.NewRouter()
	r.Post("/v1/sessions", app.CreateSession)
	r.Route("/v1/sessions/{id}", func(r chi.Router) {
		r.Get("/", app.GetSession)
		r.Delete("/", app.DeleteSession)
		r.Put("/reference", app.AttachReference)
		r.Delete("/reference", app.RemoveReference)
		r.Put("/aspect", app.SetAspect)
		r.Post("/crop", app.SetLayout)
		r.Post("/crop/move", app.CropMove)
		r.Post("/crop/resize", app.CropResize)
		r.Post("/edits", app.CreateEdit)
		r.Get("/history", app.ListHistory)
		r.Get("/history/archive", app.HistoryArchive)
		r.Post("/history/{index}/select", app.SelectVersion)
		r.Get("/history/{index}/image", app.VersionImage)
	})
	r.Get("/v1/preferences", app.GetPreferences)
	r.Put("/v1/preferences", app.PutPreferences)
	return app, editor, r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, h http.Handler, width, height int) sessionView {
	t.Helper()
	body, contentType := multipartImage(t, pngBytes(t, width, height))
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d body %s", rec.Code, rec.Body.String())
	}
	var view sessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode session view: %v", err)
	}
	return view
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

func TestCreateSessionStoresUpload(t *testing.T) {
	_, _, h := newTestApp(t)
	view := createSession(t, h, 200, 100)
	if view.Width != 200 || view.Height != 100 {
		t.Fatalf("dimensions = %dx%d, want 200x100", view.Width, view.Height)
	}
	if view.ActiveIndex != 0 || view.VersionCount != 1 {
		t.Fatalf("active=%d count=%d, want 0/1", view.ActiveIndex, view.VersionCount)
	}
	if view.MIME != "image/png" {
		t.Fatalf("mime = %q", view.MIME)
	}
}

func TestCreateSessionRejectsOversizedUpload(t *testing.T) {
	_, _, h := newTestApp(t)
	body, contentType := multipartImage(t, bytes.Repeat([]byte{0}, domain.MaxUploadBytes+1))
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestCreateSessionRejectsUnsupportedFormat(t *testing.T) {
	_, _, h := newTestApp(t)
	body, contentType := multipartImage(t, []byte("plain text, not an image"))
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "validation_error" {
		t.Fatalf("error code = %q", code)
	}
}

func TestCreateSessionRejectsCorruptImage(t *testing.T) {
	_, _, h := newTestApp(t)
	corrupt := append([]byte("\x89PNG\r\n\x1a\n"), []byte("garbage after the signature")...)
	body, contentType := multipartImage(t, corrupt)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "decode_error" {
		t.Fatalf("error code = %q", code)
	}
}

func TestGetSessionUnknownID(t *testing.T) {
	_, _, h := newTestApp(t)
	rec := doJSON(t, h, http.MethodGet, "/v1/sessions/not-a-uuid", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestEditAppendsVersion(t *testing.T) {
	app, editor, h := newTestApp(t)
	view := createSession(t, h, 120, 80)

	rec := doJSON(t, h, http.MethodPost, "/v1/sessions/"+view.ID+"/edits", editRequest{Instruction: "make it pop"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var resp editResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ActiveIndex != 1 || resp.Session.VersionCount != 2 {
		t.Fatalf("active=%d count=%d, want 1/2", resp.ActiveIndex, resp.Session.VersionCount)
	}
	if resp.Version.Source != string(session.SourceEdit) {
		t.Fatalf("source = %q", resp.Version.Source)
	}

	req := editor.lastRequest()
	if req == nil {
		t.Fatal("editor never called")
	}
	if !strings.Contains(req.Instruction, "make it pop") {
		t.Fatalf("instruction missing user text: %q", req.Instruction)
	}
	if !strings.Contains(req.Instruction, "exactly 120 x 80 pixels") {
		t.Fatalf("instruction missing dimension rule: %q", req.Instruction)
	}
	if req.Reference != nil {
		t.Fatal("reference sent without attachment")
	}

	prefs, err := app.Prefs.Load(context.Background())
	if err != nil {
		t.Fatalf("load prefs: %v", err)
	}
	if prefs.Instruction != "make it pop" {
		t.Fatalf("persisted instruction = %q", prefs.Instruction)
	}
}

func TestEditFailureLeavesHistoryUnchanged(t *testing.T) {
	_, editor, h := newTestApp(t)
	view := createSession(t, h, 64, 64)
	editor.err = fmt.Errorf("prompt rejected: %w", domain.ErrSafetyBlocked)

	rec := doJSON(t, h, http.MethodPost, "/v1/sessions/"+view.ID+"/edits", editRequest{Instruction: "redacted"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if code := errorCode(t, rec); code != "safety_blocked" {
		t.Fatalf("error code = %q", code)
	}

	after := doJSON(t, h, http.MethodGet, "/v1/sessions/"+view.ID, nil)
	var got sessionView
	if err := json.Unmarshal(after.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if got.VersionCount != 1 || got.ActiveIndex != 0 {
		t.Fatalf("history changed on failure: active=%d count=%d", got.ActiveIndex, got.VersionCount)
	}
	if got.EditInFlight {
		t.Fatal("edit flag stuck after failure")
	}
}

func TestEditNoImageReturned(t *testing.T) {
	_, editor, h := newTestApp(t)
	view := createSession(t, h, 64, 64)
	editor.err = domain.ErrNoImageReturned

	rec := doJSON(t, h, http.MethodPost, "/v1/sessions/"+view.ID+"/edits", editRequest{Instruction: "anything"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if code := errorCode(t, rec); code != "no_image_returned" {
		t.Fatalf("error code = %q", code)
	}
}

func TestEditConflictWhileInFlight(t *testing.T) {
	app, _, h := newTestApp(t)
	view := createSession(t, h, 64, 64)

	sess, err := app.Sessions.Get(view.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if err := sess.BeginEdit(); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	defer sess.EndEdit()

	rec := doJSON(t, h, http.MethodPost, "/v1/sessions/"+view.ID+"/edits", editRequest{Instruction: "second"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != "edit_in_flight" {
		t.Fatalf("error code = %q", code)
	}
}

func TestEditRequiresInstruction(t *testing.T) {
	_, _, h := newTestApp(t)
	view := createSession(t, h, 64, 64)
	rec := doJSON(t, h, http.MethodPost, "/v1/sessions/"+view.ID+"/edits", editRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSelectVersionBranchesHistory(t *testing.T) {
	_, _, h := newTestApp(t)
	view := createSession(t, h, 64, 64)
	path := "/v1/sessions/" + view.ID

	for i := 0; i < 2; i++ {
		rec := doJSON(t, h, http.MethodPost, path+"/edits", editRequest{Instruction: fmt.Sprintf("edit %d", i)})
		if rec.Code != http.StatusCreated {
			t.Fatalf("edit %d: status %d", i, rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodPost, path+"/history/0/select", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("select: status %d body %s", rec.Code, rec.Body.String())
	}
	var got sessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ActiveIndex != 0 || got.VersionCount != 3 {
		t.Fatalf("after select: active=%d count=%d", got.ActiveIndex, got.VersionCount)
	}

	rec = doJSON(t, h, http.MethodPost, path+"/edits", editRequest{Instruction: "branch"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("branch edit: status %d", rec.Code)
	}
	var resp editResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ActiveIndex != 1 || resp.Session.VersionCount != 2 {
		t.Fatalf("branching kept forward history: active=%d count=%d", resp.ActiveIndex, resp.Session.VersionCount)
	}

	rec = doJSON(t, h, http.MethodPost, path+"/history/5/select", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("out-of-range select: status %d, want 404", rec.Code)
	}
}

func TestVersionImageServesOriginalBytes(t *testing.T) {
	_, _, h := newTestApp(t)
	data := pngBytes(t, 48, 48)
	body, contentType := multipartImage(t, data)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var view sessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/sessions/"+view.ID+"/history/0/image", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content-type = %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Fatal("served bytes differ from upload")
	}
}

func TestHistoryArchiveContainsEveryVersion(t *testing.T) {
	_, _, h := newTestApp(t)
	view := createSession(t, h, 64, 64)
	path := "/v1/sessions/" + view.ID
	if rec := doJSON(t, h, http.MethodPost, path+"/edits", editRequest{Instruction: "one"}); rec.Code != http.StatusCreated {
		t.Fatalf("edit: status %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, path+"/history/archive", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content-type = %q", ct)
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("archive entries = %d, want 2", len(zr.File))
	}
}

func TestAspectAndCropGestures(t *testing.T) {
	_, _, h := newTestApp(t)
	view := createSession(t, h, 800, 600)
	path := "/v1/sessions/" + view.ID

	rec := doJSON(t, h, http.MethodPost, path+"/crop", layoutRequest{Container: geometry.Size{Width: 400, Height: 400}})
	if rec.Code != http.StatusOK {
		t.Fatalf("layout: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPut, path+"/aspect", aspectRequest{Mode: "fixed", Ratio: "1:1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("aspect: status %d body %s", rec.Code, rec.Body.String())
	}
	var got sessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Crop == nil {
		t.Fatal("crop rect missing after aspect selection")
	}
	if got.Crop.W != 300 || got.Crop.H != 300 {
		t.Fatalf("crop = %+v, want 300x300", got.Crop)
	}

	rec = doJSON(t, h, http.MethodPost, path+"/crop/move", gestureRequest{DX: 500, Commit: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("move: status %d body %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 800x600 in a 400x400 container renders as 400x300, so a 300-wide
	// rectangle clamps at x=100.
	if got.Crop == nil || got.Crop.X != 100 {
		t.Fatalf("crop after move = %+v, want x=100", got.Crop)
	}
}

func TestCropGestureRequiresActiveCrop(t *testing.T) {
	_, _, h := newTestApp(t)
	view := createSession(t, h, 64, 64)
	rec := doJSON(t, h, http.MethodPost, "/v1/sessions/"+view.ID+"/crop/move", gestureRequest{DX: 5})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAspectReferenceRequiresAttachment(t *testing.T) {
	_, _, h := newTestApp(t)
	view := createSession(t, h, 64, 64)
	rec := doJSON(t, h, http.MethodPut, "/v1/sessions/"+view.ID+"/aspect", aspectRequest{Mode: "reference"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEditSendsReferencePart(t *testing.T) {
	_, editor, h := newTestApp(t)
	view := createSession(t, h, 64, 64)
	path := "/v1/sessions/" + view.ID

	body, contentType := multipartImage(t, pngBytes(t, 32, 32))
	req := httptest.NewRequest(http.MethodPut, path+"/reference", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("attach reference: status %d", rec.Code)
	}

	res := doJSON(t, h, http.MethodPost, path+"/edits", editRequest{Instruction: "match the style"})
	if res.Code != http.StatusCreated {
		t.Fatalf("edit: status %d", res.Code)
	}
	got := editor.lastRequest()
	if got == nil || got.Reference == nil {
		t.Fatal("reference not forwarded to editor")
	}
	if !strings.Contains(got.Instruction, "style and content reference") {
		t.Fatalf("instruction missing reference rule: %q", got.Instruction)
	}
}

func TestEditPadsToTargetRatio(t *testing.T) {
	_, editor, h := newTestApp(t)
	view := createSession(t, h, 300, 300)
	path := "/v1/sessions/" + view.ID

	rec := doJSON(t, h, http.MethodPut, path+"/aspect", aspectRequest{Mode: "fixed", Ratio: "16:9"})
	if rec.Code != http.StatusOK {
		t.Fatalf("aspect: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, path+"/edits", editRequest{Instruction: "widen the scene"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("edit: status %d body %s", rec.Code, rec.Body.String())
	}
	got := editor.lastRequest()
	if got == nil {
		t.Fatal("editor never called")
	}
	if got.Primary.Width != 533 || got.Primary.Height != 300 {
		t.Fatalf("padded primary = %dx%d, want 533x300", got.Primary.Width, got.Primary.Height)
	}
	if !strings.Contains(got.Instruction, "transparent padding") {
		t.Fatalf("instruction missing outpaint task: %q", got.Instruction)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	_, _, h := newTestApp(t)
	want := domain.Preferences{Instruction: "soften the light", AspectRatio: "16:9"}

	rec := doJSON(t, h, http.MethodPut, "/v1/preferences", want)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/preferences", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	var got domain.Preferences
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("prefs = %+v, want %+v", got, want)
	}
}

func TestDeleteSessionRemovesIt(t *testing.T) {
	_, _, h := newTestApp(t)
	view := createSession(t, h, 64, 64)
	rec := doJSON(t, h, http.MethodDelete, "/v1/sessions/"+view.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/sessions/"+view.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", rec.Code)
	}
}
