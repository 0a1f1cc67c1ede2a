package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"github.com/lehigh-university-libraries/uiaudit/internal/providers"
	"github.com/lehigh-university-libraries/uiaudit/internal/report"
	"github.com/lehigh-university-libraries/uiaudit/internal/storage"
	"github.com/lehigh-university-libraries/uiaudit/internal/workspace"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type testServer struct {
	*httptest.Server
	auditor *providers.Static
	handler *Handler
}

func newTestServer(t *testing.T, auditor *providers.Static, opts Options) *testServer {
	t.Helper()
	opts.Workspace = workspace.New(storage.New(), auditor)
	if opts.StaticDir == "" {
		opts.StaticDir = t.TempDir()
	}
	h, err := New(opts)
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, auditor: auditor, handler: h}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	} else {
		r = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	resp := s.do(t, "POST", "/api/sessions", map[string]string{"name": "landing"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[workspace.Snapshot](t, resp).ID
}

func (s *testServer) uploadFile(t *testing.T, id string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "landing.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(s.URL+"/api/sessions/"+id+"/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

var sampleIssues = []models.Issue{
	{ID: "issue-0", Category: models.CategoryVisual, Severity: models.SeverityCritical, Title: "Low contrast", Suggestion: "Darken text",
		Location: &models.Location{X: 10, Y: 10, Width: 20, Height: 5}},
}

func TestSessionLifecycle(t *testing.T) {
	fixed := &models.ImageBuffer{MIMEType: "image/png", Data: []byte("fixed-bytes")}
	s := newTestServer(t, &providers.Static{Issues: sampleIssues, Corrected: fixed, Reply: "Darken the grey."}, Options{})
	id := s.createSession(t)

	resp := s.uploadFile(t, id, testPNG(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[workspace.Snapshot](t, resp)
	assert.Equal(t, workspace.StateLoaded, snap.State)
	assert.Equal(t, "landing.png", snap.Name)
	assert.Equal(t, "image/png", snap.ImageMIMEType)

	resp = s.do(t, "POST", "/api/sessions/"+id+"/analyze", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decode[workspace.Snapshot](t, resp)
	assert.Equal(t, workspace.StateReviewed, snap.State)
	require.Len(t, snap.Issues, 1)
	assert.True(t, snap.CanCorrect)

	resp = s.do(t, "POST", "/api/sessions/"+id+"/correct", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decode[workspace.Snapshot](t, resp)
	assert.Equal(t, workspace.StateCompared, snap.State)
	assert.Equal(t, models.ViewCompare, snap.View)

	resp = s.do(t, "GET", "/api/sessions/"+id+"/corrected", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "default-src 'none'", resp.Header.Get("Content-Security-Policy"))
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "fixed-bytes", buf.String())

	resp = s.do(t, "POST", "/api/sessions/"+id+"/view", map[string]string{"mode": "single"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.ViewSingle, decode[workspace.Snapshot](t, resp).View)

	resp = s.do(t, "POST", "/api/sessions/"+id+"/chat", map[string]string{"message": "test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decode[workspace.Snapshot](t, resp)
	assert.Equal(t, []models.ChatTurn{
		{Role: models.RoleUser, Content: "test"},
		{Role: models.RoleAssistant, Content: "Darken the grey."},
	}, snap.Transcript)

	resp = s.do(t, "GET", "/api/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	projects := decode[[]models.DesignProject](t, resp)
	require.Len(t, projects, 1)
	assert.Equal(t, "/api/sessions/"+id+"/corrected", projects[0].CorrectedImageURL)

	resp = s.do(t, "DELETE", "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = s.do(t, "GET", "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreconditionsAreConflicts(t *testing.T) {
	s := newTestServer(t, &providers.Static{}, Options{})
	id := s.createSession(t)

	resp := s.do(t, "POST", "/api/sessions/"+id+"/analyze", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[actionError](t, resp)
	assert.Contains(t, body.Error, "no image")
	require.NotNil(t, body.Session)
	assert.False(t, body.Session.CanAnalyze)

	resp = s.do(t, "POST", "/api/sessions/"+id+"/correct", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, "POST", "/api/sessions/"+id+"/view", map[string]string{"mode": "compare"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, "POST", "/api/sessions/"+id+"/view", map[string]string{"mode": "zoom"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, "GET", "/api/sessions/"+id+"/image", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFailedAnalysisIsReportedInOutcome(t *testing.T) {
	s := newTestServer(t, &providers.Static{
		AnalyzeFunc: func(context.Context, models.ImageBuffer) ([]models.Issue, error) {
			return nil, errors.New("gemini analyze: empty response")
		},
	}, Options{})
	id := s.createSession(t)
	require.Equal(t, http.StatusOK, s.uploadFile(t, id, testPNG(t)).StatusCode)

	resp := s.do(t, "POST", "/api/sessions/"+id+"/analyze", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[workspace.Snapshot](t, resp)
	assert.Empty(t, snap.Issues)
	require.NotNil(t, snap.LastAnalysis)
	assert.Equal(t, models.OutcomeFailed, snap.LastAnalysis.Status)
}

func TestChatFailureIsBadGateway(t *testing.T) {
	s := newTestServer(t, &providers.Static{
		ChatFunc: func(context.Context, string, *models.ImageBuffer) (string, error) {
			return "", errors.New("upstream 500")
		},
	}, Options{})
	id := s.createSession(t)

	resp := s.do(t, "POST", "/api/sessions/"+id+"/chat", map[string]string{"message": "hello"})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := decode[actionError](t, resp)
	require.NotNil(t, body.Session)
	require.Len(t, body.Session.Transcript, 2)
	assert.Equal(t, workspace.ChatFallback, body.Session.Transcript[1].Content)
	require.NotNil(t, body.Outcome)
	assert.Equal(t, models.OutcomeFailed, body.Outcome.Status)

	resp = s.do(t, "POST", "/api/sessions/"+id+"/chat", map[string]string{"message": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t, &providers.Static{}, Options{})
	id := s.createSession(t)

	resp := s.uploadFile(t, id, []byte("just some text, not an image"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(document.cookie)</script></svg>`)
	resp = s.uploadFile(t, id, svg)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = s.do(t, "GET", "/api/sessions/"+id+"/image", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, "POST", "/api/sessions/"+id+"/upload", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, "POST", "/api/sessions/"+id+"/upload", map[string]string{"image_url": "file:///etc/passwd"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.uploadFile(t, "missing", testPNG(t))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadFromURLAndDataURL(t *testing.T) {
	pngData := testPNG(t)
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngData)
	}))
	defer images.Close()

	s := newTestServer(t, &providers.Static{}, Options{})
	id := s.createSession(t)

	resp := s.do(t, "POST", "/api/sessions/"+id+"/upload", map[string]string{"image_url": images.URL + "/shots/checkout.png"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[workspace.Snapshot](t, resp)
	assert.Equal(t, "checkout.png", snap.Name)
	assert.Equal(t, int64(1), snap.Version)

	dataURL := (&models.ImageBuffer{MIMEType: "image/png", Data: pngData}).DataURL()
	resp = s.do(t, "POST", "/api/sessions/"+id+"/upload", map[string]string{"data_url": dataURL, "name": "pasted"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decode[workspace.Snapshot](t, resp)
	assert.Equal(t, "pasted", snap.Name)
	assert.Equal(t, int64(2), snap.Version)

	// the static entry point can start a session from ?image=
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	r, err := client.Get(s.URL + "/?image=" + images.URL + "/home.png")
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusFound, r.StatusCode)
	assert.True(t, strings.HasPrefix(r.Header.Get("Location"), "/?session="))
}

func TestReportFormats(t *testing.T) {
	s := newTestServer(t, &providers.Static{Issues: sampleIssues}, Options{})
	id := s.createSession(t)
	require.Equal(t, http.StatusOK, s.uploadFile(t, id, testPNG(t)).StatusCode)
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/sessions/"+id+"/analyze", nil).StatusCode)

	resp := s.do(t, "GET", "/api/sessions/"+id+"/report?format=json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	rep := decode[report.Report](t, resp)
	assert.Equal(t, 97, rep.Score)
	assert.Equal(t, "ok", rep.Status)

	resp = s.do(t, "GET", "/api/sessions/"+id+"/report?format=parquet", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".parquet")
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	rows, err := report.ReadParquet(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Low contrast", rows[0].Title)

	resp = s.do(t, "GET", "/api/sessions/"+id+"/report?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoutingErrors(t *testing.T) {
	s := newTestServer(t, &providers.Static{}, Options{})
	id := s.createSession(t)

	assert.Equal(t, http.StatusMethodNotAllowed, s.do(t, "GET", "/api/sessions/"+id+"/analyze", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, s.do(t, "POST", "/api/sessions/"+id+"/explode", nil).StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, s.do(t, "PUT", "/api/sessions", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, s.do(t, "POST", "/api/sessions/nope/analyze", nil).StatusCode)
}

func TestShellPanels(t *testing.T) {
	s := newTestServer(t, &providers.Static{}, Options{})

	resp := s.do(t, "GET", "/api/shell/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dash := decode[map[string]interface{}](t, resp)
	assert.Len(t, dash["stats"], 3)

	resp = s.do(t, "GET", "/api/shell/history?q=login", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]interface{}](t, resp), 1)

	resp = s.do(t, "GET", "/api/shell/team", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/shell/billing", nil).StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, s.do(t, "POST", "/api/shell/team", nil).StatusCode)
}

func TestSpecs(t *testing.T) {
	specsFile := filepath.Join(t.TempDir(), "specs.yaml")
	var applied models.DesignSpec
	s := newTestServer(t, &providers.Static{}, Options{
		SpecsFile:    specsFile,
		OnSpecChange: func(spec models.DesignSpec) { applied = spec },
	})

	resp := s.do(t, "GET", "/api/specs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.DefaultDesignSpec(), decode[models.DesignSpec](t, resp))

	resp = s.do(t, "PUT", "/api/specs", map[string]interface{}{"base_grid": 4, "primary_color": "#000000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.DesignSpec](t, resp)
	assert.Equal(t, 4, got.BaseGrid)
	assert.Equal(t, "#4F46E5", got.SecondaryColor)
	assert.Equal(t, 4, applied.BaseGrid)

	saved, err := os.ReadFile(specsFile)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "base_grid: 4")

	resp = s.do(t, "PUT", "/api/specs", map[string]interface{}{"primary_color": "blue"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 4, applied.BaseGrid)
}

func TestStaticAndHealthcheck(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>DesignCheck</h1>"), 0644))
	s := newTestServer(t, &providers.Static{}, Options{StaticDir: dir})

	resp := s.do(t, "GET", "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))

	resp = s.do(t, "GET", "/healthcheck", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
