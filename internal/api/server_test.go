package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	config "github.com/mwantia/promptgallery/internal/config/server"
	"github.com/mwantia/promptgallery/pkg/catalog"
	"github.com/mwantia/promptgallery/pkg/category"
	"github.com/mwantia/promptgallery/pkg/db/models"
	"github.com/mwantia/promptgallery/pkg/db/store/storetest"
	"github.com/mwantia/promptgallery/pkg/metadata/metadatatest"
	"github.com/mwantia/promptgallery/pkg/uploads"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPinger struct{}

func (failingPinger) Health(context.Context) error {
	return errors.New("database is gone")
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	s := storetest.New(t)
	sink := uploads.NewSink(afero.NewMemMapFs(), "/uploads", []string{"png"})
	tree := category.NewTree(s)

	return NewServer(Options{
		Config: config.HTTPServerConfig{
			RequestTimeout: "5s",
			MaxUploadSize:  1 << 20,
		},
		Catalog: catalog.NewService(s, tree, sink, 12),
		Tree:    tree,
		Sink:    sink,
		Health:  s,
		Version: "test",
	})
}

func do(t *testing.T, srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createCategory(t *testing.T, srv *Server, name string, parent *uint) models.Category {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/categories", categoryRequest{Name: name, ParentID: parent})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Category](t, rec)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[healthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)

	srv.health = failingPinger{}
	rec = do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCreatePromptMultipart(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "Lighthouse"))
	require.NoError(t, mw.WriteField("tags", "Sea, dusk"))
	part, err := mw.CreateFormFile("image", "render.png")
	require.NoError(t, err)
	_, err = part.Write(metadatatest.PNG(t, metadatatest.Text("prompt", metadatatest.ComfyGraph)))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/prompts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	prompt := decode[models.Prompt](t, rec)
	assert.Equal(t, "sea,dusk", prompt.Tags)
	require.NotNil(t, prompt.Checkpoint)
	assert.Equal(t, "juggernaut_v9", *prompt.Checkpoint)
	require.NotNil(t, prompt.ImageFilename)

	img := do(t, srv, http.MethodGet, "/uploads/"+*prompt.ImageFilename, nil)
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image/png", img.Header().Get("Content-Type"))

	rec = do(t, srv, http.MethodPost, "/api/prompts/"+uintString(prompt.ID)+"/reextract", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestPromptLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/prompts", promptRequest{Title: "first", PromptText: "a cat", Tags: "cats"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	prompt := decode[models.Prompt](t, rec)
	path := "/api/prompts/" + uintString(prompt.ID)

	rec = do(t, srv, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a cat", decode[models.Prompt](t, rec).PromptText)

	rec = do(t, srv, http.MethodPut, path, promptRequest{Title: "renamed", Tags: "dogs"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "renamed", decode[models.Prompt](t, rec).Title)

	rec = do(t, srv, http.MethodGet, "/api/prompts?tag=dogs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[catalog.Page](t, rec)
	assert.Equal(t, int64(1), page.Total)

	rec = do(t, srv, http.MethodGet, "/api/tags", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"dogs"}, decode[[]string](t, rec))

	rec = do(t, srv, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[catalog.Stats](t, rec).Total)

	rec = do(t, srv, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPromptErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		status int
	}{
		{name: "missing title", method: http.MethodPost, target: "/api/prompts", body: promptRequest{}, status: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, target: "/api/prompts", body: map[string]string{"nope": "x"}, status: http.StatusBadRequest},
		{name: "bad id", method: http.MethodGet, target: "/api/prompts/abc", status: http.StatusBadRequest},
		{name: "unknown id", method: http.MethodGet, target: "/api/prompts/77", status: http.StatusNotFound},
		{name: "bad page", method: http.MethodGet, target: "/api/prompts?page=x", status: http.StatusBadRequest},
		{name: "unknown category filter", method: http.MethodGet, target: "/api/prompts?category_id=5", status: http.StatusNotFound},
		{name: "missing upload", method: http.MethodGet, target: "/uploads/nothing.png", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestCategoryEndpoints(t *testing.T) {
	srv := newTestServer(t)

	root := createCategory(t, srv, "Root", nil)
	a := createCategory(t, srv, "A", &root.ID)
	b := createCategory(t, srv, "B", &a.ID)

	rec := do(t, srv, http.MethodGet, "/api/categories/"+uintString(b.ID)+"/path", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Category](t, rec), 3)

	rec = do(t, srv, http.MethodGet, "/api/categories/"+uintString(a.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[map[string]any](t, rec)
	assert.Equal(t, "A", detail["name"])
	assert.Equal(t, []any{"Root", "A"}, detail["path"])

	rec = do(t, srv, http.MethodGet, "/api/categories/tree", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	forest := decode[[]*category.TreeNode](t, rec)
	require.Len(t, forest, 1)
	assert.Equal(t, "B", forest[0].Children[0].Children[0].Name)

	rec = do(t, srv, http.MethodGet, "/api/categories/options?exclude="+uintString(a.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]category.Option](t, rec), 1)

	rec = do(t, srv, http.MethodPost, "/api/categories/"+uintString(root.ID)+"/move", moveRequest{ParentID: &b.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/categories/"+uintString(b.ID)+"/move", moveRequest{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decode[models.Category](t, rec).ParentID)

	rec = do(t, srv, http.MethodPut, "/api/categories/"+uintString(b.ID), categoryRequest{Name: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/categories/"+uintString(root.ID), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	blocked := decode[errorResponse](t, rec)
	require.NotNil(t, blocked.Children)
	assert.Equal(t, int64(1), *blocked.Children)
	require.NotNil(t, blocked.Entries)
	assert.Equal(t, int64(0), *blocked.Entries)

	rec = do(t, srv, http.MethodDelete, "/api/categories/"+uintString(b.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	names := []string{}
	for _, c := range decode[[]models.Category](t, rec) {
		names = append(names, c.Name)
	}
	assert.Equal(t, "A,Root", strings.Join(names, ","))
}

func TestExport(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/prompts", promptRequest{Title: "sunset", Tags: "sky"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/export?format=yaml&tag=sky", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "title: sunset")

	rec = do(t, srv, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PAR1", rec.Body.String()[:4])

	rec = do(t, srv, http.MethodGet, "/api/export?format=csv", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func uintString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
