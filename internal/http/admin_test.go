package httpadmin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekodylan/OVL-MD/internal/registry"
	"github.com/nekodylan/OVL-MD/internal/transport"
)

type fakeReloader struct {
	added int
	err   error
	calls int
}

func (f *fakeReloader) ReloadCommands() (int, error) {
	f.calls++
	return f.added, f.err
}

func noop(context.Context, string, transport.Client, *registry.Options) error { return nil }

func newRouter(t *testing.T, rel Reloader, config func() map[string]any) *gin.Engine {
	t.Helper()
	reg := registry.New(nil)
	require.NoError(t, reg.Register(registry.Descriptor{Name: "menu", Aliases: []string{"help"}, Category: "General", Handler: noop}))
	require.NoError(t, reg.Register(registry.Descriptor{Name: "setvar", Category: "Render_config_vars", PremiumOnly: true, Handler: noop, Source: "builtin/render.yaml"}))
	require.NoError(t, reg.Register(registry.Descriptor{Name: "ping", Handler: noop}))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(reg, rel, config).Register(r)
	return r
}

type listing struct {
	Total    int           `json:"total"`
	Commands []commandView `json:"commands"`
}

func get(t *testing.T, r http.Handler, path string) (*httptest.ResponseRecorder, listing) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var out listing
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestListCommands(t *testing.T) {
	r := newRouter(t, &fakeReloader{}, nil)

	rec, out := get(t, r, "/admin/commands")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, out.Total)
	require.Len(t, out.Commands, 3)
	assert.Equal(t, "Divers", out.Commands[2].Category)

	_, out = get(t, r, "/admin/commands?premium=true")
	require.Len(t, out.Commands, 1)
	assert.Equal(t, "setvar", out.Commands[0].Name)
	assert.Equal(t, "builtin/render.yaml", out.Commands[0].Source)

	_, out = get(t, r, "/admin/commands?name=hel")
	require.Len(t, out.Commands, 1)
	assert.Equal(t, "menu", out.Commands[0].Name)

	_, out = get(t, r, "/admin/commands?category=general,divers&limit=1")
	require.Len(t, out.Commands, 1)
	assert.Equal(t, "menu", out.Commands[0].Name)

	rec, _ = get(t, r, "/admin/commands?limit=-2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "limit must be a positive integer")
}

func TestReloadSuccess(t *testing.T) {
	rel := &fakeReloader{added: 2}
	r := newRouter(t, rel, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/commands/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var payload struct {
		Status   string `json:"status"`
		Reloaded bool   `json:"reloaded"`
		Added    int    `json:"added"`
		Total    int    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "ok", payload.Status)
	assert.True(t, payload.Reloaded)
	assert.Equal(t, 2, payload.Added)
	assert.Equal(t, 3, payload.Total)
	assert.Equal(t, 1, rel.calls)
}

func TestReloadError(t *testing.T) {
	r := newRouter(t, &fakeReloader{err: errors.New("boom")}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/commands/reload", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "reload failed: boom\n", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/commands/reload", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigRoute(t *testing.T) {
	r := newRouter(t, &fakeReloader{}, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/config", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	r = newRouter(t, &fakeReloader{}, func() map[string]any { return map[string]any{"render_api_key": "***"} })
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"render_api_key":"***"}`, rec.Body.String())
}

func TestParseFilters(t *testing.T) {
	f, err := ParseFilters(url.Values{"limit": {"5000"}, "name": {"Ban, ban", "sudo"}})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, f.Limit)
	assert.Equal(t, []string{"ban", "sudo"}, f.Names)
	assert.Nil(t, f.Premium)

	_, err = ParseFilters(url.Values{"premium": {"maybe"}})
	assert.Error(t, err)
}
