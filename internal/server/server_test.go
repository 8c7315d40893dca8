package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karl-chan/google-drive-torrent/internal/config"
	"github.com/karl-chan/google-drive-torrent/internal/identity"
	"github.com/karl-chan/google-drive-torrent/internal/push"
	"github.com/karl-chan/google-drive-torrent/internal/torrents"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{SessionSecret: "test-secret", AddReadyWindow: 10 * time.Millisecond}
	registry := torrents.NewRegistry(torrents.Config{ScratchRoot: t.TempDir(), DisableDHT: true}, nil)
	provider := &identity.Static{Profile: identity.Profile{ID: "dev", DisplayName: "Developer"}}
	return New(cfg, registry, push.NewNotifier(time.Second), nil, provider)
}

func asUser(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userKey, id))
}

func TestRequireUserRejectsAnonymous(t *testing.T) {
	srv := testServer(t)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/torrents", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"not authenticated"}`, w.Body.String())
}

func TestListWithoutSession(t *testing.T) {
	srv := testServer(t)
	w := httptest.NewRecorder()
	srv.handleList(w, asUser(httptest.NewRequest("GET", "/api/torrents", nil), "dev"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"torrents":[]}`, w.Body.String())
}

func TestDeleteWithoutSession(t *testing.T) {
	srv := testServer(t)
	w := httptest.NewRecorder()
	srv.handleDelete(w, asUser(httptest.NewRequest("DELETE", "/api/torrents/aabb", nil), "dev"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddRejectsEmptyBody(t *testing.T) {
	srv := testServer(t)
	w := httptest.NewRecorder()
	r := asUser(httptest.NewRequest("POST", "/api/torrents", strings.NewReader(`{}`)), "dev")
	r.Header.Set("Content-Type", "application/json")
	srv.handleAdd(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "magnetURI or infoHash required")
}

func TestSelectionRejectsBadBoolean(t *testing.T) {
	srv := testServer(t)
	require.NotNil(t, srv)
	_, err := srv.registry.Session("dev")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := asUser(httptest.NewRequest("PUT", "/api/torrents/aabb/selection", strings.NewReader(`{"selectedFiles":["true","banana"]}`)), "dev")
	srv.handleSelection(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "banana")
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, httpStatus(errors.Wrap(torrents.ErrNotFound, "x")))
	assert.Equal(t, http.StatusConflict, httpStatus(errors.Wrap(torrents.ErrExists, "x")))
	assert.Equal(t, http.StatusBadRequest, httpStatus(errors.Wrap(torrents.ErrParse, "x")))
	assert.Equal(t, http.StatusInternalServerError, httpStatus(errors.New("boom")))
}
