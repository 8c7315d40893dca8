package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSyncComplete(t *testing.T) {
	var got webhookBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	NewWebhook(srv.URL).SyncComplete("u1", "Some Torrent", "https://drive.example/f")

	assert.Equal(t, "torrent-success", got.Event)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "Some Torrent", got.Torrent)
	assert.Equal(t, "https://drive.example/f", got.Link)
	assert.Empty(t, got.Error)
}

func TestWebhookSyncError(t *testing.T) {
	var got webhookBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	NewWebhook(srv.URL).SyncError("u1", "Some Torrent", errors.New("disk full"))

	assert.Equal(t, "torrent-error", got.Event)
	assert.Equal(t, "disk full", got.Error)
	assert.Empty(t, got.Link)
}

func TestFanoutSkipsNilTargets(t *testing.T) {
	f := NewFanout(nil, nil)
	// No targets, no panics.
	f.SyncComplete("u1", "t", "link")
	f.SyncError("u1", "t", errors.New("x"))
}
