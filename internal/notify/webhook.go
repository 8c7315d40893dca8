package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Webhook POSTs a JSON body to a configured URL for each terminal sync
// outcome. Delivery is best-effort; failures are logged, never retried.
type Webhook struct {
	url    string
	client *http.Client
}

type webhookBody struct {
	Event   string `json:"event"`
	UserID  string `json:"userId"`
	Torrent string `json:"torrent"`
	Link    string `json:"link,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Webhook) SyncComplete(userID, torrentName, link string) {
	w.post(webhookBody{Event: "torrent-success", UserID: userID, Torrent: torrentName, Link: link})
}

func (w *Webhook) SyncError(userID, torrentName string, err error) {
	w.post(webhookBody{Event: "torrent-error", UserID: userID, Torrent: torrentName, Error: err.Error()})
}

func (w *Webhook) post(body webhookBody) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("could not marshal webhook body")
		return
	}
	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(data))
	if err != nil {
		log.Error().Err(err).Str("url", w.url).Msg("webhook delivery failed")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		log.Error().Str("url", w.url).Str("status", resp.Status).Msg("webhook rejected")
	}
}
