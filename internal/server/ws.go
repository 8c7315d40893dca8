package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/karl-chan/google-drive-torrent/internal/metrics"
	"github.com/karl-chan/google-drive-torrent/internal/push"
	"github.com/karl-chan/google-drive-torrent/internal/torrents"
)

// handleEvents upgrades to a websocket and installs it as the user's push
// channel: an immediate all-torrents snapshot, one snapshot per interval,
// plus event-driven frames from the core until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	upgrader := websocket.Upgrader{
		Error: func(w http.ResponseWriter, r *http.Request, code int, err error) {
			encodeError(w, code, err)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader's Error hook has already written the response.
		return
	}

	ch := push.NewChannel(conn)
	if prev := s.registry.SetChannel(uid, ch); prev != nil {
		if pc, ok := prev.(*push.Channel); ok {
			pc.Close()
		}
	}
	metrics.PushConnections.Inc()
	defer metrics.PushConnections.Dec()
	log.Debug().Str("user", uid).Str("channel", ch.ID()).Msg("push channel connected")

	// The read pump exists only to notice the peer going away.
	ctx, cancel := context.WithCancel(r.Context())
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.notifier.Run(ctx, ch, func() []torrents.TorrentInfo {
		out := []torrents.TorrentInfo{}
		if sess, ok := s.registry.Peek(uid); ok {
			for _, rec := range sess.Torrents() {
				out = append(out, torrents.Snapshot(rec))
			}
		}
		return out
	})

	s.registry.RemoveChannel(uid, ch)
	ch.Close()
	log.Debug().Str("user", uid).Str("channel", ch.ID()).Msg("push channel disconnected")
}
