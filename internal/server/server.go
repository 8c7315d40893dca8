// Package server exposes the HTTP and websocket surface: torrent lifecycle
// endpoints, downloads, the push channel, and cookie-session auth.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"

	"github.com/karl-chan/google-drive-torrent/internal/config"
	"github.com/karl-chan/google-drive-torrent/internal/identity"
	"github.com/karl-chan/google-drive-torrent/internal/metrics"
	"github.com/karl-chan/google-drive-torrent/internal/push"
	"github.com/karl-chan/google-drive-torrent/internal/store"
	"github.com/karl-chan/google-drive-torrent/internal/torrents"
)

type Server struct {
	cfg      *config.Config
	registry *torrents.Registry
	notifier *push.Notifier
	store    *store.Store
	provider identity.Provider
	cookies  *sessions.CookieStore

	httpServer *http.Server
}

func New(cfg *config.Config, registry *torrents.Registry, notifier *push.Notifier, st *store.Store, provider identity.Provider) *Server {
	cookies := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookies.Options.HttpOnly = true
	cookies.Options.SameSite = http.SameSiteLaxMode

	return &Server{
		cfg:      cfg,
		registry: registry,
		notifier: notifier,
		store:    st,
		provider: provider,
		cookies:  cookies,
	}
}

// Router builds the full route table. Split out from Start so tests can
// exercise handlers without a listener.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", s.handleLogin).Methods("GET")
	api.HandleFunc("/auth/callback", s.handleCallback).Methods("GET")
	api.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")

	priv := api.NewRoute().Subrouter()
	priv.Use(s.requireUser)
	priv.HandleFunc("/auth/me", s.handleMe).Methods("GET")
	priv.HandleFunc("/torrents", s.handleList).Methods("GET")
	priv.HandleFunc("/torrents", s.handleAdd).Methods("POST")
	priv.HandleFunc("/torrents/{infoHash}", s.handleDelete).Methods("DELETE")
	priv.HandleFunc("/torrents/{infoHash}/selection", s.handleSelection).Methods("PUT")
	priv.HandleFunc("/torrents/{infoHash}/archive", s.handleArchive).Methods("GET")
	priv.HandleFunc("/files/{fileId}", s.handleFile).Methods("GET")
	priv.HandleFunc("/events", s.handleEvents).Methods("GET")

	if s.cfg.Metrics.Enabled {
		r.Path("/metrics").Handler(metrics.Handler())
	}
	return r
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.Router(),
		// No write timeout: push channels and large archive downloads are
		// long-lived by design.
		ReadHeaderTimeout: 15 * time.Second,
	}
	log.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
