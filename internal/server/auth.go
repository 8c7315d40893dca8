package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const sessionName = "gdt-session"

type contextKey int

const userKey contextKey = iota

// requireUser gates the private API on a signed-in cookie session and puts
// the stable user id on the request context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := s.cookies.Get(r, sessionName)
		id, ok := sess.Values["userID"].(string)
		if !ok || id == "" {
			encodeError(w, http.StatusUnauthorized, errors.New("not authenticated"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, id)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey).(string)
	return id
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	sess, _ := s.cookies.Get(r, sessionName)
	sess.Values["state"] = state
	if err := sess.Save(r, w); err != nil {
		encodeError(w, http.StatusInternalServerError, err)
		return
	}
	http.Redirect(w, r, s.provider.AuthURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.cookies.Get(r, sessionName)
	wantState, _ := sess.Values["state"].(string)
	if wantState == "" || r.URL.Query().Get("state") != wantState {
		encodeError(w, http.StatusBadRequest, errors.New("state mismatch"))
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		encodeError(w, http.StatusBadRequest, errors.New("missing authorization code"))
		return
	}

	profile, creds, err := s.provider.Exchange(r.Context(), code)
	if err != nil {
		encodeError(w, http.StatusBadGateway, errors.Wrap(err, "identity exchange failed"))
		return
	}
	if err := s.store.SaveUser(r.Context(), profile, creds); err != nil {
		encodeError(w, http.StatusInternalServerError, err)
		return
	}

	delete(sess.Values, "state")
	sess.Values["userID"] = profile.ID
	if err := sess.Save(r, w); err != nil {
		encodeError(w, http.StatusInternalServerError, err)
		return
	}
	log.Info().Str("user", profile.ID).Msg("user signed in")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.cookies.Get(r, sessionName)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		encodeError(w, http.StatusInternalServerError, err)
		return
	}
	encodeEmpty(w, http.StatusOK)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.User(r.Context(), userID(r))
	if err != nil {
		encodeError(w, http.StatusInternalServerError, err)
		return
	}
	encodeJSON(w, http.StatusOK, profile)
}
