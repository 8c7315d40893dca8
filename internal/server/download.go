package server

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/karl-chan/google-drive-torrent/internal/torrents"
)

// handleArchive streams a zip of the torrent's currently-selected files.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.Peek(userID(r))
	if !ok {
		encodeError(w, http.StatusNotFound, torrents.ErrNotFound)
		return
	}
	rec, err := sess.Torrent(mux.Vars(r)["infoHash"])
	if err != nil {
		encodeError(w, httpStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Name()+".zip"))

	zw := zip.NewWriter(w)
	defer zw.Close()
	for _, f := range rec.Files() {
		if !f.Selected {
			continue
		}
		src, err := os.Open(rec.LocalPath(f))
		if err != nil {
			// Headers are already out; skip what cannot be read.
			log.Error().Err(err).Str("file", f.Rel).Msg("could not open file for archive")
			continue
		}
		dst, err := zw.Create(f.Rel)
		if err != nil {
			src.Close()
			return
		}
		if _, err := io.Copy(dst, src); err != nil {
			src.Close()
			return
		}
		src.Close()
	}
}

// handleFile serves a single file's bytes, addressed by its stable file id.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.Peek(userID(r))
	if !ok {
		encodeError(w, http.StatusNotFound, torrents.ErrNotFound)
		return
	}
	rec, f, ok := sess.FileByID(mux.Vars(r)["fileId"])
	if !ok {
		encodeError(w, http.StatusNotFound, torrents.ErrNotFound)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	http.ServeFile(w, r, rec.LocalPath(f))
}
