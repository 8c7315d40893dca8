package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/karl-chan/google-drive-torrent/internal/torrents"
)

type addRequest struct {
	MagnetURI string `json:"magnetURI"`
	InfoHash  string `json:"infoHash"`
}

type addResult struct {
	InfoHash string              `json:"infoHash"`
	Files    []torrents.FileInfo `json:"files"`
}

type listResult struct {
	Torrents []torrents.TorrentInfo `json:"torrents"`
}

type selectionRequest struct {
	SelectedFiles []string `json:"selectedFiles"`
}

// handleAdd accepts a raw .torrent payload, a multipart upload, or a JSON
// body naming a magnet URI or info-hash. The torrent source is parsed before
// the engine or the registry is touched; parse failures are synchronous
// input errors.
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Session(userID(r))
	if err != nil {
		encodeError(w, http.StatusInternalServerError, err)
		return
	}

	var rec *torrents.Torrent
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch contentType {
	case "application/x-bittorrent":
		rec, err = sess.AddTorrentReader(r.Body)
	case "multipart/form-data":
		file, _, ferr := r.FormFile("torrent")
		if ferr != nil {
			encodeError(w, http.StatusBadRequest, errors.Wrap(ferr, "missing torrent file"))
			return
		}
		defer file.Close()
		rec, err = sess.AddTorrentReader(file)
	default:
		var req addRequest
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			encodeError(w, http.StatusBadRequest, errors.Wrap(derr, "bad request body"))
			return
		}
		switch {
		case req.MagnetURI != "":
			rec, err = sess.AddMagnetURI(req.MagnetURI)
		case req.InfoHash != "":
			rec, err = sess.AddInfoHash(req.InfoHash)
		default:
			encodeError(w, http.StatusBadRequest, errors.New("magnetURI or infoHash required"))
			return
		}
	}
	if err != nil {
		encodeError(w, httpStatus(err), err)
		return
	}

	// Magnet adds may not have metadata yet; give them a short readiness
	// window so the response can carry the file list, and otherwise let the
	// push channel deliver it.
	select {
	case <-rec.Ready():
	case <-time.After(s.cfg.AddReadyWindow):
	}

	encodeJSON(w, http.StatusCreated, addResult{
		InfoHash: rec.InfoHash(),
		Files:    torrents.Snapshot(rec).Files,
	})
}

// handleList returns snapshots of every torrent for the user; an empty list,
// never an error, when the user has no session yet.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	out := listResult{Torrents: []torrents.TorrentInfo{}}
	if sess, ok := s.registry.Peek(userID(r)); ok {
		for _, rec := range sess.Torrents() {
			out.Torrents = append(out.Torrents, torrents.Snapshot(rec))
		}
	}
	encodeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.Peek(userID(r))
	if !ok {
		encodeError(w, http.StatusNotFound, torrents.ErrNotFound)
		return
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		encodeError(w, http.StatusBadRequest, errors.Wrap(err, "bad request body"))
		return
	}
	selected := make([]bool, len(req.SelectedFiles))
	for i, v := range req.SelectedFiles {
		b, err := strconv.ParseBool(v)
		if err != nil {
			encodeError(w, http.StatusBadRequest, errors.Errorf("selectedFiles[%d]: %q is not a boolean", i, v))
			return
		}
		selected[i] = b
	}

	if err := sess.UpdateSelection(mux.Vars(r)["infoHash"], selected); err != nil {
		encodeError(w, httpStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.Peek(userID(r))
	if !ok {
		encodeError(w, http.StatusNotFound, torrents.ErrNotFound)
		return
	}
	if err := sess.Drop(mux.Vars(r)["infoHash"]); err != nil {
		encodeError(w, httpStatus(err), err)
		return
	}
	encodeEmpty(w, http.StatusOK)
}
