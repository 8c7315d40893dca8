package server

import (
	"encoding/json"
	"net/http"

	"github.com/karl-chan/google-drive-torrent/internal/torrents"
)

type errorResult struct {
	Error string `json:"error"`
}

func encodeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func encodeError(w http.ResponseWriter, code int, err error) {
	encodeJSON(w, code, errorResult{err.Error()})
}

func encodeEmpty(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte("{}"))
}

// httpStatus maps core errors to response codes in one place.
func httpStatus(err error) int {
	switch {
	case torrents.IsNotFound(err):
		return http.StatusNotFound
	case torrents.IsExists(err):
		return http.StatusConflict
	case torrents.IsParse(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
