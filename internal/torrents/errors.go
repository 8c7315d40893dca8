package torrents

import "github.com/pkg/errors"

// Sentinel errors for the torrent lifecycle. Callers classify failures with
// the Is* helpers rather than inspecting error strings; the HTTP layer maps
// them to status codes in one place.
var (
	ErrNotFound = errors.New("torrent not found")
	ErrExists   = errors.New("torrent already exists")
	ErrParse    = errors.New("could not parse torrent source")
)

func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

func IsExists(err error) bool {
	return errors.Cause(err) == ErrExists
}

func IsParse(err error) bool {
	return errors.Cause(err) == ErrParse
}
