package torrents

import (
	"path"
	"strings"
	"sync"
	"time"

	atorrent "github.com/anacrolix/torrent"
	"github.com/google/uuid"
)

// Torrent is the core-owned record for one torrent in one user's session.
// Engine state (byte counters, peers) stays inside the anacrolix torrent;
// everything this service adds on top (selection, file ids, sync state, the
// last error, the drive link) lives here.
type Torrent struct {
	userID     string
	infoHash   string
	scratchDir string
	eng        *atorrent.Torrent

	// emit pushes an event frame to the owning user's channel, if any.
	emit func(event string, payload interface{})

	// ready closes once metadata has arrived and file records exist.
	ready chan struct{}

	mu         sync.Mutex
	files      []*File
	byPath     map[string]*File
	lastErr    string
	driveURL   string
	folderDone bool
	dropped    bool

	// rate estimation state, updated on each snapshot
	prevRead    int64
	prevWritten int64
	prevAt      time.Time
	prevDown    float64
	prevUp      float64

	// syncMu serializes every drive operation belonging to this torrent.
	// Uploads and folder creation are remote read-then-write sequences
	// against the same destination tree and must never interleave.
	syncMu sync.Mutex
}

// File is the core-owned record for one file within a torrent. Rel is the
// path relative to the torrent root (what the drive tree uses); EnginePath is
// the engine's path relative to the scratch directory (what local reads use).
type File struct {
	ID         string
	Name       string
	Rel        string
	EnginePath string
	Length     int64
	Selected   bool
	Done       bool
	Uploaded   bool

	eng   *atorrent.File
	bytes int64
}

func newTorrent(userID, infoHash, scratchDir string, eng *atorrent.Torrent) *Torrent {
	return &Torrent{
		userID:     userID,
		infoHash:   infoHash,
		scratchDir: scratchDir,
		eng:        eng,
		byPath:     make(map[string]*File),
		emit:       func(string, interface{}) {},
		ready:      make(chan struct{}),
	}
}

// Ready closes once the torrent's metadata is available and its file records
// have been built.
func (t *Torrent) Ready() <-chan struct{} { return t.ready }

func (t *Torrent) InfoHash() string { return t.infoHash }

func (t *Torrent) Name() string {
	if t.eng != nil {
		return t.eng.Name()
	}
	return t.infoHash
}

func (t *Torrent) ScratchDir() string { return t.scratchDir }

// populate builds the File records once torrent metadata is available. Every
// file starts selected and gets a fresh id for stable external reference.
func (t *Torrent) populate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.files) > 0 {
		return
	}
	name := t.eng.Name()
	for _, ef := range t.eng.Files() {
		f := &File{
			ID:         uuid.NewString(),
			Name:       path.Base(ef.DisplayPath()),
			Rel:        relPath(ef.Path(), name),
			EnginePath: ef.Path(),
			Length:     ef.Length(),
			Selected:   true,
			eng:        ef,
		}
		t.files = append(t.files, f)
		t.byPath[f.EnginePath] = f
	}
}

// relPath strips the torrent's root directory from a multi-file engine path.
// Single-file torrents report the bare file name already.
func relPath(enginePath, torrentName string) string {
	if rel := strings.TrimPrefix(enginePath, torrentName+"/"); rel != "" {
		return rel
	}
	return enginePath
}

// markDone flips the done flag for the file at the given engine path.
// Returns false for unknown paths and for files already marked, so duplicate
// completion events collapse to one.
func (t *Torrent) markDone(enginePath string) (*File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.byPath[enginePath]
	if !ok || f.Done {
		return nil, false
	}
	f.Done = true
	f.bytes = f.Length
	return f, true
}

func (t *Torrent) setError(msg string) {
	t.mu.Lock()
	t.lastErr = msg
	t.mu.Unlock()
}

func (t *Torrent) setDriveURL(url string) {
	t.mu.Lock()
	t.driveURL = url
	t.folderDone = true
	t.mu.Unlock()
}

func (t *Torrent) markDropped() {
	t.mu.Lock()
	t.dropped = true
	t.mu.Unlock()
}

func (t *Torrent) isDropped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// completeness reports whether every selected file is done, together with
// the number of selected files and how many of those are done. A torrent
// with zero selected files is vacuously complete.
func (t *Torrent) completeness() (complete bool, selected, selectedDone int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.files {
		if !f.Selected {
			continue
		}
		selected++
		if f.Done {
			selectedDone++
		}
	}
	return selected == selectedDone, selected, selectedDone
}

// Files returns the current file records. The slice is a copy; the records
// themselves are shared and must be read through snapshot helpers.
func (t *Torrent) Files() []*File {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*File, len(t.files))
	copy(out, t.files)
	return out
}

// FileByID looks up a file record by its stable id.
func (t *Torrent) FileByID(id string) (*File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.files {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// downloaded reports the file's downloaded byte count, preferring the live
// engine counter when the record is engine-backed.
func (f *File) downloaded() int64 {
	if f.eng != nil {
		return f.eng.BytesCompleted()
	}
	return f.bytes
}

// TorrentInfo is the wire snapshot for one torrent.
type TorrentInfo struct {
	InfoHash      string     `json:"infoHash"`
	MagnetURI     string     `json:"magnetURI"`
	Name          string     `json:"name"`
	Files         []FileInfo `json:"files"`
	Received      int64      `json:"received"`
	Size          int64      `json:"size"`
	Progress      float64    `json:"progress"`
	TimeRemaining int64      `json:"timeRemaining"`
	Downloaded    int64      `json:"downloaded"`
	DownloadSpeed float64    `json:"downloadSpeed"`
	Uploaded      int64      `json:"uploaded"`
	UploadSpeed   float64    `json:"uploadSpeed"`
	Ratio         float64    `json:"ratio"`
	NumPeers      int        `json:"numPeers"`
	Error         string     `json:"error,omitempty"`
	DriveURL      string     `json:"driveUrl,omitempty"`
}

// FileInfo is the wire snapshot for one file.
type FileInfo struct {
	FileID     string  `json:"fileId"`
	Name       string  `json:"name"`
	Path       string  `json:"path"`
	Length     int64   `json:"length"`
	Downloaded int64   `json:"downloaded"`
	Progress   float64 `json:"progress"`
	Selected   bool    `json:"selected"`
}
