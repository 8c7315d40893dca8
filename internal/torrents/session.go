package torrents

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	atorrent "github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/karl-chan/google-drive-torrent/internal/metrics"
)

// Config carries the engine settings shared by every user session.
type Config struct {
	// ScratchRoot is the local directory torrent content downloads into,
	// one subtree per user, one subtree per torrent below that.
	ScratchRoot string
	// MetadataTimeout bounds how long a magnet/info-hash add may wait for
	// metadata before the torrent is flagged as failed. Zero disables the
	// deadline.
	MetadataTimeout time.Duration
	// DisableDHT turns off DHT on the engine clients, for tests and
	// restricted networks.
	DisableDHT bool
}

// Session owns one user's torrent engine client and the records for every
// torrent it carries. Sessions are created lazily by the Registry and live
// for the rest of the process.
type Session struct {
	userID string
	cfg    Config
	client *atorrent.Client
	syncer *Syncer
	sink   func(userID string) (Sink, bool)

	mu       sync.RWMutex
	torrents map[string]*Torrent
}

func newSession(userID string, cfg Config, syncer *Syncer, sink func(string) (Sink, bool)) (*Session, error) {
	userRoot := filepath.Join(cfg.ScratchRoot, userID)
	if err := os.MkdirAll(userRoot, 0o750); err != nil {
		return nil, errors.Wrap(err, "could not create scratch directory")
	}

	ccfg := atorrent.NewDefaultClientConfig()
	ccfg.DataDir = userRoot
	ccfg.NoDHT = cfg.DisableDHT
	// One engine client per user; ephemeral ports keep them from fighting
	// over the default listen port.
	ccfg.ListenPort = 0
	client, err := atorrent.NewClient(ccfg)
	if err != nil {
		return nil, errors.Wrap(err, "could not create torrent client")
	}

	return &Session{
		userID:   userID,
		cfg:      cfg,
		client:   client,
		syncer:   syncer,
		sink:     sink,
		torrents: make(map[string]*Torrent),
	}, nil
}

func (s *Session) UserID() string { return s.userID }

// AddMagnetURI adds a torrent from a magnet link.
func (s *Session) AddMagnetURI(uri string) (*Torrent, error) {
	spec, err := atorrent.TorrentSpecFromMagnetUri(uri)
	if err != nil {
		return nil, errors.Wrapf(ErrParse, "bad magnet URI: %v", err)
	}
	return s.addSpec(spec)
}

// AddInfoHash adds a torrent from a bare hex info-hash; metadata is fetched
// from the swarm.
func (s *Session) AddInfoHash(hash string) (*Torrent, error) {
	var h metainfo.Hash
	if err := h.FromHexString(strings.TrimSpace(hash)); err != nil {
		return nil, errors.Wrapf(ErrParse, "bad info hash %q", hash)
	}
	return s.addSpec(&atorrent.TorrentSpec{AddTorrentOpts: atorrent.AddTorrentOpts{InfoHash: h}})
}

// AddTorrentReader adds a torrent from raw .torrent bytes.
func (s *Session) AddTorrentReader(r io.Reader) (*Torrent, error) {
	mi, err := metainfo.Load(r)
	if err != nil {
		return nil, errors.Wrapf(ErrParse, "bad torrent file: %v", err)
	}
	return s.addSpec(atorrent.TorrentSpecFromMetaInfo(mi))
}

func (s *Session) addSpec(spec *atorrent.TorrentSpec) (*Torrent, error) {
	infoHash := spec.InfoHash.HexString()
	// Deterministic scratch location, so re-adding the same torrent reuses
	// whatever data is already on disk.
	scratchDir := filepath.Join(s.cfg.ScratchRoot, s.userID, infoHash)
	spec.Storage = storage.NewFile(scratchDir)

	t, isNew, err := s.client.AddTorrentSpec(spec)
	if err != nil {
		return nil, errors.Wrap(err, "could not add torrent")
	}
	if !isNew {
		return nil, errors.Wrapf(ErrExists, "torrent %s", infoHash)
	}

	rec := newTorrent(s.userID, infoHash, scratchDir, t)
	rec.emit = func(event string, payload interface{}) {
		if rec.isDropped() {
			return
		}
		sink, ok := s.sink(s.userID)
		if !ok {
			return
		}
		if err := sink.Send(event, payload); err != nil {
			log.Debug().Err(err).Str("user", s.userID).Str("event", event).Msg("push send failed")
		}
	}

	s.mu.Lock()
	s.torrents[infoHash] = rec
	s.mu.Unlock()
	metrics.TorrentsAdded.Inc()
	metrics.ActiveTorrents.Inc()

	go s.watch(rec, newEventer(t, s.cfg.MetadataTimeout))

	log.Info().Str("user", s.userID).Str("infoHash", infoHash).Msg("torrent added")
	return rec, nil
}

// watch drives a torrent's lifecycle off its eventer: build file records on
// ready, hand completed files to the synchronizer, record engine failures.
func (s *Session) watch(rec *Torrent, ev *eventer) {
	for e := range ev.events {
		switch e.typ {
		case eventReady:
			rec.populate()
			rec.eng.DownloadAll()
			close(rec.ready)
			rec.emit(EventTorrentUpdate, Snapshot(rec))
			log.Debug().Str("user", s.userID).Str("infoHash", rec.infoHash).Int("files", len(rec.files)).Msg("torrent ready")
		case eventFileDone:
			f, ok := rec.markDone(e.path)
			if !ok {
				continue
			}
			// Dispatched off the watch loop so a slow upload cannot
			// delay later completion events.
			go s.syncer.FileDone(rec, f)
		case eventFailed:
			rec.setError(e.err.Error())
			rec.emit(EventTorrentError, Snapshot(rec))
			rec.emit(EventTorrentUpdate, Snapshot(rec))
			log.Warn().Err(e.err).Str("user", s.userID).Str("infoHash", rec.infoHash).Msg("torrent failed")
		case eventClosed:
			return
		}
	}
}

// UpdateSelection applies the requested per-file selection. Indices past
// either end are ignored; a length mismatch is forwarded as a warning.
// Selection changes re-evaluate torrent completeness, since deselecting the
// last unfinished file can complete the torrent on the spot.
func (s *Session) UpdateSelection(infoHash string, selected []bool) error {
	rec, err := s.Torrent(infoHash)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	mismatch := len(selected) != len(rec.files)
	n := len(selected)
	if len(rec.files) < n {
		n = len(rec.files)
	}
	changed := false
	for i := 0; i < n; i++ {
		f := rec.files[i]
		if f.Selected == selected[i] {
			continue
		}
		f.Selected = selected[i]
		changed = true
		if f.eng == nil {
			continue
		}
		if f.Selected {
			f.eng.SetPriority(atorrent.PiecePriorityNormal)
		} else {
			f.eng.SetPriority(atorrent.PiecePriorityNone)
		}
	}
	rec.mu.Unlock()

	if mismatch {
		rec.emit(EventTorrentWarning, WarningInfo{
			InfoHash: infoHash,
			Message:  "selection length does not match file count; extra entries ignored",
		})
	}
	if changed {
		go s.syncer.Evaluate(rec)
	}
	return nil
}

// Drop removes the torrent from the engine and deletes its scratch data.
// In-flight drive uploads are not cancelled; their results are dropped once
// the record is marked.
func (s *Session) Drop(infoHash string) error {
	s.mu.Lock()
	rec, ok := s.torrents[infoHash]
	if ok {
		delete(s.torrents, infoHash)
	}
	s.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrNotFound, "torrent %s", infoHash)
	}

	rec.markDropped()
	rec.eng.Drop()
	metrics.ActiveTorrents.Dec()

	if err := os.RemoveAll(rec.scratchDir); err != nil {
		return errors.Wrap(err, "could not delete torrent data")
	}
	log.Info().Str("user", s.userID).Str("infoHash", infoHash).Msg("torrent dropped")
	return nil
}

// Torrent returns the record for the given info-hash.
func (s *Session) Torrent(infoHash string) (*Torrent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.torrents[infoHash]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "torrent %s", infoHash)
	}
	return rec, nil
}

// Torrents returns all records, ordered by name for stable listings.
func (s *Session) Torrents() []*Torrent {
	s.mu.RLock()
	out := make([]*Torrent, 0, len(s.torrents))
	for _, rec := range s.torrents {
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// FileByID finds a file record across all of the session's torrents.
func (s *Session) FileByID(id string) (*Torrent, *File, bool) {
	for _, rec := range s.Torrents() {
		if f, ok := rec.FileByID(id); ok {
			return rec, f, true
		}
	}
	return nil, nil, false
}

// ScratchDirs lists the on-disk directories of live torrents.
func (s *Session) ScratchDirs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.torrents))
	for _, rec := range s.torrents {
		out = append(out, rec.scratchDir)
	}
	return out
}

// LocalPath resolves a file record to its absolute path on scratch storage.
func (t *Torrent) LocalPath(f *File) string {
	return filepath.Join(t.scratchDir, f.EnginePath)
}
