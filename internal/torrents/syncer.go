package torrents

import (
	"context"
	"path"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/karl-chan/google-drive-torrent/internal/drive"
	"github.com/karl-chan/google-drive-torrent/internal/identity"
	"github.com/karl-chan/google-drive-torrent/internal/metrics"
)

// CredentialSource resolves a user's stored credential handle for drive
// calls. Typically store.Credentials.
type CredentialSource func(ctx context.Context, userID string) (identity.Credentials, error)

// Notifier receives terminal sync outcomes, for out-of-band delivery
// (webhooks, pushbullet). Implementations must not block for long; calls
// happen while the torrent's sync lock is held.
type Notifier interface {
	SyncComplete(userID, torrentName, link string)
	SyncError(userID, torrentName string, err error)
}

// SyncerConfig carries the drive-side settings of the synchronizer.
type SyncerConfig struct {
	// Root is the folder every torrent's destination folder is created
	// under, within each user's tree.
	Root string
	// OpTimeout bounds each drive call. Zero inherits whatever timeout the
	// storage client enforces itself.
	OpTimeout time.Duration
}

// Syncer mirrors completed files into drive storage and detects whole-torrent
// completion. Per torrent it is a small state machine re-entered on every
// file completion: upload the finished file (at most once per file), then, if
// every selected file is done, create the destination folder (at most once
// per torrent) and report success.
//
// All drive operations for one torrent run under that torrent's sync lock;
// different torrents synchronize independently.
type Syncer struct {
	drive  drive.Drive
	cfg    SyncerConfig
	creds  CredentialSource
	notify Notifier
}

func NewSyncer(d drive.Drive, cfg SyncerConfig, creds CredentialSource, notify Notifier) *Syncer {
	return &Syncer{drive: d, cfg: cfg, creds: creds, notify: notify}
}

// FileDone reacts to one file finishing its download: upload it if selected,
// then re-evaluate the torrent as a whole.
func (s *Syncer) FileDone(t *Torrent, f *File) {
	if t.isDropped() {
		return
	}
	t.syncMu.Lock()
	defer t.syncMu.Unlock()
	s.uploadLocked(t, f)
	s.evaluateLocked(t)
}

// Evaluate re-checks the torrent outside a file completion, after a
// selection change: it uploads any selected finished file that has not been
// mirrored yet and re-evaluates completeness.
func (s *Syncer) Evaluate(t *Torrent) {
	if t.isDropped() {
		return
	}
	t.syncMu.Lock()
	defer t.syncMu.Unlock()
	s.evaluateLocked(t)
}

func (s *Syncer) uploadLocked(t *Torrent, f *File) {
	t.mu.Lock()
	pending := f.Selected && f.Done && !f.Uploaded
	t.mu.Unlock()
	if !pending {
		return
	}

	remote := path.Join(s.cfg.Root, t.Name(), f.Rel)
	ctx, cancel := s.opCtx()
	defer cancel()
	if _, err := s.drive.UploadIfAbsent(ctx, t.userID, s.credentials(ctx, t.userID), t.LocalPath(f), remote); err != nil {
		metrics.UploadFailures.Inc()
		log.Error().Err(err).Str("user", t.userID).Str("remote", remote).Msg("drive upload failed")
		t.setError(errors.Wrapf(err, "upload %s", f.Rel).Error())
		t.emit(EventTorrentError, Snapshot(t))
		if s.notify != nil {
			s.notify.SyncError(t.userID, t.Name(), err)
		}
		return
	}

	metrics.UploadsTotal.Inc()
	t.mu.Lock()
	f.Uploaded = true
	t.mu.Unlock()
	t.emit(EventTorrentUpdate, Snapshot(t))
	log.Info().Str("user", t.userID).Str("remote", remote).Msg("file uploaded")
}

func (s *Syncer) evaluateLocked(t *Torrent) {
	// Files that finished downloading while deselected get their upload here
	// once re-selected; uploadLocked skips everything else.
	for _, f := range t.Files() {
		s.uploadLocked(t, f)
	}

	t.mu.Lock()
	folderDone := t.folderDone
	t.mu.Unlock()
	if folderDone {
		return
	}

	complete, _, selectedDone := t.completeness()
	// Vacuous completeness (nothing selected, or nothing selected has
	// landed yet) does not create a drive folder.
	if !complete || selectedDone == 0 {
		return
	}

	folderPath := path.Join(s.cfg.Root, t.Name())
	ctx, cancel := s.opCtx()
	defer cancel()
	folder, err := s.drive.EnsureFolder(ctx, t.userID, s.credentials(ctx, t.userID), folderPath)
	if err != nil {
		metrics.SyncFailures.Inc()
		log.Error().Err(err).Str("user", t.userID).Str("folder", folderPath).Msg("drive folder creation failed")
		t.setError(errors.Wrapf(err, "create folder %s", folderPath).Error())
		t.emit(EventTorrentError, Snapshot(t))
		if s.notify != nil {
			s.notify.SyncError(t.userID, t.Name(), err)
		}
		return
	}

	t.setDriveURL(folder.Link)
	metrics.SyncCompleted.Inc()
	t.emit(EventTorrentSuccess, Snapshot(t))
	if s.notify != nil {
		s.notify.SyncComplete(t.userID, t.Name(), folder.Link)
	}
	log.Info().Str("user", t.userID).Str("folder", folderPath).Msg("torrent synced")
}

func (s *Syncer) credentials(ctx context.Context, userID string) identity.Credentials {
	if s.creds == nil {
		return identity.Credentials{}
	}
	c, err := s.creds(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("could not load drive credentials")
		return identity.Credentials{}
	}
	return c
}

func (s *Syncer) opCtx() (context.Context, context.CancelFunc) {
	if s.cfg.OpTimeout > 0 {
		return context.WithTimeout(context.Background(), s.cfg.OpTimeout)
	}
	return context.WithCancel(context.Background())
}
