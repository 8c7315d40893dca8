package torrents

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karl-chan/google-drive-torrent/internal/drive"
	"github.com/karl-chan/google-drive-torrent/internal/identity"
)

// fakeDrive records calls and detects concurrent entry.
type fakeDrive struct {
	mu       sync.Mutex
	uploads  []string
	folders  []string
	creds    []string
	failPath string

	inflight int32
	overlaps int32
}

func (d *fakeDrive) enter() {
	if atomic.AddInt32(&d.inflight, 1) > 1 {
		atomic.AddInt32(&d.overlaps, 1)
	}
	time.Sleep(time.Millisecond)
}

func (d *fakeDrive) leave() { atomic.AddInt32(&d.inflight, -1) }

func (d *fakeDrive) EnsureFolder(_ context.Context, userID string, creds identity.Credentials, folderPath string) (drive.Folder, error) {
	d.enter()
	defer d.leave()
	d.mu.Lock()
	d.folders = append(d.folders, folderPath)
	d.creds = append(d.creds, creds.AccessToken)
	d.mu.Unlock()
	return drive.Folder{ID: folderPath, Name: folderPath, Link: "https://drive.example/" + folderPath}, nil
}

func (d *fakeDrive) UploadIfAbsent(_ context.Context, userID string, creds identity.Credentials, localPath, remotePath string) (drive.Object, error) {
	d.enter()
	defer d.leave()
	if remotePath == d.failPath {
		return drive.Object{}, errors.New("storage unavailable")
	}
	d.mu.Lock()
	d.uploads = append(d.uploads, remotePath)
	d.creds = append(d.creds, creds.AccessToken)
	d.mu.Unlock()
	return drive.Object{ID: remotePath, Path: remotePath}, nil
}

// recorder captures emitted event frames.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(event string, _ interface{}) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func newTestSyncer(d drive.Drive) *Syncer {
	return NewSyncer(d, SyncerConfig{Root: "torrents"}, nil, nil)
}

func TestFileDoneUploadsAndSyncs(t *testing.T) {
	d := &fakeDrive{}
	sy := newTestSyncer(d)
	rec := testTorrent("a.txt")
	events := &recorder{}
	rec.emit = events.record

	f, ok := rec.markDone("a.txt")
	require.True(t, ok)
	sy.FileDone(rec, f)

	assert.Equal(t, []string{"torrents/" + rec.infoHash + "/a.txt"}, d.uploads)
	assert.Equal(t, []string{"torrents/" + rec.infoHash}, d.folders)
	assert.True(t, f.Uploaded)

	info := Snapshot(rec)
	assert.Equal(t, "https://drive.example/torrents/"+rec.infoHash, info.DriveURL)
	assert.Empty(t, info.Error)
	assert.Equal(t, []string{EventTorrentUpdate, EventTorrentSuccess}, events.names())

	// Duplicate completion events collapse to no further drive work.
	sy.FileDone(rec, f)
	assert.Len(t, d.uploads, 1)
	assert.Len(t, d.folders, 1)
}

func TestFileDoneSkipsUnselected(t *testing.T) {
	d := &fakeDrive{}
	sy := newTestSyncer(d)
	rec := testTorrent("a.txt")
	rec.files[0].Selected = false

	f, ok := rec.markDone("a.txt")
	require.True(t, ok)
	sy.FileDone(rec, f)

	assert.Empty(t, d.uploads)
	// Vacuous completeness does not create a folder.
	assert.Empty(t, d.folders)
}

func TestEvaluateAfterDeselection(t *testing.T) {
	d := &fakeDrive{}
	sy := newTestSyncer(d)
	rec := testTorrent("a.txt", "b.txt")

	f, _ := rec.markDone("a.txt")
	sy.FileDone(rec, f)
	assert.Empty(t, d.folders)

	// Deselecting the unfinished file completes the torrent on the spot.
	rec.mu.Lock()
	rec.files[1].Selected = false
	rec.mu.Unlock()
	sy.Evaluate(rec)

	assert.Equal(t, []string{"torrents/" + rec.infoHash}, d.folders)
}

func TestUploadFailureKeepsTorrentUsable(t *testing.T) {
	rec := testTorrent("a.txt", "b.txt")
	d := &fakeDrive{failPath: "torrents/" + rec.infoHash + "/a.txt"}
	sy := newTestSyncer(d)
	events := &recorder{}
	rec.emit = events.record

	fa, _ := rec.markDone("a.txt")
	sy.FileDone(rec, fa)
	assert.False(t, fa.Uploaded)
	assert.Contains(t, Snapshot(rec).Error, "upload a.txt")
	assert.Contains(t, events.names(), EventTorrentError)

	// A later upload for another file still proceeds.
	fb, _ := rec.markDone("b.txt")
	sy.FileDone(rec, fb)
	assert.True(t, fb.Uploaded)
	assert.Equal(t, []string{"torrents/" + rec.infoHash + "/b.txt"}, d.uploads)
}

func TestDroppedTorrentSkipsDriveWork(t *testing.T) {
	d := &fakeDrive{}
	sy := newTestSyncer(d)
	rec := testTorrent("a.txt")

	f, _ := rec.markDone("a.txt")
	rec.markDropped()
	sy.FileDone(rec, f)

	assert.Empty(t, d.uploads)
	assert.Empty(t, d.folders)
}

func TestReselectedDoneFileUploads(t *testing.T) {
	d := &fakeDrive{}
	sy := newTestSyncer(d)
	rec := testTorrent("a.txt", "b.txt")
	rec.files[1].Selected = false

	// b finishes while deselected; its completion event is consumed without
	// an upload.
	fb, _ := rec.markDone("b.txt")
	sy.FileDone(rec, fb)
	fa, _ := rec.markDone("a.txt")
	sy.FileDone(rec, fa)

	assert.Equal(t, []string{"torrents/" + rec.infoHash + "/a.txt"}, d.uploads)
	assert.Len(t, d.folders, 1)

	// Re-selecting b after the torrent already synced still mirrors it.
	rec.mu.Lock()
	rec.files[1].Selected = true
	rec.mu.Unlock()
	sy.Evaluate(rec)

	assert.True(t, rec.files[1].Uploaded)
	assert.Contains(t, d.uploads, "torrents/"+rec.infoHash+"/b.txt")
	assert.Len(t, d.folders, 1)
}

func TestSyncerResolvesUserCredentials(t *testing.T) {
	d := &fakeDrive{}
	sy := NewSyncer(d, SyncerConfig{Root: "torrents"}, func(_ context.Context, userID string) (identity.Credentials, error) {
		return identity.Credentials{AccessToken: "token-" + userID}, nil
	}, nil)
	rec := testTorrent("a.txt")

	f, _ := rec.markDone("a.txt")
	sy.FileDone(rec, f)

	// Upload and folder creation both carry the owning user's handle.
	require.NotEmpty(t, d.creds)
	for _, tok := range d.creds {
		assert.Equal(t, "token-user-1", tok)
	}
}

func TestConcurrentFileDoneSerialized(t *testing.T) {
	const n = 16
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("f%02d.txt", i)
	}
	d := &fakeDrive{}
	sy := newTestSyncer(d)
	rec := testTorrent(paths...)

	var wg sync.WaitGroup
	for _, p := range paths {
		f, ok := rec.markDone(p)
		require.True(t, ok)
		wg.Add(1)
		go func(f *File) {
			defer wg.Done()
			sy.FileDone(rec, f)
		}(f)
	}
	wg.Wait()

	// Drive operations for one torrent never interleave, every file uploads
	// exactly once, and the folder is created exactly once.
	assert.Zero(t, atomic.LoadInt32(&d.overlaps))
	assert.Len(t, d.uploads, n)
	assert.Len(t, d.folders, 1)
}
