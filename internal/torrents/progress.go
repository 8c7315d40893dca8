package torrents

import (
	"fmt"
	"net/url"
	"time"
)

// Snapshot derives the wire record for a torrent from the engine counters and
// the core-owned state. It has no side effects beyond advancing the rate
// estimation window and is safe to call at any frequency, concurrently with
// mutation; reads are eventually-consistent, not transactional.
func Snapshot(t *Torrent) TorrentInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	info := TorrentInfo{
		InfoHash: t.infoHash,
		Error:    t.lastErr,
		DriveURL: t.driveURL,
	}
	info.Name = t.infoHash
	if t.eng != nil {
		info.Name = t.eng.Name()
		info.Received = t.eng.BytesCompleted()

		st := t.eng.Stats()
		info.Downloaded = st.BytesReadData.Int64()
		info.Uploaded = st.BytesWrittenData.Int64()
		info.NumPeers = st.ActivePeers
		if info.Downloaded > 0 {
			info.Ratio = float64(info.Uploaded) / float64(info.Downloaded)
		}
		info.DownloadSpeed, info.UploadSpeed = t.rates(info.Downloaded, info.Uploaded)
	}
	info.MagnetURI = magnetURI(t.infoHash, info.Name)

	// Always a list on the wire, even before metadata arrives.
	info.Files = make([]FileInfo, 0, len(t.files))
	var selectedLength, selectedDown, remaining int64
	for _, f := range t.files {
		down := f.downloaded()
		info.Files = append(info.Files, FileInfo{
			FileID:     f.ID,
			Name:       f.Name,
			Path:       f.Rel,
			Length:     f.Length,
			Downloaded: down,
			Progress:   clamp(ratio(down, f.Length)),
			Selected:   f.Selected,
		})
		if f.Selected {
			selectedLength += f.Length
			selectedDown += down
			remaining += f.Length - down
		}
	}
	info.Size = selectedLength
	info.Progress = clamp(ratio(selectedDown, selectedLength))
	if info.DownloadSpeed > 0 && remaining > 0 {
		info.TimeRemaining = int64(float64(remaining) / info.DownloadSpeed * 1000)
	}
	return info
}

// rates estimates download/upload speed in bytes per second from the delta
// since the previous snapshot. Called with t.mu held.
func (t *Torrent) rates(read, written int64) (down, up float64) {
	now := time.Now()
	if !t.prevAt.IsZero() {
		elapsed := now.Sub(t.prevAt).Seconds()
		if elapsed < 0.2 {
			// Too close to the previous read for a stable estimate;
			// reuse the last one.
			return t.prevDown, t.prevUp
		}
		down = float64(read-t.prevRead) / elapsed
		up = float64(written-t.prevWritten) / elapsed
	}
	t.prevAt = now
	t.prevRead = read
	t.prevWritten = written
	t.prevDown = down
	t.prevUp = up
	return down, up
}

func magnetURI(infoHash, name string) string {
	return fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", infoHash, url.QueryEscape(name))
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
