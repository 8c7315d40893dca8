// Package notify fans terminal sync outcomes out to optional side channels:
// a webhook URL and Pushbullet. The in-browser push channel is handled
// elsewhere; these fire even when no browser is connected.
package notify

import "github.com/karl-chan/google-drive-torrent/internal/torrents"

// Fanout forwards each outcome to every configured target.
type Fanout struct {
	targets []torrents.Notifier
}

func NewFanout(targets ...torrents.Notifier) *Fanout {
	out := &Fanout{}
	for _, t := range targets {
		if t != nil {
			out.targets = append(out.targets, t)
		}
	}
	return out
}

func (f *Fanout) SyncComplete(userID, torrentName, link string) {
	for _, t := range f.targets {
		t.SyncComplete(userID, torrentName, link)
	}
}

func (f *Fanout) SyncError(userID, torrentName string, err error) {
	for _, t := range f.targets {
		t.SyncError(userID, torrentName, err)
	}
}
