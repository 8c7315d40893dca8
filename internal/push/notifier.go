package push

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/karl-chan/google-drive-torrent/internal/torrents"
)

// Notifier streams periodic all-torrents snapshots over a channel for the
// lifetime of the connection: one immediately on connect, then one per
// interval. Nothing is buffered; a client that was disconnected simply
// missed those ticks.
type Notifier struct {
	Interval time.Duration
}

func NewNotifier(interval time.Duration) *Notifier {
	if interval <= 0 {
		interval = time.Second
	}
	return &Notifier{Interval: interval}
}

// Run blocks until ctx is cancelled or a send fails.
func (n *Notifier) Run(ctx context.Context, ch *Channel, snapshot func() []torrents.TorrentInfo) {
	if err := ch.Send(torrents.EventAllTorrents, snapshot()); err != nil {
		log.Debug().Err(err).Msg("push channel closed before first snapshot")
		return
	}
	ticker := time.NewTicker(n.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ch.Send(torrents.EventAllTorrents, snapshot()); err != nil {
				return
			}
		}
	}
}
