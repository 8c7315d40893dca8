package notify

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/xconstruct/go-pushbullet"
)

// Pushbullet sends a note to all of the account's devices when a torrent
// finishes (or fails) syncing.
type Pushbullet struct {
	pb *pushbullet.Client
}

func NewPushbullet(apiKey string) *Pushbullet {
	return &Pushbullet{pb: pushbullet.New(apiKey)}
}

// Test verifies the API key by fetching account info.
func (p *Pushbullet) Test() error {
	_, err := p.pb.Me()
	return err
}

func (p *Pushbullet) SyncComplete(userID, torrentName, link string) {
	title := fmt.Sprintf("Synced: %s", torrentName)
	body := fmt.Sprintf("All selected files mirrored to drive storage.\n%s", link)
	if err := p.pb.PushNote("", title, body); err != nil {
		log.Error().Err(err).Msg("pushbullet delivery failed")
	}
}

func (p *Pushbullet) SyncError(userID, torrentName string, err error) {
	title := fmt.Sprintf("Sync failed: %s", torrentName)
	if perr := p.pb.PushNote("", title, err.Error()); perr != nil {
		log.Error().Err(perr).Msg("pushbullet delivery failed")
	}
}
