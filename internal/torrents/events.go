package torrents

// Push channel event names, shared by the core and the notifier.
const (
	EventAllTorrents    = "all-torrents"
	EventTorrentUpdate  = "torrent-update"
	EventTorrentSuccess = "torrent-success"
	EventTorrentWarning = "torrent-warning"
	EventTorrentError   = "torrent-error"
)

// WarningInfo is the payload of a torrent-warning frame.
type WarningInfo struct {
	InfoHash string `json:"infoHash"`
	Message  string `json:"message"`
}

// Sink is one user's live push connection. Send must be safe for concurrent
// use; implementations serialize writes internally.
type Sink interface {
	Send(event string, payload interface{}) error
}
