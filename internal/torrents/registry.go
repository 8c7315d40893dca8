package torrents

import "sync"

// Registry maps user identity to an owned Session and to a live push Sink.
// It is injected into every request handler; there are no package-level
// singletons. Both maps are guarded by one mutex, and session creation
// happens under it so two concurrent requests cannot race two engine
// clients for the same user.
type Registry struct {
	cfg    Config
	syncer *Syncer

	mu       sync.RWMutex
	sessions map[string]*Session
	channels map[string]Sink
}

func NewRegistry(cfg Config, syncer *Syncer) *Registry {
	return &Registry{
		cfg:      cfg,
		syncer:   syncer,
		sessions: make(map[string]*Session),
		channels: make(map[string]Sink),
	}
}

// Session returns the user's torrent session, creating it on first use.
func (r *Registry) Session(userID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		return s, nil
	}
	s, err := newSession(userID, r.cfg, r.syncer, r.Channel)
	if err != nil {
		return nil, err
	}
	r.sessions[userID] = s
	return s, nil
}

// Peek returns the user's session without creating one.
func (r *Registry) Peek(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// SetChannel installs the user's push sink, returning the one it replaced,
// if any. One live channel per user; a reconnect supersedes the old one.
func (r *Registry) SetChannel(userID string, s Sink) (prev Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev = r.channels[userID]
	r.channels[userID] = s
	return prev
}

// Channel returns the user's push sink, if connected.
func (r *Registry) Channel(userID string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.channels[userID]
	return s, ok
}

// RemoveChannel clears the user's sink, but only if it is still the given
// one; a newer connection is left in place.
func (r *Registry) RemoveChannel(userID string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channels[userID] == s {
		delete(r.channels, userID)
	}
}

// ScratchDirs lists the scratch directories of every live torrent across all
// sessions, for the janitor's sweep.
func (r *Registry) ScratchDirs() []string {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	var dirs []string
	for _, s := range sessions {
		dirs = append(dirs, s.ScratchDirs()...)
	}
	return dirs
}
