// Package janitor sweeps the scratch root for directories left behind by
// deleted torrents or earlier process runs.
package janitor

import (
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

type Janitor struct {
	root     string
	schedule string
	// live returns the scratch directories of every torrent currently
	// registered; anything else under root is fair game.
	live func() []string

	c *cron.Cron
}

func New(root, schedule string, live func() []string) *Janitor {
	return &Janitor{root: root, schedule: schedule, live: live, c: cron.New()}
}

func (j *Janitor) Start() error {
	if _, err := j.c.AddFunc(j.schedule, j.Sweep); err != nil {
		return err
	}
	j.c.Start()
	return nil
}

func (j *Janitor) Stop() {
	j.c.Stop()
}

// Sweep removes torrent scratch directories with no live torrent behind
// them. Layout under root is <user>/<infoHash>/...; user directories are
// kept, only stale torrent directories below them are deleted.
func (j *Janitor) Sweep() {
	keep := make(map[string]struct{})
	for _, dir := range j.live() {
		keep[filepath.Clean(dir)] = struct{}{}
	}

	users, err := os.ReadDir(j.root)
	if err != nil {
		log.Error().Err(err).Str("root", j.root).Msg("janitor could not read scratch root")
		return
	}
	for _, user := range users {
		if !user.IsDir() {
			continue
		}
		userDir := filepath.Join(j.root, user.Name())
		entries, err := os.ReadDir(userDir)
		if err != nil {
			log.Error().Err(err).Str("dir", userDir).Msg("janitor could not read user directory")
			continue
		}
		for _, e := range entries {
			dir := filepath.Join(userDir, e.Name())
			if _, ok := keep[filepath.Clean(dir)]; ok {
				continue
			}
			if err := os.RemoveAll(dir); err != nil {
				log.Error().Err(err).Str("dir", dir).Msg("janitor could not remove stale directory")
				continue
			}
			log.Info().Str("dir", dir).Msg("janitor removed stale scratch directory")
		}
	}
}
