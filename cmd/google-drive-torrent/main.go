package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/karl-chan/google-drive-torrent/internal/config"
	"github.com/karl-chan/google-drive-torrent/internal/drive"
	"github.com/karl-chan/google-drive-torrent/internal/identity"
	"github.com/karl-chan/google-drive-torrent/internal/janitor"
	"github.com/karl-chan/google-drive-torrent/internal/notify"
	"github.com/karl-chan/google-drive-torrent/internal/push"
	"github.com/karl-chan/google-drive-torrent/internal/server"
	"github.com/karl-chan/google-drive-torrent/internal/store"
	"github.com/karl-chan/google-drive-torrent/internal/torrents"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "path to config file")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.SessionSecret == "" {
		// Sessions still work within one process lifetime; restarts sign
		// everyone out.
		cfg.SessionSecret = uuid.NewString()
		log.Warn().Msg("no session secret configured, sessions will not survive restarts")
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open store")
	}
	defer st.Close()

	d, err := drive.NewMinio(drive.MinioConfig{
		Endpoint:  cfg.Drive.Endpoint,
		AccessKey: cfg.Drive.AccessKey,
		SecretKey: cfg.Drive.SecretKey,
		Bucket:    cfg.Drive.Bucket,
		Region:    cfg.Drive.Region,
		Secure:    cfg.Drive.Secure,
		BrowseURL: cfg.Drive.BrowseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not create drive storage client")
	}
	if err := d.EnsureBucket(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("could not ensure drive bucket")
	}

	var targets []torrents.Notifier
	if cfg.Notify.WebhookURL != "" {
		targets = append(targets, notify.NewWebhook(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.PushbulletKey != "" {
		pb := notify.NewPushbullet(cfg.Notify.PushbulletKey)
		if err := pb.Test(); err != nil {
			log.Fatal().Err(err).Msg("pushbullet key rejected")
		}
		targets = append(targets, pb)
	}

	syncer := torrents.NewSyncer(d, torrents.SyncerConfig{
		Root:      cfg.Drive.Root,
		OpTimeout: cfg.Drive.OpTimeout,
	}, st.Credentials, notify.NewFanout(targets...))

	registry := torrents.NewRegistry(torrents.Config{
		ScratchRoot:     cfg.ScratchRoot,
		MetadataTimeout: cfg.MetadataTimeout,
		DisableDHT:      cfg.DisableDHT,
	}, syncer)

	if cfg.Janitor.Enabled {
		j := janitor.New(cfg.ScratchRoot, cfg.Janitor.Schedule, registry.ScratchDirs)
		if err := j.Start(); err != nil {
			log.Fatal().Err(err).Msg("could not start janitor")
		}
		defer j.Stop()
	}

	provider := newProvider(cfg)
	notifier := push.NewNotifier(cfg.PushInterval)
	srv := server.New(cfg, registry, notifier, st, provider)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("server failed")
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown did not complete cleanly")
	}
}

func newProvider(cfg *config.Config) identity.Provider {
	switch cfg.Auth.Provider {
	case "static", "":
		return &identity.Static{Profile: identity.Profile{
			ID:          cfg.Auth.UserID,
			DisplayName: cfg.Auth.DisplayName,
		}}
	default:
		log.Fatal().Str("provider", cfg.Auth.Provider).Msg("unknown auth provider")
		return nil
	}
}
