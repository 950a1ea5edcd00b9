// Package main provides the kavach defense daemon entry point.
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
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/logger"

	"github.com/kavach-labs/kavach/internal/classifier"
	"github.com/kavach-labs/kavach/internal/config"
	"github.com/kavach-labs/kavach/internal/evidence"
	"github.com/kavach-labs/kavach/internal/profiles"
	"github.com/kavach-labs/kavach/internal/session"
	"github.com/kavach-labs/kavach/internal/store"
	"github.com/kavach-labs/kavach/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Config file path (default: ~/.kavach/config.yaml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}

	applyLogLevel(cfg, *debug)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.NewStore(store.Config{
		Driver:   cfg.Database.Driver,
		Path:     cfg.Database.Path,
		DSN:      cfg.Database.DSN,
		MaxConns: cfg.Database.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open evidence store")
	}
	defer st.Close()

	secret := cfg.Signing.Secret
	if secret == "" {
		// Ephemeral key: packages from this run cannot be verified after a
		// restart. Set KAVACH_SIGNING_SECRET for durable signatures.
		secret = uuid.NewString()
		log.Warn().Msg("No signing secret configured, using an ephemeral key")
	}
	signer, err := evidence.NewHMACSigner(secret, cfg.Signing.SignedBy)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize evidence signer")
	}

	var clf classifier.Classifier = classifier.Disabled{}
	if cfg.Classifier.Endpoint != "" {
		clf = classifier.NewHTTPClient(cfg.Classifier.Endpoint, cfg.Classifier.Timeout)
		log.Info().Str("endpoint", cfg.Classifier.Endpoint).Msg("External classifier enabled")
	}

	var sightings *profiles.SightingCounter
	if cfg.Redis.Addr != "" {
		sightings = profiles.NewSightingCounter(profiles.NewRedisPool(cfg.Redis.Addr))
		defer sightings.Close()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Shared sighting counter enabled")
	}
	correlator := profiles.NewCorrelator(st, sightings)

	manager := session.NewManager(session.Options{
		Classifier:        clf,
		Assembler:         evidence.NewAssembler(signer),
		Store:             st,
		Profiles:          correlator,
		Weights:           cfg.Threat,
		ClassifierTimeout: cfg.Classifier.Timeout,
	})

	svc := worker.NewService(worker.Options{
		Version:  Version,
		Config:   cfg,
		Store:    st,
		Manager:  manager,
		Profiles: correlator,
	})

	startConfigWatcher(path, *debug, manager)

	log.Info().
		Str("version", Version).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Msg("Starting kavach daemon")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		return svc.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Daemon exited with error")
	}
}

func applyLogLevel(cfg *config.Config, debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
}

// startConfigWatcher applies log level and scoring weight changes live.
// Everything else takes effect on restart.
func startConfigWatcher(path string, debug bool, manager *session.Manager) {
	w, err := config.NewWatcher(path, func(cfg *config.Config) {
		applyLogLevel(cfg, debug)
		manager.SetWeights(cfg.Threat)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start config watcher")
		return
	}
	log.Info().Str("path", path).Msg("Config file watcher started")
}
