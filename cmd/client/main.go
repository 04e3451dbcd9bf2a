package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/avelichko/clip-keeper/internal/bookmarks"
	"github.com/avelichko/clip-keeper/internal/capture"
	"github.com/avelichko/clip-keeper/internal/config"
	"github.com/avelichko/clip-keeper/internal/conflict"
	"github.com/avelichko/clip-keeper/internal/deletion"
	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/packager"
	"github.com/avelichko/clip-keeper/internal/remoteindex"
	"github.com/avelichko/clip-keeper/internal/retry"
	"github.com/avelichko/clip-keeper/internal/secretbox"
	"github.com/avelichko/clip-keeper/internal/store"
	"github.com/avelichko/clip-keeper/internal/syncer"
	"github.com/avelichko/clip-keeper/internal/transport"
	"github.com/avelichko/clip-keeper/internal/tui"
	"github.com/avelichko/clip-keeper/internal/utils"
	"github.com/avelichko/clip-keeper/internal/workers"
	"github.com/avelichko/clip-keeper/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	cfg, err := config.GetStructuredConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error getting configs: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger("clip-client")
	if cfg.App.LogFile != "" {
		log = logger.NewFileLogger("clip-client", cfg.App.LogFile)
	}

	if err = cfg.ValidateClient(); err != nil {
		log.Fatal().Err(err).Msg("invalid client configuration")
	}

	if cfg.App.DeviceID == "" {
		cfg.App.DeviceID = utils.NewUUIDGenerator().Generate()
		log.Warn().Str("device_id", cfg.App.DeviceID).
			Msg("no device id configured, generated one; set APP_DEVICE_ID to keep it stable")
	}

	if cfg.Remote.Token != "" && transport.TokenExpired(cfg.Remote.Token, time.Now()) {
		log.Fatal().Msg("remote token is expired")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	clock := utils.SystemClock{}

	db, err := connectDB(ctx, cfg.Storage.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect local store")
	}
	defer db.Close()
	if err = db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("migrate local store")
	}
	repo := store.NewClipboardRepository(db, log)

	objects := transport.NewObjectClient(transport.Config{
		BaseURL:  cfg.Remote.BaseURL,
		BasePath: cfg.Remote.BasePath,
		Token:    cfg.Remote.Token,
		Timeout:  cfg.Remote.RequestTimeout,
	})
	for _, dir := range []string{transport.FilesDir, transport.PackagesDir} {
		if err = objects.CreateDirectory(ctx, dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("could not pre-create remote directory")
		}
	}

	var box *secretbox.Box
	if cfg.App.SyncPassword != "" {
		if box, err = secretbox.New(cfg.App.SyncPassword, cfg.Remote.BasePath); err != nil {
			log.Fatal().Err(err).Msg("derive payload key")
		}
	}

	cacheDir := cfg.Storage.CacheDir
	if cacheDir == "" {
		base, dirErr := os.UserCacheDir()
		if dirErr != nil {
			base = os.TempDir()
		}
		cacheDir = filepath.Join(base, "clip-keeper")
	}
	cache, err := packager.OpenCache(filepath.Join(cacheDir, "packages"), cfg.Storage.CacheMaxBytes, cfg.Storage.CacheTTL, clock, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open attachment cache")
	}
	defer cache.Close()

	pkgr := packager.New(
		objects, cache, box,
		packager.Limits{
			MaxFileBytes:       cfg.Files.MaxFileBytes,
			PackageTargetBytes: cfg.Files.PackageTargetBytes,
			UploadAttempts:     cfg.Files.UploadAttempts,
			DeleteConcurrency:  cfg.Files.DeleteConcurrency,
		},
		clock,
		retry.Policy{Attempts: uint64(cfg.Files.UploadAttempts), Delay: time.Second},
		log,
	)

	indexStore := remoteindex.NewStore(objects, clock, cfg.Sync.IndexTTL, log)
	resolver := conflict.NewResolver(models.StrategyMerge)
	deletions := deletion.NewManager(repo, log)

	orchestrator := syncer.New(repo, objects, indexStore, resolver, pkgr, deletions, box, clock,
		syncer.Options{
			DeviceID:      cfg.App.DeviceID,
			Mode:          cfg.Sync.Mode,
			AttachmentDir: filepath.Join(cacheDir, "attachments"),
		}, log)

	bk := bookmarks.NewSyncer(objects, box, clock, cfg.App.DeviceID,
		filepath.Join(cacheDir, "bookmarks.json"), log)

	pool := workers.New(
		syncer.NewJob(orchestrator, bk, cfg.Sync.Interval, log),
		capture.NewWatcher(repo, clock, time.Second, log),
	)
	pool.Start(ctx)
	defer pool.Stop()

	ui := tui.New(repo, deletions, orchestrator, log)
	if err = ui.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("ui error")
	}
}

func connectDB(ctx context.Context, cfg config.DB, log *logger.Logger) (*store.DB, error) {
	if cfg.Driver == "pgx" {
		return store.NewConnectPostgres(ctx, cfg, log)
	}
	return store.NewConnectSQLite(ctx, cfg, log)
}

func printBuildInfo() {
	orNA := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}
	fmt.Printf("Build version: %s\n", orNA(buildVersion))
	fmt.Printf("Build date: %s\n", orNA(buildDate))
	fmt.Printf("Build commit: %s\n", orNA(buildCommit))
}
