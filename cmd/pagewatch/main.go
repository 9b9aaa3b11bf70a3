// Package main wires together the page watch service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/api"
	archivegcs "github.com/JakeFAU/pagewatch/internal/archive/gcs"
	archivelocal "github.com/JakeFAU/pagewatch/internal/archive/local"
	archivemem "github.com/JakeFAU/pagewatch/internal/archive/memory"
	"github.com/JakeFAU/pagewatch/internal/clock/system"
	"github.com/JakeFAU/pagewatch/internal/commands"
	"github.com/JakeFAU/pagewatch/internal/config"
	"github.com/JakeFAU/pagewatch/internal/engine"
	collyfetcher "github.com/JakeFAU/pagewatch/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/pagewatch/internal/fetcher/headless"
	"github.com/JakeFAU/pagewatch/internal/hash/sha256"
	"github.com/JakeFAU/pagewatch/internal/headless/detector"
	"github.com/JakeFAU/pagewatch/internal/id/uuid"
	"github.com/JakeFAU/pagewatch/internal/logging"
	"github.com/JakeFAU/pagewatch/internal/metrics"
	"github.com/JakeFAU/pagewatch/internal/notify"
	pubsubpublisher "github.com/JakeFAU/pagewatch/internal/publisher/pubsub"
	"github.com/JakeFAU/pagewatch/internal/ratelimit"
	storefile "github.com/JakeFAU/pagewatch/internal/store/file"
	storemem "github.com/JakeFAU/pagewatch/internal/store/memory"
	storepg "github.com/JakeFAU/pagewatch/internal/store/postgres"
	transportlog "github.com/JakeFAU/pagewatch/internal/transport/log"
	"github.com/JakeFAU/pagewatch/internal/transport/telegram"
	"github.com/JakeFAU/pagewatch/internal/watch"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}

	var transport watch.Transport
	var poller *telegram.Transport
	switch cfg.Transport.Provider {
	case "telegram":
		tg, tgErr := telegram.New(telegram.Config{
			Token:       cfg.Transport.Telegram.BotToken,
			PollTimeout: time.Duration(cfg.Transport.Telegram.PollTimeoutSeconds) * time.Second,
		}, logger.Named("telegram"))
		if tgErr != nil {
			logger.Fatal("telegram transport init failed", zap.Error(tgErr))
		}
		transport = tg
		poller = tg
	default:
		transport = transportlog.New(logger.Named("transport"))
	}

	clock := system.New()
	dispatcher := notify.New(
		notify.Config{WorkDir: cfg.Notify.WorkDir},
		transport,
		clock,
		logger.Named("notify"),
	)

	probeFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})

	engineOpts := []engine.Option{}
	if cfg.Fetch.PerHostRPS > 0 {
		engineOpts = append(engineOpts, engine.WithRateLimiter(ratelimit.New(ratelimit.Config{
			RPS:   cfg.Fetch.PerHostRPS,
			Burst: cfg.Fetch.PerHostBurst,
		})))
	}
	if cfg.Headless.Enabled {
		headless, hlErr := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if hlErr != nil {
			logger.Warn("headless fetcher init failed", zap.Error(hlErr))
		} else {
			defer headless.Close()
			detect := detector.NewHeuristic(cfg.Headless.PromotionThresh)
			engineOpts = append(engineOpts, engine.WithHeadless(headless, detect))
		}
	}

	if archive := buildArchive(ctx, cfg, logger); archive != nil {
		engineOpts = append(engineOpts, engine.WithArchive(archive, uuid.New()))
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		client, psErr := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if psErr != nil {
			logger.Warn("pubsub client init failed", zap.Error(psErr))
		} else {
			defer func() {
				if closeErr := client.Close(); closeErr != nil {
					logger.Warn("pubsub client close failed", zap.Error(closeErr))
				}
			}()
			topic := client.Topic(cfg.PubSub.TopicName)
			defer topic.Stop()
			engineOpts = append(engineOpts, engine.WithPublisher(pubsubpublisher.New(topic)))
		}
	}

	eng := engine.New(
		engine.Config{
			Concurrency:    cfg.Sweep.Concurrency,
			FetchTimeout:   cfg.FetchTimeout(),
			Topic:          cfg.PubSub.TopicName,
			SnapshotPrefix: cfg.Archive.Prefix,
		},
		store,
		probeFetcher,
		sha256.New(),
		dispatcher,
		clock,
		logger.Named("engine"),
		engineOpts...,
	)
	scheduler := engine.NewScheduler(eng, cfg.SweepInterval(), logger.Named("scheduler"))

	service := commands.New(store, eng, logger.Named("commands"))
	apiServer := api.NewServer(service, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("scheduler started", zap.Duration("interval", cfg.SweepInterval()))
		if runErr := scheduler.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Error("scheduler error", zap.Error(runErr))
		}
	}()

	if poller != nil {
		bot := commands.NewBot(service, transport, dispatcher, logger.Named("bot"))
		go func() {
			logger.Info("bot polling started")
			if pollErr := poller.Poll(ctx, func(ctx context.Context, u telegram.Update) {
				bot.Handle(ctx, u.ChatID, u.Text)
			}); pollErr != nil && !errors.Is(pollErr, context.Canceled) {
				logger.Error("bot polling error", zap.Error(pollErr))
			}
		}()
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if srvErr := srv.ListenAndServe(); srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(srvErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if closer, ok := store.(interface{ Close() }); ok {
		closer.Close()
	}
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (watch.TrackingStore, error) {
	switch cfg.Store.Provider {
	case "memory":
		return storemem.New(), nil
	case "file":
		return storefile.New(storefile.Config{Path: cfg.Store.File.Path}, logger.Named("store"))
	case "postgres":
		return storepg.New(ctx, storepg.Config{
			DSN:      cfg.Store.Postgres.DSN,
			Table:    cfg.Store.Postgres.Table,
			MaxConns: cfg.Store.Postgres.MaxConns,
			MinConns: cfg.Store.Postgres.MinConns,
		})
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}

func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) watch.BlobStore {
	switch cfg.Archive.Provider {
	case "local":
		archive, err := archivelocal.New(archivelocal.Config{BaseDir: cfg.Archive.LocalDir})
		if err != nil {
			logger.Warn("local archive init failed", zap.Error(err))
			return nil
		}
		return archive
	case "memory":
		return archivemem.New()
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			logger.Warn("gcs client init failed", zap.Error(err))
			return nil
		}
		archive, err := archivegcs.New(client, archivegcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			logger.Warn("gcs archive init failed", zap.Error(err))
			return nil
		}
		return archive
	default:
		return nil
	}
}
