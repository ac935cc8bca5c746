package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"playlist-downloader/internal/config"
	"playlist-downloader/internal/downloader"
	apphttp "playlist-downloader/internal/http"
	"playlist-downloader/internal/metadata"
	"playlist-downloader/internal/playlist"
	"playlist-downloader/internal/progress"
	"playlist-downloader/internal/repository/sqlite"
	"playlist-downloader/internal/service"
	"playlist-downloader/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		logger.Warnf("unknown log level %q, keeping %s", cfg.Log.Level, logger.GetLevel())
	} else {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	batchRepo := sqlite.NewBatchRepository(db)
	taskRepo := sqlite.NewTaskRepository(db)

	if err := batchRepo.Init(ctx); err != nil {
		logger.Fatalf("init batch repository: %v", err)
	}
	if err := taskRepo.Init(ctx); err != nil {
		logger.Fatalf("init task repository: %v", err)
	}

	historyService := service.NewHistoryService(batchRepo, taskRepo)
	playlistService := service.NewPlaylistService(
		metadata.NewClient(metadata.ClientConfig{
			Endpoint: cfg.Metadata.Endpoint,
			Timeout:  cfg.Metadata.Timeout,
			Logger:   logger,
		}),
		playlist.NewRegistry(),
		logger,
	)

	manager := downloader.NewManager(downloader.Config{
		TickInterval: cfg.Download.TickInterval,
		Source:       progress.NewRandomSource(cfg.Download.MaxIncrement, uint64(time.Now().UnixNano())),
		Logger:       logger,
	})
	manager.Subscribe(service.NewHistoryRecorder(historyService, logger))

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}
	var archiver *storage.ReportArchiver
	if storageSvc != nil {
		archiver = storage.NewReportArchiver(storageSvc, storage.ArchiveConfig{
			Bucket:    cfg.Storage.Bucket,
			KeyPrefix: cfg.Storage.KeyPrefix,
			Logger:    logger,
		})
		manager.Subscribe(archiver.Handle)
	}

	if err := manager.Start(ctx); err != nil {
		logger.Fatalf("start manager: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		playlistService,
		historyService,
		manager,
		storageSvc,
		apphttp.StorageOptions{
			Bucket:    cfg.Storage.Bucket,
			KeyPrefix: cfg.Storage.KeyPrefix,
			URLExpiry: cfg.Storage.URLExpiry,
		},
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// event streams never finish on their own
	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	manager.Shutdown()
	if archiver != nil {
		archiver.Wait()
	}

	logger.Info("bye")
}

// buildStorage returns nil when no bucket is configured; reports are then not archived.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("storage bucket not set, batch reports will not be archived")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("archiving batch reports to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
