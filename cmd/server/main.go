package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ansifier-server/internal/ansify"
	"ansifier-server/internal/archive"
	"ansifier-server/internal/config"
	apphttp "ansifier-server/internal/http"
	"ansifier-server/internal/ingest"
	"ansifier-server/internal/moderation"
	"ansifier-server/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("open storage session: %v", err)
	}
	defer session.Close()
	logger.Infof("storage ready (%s engine)", cfg.Database.Engine)

	archiver, err := buildArchiver(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup archive: %v", err)
	}

	fetcher := ingest.NewFetcher(
		ingest.NewSizeLimiter(cfg.Ingest.MaxBytes),
		time.Duration(cfg.Ingest.FetchTimeoutMS)*time.Millisecond,
	)

	// no classifier ships with the server; the gate is the injection point
	// for an external moderation service
	gate := moderation.NewGate(nil, cfg.Moderation.Threshold)

	pipeline := ingest.NewPipeline(ingest.Config{
		ScratchPath:  cfg.Ingest.ScratchPath,
		MaxBytes:     cfg.Ingest.MaxBytes,
		DimensionMin: cfg.Ingest.DimensionMin,
		DimensionMax: cfg.Ingest.DimensionMax,
	}, fetcher, ansify.NewRenderer(), gate, session, archiver, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		pipeline,
		session,
		[]byte(cfg.Auth.JWTSecret),
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
		cfg.Server.Debug,
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

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func buildArchiver(ctx context.Context, cfg config.Config, logger *logrus.Logger) (ingest.Archiver, error) {
	if cfg.Archive.Bucket == "" {
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Archive.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Archive.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Archive.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("archiving artifacts to s3 bucket %s (region %s)", cfg.Archive.Bucket, cfg.Archive.Region)
	return archive.NewS3Service(client, archive.Options{
		Bucket:    cfg.Archive.Bucket,
		KeyPrefix: cfg.Archive.KeyPrefix,
	}), nil
}
