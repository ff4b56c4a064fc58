package main

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"collabhub/api/db"
	"collabhub/api/internal/app"
	"collabhub/api/internal/assist"
	"collabhub/api/internal/config"
	"collabhub/api/internal/email"
	"collabhub/api/internal/export"
	"collabhub/api/internal/history"
	"collabhub/api/internal/logging"
	"collabhub/api/internal/search"
	"collabhub/api/internal/session"
	"collabhub/api/internal/store"
	"collabhub/api/internal/upload"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	deps := app.Deps{Logger: logger}

	// Storage and the search fallback that reads from it
	var fallback search.Searcher
	var loader search.RecordSource
	switch cfg.Store {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		memStore := store.NewMemoryStore()
		deps.Store = memStore
		loader = app.ProjectSource(memStore.ListAllProjects)
		fallback = search.NewScan(loader)
	case "postgres":
		sqlDB, err := store.Open(ctx, cfg.DatabaseURL, store.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer sqlDB.Close()

		applied, err := store.ApplyMigrations(ctx, sqlDB, migrationsFS(cfg.MigrationsDir, logger))
		if err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		if len(applied) > 0 {
			logger.Info("applied migrations", zap.Strings("versions", applied))
		}
		deps.Store = store.NewPostgresStore(sqlDB)
		pgfts := search.NewPgFTS(sqlDB)
		fallback = pgfts
		loader = pgfts.LoadAllRecords
	default:
		logger.Fatal("unknown store backend", zap.String("store", cfg.Store))
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	deps.Search = search.NewService(meiliClient, fallback, loader, logger)

	// Refresh sessions
	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Info("using redis for refresh sessions")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
	} else {
		logger.Info("using process memory for refresh sessions")
		deps.Sessions = session.NewMemoryStore()
	}

	// Uploads
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		files, err := upload.NewMinioStorage(ctx, upload.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Fatal("object storage failed", zap.Error(err))
		}
		deps.Files = files
	} else if cfg.Store == "memory" {
		deps.Files = upload.NewMemoryStorage()
	} else {
		logger.Warn("MINIO_ENDPOINT not set; uploads are disabled")
	}

	deps.Assist = assist.NewClient(assist.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
	}, nil)
	deps.Mail = email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		BaseURL:  cfg.AppBaseURL,
	})

	deps.Export = export.NewService(logger, export.Options{DOCXReference: cfg.ExportDOCXReference})
	if strings.TrimSpace(cfg.HistoryDir) == "" {
		logger.Warn("COLLAB_HISTORY_DIR not set; project history is kept in memory")
	}
	deps.History = history.New(cfg.HistoryDir)

	service := app.New(cfg, deps)
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warn("bootstrap error (will retry on next restart)", zap.Error(err))
	}
	service.ReindexSearch(ctx)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("collabhub API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// migrationsFS returns dir when it names a directory, and the embedded
// migrations otherwise.
func migrationsFS(dir string, logger *zap.Logger) fs.FS {
	if strings.TrimSpace(dir) == "" {
		return db.Migrations()
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logger.Warn("migrations dir unusable, using embedded migrations", zap.String("dir", dir))
		return db.Migrations()
	}
	return os.DirFS(dir)
}
