package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"

	"surveillance_backend/internal/app/config"
	"surveillance_backend/internal/app/di"
	"surveillance_backend/internal/app/router"
	camerahandler "surveillance_backend/internal/feature/camera/transport/handler"
	camerausecase "surveillance_backend/internal/feature/camera/usecase"
	detectionhandler "surveillance_backend/internal/feature/detection/transport/handler"
	detectionusecase "surveillance_backend/internal/feature/detection/usecase"
	platformhandler "surveillance_backend/internal/platform/http/handler"
	infraredis "surveillance_backend/internal/platform/redis"
)

func main() {
	// .envを読み込む
	if err := godotenv.Load(".env"); err != nil {
		log.Println("[INFO] .env not found; using system environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 構造化ログ
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	var rdb *redisv9.Client
	if cfg.Redis.Enabled() {
		if tmp, err := infraredis.NewRedisClient(ctx, cfg.Redis); err != nil {
			slog.Warn("Redis unavailable. Running without cache.", "error", err)
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					slog.Error("failed to close Redis client", "error", err)
				}
			}()
		}
	}

	// カメラ登録ストア
	cameraStore, closeStore, err := di.NewCameraStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open camera store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// 検出プロバイダー
	providers, err := di.NewProviders(ctx, cfg, rdb)
	if err != nil {
		slog.Error("failed to configure providers", "error", err)
		os.Exit(1)
	}
	defer providers.Close()
	dispatcher := di.NewDispatcher(providers)

	archiver, err := di.NewEvidenceArchiver(cfg)
	if err != nil {
		slog.Error("failed to configure evidence archiver", "error", err)
		os.Exit(1)
	}

	// Usecase
	detectionUC := detectionusecase.NewDetectionUsecase(dispatcher, archiver, cfg.RequestTimeout)
	cameraUC := camerausecase.NewCameraUsecase(cameraStore)

	// Handler
	checks := []platformhandler.Check{{Name: "camera_store", Ping: cameraStore.Ping}}
	if rdb != nil {
		checks = append(checks, platformhandler.Check{Name: "cache", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	detectionH := detectionhandler.NewDetectionHandler(detectionUC)
	cameraH := camerahandler.NewCameraHandler(cameraUC)
	healthH := platformhandler.NewHealthHandler(checks...)

	// ルータ生成
	r := router.NewRouter(detectionH, cameraH, healthH, router.Options{
		JWTSecret:      cfg.JWTSecret,
		ObjectsEnabled: cfg.VisionEnabled,
		SceneEnabled:   cfg.GeminiEnabled,
	})

	if cfg.JWTSecret == "" {
		slog.Warn("JWT_SECRET is not set. Camera registry mutations are not authenticated.")
	}

	server := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           r,
		ReadHeaderTimeout: cfg.RequestTimeout,
		// アップロード読み込みとプロバイダー呼び出しの両方を含む
		WriteTimeout: cfg.RequestTimeout + cfg.RequestTimeout/2,
	}

	go func() {
		slog.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	// 実行中の証拠保存を待つ
	if err := detectionUC.WaitArchives(shutdownCtx); err != nil {
		slog.Warn("evidence archiving did not finish before shutdown", "error", err)
	}
	slog.Info("server exited")
}
