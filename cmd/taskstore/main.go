package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/config"
	"github.com/BuzzLyutic/kanban-board/internal/handler"
	"github.com/BuzzLyutic/kanban-board/internal/repo"
	"github.com/BuzzLyutic/kanban-board/internal/service"
)

func main() {
	configPath := flag.String("config", os.Getenv("TASKBOARD_CONFIG"), "path to a TOML config file")
	flag.Parse()

	// Подключаем логгер
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Загрузка конфигурации
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	taskRepo, closeRepo, err := openRepository(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open task storage", zap.Error(err))
	}
	defer closeRepo()

	h := handler.NewTaskHandler(service.NewTaskService(taskRepo), logger)

	srv := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.NewRouter(h, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// openRepository picks Postgres when a database URL is configured and the
// embedded SQLite file otherwise, then fronts it with Redis when available.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.TaskRepository, func(), error) {
	var (
		base    repo.TaskRepository
		closers []func()
	)

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("Connected to Postgres")
		base = repo.NewTaskRepo(pool)
		closers = append(closers, pool.Close)
	} else {
		sqliteRepo, err := repo.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Opened SQLite storage", zap.String("path", cfg.SQLitePath))
		base = sqliteRepo
		closers = append(closers, func() { _ = sqliteRepo.Close() })
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.RedisURL == "" {
		return base, closeAll, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		// Кэш необязателен: работаем напрямую с хранилищем
		logger.Warn("Redis unavailable, list caching disabled", zap.Error(err))
		_ = client.Close()
		return base, closeAll, nil
	}
	closers = append(closers, func() { _ = client.Close() })
	logger.Info("List caching enabled", zap.Duration("ttl", cfg.CacheTTL))
	return repo.NewCachedRepo(base, client, cfg.CacheTTL, logger), closeAll, nil
}
