package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"Toonbeat/cache"
	"Toonbeat/config"
	"Toonbeat/core/audio"
	"Toonbeat/db"
	"Toonbeat/logger"
	"Toonbeat/repository"
	"Toonbeat/server"
	"Toonbeat/storage"
)

var migrateOnStart bool

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动Toonbeat服务器",
	Long:  `启动HTTP服务器，提供项目快照API、音频流地址解析和渲染端WebSocket会话。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		defer logger.Sync()

		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.CloseGormDB()
		if migrateOnStart {
			if err := db.AutoMigrate(db.GormDB); err != nil {
				log.Fatalf("Failed to migrate database: %v", err)
			}
		}

		tracks := repository.NewGormTrackRepository(db.GormDB)
		projects := repository.NewGormProjectRepository(db.GormDB)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, err := storage.NewMinioClient(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize MinIO: %v", err)
		}
		if err := storage.EnsureBucket(ctx, client, cfg); err != nil {
			log.Fatalf("Failed to initialize MinIO: %v", err)
		}
		minioResolver := storage.NewMinioResolver(client, cfg, tracks)

		handles, closeCache := newHandleCache(cfg, cache.HandleTTL(minioResolver.TTL()))
		defer closeCache()
		resolver := cache.NewCachedResolver(minioResolver, handles, minioResolver.TTL())

		prefetch := audio.NewHTTPPrefetcher(resolver, &http.Client{}, audio.PrefetchConfig{
			Bytes:   cfg.PreloadBytes,
			TTL:     audio.DefaultPrefetchConfig.TTL,
			Timeout: audio.DefaultPrefetchConfig.Timeout,
		})
		prefetch.Start()
		defer prefetch.Stop()

		router := server.NewRouter(server.Deps{
			Config:   cfg,
			Projects: projects,
			Tracks:   tracks,
			Resolver: resolver,
			Prefetch: prefetch,
		})
		if err := server.Run(ctx, cfg.HTTPAddr, router); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	},
}

// newHandleCache uses Redis when configured and an in-process LRU otherwise.
func newHandleCache(cfg *config.Config, ttl time.Duration) (cache.HandleCache, func()) {
	if cfg.RedisEnabled() {
		if err := db.ConnectRedis(cfg); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		logger.Info("Successfully connected to Redis")
		return cache.NewRedisHandleCache(db.RedisClient, ""), func() { _ = db.CloseRedis() }
	}

	lru := cache.NewLRUHandleCache(cache.DefaultLRUSize, ttl)
	logger.Info("Redis not configured, using in-process stream cache")
	return lru, func() {}
}

func init() {
	serverCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "启动前执行数据库迁移")
	rootCmd.AddCommand(serverCmd)
}
