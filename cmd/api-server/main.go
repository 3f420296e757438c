// Package main API Server 入口
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wordpilot/internal/apiserver/server"
	"wordpilot/internal/assistant/llm"
	"wordpilot/internal/config"
	eventbusredis "wordpilot/internal/shared/eventbus/redis"
	kvredis "wordpilot/internal/shared/kv/redis"
	postgresdriver "wordpilot/internal/shared/storage/driver/postgres"
	sqlitedriver "wordpilot/internal/shared/storage/driver/sqlite"
	"wordpilot/internal/shared/storage/repository"
	"wordpilot/pkg/logging"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换数据库和 Redis）
	cfg := config.Load()

	logger := logging.New(logging.Config{
		Level:     "info",
		Format:    "json",
		Component: "api-server",
	})
	logger.Info("Starting API Server", "env", cfg.Env, "config", cfg.String())

	// 初始化 SQL 存储（连接串按 scheme 选择驱动）
	store, err := openStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()
	logger.Info("Connected to database")

	// 初始化 Redis（会话快照、模板集合）
	kvStore, err := kvredis.NewStoreFromURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer kvStore.Close()

	// 事件总线复用同一 Redis 连接
	bus := eventbusredis.NewStoreFromClient(kvStore.Client())
	logger.Info("Connected to Redis")

	// 初始化补全客户端
	llmClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:         cfg.OpenAIKey,
		BaseURL:        cfg.Assistant.BaseURL,
		Model:          cfg.Assistant.Model,
		MaxTokens:      cfg.Assistant.MaxTokens,
		RequestTimeout: cfg.Assistant.RequestTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create completion client: %v", err)
	}

	h := server.NewHandler(store, kvStore, bus, llmClient, cfg.Assistant, logger)

	// 存储层查询指标与慢查询日志
	store.SetQueryHook(h.GetMetrics().RecordDBQuery)
	store.SetLogger(logger)

	// 摘要走独立模型时单独建客户端
	if cfg.Assistant.SummaryModel != cfg.Assistant.Model {
		summaryClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:         cfg.OpenAIKey,
			BaseURL:        cfg.Assistant.BaseURL,
			Model:          cfg.Assistant.SummaryModel,
			MaxTokens:      cfg.Assistant.MaxTokens,
			RequestTimeout: cfg.Assistant.RequestTimeout,
		})
		if err != nil {
			log.Fatalf("Failed to create summary client: %v", err)
		}
		h.Assistant().SetSummaryClient(summaryClient)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE 与 WebSocket 响应不能有写超时
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Server shutdown error")
		}
	}()

	logger.Info("API Server listening", "port", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	logger.Info("Server stopped")
}

// openStore 按连接串 scheme 打开存储层
//
// postgres:// 走 pgx，其余视为 SQLite 文件路径（本地开发）。
func openStore(databaseURL string) (*repository.Store, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		db, err := postgresdriver.Open(databaseURL)
		if err != nil {
			return nil, err
		}
		return repository.NewStore(db, postgresdriver.NewDialect()), nil
	}

	db, err := sqlitedriver.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
	if err != nil {
		return nil, err
	}
	dialect := sqlitedriver.NewDialect()
	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return repository.NewStore(db, dialect), nil
}
