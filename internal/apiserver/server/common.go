// Package server 提供 HTTP API 处理器
//
// 本包实现 Word Pilot 后端的 RESTful API 路由与核心基础设施，包括：
//   - 路由配置（各领域处理器在独立包中）
//   - Prometheus 指标
//   - WebSocket 研究条目事件推送
//
// 文件组织：
//   - common.go: Handler 定义、通用工具函数
//   - handler.go: 路由配置
//   - metrics.go: Prometheus 指标
//   - websocket.go: 研究条目事件 WebSocket 网关
package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"wordpilot/internal/assistant/conversation"
	"wordpilot/internal/assistant/llm"
	"wordpilot/internal/assistant/session"
	"wordpilot/internal/assistant/template"
	"wordpilot/internal/assistant/usage"
	"wordpilot/internal/config"
	"wordpilot/internal/shared/eventbus"
	"wordpilot/internal/shared/kv"
	"wordpilot/internal/shared/storage"
	"wordpilot/pkg/logging"
)

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 路由请求到各领域处理器
//   - 组装助手编排器及其协作组件
//   - 管理指标与 WebSocket 网关
type Handler struct {
	store storage.PersistentStore // SQL 存储层（项目、章节、消息、条目、订阅）

	kvStore kv.Store              // 会话快照与模板集合
	bus     eventbus.ItemEventBus // 研究条目变更事件流

	// 助手组件
	sessions     *session.Repository
	planner      *session.Service
	templates    *template.Store
	llmClient    llm.Client
	usageTracker *usage.Tracker
	assistant    *conversation.Manager

	metrics *Metrics
	logger  *logging.Logger
}

// NewHandler 创建 Handler 实例并组装助手编排器
func NewHandler(store storage.PersistentStore, kvStore kv.Store, bus eventbus.ItemEventBus, llmClient llm.Client, cfg config.AssistantConfig, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default("apiserver")
	}

	h := &Handler{
		store:     store,
		kvStore:   kvStore,
		bus:       bus,
		llmClient: llmClient,
		metrics:   NewMetrics("wordpilot"),
		logger:    logger,
	}

	h.sessions = session.NewRepository(kvStore)
	h.planner = session.NewService(h.sessions, store, bus, logger)
	h.templates = template.NewStore(kvStore)
	h.usageTracker = usage.NewTracker(store)
	h.assistant = conversation.NewManager(
		store, store, h.sessions, h.planner, h.templates,
		llmClient, h.usageTracker, bus, logger,
		conversation.Options{
			SummaryThreshold: cfg.SummaryThreshold,
			SummaryBatch:     cfg.SummaryBatch,
		},
	)
	h.assistant.SetMetricsRecorder(h.metrics)
	return h
}

// Assistant 返回对话编排器
func (h *Handler) Assistant() *conversation.Manager {
	return h.assistant
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 将错误信息以 JSON 格式写入 HTTP 响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// generateID 生成带前缀的唯一标识符
//
// 格式：prefix-xxxxxxxxxxxx（prefix + 12 字符 hex）
func generateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

// Health 健康检查接口
//
// 路由: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
