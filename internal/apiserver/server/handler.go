// Package server 路由配置
//
// 本文件定义 HTTP API 路由，将请求分发到各领域独立包。
package server

import (
	"net/http"
	"time"

	"wordpilot/internal/apiserver/chat"
	"wordpilot/internal/apiserver/project"
	"wordpilot/internal/apiserver/research"
	"wordpilot/internal/apiserver/section"
	"wordpilot/internal/apiserver/template"
	"wordpilot/internal/apiserver/usage"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//
// 项目管理 (Project):
//   - GET    /api/v1/projects              - 列出用户的项目
//   - POST   /api/v1/projects              - 创建项目
//   - GET    /api/v1/projects/{id}         - 获取项目详情
//   - PUT    /api/v1/projects/{id}         - 更新项目
//   - DELETE /api/v1/projects/{id}         - 删除项目及其全部归属记录
//
// 章节管理 (Section):
//   - GET    /api/v1/projects/{id}/sections - 列出章节
//   - POST   /api/v1/projects/{id}/sections - 创建章节
//   - GET    /api/v1/sections/{id}          - 获取章节
//   - PUT    /api/v1/sections/{id}          - 更新章节（重算字数）
//   - DELETE /api/v1/sections/{id}          - 删除章节
//   - POST   /api/v1/sections/{id}/integrate - AI 整合研究数据到章节草稿
//
// 研究对话 (Chat):
//   - GET    /api/v1/projects/{id}/chat     - 获取某阶段的消息历史
//   - POST   /api/v1/projects/{id}/chat     - 发送消息（SSE 流式增量）
//   - GET    /api/v1/projects/{id}/chat/preview            - 获取待审批预览
//   - POST   /api/v1/projects/{id}/chat/preview/approve    - 批准预览
//   - POST   /api/v1/projects/{id}/chat/preview/regenerate - 重新生成预览
//   - DELETE /api/v1/projects/{id}/chat/preview            - 取消预览
//   - GET    /api/v1/projects/{id}/phase    - 获取研究会话状态
//   - PUT    /api/v1/projects/{id}/phase    - 切换阶段
//
// 研究条目 (Research):
//   - GET    /api/v1/projects/{id}/research-items - 列出条目
//   - GET    /api/v1/research-items/{id}          - 获取条目
//   - DELETE /api/v1/research-items/{id}          - 删除条目
//
// 提示词模板 (Template):
//   - GET    /api/v1/templates           - 列出模板
//   - POST   /api/v1/templates           - 新增自定义模板
//   - PUT    /api/v1/templates/{id}      - 更新模板
//   - GET    /api/v1/templates/selected  - 获取选中的模板 ID
//   - PUT    /api/v1/templates/selected  - 设置选中的模板 ID
//
// 用量 (Usage):
//   - GET    /api/v1/users/{id}/usage    - 获取订阅用量
//
// WebSocket:
//   - GET    /api/v1/projects/{id}/research-items/ws - 条目变更实时推送
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	// Project 接口
	projectHandler := project.NewHandler(h.store, h.logger)
	projectHandler.RegisterRoutes(mux)

	// Section 接口（AI 整合依赖补全客户端与用量追踪）
	sectionHandler := section.NewHandler(h.store, h.llmClient, h.usageTracker, h.logger)
	sectionHandler.RegisterRoutes(mux)

	// Chat 接口（对话编排器）
	chatHandler := chat.NewHandler(h.store, h.assistant, h.sessions, h.logger)
	chatHandler.RegisterRoutes(mux)

	// Research 接口
	researchHandler := research.NewHandler(h.store, h.bus, h.logger)
	researchHandler.RegisterRoutes(mux)

	// Template 接口
	templateHandler := template.NewHandler(h.templates, h.logger)
	templateHandler.RegisterRoutes(mux)

	// Usage 接口
	usageHandler := usage.NewHandler(h.store, h.logger)
	usageHandler.RegisterRoutes(mux)

	// 应用指标与访问日志中间件到 REST API
	apiHandler := h.requestLogMiddleware(h.metrics.MetricsMiddleware(mux))

	// 应用 CORS 中间件
	corsHandler := corsMiddleware(apiHandler)

	// 顶层路由，WebSocket 绕过 metrics 中间件（避免 http.Hijacker 问题）
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /api/v1/projects/{id}/research-items/ws", h.HandleItemFeed)
	topMux.Handle("/", corsHandler)

	return topMux
}

// requestLogMiddleware 记录每个 REST 请求的访问日志
func (h *Handler) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		h.logger.HTTPRequestLog(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start), r.RemoteAddr)
	})
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
