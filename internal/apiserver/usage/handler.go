// Package usage 订阅用量领域 - HTTP 处理
package usage

import (
	"encoding/json"
	"net/http"

	"wordpilot/internal/shared/storage"
	"wordpilot/pkg/logging"
)

// Handler 用量 HTTP 处理器
type Handler struct {
	store  storage.SubscriptionStore
	logger *logging.Logger
}

// NewHandler 创建用量处理器
func NewHandler(store storage.SubscriptionStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default("usage")
	}
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes 注册用量相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/users/{id}/usage", h.Get)
}

// Get 获取用户的订阅用量
// GET /api/v1/users/{id}/usage
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	sub, err := h.store.GetSubscriptionByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "no subscription for user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plan":         sub.Plan,
		"active":       sub.Active,
		"tokens_used":  sub.TokensUsed,
		"tokens_limit": sub.TokensLimit,
		"remaining":    sub.Remaining(),
		"period_end":   sub.PeriodEnd,
	})
}

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 写入错误响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
