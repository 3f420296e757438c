// Package research 研究条目领域 - HTTP 处理
package research

import (
	"encoding/json"
	"net/http"
	"time"

	"wordpilot/internal/shared/eventbus"
	"wordpilot/internal/shared/storage"
	"wordpilot/pkg/logging"
)

// Handler 研究条目 HTTP 处理器
type Handler struct {
	store  storage.ResearchItemStore
	bus    eventbus.ItemEventBus
	logger *logging.Logger
}

// NewHandler 创建研究条目处理器
func NewHandler(store storage.ResearchItemStore, bus eventbus.ItemEventBus, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default("research")
	}
	return &Handler{store: store, bus: bus, logger: logger}
}

// RegisterRoutes 注册研究条目相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/projects/{id}/research-items", h.List)
	mux.HandleFunc("GET /api/v1/research-items/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/research-items/{id}", h.Delete)
}

// List 列出项目的研究条目
// GET /api/v1/projects/{id}/research-items
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	items, err := h.store.ListResearchItems(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list research items")
		return
	}

	// 已填充数据的条目数，前端用于进度展示
	researched := 0
	for _, item := range items {
		if len(item.Data) > 0 {
			researched++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":      items,
		"count":      len(items),
		"researched": researched,
	})
}

// Get 获取研究条目
// GET /api/v1/research-items/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	item, err := h.store.GetResearchItem(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get research item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "research item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Delete 删除研究条目并发布删除事件
// DELETE /api/v1/research-items/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	item, err := h.store.GetResearchItem(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get research item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "research item not found")
		return
	}

	if err := h.store.DeleteResearchItem(r.Context(), id); err != nil {
		h.logger.WithError(err).Error("Failed to delete research item", "item_id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete research item")
		return
	}

	if h.bus != nil {
		if err := h.bus.PublishItemEvent(r.Context(), item.ProjectID, &eventbus.ItemEvent{
			Type:      eventbus.ItemEventDeleted,
			ProjectID: item.ProjectID,
			ItemID:    item.ID,
			ItemName:  item.Name,
			Timestamp: time.Now(),
		}); err != nil {
			h.logger.WithError(err).Warn("Failed to publish item event", "item_id", id)
		}
	}
	w.WriteHeader(http.StatusNoContent)
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
