// Package template 提示词模板领域 - HTTP 处理
package template

import (
	"encoding/json"
	"net/http"

	assistanttemplate "wordpilot/internal/assistant/template"
	"wordpilot/pkg/logging"
)

// Handler 模板 HTTP 处理器
type Handler struct {
	templates *assistanttemplate.Store
	logger    *logging.Logger
}

// NewHandler 创建模板处理器
func NewHandler(templates *assistanttemplate.Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default("template")
	}
	return &Handler{templates: templates, logger: logger}
}

// RegisterRoutes 注册模板相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/templates", h.List)
	mux.HandleFunc("POST /api/v1/templates", h.Create)
	mux.HandleFunc("PUT /api/v1/templates/{id}", h.Update)
	mux.HandleFunc("GET /api/v1/templates/selected", h.GetSelected)
	mux.HandleFunc("PUT /api/v1/templates/selected", h.PutSelected)
}

// CreateRequest 新增自定义模板的请求体
type CreateRequest struct {
	Name         string `json:"name"`
	Phase1Prompt string `json:"phase1_prompt"`
	Phase2Prompt string `json:"phase2_prompt"`
	Phase3Prompt string `json:"phase3_prompt"`
}

// UpdateRequest 更新模板的请求体，nil 字段保持不变
type UpdateRequest struct {
	Name         *string `json:"name"`
	Phase1Prompt *string `json:"phase1_prompt"`
	Phase2Prompt *string `json:"phase2_prompt"`
	Phase3Prompt *string `json:"phase3_prompt"`
}

// SelectRequest 选择模板的请求体
type SelectRequest struct {
	ID string `json:"id"`
}

// List 列出全部模板（default 条目在加载时自愈补齐）
// GET /api/v1/templates
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.LoadTemplates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load templates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
	})
}

// Create 新增自定义模板
// POST /api/v1/templates
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := h.templates.AddCustomTemplate(r.Context(), req.Name, req.Phase1Prompt, req.Phase2Prompt, req.Phase3Prompt)
	if err != nil {
		h.logger.WithError(err).Error("Failed to add template")
		writeError(w, http.StatusInternalServerError, "failed to add template")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// Update 更新模板；ID 不存在时为空操作
// PUT /api/v1/templates/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	update := assistanttemplate.TemplateUpdate{
		Name:         req.Name,
		Phase1Prompt: req.Phase1Prompt,
		Phase2Prompt: req.Phase2Prompt,
		Phase3Prompt: req.Phase3Prompt,
	}
	if err := h.templates.UpdateCustomTemplate(r.Context(), id, update); err != nil {
		h.logger.WithError(err).Error("Failed to update template", "template_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update template")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// GetSelected 获取当前选中的模板 ID
// GET /api/v1/templates/selected
func (h *Handler) GetSelected(w http.ResponseWriter, r *http.Request) {
	id, err := h.templates.SelectedTemplateID(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get selected template")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// PutSelected 设置当前选中的模板 ID
// PUT /api/v1/templates/selected
func (h *Handler) PutSelected(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.templates.SetSelectedTemplateID(r.Context(), req.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set selected template")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": req.ID})
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
