// Package project 写作项目领域 - HTTP 处理
package project

import (
	"encoding/json"
	"net/http"
	"time"

	"wordpilot/internal/shared/model"
	"wordpilot/internal/shared/storage"
	"wordpilot/pkg/logging"
)

// Handler 项目领域 HTTP 处理器
type Handler struct {
	store  storage.ProjectStore // 使用接口类型
	logger *logging.Logger
}

// NewHandler 创建项目处理器
func NewHandler(store storage.ProjectStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default("project")
	}
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes 注册项目相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/projects", h.List)
	mux.HandleFunc("POST /api/v1/projects", h.Create)
	mux.HandleFunc("GET /api/v1/projects/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/projects/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", h.Delete)
}

// CreateRequest 创建项目的请求体
type CreateRequest struct {
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateRequest 更新项目的请求体，nil 字段保持不变
type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Create 创建项目
// POST /api/v1/projects
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	now := time.Now()
	project := &model.Project{
		ID:          generateID("proj"),
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.CreateProject(r.Context(), project); err != nil {
		h.logger.WithError(err).Error("Failed to create project")
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// Get 获取项目详情
// GET /api/v1/projects/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// List 列出用户的项目
// GET /api/v1/projects?user_id=...
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	projects, err := h.store.ListProjectsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	})
}

// Update 更新项目
// PUT /api/v1/projects/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	if req.Title != nil {
		project.Title = *req.Title
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	project.UpdatedAt = time.Now()

	if err := h.store.UpdateProject(r.Context(), project); err != nil {
		h.logger.WithError(err).Error("Failed to update project", "project_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Delete 删除项目及其全部归属记录
// DELETE /api/v1/projects/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteProject(r.Context(), id); err != nil {
		h.logger.WithError(err).Error("Failed to delete project", "project_id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
