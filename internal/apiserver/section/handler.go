// Package section 书籍章节领域 - HTTP 处理
package section

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"wordpilot/internal/assistant/llm"
	"wordpilot/internal/assistant/usage"
	"wordpilot/internal/shared/model"
	"wordpilot/internal/shared/storage"
	"wordpilot/pkg/logging"
)

// Handler 章节领域 HTTP 处理器
type Handler struct {
	store   storage.PersistentStore
	llm     llm.Client
	tracker *usage.Tracker
	logger  *logging.Logger
}

// NewHandler 创建章节处理器
func NewHandler(store storage.PersistentStore, client llm.Client, tracker *usage.Tracker, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default("section")
	}
	return &Handler{store: store, llm: client, tracker: tracker, logger: logger}
}

// RegisterRoutes 注册章节相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/projects/{id}/sections", h.List)
	mux.HandleFunc("POST /api/v1/projects/{id}/sections", h.Create)
	mux.HandleFunc("GET /api/v1/sections/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/sections/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/sections/{id}", h.Delete)
	mux.HandleFunc("POST /api/v1/sections/{id}/integrate", h.Integrate)
}

// CreateRequest 创建章节的请求体
type CreateRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	OrderNumber int    `json:"order_number"`
}

// UpdateRequest 更新章节的请求体，nil 字段保持不变
type UpdateRequest struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	OrderNumber *int    `json:"order_number"`
}

// Create 创建章节
// POST /api/v1/projects/{id}/sections
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	project, err := h.store.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	now := time.Now()
	section := &model.BookSection{
		ID:          generateID("sect"),
		ProjectID:   projectID,
		Title:       req.Title,
		Content:     req.Content,
		OrderNumber: req.OrderNumber,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	section.RecalculateWordCount()

	if err := h.store.CreateBookSection(r.Context(), section); err != nil {
		h.logger.WithError(err).Error("Failed to create section", "project_id", projectID)
		writeError(w, http.StatusInternalServerError, "failed to create section")
		return
	}
	writeJSON(w, http.StatusCreated, section)
}

// List 列出项目的章节
// GET /api/v1/projects/{id}/sections
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	sections, err := h.store.ListBookSections(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sections")
		return
	}

	totalWords := 0
	for _, s := range sections {
		totalWords += s.WordCount
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sections":    sections,
		"count":       len(sections),
		"total_words": totalWords,
	})
}

// Get 获取章节
// GET /api/v1/sections/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	section, err := h.store.GetBookSection(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get section")
		return
	}
	if section == nil {
		writeError(w, http.StatusNotFound, "section not found")
		return
	}
	writeJSON(w, http.StatusOK, section)
}

// Update 更新章节，内容变更时重算字数
// PUT /api/v1/sections/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	section, err := h.store.GetBookSection(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get section")
		return
	}
	if section == nil {
		writeError(w, http.StatusNotFound, "section not found")
		return
	}

	if req.Title != nil {
		section.Title = *req.Title
	}
	if req.Content != nil {
		section.Content = *req.Content
		section.RecalculateWordCount()
	}
	if req.OrderNumber != nil {
		section.OrderNumber = *req.OrderNumber
	}
	section.UpdatedAt = time.Now()

	if err := h.store.UpdateBookSection(r.Context(), section); err != nil {
		h.logger.WithError(err).Error("Failed to update section", "section_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update section")
		return
	}
	writeJSON(w, http.StatusOK, section)
}

// Delete 删除章节
// DELETE /api/v1/sections/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteBookSection(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete section")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IntegrateRequest AI 整合请求体
type IntegrateRequest struct {
	// ItemID 要整合的研究条目
	ItemID string `json:"item_id"`

	// Instructions 额外的写作指示（可选）
	Instructions string `json:"instructions"`
}

// Integrate 将研究条目数据整合进章节草稿
// POST /api/v1/sections/{id}/integrate
//
// 加载章节与研究条目，让模型把研究数据改写进现有草稿，
// 成功后整体替换章节内容并重算字数。
func (h *Handler) Integrate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req IntegrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	section, err := h.store.GetBookSection(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get section")
		return
	}
	if section == nil {
		writeError(w, http.StatusNotFound, "section not found")
		return
	}

	item, err := h.store.GetResearchItem(r.Context(), req.ItemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get research item")
		return
	}
	if item == nil || item.ProjectID != section.ProjectID {
		writeError(w, http.StatusNotFound, "research item not found")
		return
	}

	start := time.Now()
	result, err := h.llm.Complete(r.Context(), llm.Request{
		System: "You are a writing assistant helping an author draft a non-fiction book. Rewrite drafts in clean HTML, preserving the author's voice.",
		Messages: []llm.Message{{
			Role:    model.RoleUser,
			Content: buildIntegratePrompt(section, item, req.Instructions),
		}},
	})
	if err != nil {
		h.logger.WithError(err).WithDuration(time.Since(start)).Error("Draft integration failed", "section_id", id)
		writeError(w, http.StatusBadGateway, "failed to reach the AI service")
		return
	}

	// 用量计入项目所有者
	if project, perr := h.store.GetProject(r.Context(), section.ProjectID); perr == nil && project != nil {
		if terr := h.tracker.Track(r.Context(), project.UserID, result.Usage.Total()); terr != nil {
			h.logger.WithError(terr).Warn("Token usage tracking failed", "user_id", project.UserID)
		}
	}

	section.Content = strings.TrimSpace(result.Text)
	section.RecalculateWordCount()
	section.UpdatedAt = time.Now()

	if err := h.store.UpdateBookSection(r.Context(), section); err != nil {
		h.logger.WithError(err).Error("Failed to save integrated section", "section_id", id)
		writeError(w, http.StatusInternalServerError, "failed to save section")
		return
	}
	writeJSON(w, http.StatusOK, section)
}

// buildIntegratePrompt 组装整合提示词：现有草稿 + 研究数据 + 指示
func buildIntegratePrompt(section *model.BookSection, item *model.ResearchItem, instructions string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Section %q current draft:\n\n%s\n\n", section.Title, section.Content)
	fmt.Fprintf(&b, "Research data for %q:\n\n", item.Name)

	keys := make([]string, 0, len(item.Data))
	for k := range item.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s:\n%s\n\n", strings.ToUpper(k), item.Data[k])
	}

	b.WriteString("Integrate this research into the draft and return the complete revised section content.")
	if instructions != "" {
		fmt.Fprintf(&b, " Additional instructions: %s", instructions)
	}
	return b.String()
}
