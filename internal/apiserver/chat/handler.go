// Package chat 研究对话领域 - HTTP 处理
//
// 发送消息接口以 SSE 流式返回模型增量；预览审批与阶段切换为普通 JSON 接口。
package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"wordpilot/internal/assistant/conversation"
	"wordpilot/internal/assistant/session"
	"wordpilot/internal/shared/storage"
	"wordpilot/pkg/logging"
)

// Handler 对话领域 HTTP 处理器
type Handler struct {
	store     storage.PersistentStore
	assistant *conversation.Manager
	sessions  *session.Repository
	logger    *logging.Logger
}

// NewHandler 创建对话处理器
func NewHandler(store storage.PersistentStore, assistant *conversation.Manager, sessions *session.Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default("chat")
	}
	return &Handler{store: store, assistant: assistant, sessions: sessions, logger: logger}
}

// RegisterRoutes 注册对话相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/projects/{id}/chat", h.History)
	mux.HandleFunc("POST /api/v1/projects/{id}/chat", h.Send)
	mux.HandleFunc("GET /api/v1/projects/{id}/chat/preview", h.GetPreview)
	mux.HandleFunc("POST /api/v1/projects/{id}/chat/preview/approve", h.ApprovePreview)
	mux.HandleFunc("POST /api/v1/projects/{id}/chat/preview/regenerate", h.RegeneratePreview)
	mux.HandleFunc("DELETE /api/v1/projects/{id}/chat/preview", h.CancelPreview)
	mux.HandleFunc("GET /api/v1/projects/{id}/phase", h.GetPhase)
	mux.HandleFunc("PUT /api/v1/projects/{id}/phase", h.PutPhase)
}

// SendRequest 发送消息的请求体
type SendRequest struct {
	Message string `json:"message"`
}

// History 获取某阶段的消息历史
// GET /api/v1/projects/{id}/chat?phase=N
//
// 省略 phase 参数时使用会话的当前阶段。
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	phase := 0
	if p := r.URL.Query().Get("phase"); p != "" {
		phase, _ = strconv.Atoi(p)
	}
	if phase == 0 {
		sess, err := h.sessions.Load(r.Context(), projectID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load session")
			return
		}
		phase = sess.CurrentPhase
	}

	messages, err := h.store.ListChatMessages(r.Context(), projectID, phase)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"phase":    phase,
		"count":    len(messages),
	})
}

// Send 发送消息，SSE 流式返回增量
// POST /api/v1/projects/{id}/chat
//
// 事件序列：若干 `delta`（{"text": ...}），最后一个 `done`（回合结果）。
// 回合失败且尚未输出任何增量时退回普通 JSON 错误响应。
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
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

	stream := newSSEWriter(w)
	onDelta := func(text string) {
		stream.WriteEvent("delta", map[string]string{"text": text})
	}

	outcome, err := h.assistant.Send(r.Context(), projectID, project.UserID, req.Message, onDelta)
	if err != nil {
		if !stream.Started() {
			status := http.StatusInternalServerError
			if errors.Is(err, conversation.ErrBusy) {
				status = http.StatusConflict
			}
			writeError(w, status, err.Error())
			return
		}
		stream.WriteEvent("error", map[string]string{"error": err.Error()})
		return
	}

	stream.WriteEvent("done", outcomePayload(outcome))
}

// GetPreview 获取待审批预览
// GET /api/v1/projects/{id}/chat/preview
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	preview := h.assistant.PendingPreview(r.PathValue("id"))
	if preview == nil {
		writeError(w, http.StatusNotFound, "no pending preview")
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// ApprovePreview 批准预览，数据落库
// POST /api/v1/projects/{id}/chat/preview/approve
func (h *Handler) ApprovePreview(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	outcome, err := h.assistant.ApprovePreview(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, conversation.ErrNoPreview) {
			writeError(w, http.StatusNotFound, "no pending preview")
			return
		}
		h.logger.WithError(err).Error("Failed to approve preview", "project_id", projectID)
		writeError(w, http.StatusInternalServerError, "failed to approve preview")
		return
	}
	writeJSON(w, http.StatusOK, outcomePayload(outcome))
}

// RegeneratePreview 用相同提示词重新生成预览
// POST /api/v1/projects/{id}/chat/preview/regenerate
func (h *Handler) RegeneratePreview(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	outcome, err := h.assistant.RegeneratePreview(r.Context(), projectID, nil)
	if err != nil {
		switch {
		case errors.Is(err, conversation.ErrNoPreview):
			writeError(w, http.StatusNotFound, "no pending preview")
		case errors.Is(err, conversation.ErrBusy):
			writeError(w, http.StatusConflict, "a turn is already in flight")
		default:
			h.logger.WithError(err).Error("Failed to regenerate preview", "project_id", projectID)
			writeError(w, http.StatusInternalServerError, "failed to regenerate preview")
		}
		return
	}
	writeJSON(w, http.StatusOK, outcomePayload(outcome))
}

// CancelPreview 取消预览，不落库任何数据
// DELETE /api/v1/projects/{id}/chat/preview
func (h *Handler) CancelPreview(w http.ResponseWriter, r *http.Request) {
	if err := h.assistant.CancelPreview(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, "no pending preview")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPhase 获取研究会话状态
// GET /api/v1/projects/{id}/phase
func (h *Handler) GetPhase(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// PhaseRequest 阶段切换请求体
type PhaseRequest struct {
	Phase int `json:"phase"`
}

// PutPhase 切换当前阶段（阶段之间可自由跳转）
// PUT /api/v1/projects/{id}/phase
func (h *Handler) PutPhase(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req PhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.sessions.SetPhase(r.Context(), projectID, req.Phase)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// outcomePayload 将回合结果转换为响应体
func outcomePayload(outcome *conversation.TurnOutcome) map[string]interface{} {
	payload := map[string]interface{}{
		"kind": outcome.Kind,
	}
	if outcome.Message != nil {
		payload["message"] = outcome.Message
	}
	if outcome.Preview != nil {
		payload["preview"] = outcome.Preview
	}
	if outcome.PlanApplied {
		payload["plan_applied"] = true
	}
	if outcome.UsageErr != nil {
		payload["usage_error"] = outcome.UsageErr.Error()
	}
	return payload
}
