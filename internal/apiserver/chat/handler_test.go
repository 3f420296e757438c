package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordpilot/internal/assistant/conversation"
	"wordpilot/internal/assistant/llm"
	"wordpilot/internal/assistant/session"
	"wordpilot/internal/assistant/template"
	"wordpilot/internal/assistant/usage"
	"wordpilot/internal/shared/eventbus"
	"wordpilot/internal/shared/kv"
	"wordpilot/internal/shared/model"
	sqlitedriver "wordpilot/internal/shared/storage/driver/sqlite"
	"wordpilot/internal/shared/storage/repository"
)

type testEnv struct {
	mux   *http.ServeMux
	store *repository.Store
	llm   *llm.Mock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := repository.NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })

	now := time.Now().Truncate(time.Second)
	require.NoError(t, store.CreateProject(ctx, &model.Project{
		ID: "proj-1", UserID: "user-1", Title: "Gulf Coast History",
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.CreateSubscription(ctx, &model.Subscription{
		ID: "sub-1", UserID: "user-1", Plan: "pro", Active: true,
		TokensLimit: 1000000, CreatedAt: now, UpdatedAt: now,
	}))

	kvStore := kv.NewMock()
	bus := eventbus.NewMock()
	client := llm.NewMock()
	sessions := session.NewRepository(kvStore)
	planner := session.NewService(sessions, store, bus, nil)
	templates := template.NewStore(kvStore)
	tracker := usage.NewTracker(store)
	manager := conversation.NewManager(store, store, sessions, planner, templates,
		client, tracker, bus, nil, conversation.Options{})

	mux := http.NewServeMux()
	NewHandler(store, manager, sessions, nil).RegisterRoutes(mux)
	return &testEnv{mux: mux, store: store, llm: client}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func TestSendStreamsSSE(t *testing.T) {
	env := newTestEnv(t)
	env.llm.Enqueue(llm.ScriptedResponse{Text: "Let's talk about your book."})

	rec := env.do(http.MethodPost, "/api/v1/projects/proj-1/chat", `{"message": "hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: delta")
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, "Let's talk about")

	// 回合落库：user + assistant
	history, err := env.store.ListChatMessages(context.Background(), "proj-1", model.PhasePlanning)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSendValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/projects/proj-1/chat", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/projects/proj-missing/chat", `{"message": "hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryByPhase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	require.NoError(t, env.store.CreateChatMessage(ctx, &model.ChatMessage{
		ID: "msg-1", ProjectID: "proj-1", Phase: 2, Role: model.RoleUser,
		Content: "研究相关", CreatedAt: now,
	}))

	rec := env.do(http.MethodGet, "/api/v1/projects/proj-1/chat?phase=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
		Phase int `json:"phase"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 2, resp.Phase)

	// 省略 phase 时使用当前阶段（默认 1）
	rec = env.do(http.MethodGet, "/api/v1/projects/proj-1/chat", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Phase)
	assert.Equal(t, 0, resp.Count)
}

func TestPhaseSwitching(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPut, "/api/v1/projects/proj-1/phase", `{"phase": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess model.ResearchSession
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sess))
	assert.Equal(t, model.PhaseFactCheck, sess.CurrentPhase)

	rec = env.do(http.MethodPut, "/api/v1/projects/proj-1/phase", `{"phase": 9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 无预览时的各接口
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/v1/projects/proj-1/chat/preview", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/v1/projects/proj-1/chat/preview/approve", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/v1/projects/proj-1/chat/preview", "").Code)

	// 进入研究阶段并生成预览
	require.Equal(t, http.StatusOK, env.do(http.MethodPut, "/api/v1/projects/proj-1/phase", `{"phase": 2}`).Code)
	now := time.Now().Truncate(time.Second)
	require.NoError(t, env.store.CreateResearchItem(ctx, &model.ResearchItem{
		ID: "item-1", ProjectID: "proj-1", Section: "Wrecks", Name: "USS Narcissus",
		Data: map[string]string{}, CreatedAt: now, UpdatedAt: now,
	}))
	env.llm.Enqueue(llm.ScriptedResponse{Text: "KEY_FACTS:\nBuilt in 1865.\n\nSOURCES:\n[1] Naval records"})

	rec := env.do(http.MethodPost, "/api/v1/projects/proj-1/chat", `{"message": "Research: USS Narcissus"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"preview"`)

	rec = env.do(http.MethodGet, "/api/v1/projects/proj-1/chat/preview", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// 批准后数据落库
	rec = env.do(http.MethodPost, "/api/v1/projects/proj-1/chat/preview/approve", "")
	require.Equal(t, http.StatusOK, rec.Code)

	item, err := env.store.GetResearchItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "Built in 1865.", item.Data["key_facts"])
}
