package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

const (
	testProjectID = "proj-1"
	testUserID    = "user-1"
)

type testEnv struct {
	store    *repository.Store
	bus      *eventbus.Mock
	llm      *llm.Mock
	sessions *session.Repository
	manager  *Manager
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
		ID: testProjectID, UserID: testUserID, Title: "Gulf Coast History",
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.CreateSubscription(ctx, &model.Subscription{
		ID: "sub-1", UserID: testUserID, Plan: "pro", Active: true,
		TokensLimit: 1000000, CreatedAt: now, UpdatedAt: now,
	}))

	kvStore := kv.NewMock()
	bus := eventbus.NewMock()
	client := llm.NewMock()
	sessions := session.NewRepository(kvStore)
	planner := session.NewService(sessions, store, bus, nil)
	templates := template.NewStore(kvStore)
	tracker := usage.NewTracker(store)

	manager := NewManager(store, store, sessions, planner, templates, client, tracker, bus, nil, Options{})

	return &testEnv{store: store, bus: bus, llm: client, sessions: sessions, manager: manager}
}

func (e *testEnv) setPhase(t *testing.T, phase int) {
	t.Helper()
	_, err := e.sessions.SetPhase(context.Background(), testProjectID, phase)
	require.NoError(t, err)
}

func (e *testEnv) createItem(t *testing.T, id, name, section string, data map[string]string) {
	t.Helper()
	if data == nil {
		data = map[string]string{}
	}
	now := time.Now().Truncate(time.Second)
	require.NoError(t, e.store.CreateResearchItem(context.Background(), &model.ResearchItem{
		ID: id, ProjectID: testProjectID, Section: section, Name: name,
		Data: data, CreatedAt: now, UpdatedAt: now,
	}))
}

func (e *testEnv) seedMessages(t *testing.T, phase, count int) {
	t.Helper()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < count; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		require.NoError(t, e.store.CreateChatMessage(context.Background(), &model.ChatMessage{
			ID:        fmt.Sprintf("msg-%02d", i+1),
			ProjectID: testProjectID,
			Phase:     phase,
			Role:      role,
			Content:   fmt.Sprintf("turn %d", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

// ============================================================================
// 聊天流程
// ============================================================================

func TestChatTurnPersistsBothMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.llm.Enqueue(llm.ScriptedResponse{Text: "Great topic. Let's narrow the angle first."})

	var streamed strings.Builder
	outcome, err := env.manager.Send(ctx, testProjectID, testUserID,
		"I want to write about shipwrecks", func(s string) { streamed.WriteString(s) })
	require.NoError(t, err)

	assert.Equal(t, OutcomeChat, outcome.Kind)
	require.NotNil(t, outcome.Message)
	assert.Equal(t, "Great topic. Let's narrow the angle first.", outcome.Message.Content)
	assert.Equal(t, "Great topic. Let's narrow the angle first.", streamed.String())

	history, err := env.store.ListChatMessages(ctx, testProjectID, model.PhasePlanning)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, "I want to write about shipwrecks", history[0].Content)
	assert.Equal(t, model.RoleAssistant, history[1].Role)

	// 系统提示词来自阶段模板，永不为空
	require.Len(t, env.llm.Requests, 1)
	assert.NotEmpty(t, env.llm.Requests[0].System)
}

func TestChatPlanningJSONSideEffect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	response := "Here is your plan:\n```json\n" + `{
  "bookPlan": {"topic": "Shipwrecks", "angle": "Gulf Coast", "audience": "general", "depth": "overview", "scope": "1800-1950"},
  "similarWorks": [],
  "researchPlan": {
    "sections": [
      {"title": "Famous Wrecks", "description": "Notable losses", "itemsToResearch": ["USS Narcissus", "SS Tarpon"]}
    ],
    "researchFields": ["key_facts", "sources"]
  }
}` + "\n```"
	env.llm.Enqueue(llm.ScriptedResponse{Text: response})

	outcome, err := env.manager.Send(ctx, testProjectID, testUserID, "Sounds good, make the plan", nil)
	require.NoError(t, err)
	assert.True(t, outcome.PlanApplied)

	sess, err := env.sessions.Load(ctx, testProjectID)
	require.NoError(t, err)
	require.NotNil(t, sess.BookPlan)
	assert.Equal(t, "Shipwrecks", sess.BookPlan.Topic)
	assert.Equal(t, model.PhaseStatusComplete, sess.Phases[model.PhasePlanning].Status)

	items, err := env.store.ListResearchItems(ctx, testProjectID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Len(t, env.bus.EventsForProject(testProjectID), 2)
}

func TestChatWithoutJSONAppliesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.llm.Enqueue(llm.ScriptedResponse{Text: "Tell me more about your target audience first."})

	outcome, err := env.manager.Send(ctx, testProjectID, testUserID, "I want a plan", nil)
	require.NoError(t, err)
	assert.False(t, outcome.PlanApplied)

	items, err := env.store.ListResearchItems(ctx, testProjectID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

// ============================================================================
// 滚动摘要
// ============================================================================

func TestRollingSummarization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedMessages(t, model.PhasePlanning, 6)

	env.llm.Enqueue(llm.ScriptedResponse{Text: "Decided on Gulf Coast shipwrecks with a general audience."})
	env.llm.Enqueue(llm.ScriptedResponse{Text: "Understood."})

	_, err := env.manager.Send(ctx, testProjectID, testUserID, "continue", nil)
	require.NoError(t, err)

	history, err := env.store.ListChatMessages(ctx, testProjectID, model.PhasePlanning)
	require.NoError(t, err)

	// 压缩后：摘要 + 保留的第 6 条，再加上本回合的 user/assistant 两条
	require.Len(t, history, 4)
	assert.True(t, history[0].IsSummary)
	assert.Equal(t, model.RoleAssistant, history[0].Role)
	assert.Equal(t, "[Previous conversation summary: Decided on Gulf Coast shipwrecks with a general audience.]",
		history[0].Content)
	assert.Equal(t, "turn 6", history[1].Content)
	assert.Equal(t, "continue", history[2].Content)

	// 补全请求携带的是压缩后的历史：摘要 + 保留消息 + 新用户消息
	require.Len(t, env.llm.Requests, 2)
	assert.Len(t, env.llm.Requests[1].Messages, 3)
}

func TestSummarizationBelowThresholdIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedMessages(t, model.PhasePlanning, 5)
	env.llm.Enqueue(llm.ScriptedResponse{Text: "Understood."})

	_, err := env.manager.Send(ctx, testProjectID, testUserID, "continue", nil)
	require.NoError(t, err)

	history, err := env.store.ListChatMessages(ctx, testProjectID, model.PhasePlanning)
	require.NoError(t, err)
	assert.Len(t, history, 7)
	for _, msg := range history {
		assert.False(t, msg.IsSummary)
	}
}

func TestSummarizationFailureKeepsFullHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedMessages(t, model.PhasePlanning, 6)

	env.llm.Enqueue(llm.ScriptedResponse{Err: &llm.APIError{StatusCode: 500, Message: "upstream error"}})
	env.llm.Enqueue(llm.ScriptedResponse{Text: "Understood."})

	_, err := env.manager.Send(ctx, testProjectID, testUserID, "continue", nil)
	require.NoError(t, err)

	history, err := env.store.ListChatMessages(ctx, testProjectID, model.PhasePlanning)
	require.NoError(t, err)
	assert.Len(t, history, 8)

	// 降级为全量历史参与补全
	require.Len(t, env.llm.Requests, 2)
	assert.Len(t, env.llm.Requests[1].Messages, 7)
}

// ============================================================================
// 研究命令流程
// ============================================================================

const researchOutput = `KEY_FACTS:
Built in 1865 as a Union tugboat.
Sank in 1866 off Egmont Key.

SOURCES:
[1] Naval History Vol 3, Journal of Maritime Studies, pages 10-22
[2] https://tampahistory.org/narcissus`

func TestResearchCommandProducesPreview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setPhase(t, model.PhaseResearch)
	env.createItem(t, "item-1", "USS Narcissus", "Famous Wrecks", nil)
	env.llm.Enqueue(llm.ScriptedResponse{Text: researchOutput})

	outcome, err := env.manager.Send(ctx, testProjectID, testUserID, "Research: USS Narcissus", nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomePreview, outcome.Kind)
	require.NotNil(t, outcome.Preview)
	assert.Equal(t, PreviewResearch, outcome.Preview.Kind)
	assert.Equal(t, "item-1", outcome.Preview.ItemID)
	assert.Contains(t, outcome.Preview.Fields, "key_facts")
	assert.Contains(t, outcome.Preview.Fields, "sources")

	// sources 字段体已子解析为结构化来源
	require.Len(t, outcome.Preview.Sources, 2)
	assert.Equal(t, model.SourceTypeArticle, outcome.Preview.Sources[0].Type)
	assert.Equal(t, model.SourceTypeWebsite, outcome.Preview.Sources[1].Type)

	// 批准前不落库
	item, err := env.store.GetResearchItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Empty(t, item.Data)

	// 命令不产生聊天轮次
	history, err := env.store.ListChatMessages(ctx, testProjectID, model.PhaseResearch)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestResearchCommandUnknownItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setPhase(t, model.PhaseResearch)

	outcome, err := env.manager.Send(ctx, testProjectID, testUserID, "Research: Atlantis", nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeInfo, outcome.Kind)
	require.NotNil(t, outcome.Message)
	assert.Contains(t, outcome.Message.Content, `"Atlantis"`)
	assert.Empty(t, env.llm.Requests)
	assert.Nil(t, env.manager.PendingPreview(testProjectID))
}

func TestResearchCommandUnparsableOutput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setPhase(t, model.PhaseResearch)
	env.createItem(t, "item-1", "USS Narcissus", "Famous Wrecks", nil)
	env.llm.Enqueue(llm.ScriptedResponse{Text: "I found some interesting facts about the tugboat."})

	outcome, err := env.manager.Send(ctx, testProjectID, testUserID, "Research: USS Narcissus", nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeInfo, outcome.Kind)
	assert.Contains(t, outcome.Message.Content, "trouble")
	assert.Nil(t, env.manager.PendingPreview(testProjectID))
}

// ============================================================================
// 预览审批门
// ============================================================================

func setupPreview(t *testing.T, env *testEnv) {
	t.Helper()
	env.setPhase(t, model.PhaseResearch)
	env.createItem(t, "item-1", "USS Narcissus", "Famous Wrecks", nil)
	env.llm.Enqueue(llm.ScriptedResponse{Text: researchOutput})
	outcome, err := env.manager.Send(context.Background(), testProjectID, testUserID, "Research: USS Narcissus", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomePreview, outcome.Kind)
}

func TestApprovePreviewPersistsData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	setupPreview(t, env)

	outcome, err := env.manager.ApprovePreview(ctx, testProjectID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInfo, outcome.Kind)
	assert.Contains(t, outcome.Message.Content, "USS Narcissus")

	item, err := env.store.GetResearchItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Contains(t, item.Data["key_facts"], "Union tugboat")

	// sources 落库为结构化来源列表的 JSON
	var sources []model.Source
	require.NoError(t, json.Unmarshal([]byte(item.Data["sources"]), &sources))
	require.Len(t, sources, 2)
	assert.Equal(t, 1, sources[0].Number)
	assert.Equal(t, model.SourceTypeArticle, sources[0].Type)
	assert.Contains(t, sources[0].Citation, "Naval History")
	assert.Equal(t, 2, sources[1].Number)
	assert.Equal(t, model.SourceTypeWebsite, sources[1].Type)
	assert.Equal(t, "https://tampahistory.org/narcissus", sources[1].URL)

	events := env.bus.EventsForProject(testProjectID)
	require.NotEmpty(t, events)
	assert.Equal(t, eventbus.ItemEventUpdated, events[len(events)-1].Type)

	assert.Nil(t, env.manager.PendingPreview(testProjectID))
}

func TestRegeneratePreviewReplacesWithoutPersisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	setupPreview(t, env)

	env.llm.Enqueue(llm.ScriptedResponse{Text: "KEY_FACTS:\nRevised facts.\n\nSOURCES:\n[1] Revised citation"})
	outcome, err := env.manager.RegeneratePreview(ctx, testProjectID, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomePreview, outcome.Kind)
	assert.Equal(t, "Revised facts.", outcome.Preview.Fields["key_facts"])

	// 两次调用使用同一提示词
	require.Len(t, env.llm.Requests, 2)
	assert.Equal(t, env.llm.Requests[0].Messages, env.llm.Requests[1].Messages)

	item, err := env.store.GetResearchItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Empty(t, item.Data)
}

func TestCancelPreviewDiscardsEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	setupPreview(t, env)

	require.NoError(t, env.manager.CancelPreview(testProjectID))
	assert.Nil(t, env.manager.PendingPreview(testProjectID))
	assert.ErrorIs(t, env.manager.CancelPreview(testProjectID), ErrNoPreview)

	item, err := env.store.GetResearchItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Empty(t, item.Data)
}

func TestPendingPreviewBlocksNewCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	setupPreview(t, env)

	_, err := env.manager.Send(ctx, testProjectID, testUserID, "Research: USS Narcissus", nil)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestApproveWithoutPreview(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.manager.ApprovePreview(context.Background(), testProjectID)
	assert.ErrorIs(t, err, ErrNoPreview)
}

// ============================================================================
// 编辑命令流程
// ============================================================================

func TestEditCommandSeedsCurrentData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setPhase(t, model.PhaseFactCheck)
	env.createItem(t, "item-1", "USS Narcissus", "Famous Wrecks", map[string]string{
		"key_facts": "Built in 1865.",
		"origin":    "Tampa",
	})
	env.llm.Enqueue(llm.ScriptedResponse{Text: "KEY_FACTS:\nBuilt in 1865.\n\nORIGIN:\nEast Boston\n\nSOURCES:\n[1] Shipyard records"})

	outcome, err := env.manager.Send(ctx, testProjectID, testUserID, "Fix the origin in USS Narcissus", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomePreview, outcome.Kind)
	assert.Equal(t, PreviewEdit, outcome.Preview.Kind)

	// 提示词附带条目当前数据
	require.Len(t, env.llm.Requests, 1)
	prompt := env.llm.Requests[0].Messages[0].Content
	assert.Contains(t, prompt, "ORIGIN:\nTampa")
	assert.Contains(t, prompt, "origin field")

	// 批准后整体替换
	_, err = env.manager.ApprovePreview(ctx, testProjectID)
	require.NoError(t, err)
	item, err := env.store.GetResearchItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "East Boston", item.Data["origin"])
	assert.Contains(t, item.Data, "sources")
}

func TestEditCommandOnlyInFactCheckPhase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setPhase(t, model.PhaseResearch)
	env.llm.Enqueue(llm.ScriptedResponse{Text: "Sure, tell me what to change."})

	// 研究阶段的 "Fix the ..." 不是命令，走聊天流程
	outcome, err := env.manager.Send(ctx, testProjectID, testUserID, "Fix the origin in USS Narcissus", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeChat, outcome.Kind)
}

// ============================================================================
// 错误分类与用量
// ============================================================================

func TestLLMErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect string
	}{
		{"rate limited", &llm.APIError{StatusCode: 429, Message: "slow down"}, "rate limiting"},
		{"bad credentials", &llm.APIError{StatusCode: 401, Message: "bad key"}, "credentials"},
		{"generic", &llm.APIError{StatusCode: 500, Message: "boom"}, "Failed to reach the AI service"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			env.llm.Enqueue(llm.ScriptedResponse{Err: tt.err})

			outcome, err := env.manager.Send(ctx, testProjectID, testUserID, "hello", nil)
			require.NoError(t, err)
			assert.Contains(t, outcome.Message.Content, tt.expect)

			// 错误提示作为本回合唯一的助手消息持久化
			history, err := env.store.ListChatMessages(ctx, testProjectID, model.PhasePlanning)
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, model.RoleAssistant, history[1].Role)
			assert.Equal(t, outcome.Message.Content, history[1].Content)
		})
	}
}

func TestUsageTrackedPerCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.llm.Enqueue(llm.ScriptedResponse{
		Text:  "Noted.",
		Usage: llm.Usage{InputTokens: 120, OutputTokens: 80},
	})

	outcome, err := env.manager.Send(ctx, testProjectID, testUserID, "hello", nil)
	require.NoError(t, err)
	require.NoError(t, outcome.UsageErr)

	sub, err := env.store.GetSubscriptionByUser(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), sub.TokensUsed)
}

func TestUsageLimitSurfacedButTextKept(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.AddTokensUsed(ctx, testUserID, 999990))
	env.llm.Enqueue(llm.ScriptedResponse{
		Text:  "A long answer that pushed usage over the line.",
		Usage: llm.Usage{InputTokens: 100, OutputTokens: 50},
	})

	outcome, err := env.manager.Send(ctx, testProjectID, testUserID, "hello", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, outcome.UsageErr, usage.ErrLimitExceeded)

	// 超限不回收已产出的文本
	history, err := env.store.ListChatMessages(ctx, testProjectID, model.PhasePlanning)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "A long answer that pushed usage over the line.", history[1].Content)
}

// ============================================================================
// 补全指标上报
// ============================================================================

type recordedCompletion struct {
	kind         string
	inputTokens  int
	outputTokens int
	failed       bool
}

type completionRecorderStub struct {
	calls []recordedCompletion
}

func (r *completionRecorderStub) RecordCompletion(kind string, inputTokens, outputTokens int, duration time.Duration, err error) {
	r.calls = append(r.calls, recordedCompletion{kind, inputTokens, outputTokens, err != nil})
}

func TestChatCompletionRecorded(t *testing.T) {
	env := newTestEnv(t)
	rec := &completionRecorderStub{}
	env.manager.SetMetricsRecorder(rec)
	env.llm.Enqueue(llm.ScriptedResponse{
		Text:  "Noted.",
		Usage: llm.Usage{InputTokens: 120, OutputTokens: 80},
	})

	_, err := env.manager.Send(context.Background(), testProjectID, testUserID, "hello", nil)
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, recordedCompletion{"chat", 120, 80, false}, rec.calls[0])
}

func TestFailedResearchCompletionRecorded(t *testing.T) {
	env := newTestEnv(t)
	rec := &completionRecorderStub{}
	env.manager.SetMetricsRecorder(rec)
	env.setPhase(t, model.PhaseResearch)
	env.createItem(t, "item-1", "USS Narcissus", "Famous Wrecks", nil)
	env.llm.Enqueue(llm.ScriptedResponse{Err: &llm.APIError{StatusCode: 429, Message: "slow down"}})

	_, err := env.manager.Send(context.Background(), testProjectID, testUserID, "Research: USS Narcissus", nil)
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "research", rec.calls[0].kind)
	assert.True(t, rec.calls[0].failed)
}

func TestSummarizationCompletionRecorded(t *testing.T) {
	env := newTestEnv(t)
	rec := &completionRecorderStub{}
	env.manager.SetMetricsRecorder(rec)
	env.seedMessages(t, model.PhasePlanning, 6)
	env.llm.Enqueue(llm.ScriptedResponse{
		Text:  "Decided on shipwrecks.",
		Usage: llm.Usage{InputTokens: 40, OutputTokens: 10},
	})
	env.llm.Enqueue(llm.ScriptedResponse{Text: "Understood."})

	_, err := env.manager.Send(context.Background(), testProjectID, testUserID, "continue", nil)
	require.NoError(t, err)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, "summarize", rec.calls[0].kind)
	assert.Equal(t, 40, rec.calls[0].inputTokens)
	assert.Equal(t, "chat", rec.calls[1].kind)
}

// ============================================================================
// 并发串行化
// ============================================================================

func TestConcurrentTurnRejected(t *testing.T) {
	env := newTestEnv(t)

	release, err := env.manager.acquire(testProjectID)
	require.NoError(t, err)

	_, err = env.manager.Send(context.Background(), testProjectID, testUserID, "hello", nil)
	assert.ErrorIs(t, err, ErrBusy)

	release()
	env.llm.Enqueue(llm.ScriptedResponse{Text: "Back to it."})
	_, err = env.manager.Send(context.Background(), testProjectID, testUserID, "hello", nil)
	assert.NoError(t, err)
}
