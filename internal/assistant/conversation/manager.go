// Package conversation 研究对话编排器
//
// 负责每个项目的对话回合：输入分类（research / edit 命令或普通聊天）、
// 研究与编辑流程的预览审批门、聊天流程的流式补全与滚动摘要、
// token 用量上报与错误分类。
//
// 并发模型：同一项目的回合串行化（进行中的回合使后续 Send 返回 ErrBusy），
// 不同项目之间互不阻塞。
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"wordpilot/internal/assistant/llm"
	"wordpilot/internal/assistant/parser"
	"wordpilot/internal/assistant/session"
	"wordpilot/internal/assistant/template"
	"wordpilot/internal/assistant/usage"
	"wordpilot/internal/shared/eventbus"
	"wordpilot/internal/shared/model"
	"wordpilot/internal/shared/storage"
	"wordpilot/pkg/logging"
)

var (
	// ErrBusy 同一项目已有回合进行中，或有待处理的预览阻塞了新命令
	ErrBusy = errors.New("a turn is already in flight for this project")

	// ErrNoPreview 项目没有待处理的预览
	ErrNoPreview = errors.New("no pending preview for this project")
)

// Options 编排器配置
type Options struct {
	// SummaryThreshold 触发滚动摘要的历史消息数
	SummaryThreshold int

	// SummaryBatch 每次摘要压缩的最旧消息数
	SummaryBatch int
}

func (o *Options) applyDefaults() {
	if o.SummaryThreshold == 0 {
		o.SummaryThreshold = 5
	}
	if o.SummaryBatch == 0 {
		o.SummaryBatch = 5
	}
}

// CompletionRecorder 补全调用指标上报接口
type CompletionRecorder interface {
	RecordCompletion(kind string, inputTokens, outputTokens int, duration time.Duration, err error)
}

// Manager 对话编排器
type Manager struct {
	messages  storage.ChatMessageStore
	items     storage.ResearchItemStore
	sessions  *session.Repository
	planner   *session.Service
	templates *template.Store
	llm       llm.Client

	// summaryLLM 摘要专用客户端（可配置更便宜的模型），nil 时用主客户端
	summaryLLM llm.Client

	usage   *usage.Tracker
	bus     eventbus.ItemEventBus
	logger  *logging.Logger
	metrics CompletionRecorder
	opts    Options

	mu       sync.Mutex
	inflight map[string]bool
	previews map[string]*Preview
}

// NewManager 创建对话编排器
func NewManager(
	messages storage.ChatMessageStore,
	items storage.ResearchItemStore,
	sessions *session.Repository,
	planner *session.Service,
	templates *template.Store,
	client llm.Client,
	tracker *usage.Tracker,
	bus eventbus.ItemEventBus,
	logger *logging.Logger,
	opts Options,
) *Manager {
	opts.applyDefaults()
	if logger == nil {
		logger = logging.Default("conversation")
	}
	return &Manager{
		messages:  messages,
		items:     items,
		sessions:  sessions,
		planner:   planner,
		templates: templates,
		llm:       client,
		usage:     tracker,
		bus:       bus,
		logger:    logger,
		opts:      opts,
	}
}

// SetSummaryClient 设置摘要专用补全客户端
func (m *Manager) SetSummaryClient(client llm.Client) {
	m.summaryLLM = client
}

// SetMetricsRecorder 设置补全调用指标上报
func (m *Manager) SetMetricsRecorder(rec CompletionRecorder) {
	m.metrics = rec
}

// recordCompletion 上报一次补全调用的指标，未配置时为空操作
func (m *Manager) recordCompletion(kind string, u llm.Usage, d time.Duration, err error) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordCompletion(kind, u.InputTokens, u.OutputTokens, d, err)
}

func (m *Manager) summaryClient() llm.Client {
	if m.summaryLLM != nil {
		return m.summaryLLM
	}
	return m.llm
}

// ============================================================================
// 回合结果
// ============================================================================

// OutcomeKind 回合结果类型
type OutcomeKind string

const (
	// OutcomeChat 聊天回复（助手消息已持久化）
	OutcomeChat OutcomeKind = "chat"

	// OutcomeInfo 流程提示消息（条目未找到、解析失败等）
	OutcomeInfo OutcomeKind = "info"

	// OutcomePreview 产生了待审批的预览
	OutcomePreview OutcomeKind = "preview"
)

// TurnOutcome 一次回合的结果
type TurnOutcome struct {
	// Kind 结果类型
	Kind OutcomeKind

	// Message 本回合产生的助手消息（OutcomeChat / OutcomeInfo）
	Message *model.ChatMessage

	// Preview 待审批预览（OutcomePreview）
	Preview *Preview

	// PlanApplied 规划 JSON 是否在本回合被提取并应用
	PlanApplied bool

	// UsageErr 用量上报错误（超限等），文本仍已产出并持久化
	UsageErr error
}

// ============================================================================
// 入口：Send
// ============================================================================

// Send 处理一次用户输入
//
// 分类发生在消息入库之前：研究阶段先尝试 research 命令，核查阶段先尝试
// edit 命令，其余走聊天流程。命令消息不作为聊天轮次持久化，
// 流程自身产生报告结果的助手消息。
func (m *Manager) Send(ctx context.Context, projectID, userID, input string, onDelta func(string)) (*TurnOutcome, error) {
	release, err := m.acquire(projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := m.sessions.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}

	switch sess.CurrentPhase {
	case model.PhaseResearch:
		if name := parser.ExtractItemName(input); name != "" {
			if m.hasPreview(projectID) {
				return nil, ErrBusy
			}
			return m.runResearch(ctx, sess, userID, name, onDelta)
		}
	case model.PhaseFactCheck:
		if cmd := parser.ExtractEditCommand(input); cmd != nil {
			if m.hasPreview(projectID) {
				return nil, ErrBusy
			}
			return m.runEdit(ctx, sess, userID, cmd, onDelta)
		}
	}

	return m.runChat(ctx, sess, userID, input, onDelta)
}

// acquire 占用项目的回合锁
func (m *Manager) acquire(projectID string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inflight == nil {
		m.inflight = make(map[string]bool)
	}
	if m.inflight[projectID] {
		return nil, ErrBusy
	}
	m.inflight[projectID] = true

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.inflight, projectID)
	}, nil
}

func (m *Manager) hasPreview(projectID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previews[projectID] != nil
}

// ============================================================================
// 辅助
// ============================================================================

// persistAssistantMessage 持久化一条助手消息
func (m *Manager) persistAssistantMessage(ctx context.Context, projectID string, phase int, content string, isSummary bool) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Phase:     phase,
		Role:      model.RoleAssistant,
		Content:   content,
		IsSummary: isSummary,
		CreatedAt: time.Now(),
	}
	if err := m.messages.CreateChatMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}
	return msg, nil
}

// trackUsage 上报用量；超限等错误返回给调用方，不中断已完成的产出
func (m *Manager) trackUsage(ctx context.Context, userID string, u llm.Usage) error {
	if m.usage == nil || u.Total() == 0 {
		return nil
	}
	if err := m.usage.Track(ctx, userID, u.Total()); err != nil {
		m.logger.WithContext(ctx).WithError(err).Warn("Token usage tracking failed", "user_id", userID)
		return err
	}
	return nil
}

// classifyLLMError 将补全服务错误转换为面向用户的提示文本
func classifyLLMError(err error) string {
	if errors.Is(err, usage.ErrLimitExceeded) {
		return "You have reached your token limit for this billing period. Please upgrade your plan or wait for the next period."
	}

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return "The AI service is rate limiting requests right now. Please wait a moment and try again."
		case 401:
			return "The AI service rejected the configured credentials. Please check the API key configuration."
		}
	}
	return fmt.Sprintf("Failed to reach the AI service: %v", err)
}
