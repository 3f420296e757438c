// 聊天流程：流式补全、滚动摘要、规划 JSON 副作用
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wordpilot/internal/assistant/llm"
	"wordpilot/internal/assistant/phase"
	"wordpilot/internal/shared/model"
)

// summaryPrompt 滚动摘要的指令前缀
const summaryPrompt = "Summarize this conversation concisely in 2-3 sentences, focusing on decisions made, actions taken, and research completed:\n\n"

// runChat 处理普通聊天输入
//
// 顺序固定：先按需摘要压缩历史，再持久化用户消息，然后带全量历史发起
// 流式补全。助手消息仅在补全成功后持久化；失败时持久化分类后的错误提示，
// 作为本回合唯一的助手消息。
func (m *Manager) runChat(ctx context.Context, sess *model.ResearchSession, userID, input string, onDelta func(string)) (*TurnOutcome, error) {
	log := m.logger.WithContext(ctx).WithProjectID(sess.ProjectID).WithPhase(sess.CurrentPhase)

	history := m.summarizeIfNeeded(ctx, sess.ProjectID, sess.CurrentPhase, userID)

	userMsg := &model.ChatMessage{
		ID:        uuid.NewString(),
		ProjectID: sess.ProjectID,
		Phase:     sess.CurrentPhase,
		Role:      model.RoleUser,
		Content:   input,
		CreatedAt: time.Now(),
	}
	if err := m.messages.CreateChatMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	systemPrompt := m.templates.PhasePrompt(ctx, sess.CurrentPhase)

	llmMessages := make([]llm.Message, 0, len(history)+1)
	for _, msg := range history {
		llmMessages = append(llmMessages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	llmMessages = append(llmMessages, llm.Message{Role: model.RoleUser, Content: input})

	start := time.Now()
	result, err := m.llm.Stream(ctx, llm.Request{
		System:   systemPrompt,
		Messages: llmMessages,
		OnDelta:  onDelta,
	})
	if err != nil {
		m.logger.CompletionLog("chat", sess.ProjectID, sess.CurrentPhase, 0, 0, time.Since(start), err)
		m.recordCompletion("chat", llm.Usage{}, time.Since(start), err)
		msg, perr := m.persistAssistantMessage(ctx, sess.ProjectID, sess.CurrentPhase, classifyLLMError(err), false)
		if perr != nil {
			return nil, perr
		}
		return &TurnOutcome{Kind: OutcomeChat, Message: msg}, nil
	}
	m.logger.CompletionLog("chat", sess.ProjectID, sess.CurrentPhase,
		result.Usage.InputTokens, result.Usage.OutputTokens, time.Since(start), nil)
	m.recordCompletion("chat", result.Usage, time.Since(start), nil)

	assistantMsg, err := m.persistAssistantMessage(ctx, sess.ProjectID, sess.CurrentPhase, result.Text, false)
	if err != nil {
		return nil, err
	}

	usageErr := m.trackUsage(ctx, userID, result.Usage)

	outcome := &TurnOutcome{Kind: OutcomeChat, Message: assistantMsg, UsageErr: usageErr}

	// 规划阶段的回复可能携带结构化产物
	if sess.CurrentPhase == model.PhasePlanning {
		if plan := phase.ParsePhase1JSON(result.Text); plan != nil {
			if err := m.planner.ApplyPhase1(ctx, sess.ProjectID, plan); err != nil {
				log.WithError(err).Warn("Failed to apply planning result")
			} else {
				outcome.PlanApplied = true
			}
		}
	}
	return outcome, nil
}

// ============================================================================
// 滚动摘要
// ============================================================================

// summarizeIfNeeded 历史超过阈值时压缩最旧的一批消息
//
// 压缩产物是一条 isSummary 助手消息，created_at 取被压缩批次中最旧一条的
// 时间以保持排序。任何一步失败都降级为返回完整历史，绝不丢消息。
func (m *Manager) summarizeIfNeeded(ctx context.Context, projectID string, phaseNum int, userID string) []*model.ChatMessage {
	log := m.logger.WithContext(ctx).WithProjectID(projectID).WithPhase(phaseNum)

	history, err := m.messages.ListChatMessages(ctx, projectID, phaseNum)
	if err != nil {
		log.WithError(err).Warn("Failed to load chat history")
		return nil
	}
	if len(history) <= m.opts.SummaryThreshold {
		return history
	}

	batchSize := m.opts.SummaryBatch
	if batchSize > len(history) {
		batchSize = len(history)
	}
	batch := history[:batchSize]

	var transcript strings.Builder
	for _, msg := range batch {
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Content)
	}

	start := time.Now()
	result, err := m.summaryClient().Complete(ctx, llm.Request{
		Messages: []llm.Message{{Role: model.RoleUser, Content: summaryPrompt + transcript.String()}},
	})
	if err != nil {
		m.recordCompletion("summarize", llm.Usage{}, time.Since(start), err)
		log.WithError(err).Warn("Summarization failed, keeping full history")
		return history
	}
	m.recordCompletion("summarize", result.Usage, time.Since(start), nil)
	m.trackUsage(ctx, userID, result.Usage)

	summary := &model.ChatMessage{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Phase:     phaseNum,
		Role:      model.RoleAssistant,
		Content:   fmt.Sprintf("[Previous conversation summary: %s]", strings.TrimSpace(result.Text)),
		IsSummary: true,
		CreatedAt: batch[0].CreatedAt,
	}
	if err := m.messages.CreateChatMessage(ctx, summary); err != nil {
		log.WithError(err).Warn("Failed to persist summary message, keeping full history")
		return history
	}

	ids := make([]string, len(batch))
	for i, msg := range batch {
		ids[i] = msg.ID
	}
	if err := m.messages.DeleteChatMessages(ctx, ids); err != nil {
		log.WithError(err).Warn("Failed to prune summarized messages")
	}

	compacted, err := m.messages.ListChatMessages(ctx, projectID, phaseNum)
	if err != nil {
		log.WithError(err).Warn("Failed to reload chat history after summarization")
		return history
	}
	log.Info("Compacted chat history", "before", len(history), "after", len(compacted))
	return compacted
}
