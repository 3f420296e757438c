// 研究与编辑命令流程：生成字段数据并经预览审批门落库
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"wordpilot/internal/assistant/llm"
	"wordpilot/internal/assistant/parser"
	"wordpilot/internal/shared/eventbus"
	"wordpilot/internal/shared/model"
)

// PreviewKind 预览来源流程
type PreviewKind string

const (
	// PreviewResearch 研究命令产生的预览
	PreviewResearch PreviewKind = "research"

	// PreviewEdit 编辑命令产生的预览
	PreviewEdit PreviewKind = "edit"
)

// Preview 待审批的字段数据预览
//
// 在批准之前不写入任何 ResearchItem。Regenerate 用相同提示词重新生成并
// 替换预览内容，Cancel 直接丢弃。
type Preview struct {
	Kind     PreviewKind       `json:"kind"`
	ItemID   string            `json:"item_id"`
	ItemName string            `json:"item_name"`
	Fields   map[string]string `json:"fields"`
	Sources  []model.Source    `json:"sources,omitempty"`

	// 重新生成所需的原始请求
	systemPrompt string
	userPrompt   string
	userID       string
	phase        int
}

// ============================================================================
// 研究流程
// ============================================================================

// runResearch 处理 "Research: X" 命令
func (m *Manager) runResearch(ctx context.Context, sess *model.ResearchSession, userID, itemName string, onDelta func(string)) (*TurnOutcome, error) {
	log := m.logger.WithContext(ctx).WithProjectID(sess.ProjectID)

	item, err := m.items.FindResearchItemByName(ctx, sess.ProjectID, itemName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up research item: %w", err)
	}
	if item == nil {
		msg, err := m.persistAssistantMessage(ctx, sess.ProjectID, sess.CurrentPhase,
			fmt.Sprintf("I couldn't find %q in your research plan. Would you like me to add it as a new research item first?", itemName), false)
		if err != nil {
			return nil, err
		}
		return &TurnOutcome{Kind: OutcomeInfo, Message: msg}, nil
	}

	systemPrompt := m.templates.PhasePrompt(ctx, sess.CurrentPhase)
	userPrompt := buildResearchPrompt(item, researchFieldsFor(sess))

	log.Info("Running research command", "item_name", item.Name)
	return m.generatePreview(ctx, &Preview{
		Kind:         PreviewResearch,
		ItemID:       item.ID,
		ItemName:     item.Name,
		systemPrompt: systemPrompt,
		userPrompt:   userPrompt,
		userID:       userID,
		phase:        sess.CurrentPhase,
	}, sess.ProjectID, onDelta)
}

// runEdit 处理 "Fix the X in Y" / "Edit: Y" 命令
func (m *Manager) runEdit(ctx context.Context, sess *model.ResearchSession, userID string, cmd *parser.EditCommand, onDelta func(string)) (*TurnOutcome, error) {
	log := m.logger.WithContext(ctx).WithProjectID(sess.ProjectID)

	item, err := m.items.FindResearchItemByName(ctx, sess.ProjectID, cmd.ItemName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up research item: %w", err)
	}
	if item == nil {
		msg, err := m.persistAssistantMessage(ctx, sess.ProjectID, sess.CurrentPhase,
			fmt.Sprintf("I couldn't find %q among the researched items, so there is nothing to edit yet.", cmd.ItemName), false)
		if err != nil {
			return nil, err
		}
		return &TurnOutcome{Kind: OutcomeInfo, Message: msg}, nil
	}

	systemPrompt := m.templates.PhasePrompt(ctx, sess.CurrentPhase)
	userPrompt := buildEditPrompt(item, cmd.FieldName)

	log.Info("Running edit command", "item_name", item.Name, "field", cmd.FieldName)
	return m.generatePreview(ctx, &Preview{
		Kind:         PreviewEdit,
		ItemID:       item.ID,
		ItemName:     item.Name,
		systemPrompt: systemPrompt,
		userPrompt:   userPrompt,
		userID:       userID,
		phase:        sess.CurrentPhase,
	}, sess.ProjectID, onDelta)
}

// generatePreview 调用模型并把解析结果挂为待审批预览
func (m *Manager) generatePreview(ctx context.Context, pv *Preview, projectID string, onDelta func(string)) (*TurnOutcome, error) {
	start := time.Now()
	result, err := m.llm.Stream(ctx, llm.Request{
		System:   pv.systemPrompt,
		Messages: []llm.Message{{Role: model.RoleUser, Content: pv.userPrompt}},
		OnDelta:  onDelta,
	})
	if err != nil {
		m.recordCompletion(string(pv.Kind), llm.Usage{}, time.Since(start), err)
		msg, perr := m.persistAssistantMessage(ctx, projectID, pv.phase, classifyLLMError(err), false)
		if perr != nil {
			return nil, perr
		}
		return &TurnOutcome{Kind: OutcomeInfo, Message: msg}, nil
	}
	m.recordCompletion(string(pv.Kind), result.Usage, time.Since(start), nil)

	usageErr := m.trackUsage(ctx, pv.userID, result.Usage)

	out := parser.ParseResearchOutput(result.Text)
	if out == nil {
		msg, perr := m.persistAssistantMessage(ctx, projectID, pv.phase,
			"I had trouble structuring that output into research fields. Please try the command again.", false)
		if perr != nil {
			return nil, perr
		}
		return &TurnOutcome{Kind: OutcomeInfo, Message: msg, UsageErr: usageErr}, nil
	}
	pv.Fields = out.Fields
	pv.Sources = out.Sources

	m.mu.Lock()
	if m.previews == nil {
		m.previews = make(map[string]*Preview)
	}
	m.previews[projectID] = pv
	m.mu.Unlock()

	return &TurnOutcome{Kind: OutcomePreview, Preview: pv, UsageErr: usageErr}, nil
}

// ============================================================================
// 预览审批门
// ============================================================================

// PendingPreview 返回项目的待审批预览
func (m *Manager) PendingPreview(projectID string) *Preview {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previews[projectID]
}

// takePreview 取出并移除预览
func (m *Manager) takePreview(projectID string) *Preview {
	m.mu.Lock()
	defer m.mu.Unlock()
	pv := m.previews[projectID]
	delete(m.previews, projectID)
	return pv
}

// ApprovePreview 批准预览：整体替换条目数据并发布更新事件
//
// sources 字段以结构化来源列表的 JSON 形式落库，其余字段保留原文。
func (m *Manager) ApprovePreview(ctx context.Context, projectID string) (*TurnOutcome, error) {
	pv := m.takePreview(projectID)
	if pv == nil {
		return nil, ErrNoPreview
	}

	if err := m.items.UpdateResearchItemData(ctx, pv.ItemID, approvedData(pv)); err != nil {
		// 数据未落库，预览保留以便重试
		m.mu.Lock()
		if m.previews == nil {
			m.previews = make(map[string]*Preview)
		}
		m.previews[projectID] = pv
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to save research data: %w", err)
	}

	if m.bus != nil {
		if err := m.bus.PublishItemEvent(ctx, projectID, &eventbus.ItemEvent{
			Type:      eventbus.ItemEventUpdated,
			ProjectID: projectID,
			ItemID:    pv.ItemID,
			ItemName:  pv.ItemName,
			Timestamp: time.Now(),
		}); err != nil {
			m.logger.WithContext(ctx).WithError(err).Warn("Failed to publish item event", "item_id", pv.ItemID)
		}
	}

	content := fmt.Sprintf("Research saved to %q.", pv.ItemName)
	if pv.Kind == PreviewEdit {
		content = fmt.Sprintf("Updated %q.", pv.ItemName)
	}
	msg, err := m.persistAssistantMessage(ctx, projectID, pv.phase, content, false)
	if err != nil {
		return nil, err
	}
	return &TurnOutcome{Kind: OutcomeInfo, Message: msg}, nil
}

// RegeneratePreview 用相同提示词重新生成，替换预览内容
func (m *Manager) RegeneratePreview(ctx context.Context, projectID string, onDelta func(string)) (*TurnOutcome, error) {
	m.mu.Lock()
	pv := m.previews[projectID]
	m.mu.Unlock()
	if pv == nil {
		return nil, ErrNoPreview
	}

	release, err := m.acquire(projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	next := *pv
	next.Fields = nil
	next.Sources = nil
	return m.generatePreview(ctx, &next, projectID, onDelta)
}

// approvedData 组装落库数据：字段原文 + sources 的结构化 JSON
func approvedData(pv *Preview) map[string]string {
	if len(pv.Sources) == 0 {
		return pv.Fields
	}

	data := make(map[string]string, len(pv.Fields))
	for k, v := range pv.Fields {
		data[k] = v
	}
	if encoded, err := json.Marshal(pv.Sources); err == nil {
		data[parser.SourcesField] = string(encoded)
	}
	return data
}

// CancelPreview 丢弃预览，不落库任何数据
func (m *Manager) CancelPreview(projectID string) error {
	if m.takePreview(projectID) == nil {
		return ErrNoPreview
	}
	return nil
}

// ============================================================================
// 提示词构造
// ============================================================================

var defaultResearchFields = []string{"key_facts", "sources"}

// researchFieldsFor 取会话研究计划配置的字段，缺省回退到内置字段
func researchFieldsFor(sess *model.ResearchSession) []string {
	if sess.ResearchPlan != nil && len(sess.ResearchPlan.ResearchFields) > 0 {
		return sess.ResearchPlan.ResearchFields
	}
	return defaultResearchFields
}

// buildResearchPrompt 组装研究命令的确定性提示词
func buildResearchPrompt(item *model.ResearchItem, fields []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the following item for the book: %q", item.Name)
	if item.Section != "" {
		fmt.Fprintf(&b, " (section: %s)", item.Section)
	}
	b.WriteString(".\n\n")
	b.WriteString("Output one labeled block per field. Each block starts with the field name in UPPER_SNAKE_CASE followed by a colon on its own line, then the content.\n\nFields to cover:\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "%s:\n", strings.ToUpper(f))
	}
	b.WriteString("\nEnd with a SOURCES: block listing numbered citations in [1], [2] format with full citation details.")
	return b.String()
}

// buildEditPrompt 组装编辑命令的提示词，附带条目当前数据
func buildEditPrompt(item *model.ResearchItem, fieldName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here is the current research data for %q:\n\n", item.Name)

	keys := make([]string, 0, len(item.Data))
	for k := range item.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s:\n%s\n\n", strings.ToUpper(k), item.Data[k])
	}

	if fieldName != "" {
		fmt.Fprintf(&b, "The user wants to fix the %s field. ", fieldName)
	} else {
		b.WriteString("The user wants to revise this item. ")
	}
	b.WriteString("Provide a complete replacement covering ALL fields, including the ones that stay unchanged, using the same UPPER_SNAKE_CASE labeled block format. End with a SOURCES: block listing numbered citations in [1], [2] format.")
	return b.String()
}
