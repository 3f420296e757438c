// Package template 提示词模板存储
//
// 模板集合整体序列化为 JSON 存入 KV 存储。默认模板在加载与保存时自愈补齐：
// 持久化数据损坏或缺失 default 条目时合并入内置默认值，不覆盖用户自定义模板。
package template

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wordpilot/internal/assistant/phase"
	"wordpilot/internal/shared/kv"
	"wordpilot/internal/shared/model"
)

// Store 提示词模板存储
type Store struct {
	kv kv.Store
}

// NewStore 创建模板存储
func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// defaultTemplate 内置默认模板
func defaultTemplate() *model.PromptTemplate {
	return &model.PromptTemplate{
		ID:           model.DefaultTemplateID,
		Name:         "Default Template",
		Phase1Prompt: phase.BuiltinPhase1Prompt,
		Phase2Prompt: phase.BuiltinPhase2Prompt,
		Phase3Prompt: phase.BuiltinPhase3Prompt,
	}
}

// ensureDefault 补齐 default 条目（不覆盖已有的用户修改）
func ensureDefault(templates map[string]*model.PromptTemplate) map[string]*model.PromptTemplate {
	if templates == nil {
		templates = make(map[string]*model.PromptTemplate)
	}
	if _, ok := templates[model.DefaultTemplateID]; !ok {
		templates[model.DefaultTemplateID] = defaultTemplate()
	}
	return templates
}

// LoadTemplates 加载全部模板，保证 default 条目存在
//
// 持久化数据缺失或损坏时回退为仅含默认模板的集合并重新持久化。
func (s *Store) LoadTemplates(ctx context.Context) (map[string]*model.PromptTemplate, error) {
	raw, ok, err := s.kv.Get(ctx, kv.KeyPromptTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	if !ok {
		templates := ensureDefault(nil)
		if err := s.SaveTemplates(ctx, templates); err != nil {
			return nil, err
		}
		return templates, nil
	}

	var templates map[string]*model.PromptTemplate
	if err := json.Unmarshal([]byte(raw), &templates); err != nil {
		// 损坏的持久化数据：自愈为默认集合
		templates = ensureDefault(nil)
		if err := s.SaveTemplates(ctx, templates); err != nil {
			return nil, err
		}
		return templates, nil
	}

	healed := false
	if _, ok := templates[model.DefaultTemplateID]; !ok {
		healed = true
	}
	templates = ensureDefault(templates)
	for id, tpl := range templates {
		if tpl.ID == "" {
			tpl.ID = id
		}
	}
	if healed {
		if err := s.SaveTemplates(ctx, templates); err != nil {
			return nil, err
		}
	}
	return templates, nil
}

// SaveTemplates 整体保存模板集合，保证 default 条目存在
func (s *Store) SaveTemplates(ctx context.Context, templates map[string]*model.PromptTemplate) error {
	templates = ensureDefault(templates)
	raw, err := json.Marshal(templates)
	if err != nil {
		return fmt.Errorf("failed to marshal templates: %w", err)
	}
	if err := s.kv.Set(ctx, kv.KeyPromptTemplates, string(raw)); err != nil {
		return fmt.Errorf("failed to save templates: %w", err)
	}
	return nil
}

// SelectedTemplateID 获取当前选中的模板 ID，未设置时返回 default
func (s *Store) SelectedTemplateID(ctx context.Context) (string, error) {
	id, ok, err := s.kv.Get(ctx, kv.KeySelectedTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to get selected template: %w", err)
	}
	if !ok || id == "" {
		return model.DefaultTemplateID, nil
	}
	return id, nil
}

// SetSelectedTemplateID 设置当前选中的模板 ID
func (s *Store) SetSelectedTemplateID(ctx context.Context, id string) error {
	if err := s.kv.Set(ctx, kv.KeySelectedTemplate, id); err != nil {
		return fmt.Errorf("failed to set selected template: %w", err)
	}
	return nil
}

// PhasePromptFrom 按回退链取某阶段的提示词：选中模板 → default 模板 → 内置常量
//
// 纯函数，永不返回空串。
func PhasePromptFrom(phaseNum int, templates map[string]*model.PromptTemplate, selectedID string) string {
	tpl := templates[selectedID]
	if tpl == nil {
		tpl = templates[model.DefaultTemplateID]
	}
	if tpl != nil {
		if prompt := tpl.PromptForPhase(phaseNum); prompt != "" {
			return prompt
		}
	}
	return phase.BuiltinPrompt(phaseNum)
}

// PhasePrompt 加载模板集合和选中 ID 后按回退链取提示词
//
// 加载失败时直接回退到内置常量，保证调用方总能拿到可用的系统提示词。
func (s *Store) PhasePrompt(ctx context.Context, phaseNum int) string {
	templates, err := s.LoadTemplates(ctx)
	if err != nil {
		return phase.BuiltinPrompt(phaseNum)
	}
	selectedID, err := s.SelectedTemplateID(ctx)
	if err != nil {
		selectedID = model.DefaultTemplateID
	}
	return PhasePromptFrom(phaseNum, templates, selectedID)
}

// AddCustomTemplate 新增自定义模板并持久化，返回生成的模板 ID
func (s *Store) AddCustomTemplate(ctx context.Context, name, phase1, phase2, phase3 string) (string, error) {
	templates, err := s.LoadTemplates(ctx)
	if err != nil {
		return "", err
	}

	id := fmt.Sprintf("custom-%d", time.Now().UnixMilli())
	templates[id] = &model.PromptTemplate{
		ID:           id,
		Name:         name,
		Phase1Prompt: phase1,
		Phase2Prompt: phase2,
		Phase3Prompt: phase3,
	}

	if err := s.SaveTemplates(ctx, templates); err != nil {
		return "", err
	}
	return id, nil
}

// TemplateUpdate 模板部分更新，nil 字段保持不变
type TemplateUpdate struct {
	Name         *string
	Phase1Prompt *string
	Phase2Prompt *string
	Phase3Prompt *string
}

// UpdateCustomTemplate 更新已有模板；ID 不存在时为空操作（从不经由更新创建）
func (s *Store) UpdateCustomTemplate(ctx context.Context, id string, update TemplateUpdate) error {
	templates, err := s.LoadTemplates(ctx)
	if err != nil {
		return err
	}

	tpl, ok := templates[id]
	if !ok {
		return nil
	}

	if update.Name != nil {
		tpl.Name = *update.Name
	}
	if update.Phase1Prompt != nil {
		tpl.Phase1Prompt = *update.Phase1Prompt
	}
	if update.Phase2Prompt != nil {
		tpl.Phase2Prompt = *update.Phase2Prompt
	}
	if update.Phase3Prompt != nil {
		tpl.Phase3Prompt = *update.Phase3Prompt
	}

	return s.SaveTemplates(ctx, templates)
}
