// Package model 定义核心数据模型
//
// template.go 包含提示词模板的数据模型定义。
package model

// DefaultTemplateID 内置默认模板的固定 ID
const DefaultTemplateID = "default"

// ============================================================================
// PromptTemplate - 提示词模板
// ============================================================================

// PromptTemplate 提示词模板
//
// 每个模板为三个研究阶段各提供一段系统提示词。
// 模板集合以 map[id]*PromptTemplate 的形式整体存入 KV 存储，
// 默认模板（ID = DefaultTemplateID）在加载时自愈补齐。
type PromptTemplate struct {
	// ID 模板标识（default 或 custom-<timestamp>）
	ID string `json:"id"`

	// Name 模板名称
	Name string `json:"name"`

	// Phase1Prompt 规划阶段提示词
	Phase1Prompt string `json:"phase1_prompt"`

	// Phase2Prompt 研究阶段提示词
	Phase2Prompt string `json:"phase2_prompt"`

	// Phase3Prompt 核查阶段提示词
	Phase3Prompt string `json:"phase3_prompt"`
}

// PromptForPhase 返回指定阶段的提示词，阶段号非法时返回空串
func (t *PromptTemplate) PromptForPhase(phase int) string {
	switch phase {
	case PhasePlanning:
		return t.Phase1Prompt
	case PhaseResearch:
		return t.Phase2Prompt
	case PhaseFactCheck:
		return t.Phase3Prompt
	default:
		return ""
	}
}

// IsDefault 是否为内置默认模板
func (t *PromptTemplate) IsDefault() bool {
	return t.ID == DefaultTemplateID
}
