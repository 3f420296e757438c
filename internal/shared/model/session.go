// Package model 定义核心数据模型
//
// session.go 包含研究会话相关的数据模型定义：
//   - ResearchSession：研究会话（每个项目一份）
//   - BookPlan：书籍规划
//   - ResearchPlan：研究计划
//   - PhaseState / PhaseStatus：阶段状态机
package model

import (
	"time"
)

// ============================================================================
// 研究阶段
// ============================================================================

// 研究会话按三个阶段推进。阶段切换不做转移校验，
// 用户可以自由跳转到任意阶段。
const (
	// PhasePlanning 规划阶段：与助手对话形成书籍规划和研究计划
	PhasePlanning = 1

	// PhaseResearch 研究阶段：逐条填充研究条目
	PhaseResearch = 2

	// PhaseFactCheck 核查阶段：修订已有研究条目
	PhaseFactCheck = 3
)

// PhaseStatus 阶段状态
type PhaseStatus string

const (
	// PhaseStatusNotStarted 未开始
	PhaseStatusNotStarted PhaseStatus = "not_started"

	// PhaseStatusInProgress 进行中
	PhaseStatusInProgress PhaseStatus = "in_progress"

	// PhaseStatusComplete 已完成
	PhaseStatusComplete PhaseStatus = "complete"
)

// PhaseState 单个阶段的进展
type PhaseState struct {
	// Status 阶段状态
	Status PhaseStatus `json:"status"`

	// CompletedAt 完成时间（仅 complete 时有值）
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ============================================================================
// BookPlan / ResearchPlan - 规划阶段的产物
// ============================================================================

// BookPlan 书籍规划（规划阶段由模型输出的 JSON 解析而来）
type BookPlan struct {
	// Topic 主题
	Topic string `json:"topic"`

	// Angle 切入角度
	Angle string `json:"angle"`

	// Audience 目标读者
	Audience string `json:"audience"`

	// Depth 内容深度
	Depth string `json:"depth"`

	// Scope 覆盖范围
	Scope string `json:"scope"`
}

// SimilarWork 同类作品对比
type SimilarWork struct {
	// Title 书名
	Title string `json:"title"`

	// Author 作者
	Author string `json:"author"`

	// HowItsDifferent 与本书的差异
	HowItsDifferent string `json:"howItsDifferent"`
}

// PlanSection 研究计划中的一个章节
type PlanSection struct {
	// Title 章节标题
	Title string `json:"title"`

	// Description 章节说明
	Description string `json:"description"`

	// ItemsToResearch 待研究条目名称列表
	ItemsToResearch []string `json:"itemsToResearch"`
}

// ResearchPlan 研究计划
type ResearchPlan struct {
	// Sections 章节列表
	Sections []PlanSection `json:"sections"`

	// ResearchFields 每个研究条目应填充的字段名列表
	ResearchFields []string `json:"researchFields"`
}

// ============================================================================
// ResearchSession - 研究会话
// ============================================================================

// ResearchSession 研究会话
//
// 每个项目一份，保存为 JSON 快照（整体覆盖写入，从不删除）。
// 首次加载不存在时按默认值创建：phase 1，三个阶段均 not_started。
type ResearchSession struct {
	// ProjectID 所属项目
	ProjectID string `json:"project_id"`

	// CurrentPhase 当前阶段（1/2/3）
	CurrentPhase int `json:"current_phase"`

	// BookPlan 书籍规划（规划阶段完成前为 nil）
	BookPlan *BookPlan `json:"book_plan,omitempty"`

	// SimilarWorks 同类作品列表
	SimilarWorks []SimilarWork `json:"similar_works,omitempty"`

	// ResearchPlan 研究计划（规划阶段完成前为 nil）
	ResearchPlan *ResearchPlan `json:"research_plan,omitempty"`

	// Phases 阶段进展，键为阶段号
	Phases map[int]PhaseState `json:"phases"`

	// UpdatedAt 最后更新时间
	UpdatedAt time.Time `json:"updated_at"`
}

// NewResearchSession 创建默认会话
func NewResearchSession(projectID string) *ResearchSession {
	return &ResearchSession{
		ProjectID:    projectID,
		CurrentPhase: PhasePlanning,
		Phases: map[int]PhaseState{
			PhasePlanning:  {Status: PhaseStatusNotStarted},
			PhaseResearch:  {Status: PhaseStatusNotStarted},
			PhaseFactCheck: {Status: PhaseStatusNotStarted},
		},
		UpdatedAt: time.Now(),
	}
}

// MarkPhaseComplete 标记阶段完成并记录时间
func (s *ResearchSession) MarkPhaseComplete(phase int) {
	now := time.Now()
	s.Phases[phase] = PhaseState{Status: PhaseStatusComplete, CompletedAt: &now}
}

// HasPlan 判断规划阶段产物是否齐备
func (s *ResearchSession) HasPlan() bool {
	return s.BookPlan != nil && s.ResearchPlan != nil
}
