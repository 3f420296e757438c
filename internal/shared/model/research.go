// Package model 定义核心数据模型
//
// research.go 包含研究条目相关的数据模型定义：
//   - ResearchItem：研究条目
//   - Source / SourceType：来源引用
package model

import (
	"time"
)

// ============================================================================
// ResearchItem - 研究条目
// ============================================================================

// ResearchItem 研究条目
//
// 研究条目由研究计划批量创建（每个 itemsToResearch 对应一条，Data 为空），
// 在研究阶段由助手逐条填充。(ProjectID, Name) 用于按名称查找，
// 名称匹配不区分大小写。
type ResearchItem struct {
	// ID 唯一标识
	ID string `json:"id" db:"id"`

	// ProjectID 所属项目
	ProjectID string `json:"project_id" db:"project_id"`

	// Section 所属研究计划章节标题
	Section string `json:"section" db:"section"`

	// Name 条目名称
	Name string `json:"name" db:"name"`

	// Data 研究数据，键为字段名（小写下划线），值为字段内容
	Data map[string]string `json:"data" db:"data"`

	// CreatedAt 创建时间
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ============================================================================
// Source - 来源引用
// ============================================================================

// SourceType 来源类型
type SourceType string

const (
	SourceTypeBook    SourceType = "book"
	SourceTypeWebsite SourceType = "website"
	SourceTypeArticle SourceType = "article"
	SourceTypeOther   SourceType = "other"
)

// Source 来源引用（从模型输出的 SOURCES 字段解析）
type Source struct {
	// Number 编号（[n] 中的 n，逐行回退解析时按行号递增）
	Number int `json:"number"`

	// Citation 引文文本
	Citation string `json:"citation"`

	// Type 来源类型（按关键词推断）
	Type SourceType `json:"type"`

	// URL 引文中提取到的第一个 URL
	URL string `json:"url,omitempty"`
}
