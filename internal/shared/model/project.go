// Package model 定义核心数据模型
//
// project.go 包含写作项目相关的数据模型定义：
//   - Project：写作项目（一本书对应一个项目）
//   - BookSection：书籍章节（写作内容的承载单元）
package model

import (
	"regexp"
	"strings"
	"time"
)

// ============================================================================
// Project - 写作项目
// ============================================================================

// Project 写作项目
//
// 一个项目对应一本在写的书。项目是所有其他记录（章节、研究条目、
// 聊天消息、研究会话）的归属范围。
type Project struct {
	// ID 唯一标识
	ID string `json:"id" db:"id"`

	// UserID 所属用户
	UserID string `json:"user_id" db:"user_id"`

	// Title 书名
	Title string `json:"title" db:"title"`

	// Description 项目描述
	Description string `json:"description,omitempty" db:"description"`

	// CreatedAt 创建时间
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ============================================================================
// BookSection - 书籍章节
// ============================================================================

// BookSection 书籍章节
//
// 章节按 OrderNumber 排序，Content 为富文本 HTML，
// WordCount 在保存时根据 Content 重新计算。
type BookSection struct {
	// ID 唯一标识
	ID string `json:"id" db:"id"`

	// ProjectID 所属项目
	ProjectID string `json:"project_id" db:"project_id"`

	// Title 章节标题
	Title string `json:"title" db:"title"`

	// Content 章节内容（HTML）
	Content string `json:"content,omitempty" db:"content"`

	// WordCount 字数（按空白分词统计，HTML 标签不计入）
	WordCount int `json:"word_count" db:"word_count"`

	// OrderNumber 章节序号
	OrderNumber int `json:"order_number" db:"order_number"`

	// CreatedAt 创建时间
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// CountWords 统计内容字数：先去除 HTML 标签，再按空白分词
func CountWords(content string) int {
	text := htmlTagRe.ReplaceAllString(content, " ")
	return len(strings.Fields(text))
}

// RecalculateWordCount 根据 Content 重新计算 WordCount
func (s *BookSection) RecalculateWordCount() {
	s.WordCount = CountWords(s.Content)
}
