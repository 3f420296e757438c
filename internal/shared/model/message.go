// Package model 定义核心数据模型
//
// message.go 包含聊天消息的数据模型定义。
package model

import (
	"time"
)

// ============================================================================
// MessageRole - 消息角色
// ============================================================================

// MessageRole 消息角色
type MessageRole string

const (
	// RoleUser 用户消息
	RoleUser MessageRole = "user"

	// RoleAssistant 助手消息
	RoleAssistant MessageRole = "assistant"
)

// ============================================================================
// ChatMessage - 聊天消息
// ============================================================================

// ChatMessage 聊天消息
//
// 消息按 (ProjectID, Phase) 归属到某个阶段的对话，按 CreatedAt 排序。
// IsSummary 标记滚动摘要产生的合成消息。
type ChatMessage struct {
	// ID 唯一标识
	ID string `json:"id" db:"id"`

	// ProjectID 所属项目
	ProjectID string `json:"project_id" db:"project_id"`

	// Phase 所属阶段（1/2/3）
	Phase int `json:"phase" db:"phase"`

	// Role 角色（user/assistant）
	Role MessageRole `json:"role" db:"role"`

	// Content 消息内容
	Content string `json:"content" db:"content"`

	// IsSummary 是否为摘要消息
	IsSummary bool `json:"is_summary" db:"is_summary"`

	// CreatedAt 创建时间
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
