// Package kv 键值存储抽象接口
//
// 提供 JSON 快照型数据的存取能力（研究会话快照、提示词模板集合），
// 当前由 Redis 实现，测试使用内存 Mock。
package kv

import (
	"context"
)

// ============================================================================
// Key 前缀
// ============================================================================

const (
	// KeyResearchSession 研究会话快照，后接 projectID
	KeyResearchSession = "wordpilot:research-session:"

	// KeyPromptTemplates 提示词模板集合（整体 JSON）
	KeyPromptTemplates = "wordpilot:prompt-templates"

	// KeySelectedTemplate 当前选中的模板 ID
	KeySelectedTemplate = "wordpilot:selected-template"
)

// ============================================================================
// 存储接口定义
// ============================================================================

// Store 键值存储接口
type Store interface {
	// Get 读取键值，键不存在时返回 ("", false, nil)
	Get(ctx context.Context, key string) (string, bool, error)

	// Set 整体覆盖写入
	Set(ctx context.Context, key, value string) error

	Close() error
}
