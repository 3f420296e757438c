// Package eventbus 事件总线抽象接口
//
// 提供研究条目变更事件的发布/订阅能力，当前由 Redis Streams 实现。
// 事件仅用于前端展示刷新，不承载业务一致性。
package eventbus

import (
	"context"
	"time"
)

// ============================================================================
// Key 前缀与常量
// ============================================================================

const (
	// KeyItemEvents 研究条目事件流前缀，后接 projectID
	KeyItemEvents = "wordpilot:item-events:"

	// MaxStreamLength 事件流最大长度（近似裁剪）
	MaxStreamLength = 1000
)

// ============================================================================
// 事件类型
// ============================================================================

// ItemEventType 研究条目事件类型
type ItemEventType string

const (
	// ItemEventCreated 条目创建
	ItemEventCreated ItemEventType = "item_created"

	// ItemEventUpdated 条目数据更新
	ItemEventUpdated ItemEventType = "item_updated"

	// ItemEventDeleted 条目删除
	ItemEventDeleted ItemEventType = "item_deleted"
)

// ItemEvent 研究条目变更事件
type ItemEvent struct {
	// ID 流内事件 ID（发布后由实现填充）
	ID string `json:"id,omitempty"`

	// Type 事件类型
	Type ItemEventType `json:"type"`

	// ProjectID 所属项目
	ProjectID string `json:"project_id"`

	// ItemID 条目 ID
	ItemID string `json:"item_id"`

	// ItemName 条目名称
	ItemName string `json:"item_name,omitempty"`

	// Timestamp 事件时间
	Timestamp time.Time `json:"timestamp"`
}

// ============================================================================
// 事件总线接口定义
// ============================================================================

// ItemEventBus 研究条目事件总线接口
type ItemEventBus interface {
	PublishItemEvent(ctx context.Context, projectID string, event *ItemEvent) error
	SubscribeItemEvents(ctx context.Context, projectID string) (<-chan *ItemEvent, error)
	Close() error
}
