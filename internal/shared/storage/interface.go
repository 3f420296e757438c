// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：repository/（database/sql + dbutil.Dialect）
//   - 初始化时通过依赖注入传入实现
//
// 注意：KV 存储与事件总线在独立包中：
//   - kv/：键值存储接口（会话快照、模板集合）
//   - eventbus/：研究条目变更事件总线
package storage

import (
	"context"

	"wordpilot/internal/shared/model"
)

// ProjectStore 项目存储接口
type ProjectStore interface {
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjectsByUser(ctx context.Context, userID string) ([]*model.Project, error)
	UpdateProject(ctx context.Context, project *model.Project) error
	DeleteProject(ctx context.Context, id string) error
}

// BookSectionStore 书籍章节存储接口
type BookSectionStore interface {
	CreateBookSection(ctx context.Context, section *model.BookSection) error
	GetBookSection(ctx context.Context, id string) (*model.BookSection, error)
	ListBookSections(ctx context.Context, projectID string) ([]*model.BookSection, error)
	UpdateBookSection(ctx context.Context, section *model.BookSection) error
	DeleteBookSection(ctx context.Context, id string) error
}

// ChatMessageStore 聊天消息存储接口
type ChatMessageStore interface {
	CreateChatMessage(ctx context.Context, msg *model.ChatMessage) error
	ListChatMessages(ctx context.Context, projectID string, phase int) ([]*model.ChatMessage, error)
	DeleteChatMessages(ctx context.Context, ids []string) error
}

// ResearchItemStore 研究条目存储接口
type ResearchItemStore interface {
	CreateResearchItem(ctx context.Context, item *model.ResearchItem) error
	CreateResearchItems(ctx context.Context, items []*model.ResearchItem) error
	GetResearchItem(ctx context.Context, id string) (*model.ResearchItem, error)
	// FindResearchItemByName 按名称查找（不区分大小写），不存在时返回 (nil, nil)
	FindResearchItemByName(ctx context.Context, projectID, name string) (*model.ResearchItem, error)
	ListResearchItems(ctx context.Context, projectID string) ([]*model.ResearchItem, error)
	UpdateResearchItemData(ctx context.Context, id string, data map[string]string) error
	DeleteResearchItem(ctx context.Context, id string) error
}

// SubscriptionStore 订阅存储接口
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, sub *model.Subscription) error
	GetSubscriptionByUser(ctx context.Context, userID string) (*model.Subscription, error)
	// AddTokensUsed 累加已用 token 数
	AddTokensUsed(ctx context.Context, userID string, tokens int64) error
}

// PersistentStore 持久化存储组合接口（由 repository.Store 实现）
type PersistentStore interface {
	ProjectStore
	BookSectionStore
	ChatMessageStore
	ResearchItemStore
	SubscriptionStore

	Close() error
}
