// Package model 定义核心数据模型
//
// subscription.go 包含订阅与 token 用量的数据模型定义。
package model

import (
	"time"
)

// ============================================================================
// Subscription - 订阅
// ============================================================================

// Subscription 用户订阅
//
// 每个用户一条记录，承载 token 用量核算。支付与开通流程不在本服务内，
// 这里只读写 Active/TokensUsed/TokensLimit。
type Subscription struct {
	// ID 唯一标识
	ID string `json:"id" db:"id"`

	// UserID 所属用户
	UserID string `json:"user_id" db:"user_id"`

	// Plan 订阅计划名称
	Plan string `json:"plan" db:"plan"`

	// Active 是否生效
	Active bool `json:"active" db:"active"`

	// TokensUsed 已用 token 数
	TokensUsed int64 `json:"tokens_used" db:"tokens_used"`

	// TokensLimit token 配额
	TokensLimit int64 `json:"tokens_limit" db:"tokens_limit"`

	// PeriodEnd 当前计费周期结束时间
	PeriodEnd *time.Time `json:"period_end,omitempty" db:"period_end"`

	// CreatedAt 创建时间
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Remaining 剩余可用 token 数（不为负）
func (s *Subscription) Remaining() int64 {
	if s.TokensUsed >= s.TokensLimit {
		return 0
	}
	return s.TokensLimit - s.TokensUsed
}
