// Package usage token 用量核算
//
// 每次完成的模型调用（聊天、研究、编辑、摘要）都向 Tracker 报告
// 输入+输出 token 数。超出配额返回独立的 ErrLimitExceeded：
// 该错误中止当前动作，但已产出的文本仍可展示。
package usage

import (
	"context"
	"errors"
	"fmt"

	"wordpilot/internal/shared/storage"
)

var (
	// ErrNoSubscription 用户没有订阅记录
	ErrNoSubscription = errors.New("no subscription for user")

	// ErrInactive 订阅未生效
	ErrInactive = errors.New("subscription is not active")

	// ErrLimitExceeded token 配额已超出
	ErrLimitExceeded = errors.New("token limit exceeded")
)

// Tracker token 用量追踪器
type Tracker struct {
	subs storage.SubscriptionStore
}

// NewTracker 创建用量追踪器
func NewTracker(subs storage.SubscriptionStore) *Tracker {
	return &Tracker{subs: subs}
}

// Track 记录一次模型调用的 token 用量
//
// 用量先入账再校验：调用已经发生，消耗必须计入。
// 入账后超出配额时返回 ErrLimitExceeded（携带用量详情）。
func (t *Tracker) Track(ctx context.Context, userID string, tokens int) error {
	sub, err := t.subs.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil {
		return ErrNoSubscription
	}
	if !sub.Active {
		return ErrInactive
	}

	if err := t.subs.AddTokensUsed(ctx, userID, int64(tokens)); err != nil {
		return fmt.Errorf("failed to record token usage: %w", err)
	}

	used := sub.TokensUsed + int64(tokens)
	if sub.TokensLimit > 0 && used > sub.TokensLimit {
		return fmt.Errorf("%w: used %d of %d", ErrLimitExceeded, used, sub.TokensLimit)
	}
	return nil
}
