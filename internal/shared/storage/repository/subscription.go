// Package repository Subscription 相关的存储操作
package repository

import (
	"context"
	"database/sql"
	"time"

	"wordpilot/internal/shared/model"
)

// CreateSubscription 创建订阅
func (s *Store) CreateSubscription(ctx context.Context, sub *model.Subscription) (err error) {
	defer s.observe(time.Now(), "insert", "subscriptions", &err)

	query := s.rebind(`
		INSERT INTO subscriptions (id, user_id, plan, active, tokens_used, tokens_limit, period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	_, err = s.db.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.Plan, sub.Active, sub.TokensUsed, sub.TokensLimit,
		sub.PeriodEnd, sub.CreatedAt, sub.UpdatedAt)
	return err
}

// GetSubscriptionByUser 获取用户订阅，不存在时返回 (nil, nil)
func (s *Store) GetSubscriptionByUser(ctx context.Context, userID string) (_ *model.Subscription, err error) {
	defer s.observe(time.Now(), "select", "subscriptions", &err)

	query := s.rebind(`SELECT id, user_id, plan, active, tokens_used, tokens_limit, period_end, created_at, updated_at
			  FROM subscriptions WHERE user_id = $1`)
	sub := &model.Subscription{}
	err = s.db.QueryRowContext(ctx, query, userID).Scan(
		&sub.ID, &sub.UserID, &sub.Plan, &sub.Active, &sub.TokensUsed, &sub.TokensLimit,
		&sub.PeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// AddTokensUsed 累加已用 token 数
func (s *Store) AddTokensUsed(ctx context.Context, userID string, tokens int64) (err error) {
	defer s.observe(time.Now(), "update", "subscriptions", &err)

	query := s.rebind(`UPDATE subscriptions
			  SET tokens_used = tokens_used + $1, updated_at = ` + s.dialect.CurrentTimestamp() + `
			  WHERE user_id = $2`)
	_, err = s.db.ExecContext(ctx, query, tokens, userID)
	return err
}
