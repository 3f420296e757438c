// Package repository ChatMessage 相关的存储操作
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wordpilot/internal/shared/model"
	"wordpilot/internal/shared/storage/dbutil"
)

// CreateChatMessage 创建聊天消息
func (s *Store) CreateChatMessage(ctx context.Context, msg *model.ChatMessage) (err error) {
	defer s.observe(time.Now(), "insert", "research_chat_messages", &err)

	query := s.rebind(`
		INSERT INTO research_chat_messages (id, project_id, phase, role, content, is_summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	_, err = s.db.ExecContext(ctx, query,
		msg.ID, msg.ProjectID, msg.Phase, msg.Role, msg.Content, msg.IsSummary, msg.CreatedAt)
	return err
}

// ListChatMessages 按创建时间列出某阶段的全部消息
func (s *Store) ListChatMessages(ctx context.Context, projectID string, phase int) (_ []*model.ChatMessage, err error) {
	defer s.observe(time.Now(), "select", "research_chat_messages", &err)

	query := s.rebind(`SELECT id, project_id, phase, role, content, is_summary, created_at
			  FROM research_chat_messages
			  WHERE project_id = $1 AND phase = $2
			  ORDER BY created_at ASC, id ASC`)
	rows, err := s.db.QueryContext(ctx, query, projectID, phase)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*model.ChatMessage
	for rows.Next() {
		msg := &model.ChatMessage{}
		if err := rows.Scan(
			&msg.ID, &msg.ProjectID, &msg.Phase, &msg.Role, &msg.Content,
			&msg.IsSummary, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// DeleteChatMessages 批量删除消息（滚动摘要使用）
func (s *Store) DeleteChatMessages(ctx context.Context, ids []string) (err error) {
	if len(ids) == 0 {
		return nil
	}
	defer s.observe(time.Now(), "delete", "research_chat_messages", &err)

	placeholders := dbutil.PlaceholderList(s.dialect, 1, len(ids))
	query := s.rebind(fmt.Sprintf(`DELETE FROM research_chat_messages WHERE id IN (%s)`,
		strings.TrimSpace(placeholders)))

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}
