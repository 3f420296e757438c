// Package repository Project 相关的存储操作
package repository

import (
	"context"
	"database/sql"
	"time"

	"wordpilot/internal/shared/model"
)

// CreateProject 创建项目
func (s *Store) CreateProject(ctx context.Context, project *model.Project) (err error) {
	defer s.observe(time.Now(), "insert", "projects", &err)

	query := s.rebind(`
		INSERT INTO projects (id, user_id, title, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	_, err = s.db.ExecContext(ctx, query,
		project.ID, project.UserID, project.Title, project.Description,
		project.CreatedAt, project.UpdatedAt)
	return err
}

// GetProject 获取项目
func (s *Store) GetProject(ctx context.Context, id string) (_ *model.Project, err error) {
	defer s.observe(time.Now(), "select", "projects", &err)

	query := s.rebind(`SELECT id, user_id, title, description, created_at, updated_at FROM projects WHERE id = $1`)
	project := &model.Project{}
	err = s.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.UserID, &project.Title, &project.Description,
		&project.CreatedAt, &project.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjectsByUser 列出用户的全部项目
func (s *Store) ListProjectsByUser(ctx context.Context, userID string) (_ []*model.Project, err error) {
	defer s.observe(time.Now(), "select", "projects", &err)

	query := s.rebind(`SELECT id, user_id, title, description, created_at, updated_at
			  FROM projects WHERE user_id = $1 ORDER BY created_at DESC`)
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		project := &model.Project{}
		if err := rows.Scan(
			&project.ID, &project.UserID, &project.Title, &project.Description,
			&project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// UpdateProject 更新项目标题和描述
func (s *Store) UpdateProject(ctx context.Context, project *model.Project) (err error) {
	defer s.observe(time.Now(), "update", "projects", &err)

	query := s.rebind(`UPDATE projects SET title = $1, description = $2, updated_at = $3 WHERE id = $4`)
	_, err = s.db.ExecContext(ctx, query,
		project.Title, project.Description, time.Now(), project.ID)
	return err
}

// DeleteProject 删除项目及其全部从属记录
func (s *Store) DeleteProject(ctx context.Context, id string) (err error) {
	defer s.observe(time.Now(), "delete", "projects", &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM research_chat_messages WHERE project_id = $1`,
		`DELETE FROM research_items WHERE project_id = $1`,
		`DELETE FROM book_sections WHERE project_id = $1`,
		`DELETE FROM projects WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, s.rebind(q), id); err != nil {
			return err
		}
	}

	return tx.Commit()
}
