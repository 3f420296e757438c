// Package repository BookSection 相关的存储操作
package repository

import (
	"context"
	"database/sql"
	"time"

	"wordpilot/internal/shared/model"
)

// CreateBookSection 创建章节
func (s *Store) CreateBookSection(ctx context.Context, section *model.BookSection) (err error) {
	defer s.observe(time.Now(), "insert", "book_sections", &err)

	query := s.rebind(`
		INSERT INTO book_sections (id, project_id, title, content, word_count, order_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	_, err = s.db.ExecContext(ctx, query,
		section.ID, section.ProjectID, section.Title, section.Content,
		section.WordCount, section.OrderNumber, section.CreatedAt, section.UpdatedAt)
	return err
}

// GetBookSection 获取章节
func (s *Store) GetBookSection(ctx context.Context, id string) (_ *model.BookSection, err error) {
	defer s.observe(time.Now(), "select", "book_sections", &err)

	query := s.rebind(`SELECT id, project_id, title, content, word_count, order_number, created_at, updated_at
			  FROM book_sections WHERE id = $1`)
	section := &model.BookSection{}
	err = s.db.QueryRowContext(ctx, query, id).Scan(
		&section.ID, &section.ProjectID, &section.Title, &section.Content,
		&section.WordCount, &section.OrderNumber, &section.CreatedAt, &section.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return section, nil
}

// ListBookSections 按章节序号列出项目的全部章节
func (s *Store) ListBookSections(ctx context.Context, projectID string) (_ []*model.BookSection, err error) {
	defer s.observe(time.Now(), "select", "book_sections", &err)

	query := s.rebind(`SELECT id, project_id, title, content, word_count, order_number, created_at, updated_at
			  FROM book_sections WHERE project_id = $1 ORDER BY order_number ASC, created_at ASC`)
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []*model.BookSection
	for rows.Next() {
		section := &model.BookSection{}
		if err := rows.Scan(
			&section.ID, &section.ProjectID, &section.Title, &section.Content,
			&section.WordCount, &section.OrderNumber, &section.CreatedAt, &section.UpdatedAt); err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}
	return sections, rows.Err()
}

// UpdateBookSection 更新章节（字数由调用方重算后传入）
func (s *Store) UpdateBookSection(ctx context.Context, section *model.BookSection) (err error) {
	defer s.observe(time.Now(), "update", "book_sections", &err)

	query := s.rebind(`UPDATE book_sections
			  SET title = $1, content = $2, word_count = $3, order_number = $4, updated_at = $5
			  WHERE id = $6`)
	_, err = s.db.ExecContext(ctx, query,
		section.Title, section.Content, section.WordCount, section.OrderNumber,
		time.Now(), section.ID)
	return err
}

// DeleteBookSection 删除章节
func (s *Store) DeleteBookSection(ctx context.Context, id string) (err error) {
	defer s.observe(time.Now(), "delete", "book_sections", &err)

	query := s.rebind(`DELETE FROM book_sections WHERE id = $1`)
	_, err = s.db.ExecContext(ctx, query, id)
	return err
}
