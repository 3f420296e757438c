// Package repository ResearchItem 相关的存储操作
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"wordpilot/internal/shared/model"
)

// CreateResearchItem 创建研究条目
func (s *Store) CreateResearchItem(ctx context.Context, item *model.ResearchItem) (err error) {
	defer s.observe(time.Now(), "insert", "research_items", &err)

	dataJSON, _ := json.Marshal(item.Data)

	query := s.rebind(`
		INSERT INTO research_items (id, project_id, section, name, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	_, err = s.db.ExecContext(ctx, query,
		item.ID, item.ProjectID, item.Section, item.Name, dataJSON,
		item.CreatedAt, item.UpdatedAt)
	return err
}

// CreateResearchItems 批量创建研究条目（单事务，研究计划应用时使用）
func (s *Store) CreateResearchItems(ctx context.Context, items []*model.ResearchItem) (err error) {
	if len(items) == 0 {
		return nil
	}
	defer s.observe(time.Now(), "insert", "research_items", &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := s.rebind(`
		INSERT INTO research_items (id, project_id, section, name, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	for _, item := range items {
		dataJSON, _ := json.Marshal(item.Data)
		if _, err := tx.ExecContext(ctx, query,
			item.ID, item.ProjectID, item.Section, item.Name, dataJSON,
			item.CreatedAt, item.UpdatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetResearchItem 获取研究条目
func (s *Store) GetResearchItem(ctx context.Context, id string) (_ *model.ResearchItem, err error) {
	defer s.observe(time.Now(), "select", "research_items", &err)

	query := s.rebind(`SELECT id, project_id, section, name, data, created_at, updated_at
			  FROM research_items WHERE id = $1`)
	return scanResearchItem(s.db.QueryRowContext(ctx, query, id))
}

// FindResearchItemByName 按名称查找研究条目（不区分大小写），不存在时返回 (nil, nil)
func (s *Store) FindResearchItemByName(ctx context.Context, projectID, name string) (_ *model.ResearchItem, err error) {
	defer s.observe(time.Now(), "select", "research_items", &err)

	query := s.rebind(`SELECT id, project_id, section, name, data, created_at, updated_at
			  FROM research_items WHERE project_id = $1 AND LOWER(name) = LOWER($2)`)
	return scanResearchItem(s.db.QueryRowContext(ctx, query, projectID, name))
}

// ListResearchItems 列出项目的全部研究条目
func (s *Store) ListResearchItems(ctx context.Context, projectID string) (_ []*model.ResearchItem, err error) {
	defer s.observe(time.Now(), "select", "research_items", &err)

	query := s.rebind(`SELECT id, project_id, section, name, data, created_at, updated_at
			  FROM research_items WHERE project_id = $1 ORDER BY created_at ASC, id ASC`)
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*model.ResearchItem
	for rows.Next() {
		item, err := scanResearchItemRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateResearchItemData 整体替换研究条目的数据字段
func (s *Store) UpdateResearchItemData(ctx context.Context, id string, data map[string]string) (err error) {
	defer s.observe(time.Now(), "update", "research_items", &err)

	dataJSON, _ := json.Marshal(data)

	query := s.rebind(`UPDATE research_items SET data = $1, updated_at = $2 WHERE id = $3`)
	_, err = s.db.ExecContext(ctx, query, dataJSON, time.Now(), id)
	return err
}

// DeleteResearchItem 删除研究条目
func (s *Store) DeleteResearchItem(ctx context.Context, id string) (err error) {
	defer s.observe(time.Now(), "delete", "research_items", &err)

	query := s.rebind(`DELETE FROM research_items WHERE id = $1`)
	_, err = s.db.ExecContext(ctx, query, id)
	return err
}

// scanResearchItem 从单行查询扫描 ResearchItem
func scanResearchItem(row *sql.Row) (*model.ResearchItem, error) {
	item := &model.ResearchItem{}
	var dataJSON []byte
	err := row.Scan(
		&item.ID, &item.ProjectID, &item.Section, &item.Name, &dataJSON,
		&item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	unmarshalItemData(item, dataJSON)
	return item, nil
}

// scanResearchItemRow 从多行查询扫描 ResearchItem
func scanResearchItemRow(rows *sql.Rows) (*model.ResearchItem, error) {
	item := &model.ResearchItem{}
	var dataJSON []byte
	if err := rows.Scan(
		&item.ID, &item.ProjectID, &item.Section, &item.Name, &dataJSON,
		&item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	unmarshalItemData(item, dataJSON)
	return item, nil
}

func unmarshalItemData(item *model.ResearchItem, dataJSON []byte) {
	item.Data = map[string]string{}
	if len(dataJSON) > 0 && string(dataJSON) != "null" {
		json.Unmarshal(dataJSON, &item.Data)
	}
}
