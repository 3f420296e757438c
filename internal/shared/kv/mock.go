// Package kv 内存 Mock 实现（测试用）
package kv

import (
	"context"
	"sync"
)

// Mock 内存键值存储，实现 Store 接口
type Mock struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ Store = (*Mock)(nil)

// NewMock 创建内存键值存储
func NewMock() *Mock {
	return &Mock{data: make(map[string]string)}
}

func (m *Mock) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *Mock) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Mock) Close() error {
	return nil
}
