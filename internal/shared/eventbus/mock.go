// Package eventbus 内存 Mock 实现（测试用）
package eventbus

import (
	"context"
	"sync"
)

// Mock 内存事件总线，实现 ItemEventBus 接口
//
// 发布的事件同步投递到所有活跃订阅者，并保留在 Events 中供断言。
type Mock struct {
	mu          sync.Mutex
	Events      []*ItemEvent
	subscribers map[string][]chan *ItemEvent
}

var _ ItemEventBus = (*Mock)(nil)

// NewMock 创建内存事件总线
func NewMock() *Mock {
	return &Mock{subscribers: make(map[string][]chan *ItemEvent)}
}

func (m *Mock) PublishItemEvent(ctx context.Context, projectID string, event *ItemEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Events = append(m.Events, event)
	for _, ch := range m.subscribers[projectID] {
		select {
		case ch <- event:
		default: // 订阅者缓冲满时丢弃，展示用途可接受
		}
	}
	return nil
}

func (m *Mock) SubscribeItemEvents(ctx context.Context, projectID string) (<-chan *ItemEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan *ItemEvent, 100)
	m.subscribers[projectID] = append(m.subscribers[projectID], ch)
	return ch, nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, chs := range m.subscribers {
		for _, ch := range chs {
			close(ch)
		}
	}
	m.subscribers = make(map[string][]chan *ItemEvent)
	return nil
}

// EventsForProject 返回某项目已发布的事件（测试断言用）
func (m *Mock) EventsForProject(projectID string) []*ItemEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var events []*ItemEvent
	for _, e := range m.Events {
		if e.ProjectID == projectID {
			events = append(events, e)
		}
	}
	return events
}
