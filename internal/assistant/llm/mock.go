// Package llm 脚本化 Mock 实现（测试用）
package llm

import (
	"context"
	"errors"
	"sync"
)

// ScriptedResponse Mock 的单次应答脚本
type ScriptedResponse struct {
	Text  string
	Usage Usage
	Err   error
}

// Mock 脚本化补全客户端
//
// 按入队顺序消费应答脚本，并记录收到的请求供断言。
// 脚本耗尽后返回错误。
type Mock struct {
	mu        sync.Mutex
	responses []ScriptedResponse
	Requests  []Request
}

var _ Client = (*Mock)(nil)

// NewMock 创建脚本化客户端
func NewMock(responses ...ScriptedResponse) *Mock {
	return &Mock{responses: responses}
}

// Enqueue 追加应答脚本
func (m *Mock) Enqueue(resp ScriptedResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

func (m *Mock) next(req Request) (ScriptedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if len(m.responses) == 0 {
		return ScriptedResponse{}, errors.New("llm mock: no scripted response left")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

// Stream 按脚本应答，文本分两段经 OnDelta 回调以模拟流式增量
func (m *Mock) Stream(ctx context.Context, req Request) (*Result, error) {
	resp, err := m.next(req)
	if err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}

	if req.OnDelta != nil && resp.Text != "" {
		half := len(resp.Text) / 2
		if half > 0 {
			req.OnDelta(resp.Text[:half])
			req.OnDelta(resp.Text[half:])
		} else {
			req.OnDelta(resp.Text)
		}
	}

	return &Result{Text: resp.Text, Usage: resp.Usage}, nil
}

// Complete 按脚本应答
func (m *Mock) Complete(ctx context.Context, req Request) (*Result, error) {
	resp, err := m.next(req)
	if err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Result{Text: resp.Text, Usage: resp.Usage}, nil
}
