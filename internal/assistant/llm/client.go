// Package llm 流式文本补全服务抽象
//
// 对上层暴露与具体供应商无关的 Client 接口，当前由 OpenAI 兼容的
// chat-completions 接口实现，测试使用脚本化 Mock。
package llm

import (
	"context"
	"fmt"

	"wordpilot/internal/shared/model"
)

// Message 对话消息
type Message struct {
	Role    model.MessageRole
	Content string
}

// Request 补全请求
type Request struct {
	// System 系统提示词
	System string

	// Messages 对话历史（含本轮用户消息）
	Messages []Message

	// OnDelta 流式增量回调（仅 Stream 使用；按到达顺序调用，内容只增不减）
	OnDelta func(delta string)
}

// Usage token 用量
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total 输入输出 token 总数
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Result 补全结果
type Result struct {
	// Text 完整回复文本
	Text string

	// Usage token 用量（供应商未返回时为零值）
	Usage Usage
}

// Client 补全服务接口
type Client interface {
	// Stream 流式补全：增量经 OnDelta 回调，返回完整文本与用量
	Stream(ctx context.Context, req Request) (*Result, error)

	// Complete 非流式补全（摘要等短调用使用）
	Complete(ctx context.Context, req Request) (*Result, error)
}

// APIError 补全服务返回的 HTTP 层错误
//
// StatusCode 供上层分类：429 限流、401 凭证无效、其余按通用失败处理。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm api error (status %d): %s", e.StatusCode, e.Message)
}
