// Package llm OpenAI 兼容实现
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"wordpilot/internal/shared/model"
)

// OpenAIConfig OpenAI 客户端配置
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // 空值使用官方地址
	Model          string
	MaxTokens      int
	RequestTimeout time.Duration
}

// OpenAIClient 基于官方 openai-go SDK 的补全客户端
type OpenAIClient struct {
	client    openai.Client
	model     string
	maxTokens int
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient 创建 OpenAI 补全客户端
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}

	return &OpenAIClient{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// buildParams 组装 chat-completions 请求参数
func (c *OpenAIClient) buildParams(req Request) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleAssistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: msgs,
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}
	return params
}

// Stream 流式补全
func (c *OpenAIClient) Stream(ctx context.Context, req Request) (*Result, error) {
	params := c.buildParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	result := &Result{}
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta.Content
			if delta != "" {
				result.Text += delta
				if req.OnDelta != nil {
					req.OnDelta(delta)
				}
			}
		}
		// 用量在末尾的无 choices 块中返回
		if chunk.Usage.TotalTokens > 0 {
			result.Usage = Usage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, wrapAPIError(err)
	}
	return result, nil
}

// Complete 非流式补全
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Result, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices")
	}

	return &Result{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

// wrapAPIError 将 SDK 错误转换为带状态码的 APIError
func wrapAPIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		msg := apierr.Message
		if msg == "" {
			msg = apierr.Error()
		}
		return &APIError{StatusCode: apierr.StatusCode, Message: msg}
	}
	return err
}
