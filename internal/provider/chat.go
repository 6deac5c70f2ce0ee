package provider

import (
	"context"
	"strings"

	"abroadPlan/internal/config"
	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/fetch"
	"abroadPlan/internal/util"
)

const chatEndpoint = "/chat/completions"

// Message 对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Chat OpenAI兼容的 chat completions 客户端
type Chat struct {
	client      *fetch.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewChat 创建Chat客户端
func NewChat(client *fetch.Client, cfg *config.ProviderConfig) *Chat {
	return &Chat{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Client 底层调用器（管理接口读取密钥池与调度器状态）
func (c *Chat) Client() *fetch.Client { return c.client }

// Complete 发送 system + user 两条消息，返回第一个候选的文本
// 没有候选或内容为空时返回 MalformedResponse
func (c *Chat) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]Message, 0, 2)
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	body, err := util.MarshalJSON(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", apperrors.MalformedResponse("encode chat request", err)
	}

	resp, err := c.client.Call(ctx, fetch.Request{Endpoint: chatEndpoint, Body: body})
	if err != nil {
		return "", err
	}

	var out chatResponse
	if err := util.UnmarshalJSON(resp.Body, &out); err != nil {
		return "", apperrors.MalformedResponse("chat response is not valid JSON", err)
	}
	if len(out.Choices) == 0 {
		return "", apperrors.MalformedResponse("chat response has no choices", nil)
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", apperrors.MalformedResponse("chat response content is empty", nil)
	}
	return content, nil
}
