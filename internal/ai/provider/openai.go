package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAIChatClient 兼容 OpenAI / DeepSeek / Qwen 的聊天补全接口
// （/v1/chat/completions）。单次调用，不在内部重试——退避由上层负责。
type OpenAIChatClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	ExtraHeaders map[string]string
}

func (c *OpenAIChatClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// 规范化 BaseURL，避免配置里带了完整 /chat/completions 导致路径重复
	url := strings.TrimRight(c.BaseURL, "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions") + "/chat/completions"

	messages := []map[string]string{}
	if payload.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": payload.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": payload.User})

	body := map[string]any{"model": c.Model, "messages": messages, "temperature": 0.3}
	if payload.ExpectJSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	b, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}
	for k, v := range c.ExtraHeaders {
		req.Header.Set(k, v)
	}

	httpc := &http.Client{Timeout: timeout}
	resp, err := httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return r.Choices[0].Message.Content, nil
}

// OpenAIModelProvider 实现 ModelProvider。
type OpenAIModelProvider struct {
	id      string
	enabled bool
	cost    float64
	client  *OpenAIChatClient
}

func NewOpenAIModelProvider(id string, enabled bool, cost float64, client *OpenAIChatClient) *OpenAIModelProvider {
	return &OpenAIModelProvider{id: id, enabled: enabled, cost: cost, client: client}
}

func (p *OpenAIModelProvider) ID() string              { return p.id }
func (p *OpenAIModelProvider) Enabled() bool           { return p.enabled }
func (p *OpenAIModelProvider) CostPerCallUSD() float64 { return p.cost }
func (p *OpenAIModelProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	return p.client.Call(ctx, payload)
}
