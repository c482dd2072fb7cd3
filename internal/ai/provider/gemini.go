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

// GeminiClient 直连 Google generateContent REST 端点，API Key 走请求头。
// 不依赖官方 SDK：REST 路径即唯一路径，行为可完全由我们的重试层约束。
type GeminiClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	ExtraHeaders map[string]string
}

func (c *GeminiClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(c.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", base, model)

	body := map[string]any{
		"contents": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": payload.User}},
			},
		},
	}
	if payload.System != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]string{{"text": payload.System}},
		}
	}
	if payload.ExpectJSON {
		body["generationConfig"] = map[string]any{"responseMimeType": "application/json"}
	}
	b, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)
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
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidates")
	}
	var out strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	return out.String(), nil
}

// GeminiModelProvider 实现 ModelProvider。
type GeminiModelProvider struct {
	id      string
	enabled bool
	cost    float64
	client  *GeminiClient
}

func NewGeminiModelProvider(id string, enabled bool, cost float64, client *GeminiClient) *GeminiModelProvider {
	return &GeminiModelProvider{id: id, enabled: enabled, cost: cost, client: client}
}

func (p *GeminiModelProvider) ID() string              { return p.id }
func (p *GeminiModelProvider) Enabled() bool           { return p.enabled }
func (p *GeminiModelProvider) CostPerCallUSD() float64 { return p.cost }
func (p *GeminiModelProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	return p.client.Call(ctx, payload)
}
