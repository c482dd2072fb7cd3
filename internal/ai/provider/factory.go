package provider

import (
	"fmt"
	"strings"
	"time"

	"tradepilot/internal/logger"
)

// ModelCfg 由上层从配置映射而来，避免本包反向依赖 config。
type ModelCfg struct {
	ID             string
	Provider       string // "openai" | "gemini"
	APIURL         string
	APIKey         string
	Model          string
	Headers        map[string]string
	Enabled        bool
	CostPerCallUSD float64
}

// BuildProviders 根据配置构造全部启用的适配器。
// 缺少 API Key 属于配置级错误：跳过该条目并告警，不让它进入候选列表。
func BuildProviders(models []ModelCfg, timeout time.Duration) []ModelProvider {
	out := make([]ModelProvider, 0, len(models))
	for _, m := range models {
		if !m.Enabled {
			continue
		}
		id := strings.TrimSpace(m.ID)
		if id == "" {
			base := strings.TrimSpace(m.Provider)
			if base == "" {
				base = "provider"
			}
			if model := strings.TrimSpace(m.Model); model != "" {
				id = fmt.Sprintf("%s:%s", base, model)
			} else {
				id = base
			}
			logger.Warnf("ai.models.id 未配置，已为 %q 生成 ID: %s", m.Provider, id)
		}
		if strings.TrimSpace(m.APIKey) == "" {
			logger.Errorf("模型 %s 缺少 API Key，跳过注册", id)
			continue
		}
		switch strings.ToLower(strings.TrimSpace(m.Provider)) {
		case "gemini":
			client := &GeminiClient{
				BaseURL:      m.APIURL,
				APIKey:       m.APIKey,
				Model:        m.Model,
				Timeout:      timeout,
				ExtraHeaders: m.Headers,
			}
			out = append(out, NewGeminiModelProvider(id, true, m.CostPerCallUSD, client))
		default:
			client := &OpenAIChatClient{
				BaseURL:      m.APIURL,
				APIKey:       m.APIKey,
				Model:        m.Model,
				Timeout:      timeout,
				ExtraHeaders: m.Headers,
			}
			out = append(out, NewOpenAIModelProvider(id, true, m.CostPerCallUSD, client))
		}
	}
	return out
}
