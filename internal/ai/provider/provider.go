package provider

import "context"

// ChatPayload 单次模型请求载体。
type ChatPayload struct {
	System     string
	User       string
	ExpectJSON bool
}

// ModelProvider 抽象一个托管 AI 服务。实现方负责自己的鉴权与请求形态；
// 重试与限流由上层 Manager 统一套用，适配器只做单次调用。
type ModelProvider interface {
	ID() string
	Enabled() bool
	CostPerCallUSD() float64

	Call(ctx context.Context, payload ChatPayload) (string, error)
}
