package ai

import (
	"math"
	"strings"
)

const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionWait = "WAIT"
)

const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// Decision 标准化后的模型判断。无论供应商响应形态如何，
// 适配层都必须产出该 schema，缺字段是硬性解析失败而不是默认值。
type Decision struct {
	Action      string  `json:"action"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
	RiskLevel   string  `json:"riskLevel"`
	TargetPrice float64 `json:"targetPrice,omitempty"`
	StopLoss    float64 `json:"stopLoss,omitempty"`
}

// NormalizeAction 统一动作名称：大小写不敏感，hold 视为 WAIT。
func NormalizeAction(a string) string {
	a = strings.ToUpper(strings.TrimSpace(a))
	if a == "HOLD" {
		return ActionWait
	}
	return a
}

func validAction(a string) bool {
	switch a {
	case ActionBuy, ActionSell, ActionWait:
		return true
	}
	return false
}

func validRiskLevel(r string) bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ClampConfidence 把置信度压入 [0,100]；NaN 一律替换为 0，绝不向下游传播。
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
