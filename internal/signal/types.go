package signal

import (
	"time"

	"tradepilot/internal/ai"
)

const (
	ActionBuy     = "BUY"
	ActionSell    = "SELL"
	ActionNeutral = "NEUTRAL"
	ActionWait    = "WAIT"
)

// Metrics 硬过滤器评估时的指标快照，随结果一并记录。
type Metrics struct {
	RSI         float64 `json:"rsi"`
	Histogram   float64 `json:"histogram"`
	VolumeRatio float64 `json:"volume_ratio"`
	BodyPct     float64 `json:"body_pct"`
}

// HardFilterResult 确定性预过滤的输出。
type HardFilterResult struct {
	Candidate string  `json:"candidate"`
	Reason    string  `json:"reason"`
	Metrics   Metrics `json:"metrics"`
}

// Passed 候选方向非 NEUTRAL 即视为通过。
func (r HardFilterResult) Passed() bool {
	return r.Candidate != ActionNeutral
}

// Signal 管线的权威输出，落库后不再变更。
type Signal struct {
	ID               string       `json:"id"`
	Symbol           string       `json:"symbol"`
	Timeframe        string       `json:"timeframe"`
	FinalAction      string       `json:"final_action"`
	Confidence       float64      `json:"confidence"`
	HardFilterPassed bool         `json:"hard_filter_passed"`
	Candidate        string       `json:"candidate"`
	Reason           string       `json:"reason"`
	AIDecision       *ai.Decision `json:"ai_decision,omitempty"`
	AIProviderID     string       `json:"ai_provider_id,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
}

// Actionable 最终动作是否需要触发仓位操作。
func (s Signal) Actionable() bool {
	return s.FinalAction == ActionBuy || s.FinalAction == ActionSell
}
