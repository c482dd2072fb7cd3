package ai

import (
	"strings"

	"github.com/tidwall/gjson"
)

// StripCodeFence 去掉 ```json ... ``` 围栏标记，模型经常这样包裹输出。
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// 首行可能是语言标记（json 等），整行丢弃
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// ExtractJSONObject 提取首个平衡的 JSON 对象，返回对象文本与是否成功。
func ExtractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1]), true
			}
		}
	}
	return "", false
}

// Parse 把原始模型输出解析为标准 Decision。
// action/confidence/reason/riskLevel 四个必填字段缺失或类型错误
// 都是 *ValidationError，绝不用默认值补齐。
func Parse(raw string) (Decision, error) {
	body := StripCodeFence(raw)
	obj, ok := ExtractJSONObject(body)
	if !ok {
		return Decision{}, &ValidationError{Reason: "no JSON object found in response"}
	}
	if !gjson.Valid(obj) {
		return Decision{}, &ValidationError{Reason: "malformed JSON object"}
	}

	actionField := gjson.Get(obj, "action")
	if !actionField.Exists() || actionField.Type != gjson.String {
		return Decision{}, &ValidationError{Field: "action", Reason: "missing or not a string"}
	}
	action := NormalizeAction(actionField.String())
	if !validAction(action) {
		return Decision{}, &ValidationError{Field: "action", Reason: "unknown action " + actionField.String()}
	}

	confField := gjson.Get(obj, "confidence")
	if !confField.Exists() || confField.Type != gjson.Number {
		return Decision{}, &ValidationError{Field: "confidence", Reason: "missing or not a number"}
	}
	confidence := ClampConfidence(confField.Float())

	reasonField := gjson.Get(obj, "reason")
	if !reasonField.Exists() || reasonField.Type != gjson.String || strings.TrimSpace(reasonField.String()) == "" {
		return Decision{}, &ValidationError{Field: "reason", Reason: "missing or empty"}
	}

	riskField := gjson.Get(obj, "riskLevel")
	if !riskField.Exists() || riskField.Type != gjson.String {
		return Decision{}, &ValidationError{Field: "riskLevel", Reason: "missing or not a string"}
	}
	risk := strings.ToUpper(strings.TrimSpace(riskField.String()))
	if !validRiskLevel(risk) {
		return Decision{}, &ValidationError{Field: "riskLevel", Reason: "unknown risk level " + riskField.String()}
	}

	d := Decision{
		Action:     action,
		Confidence: confidence,
		Reason:     strings.TrimSpace(reasonField.String()),
		RiskLevel:  risk,
	}
	if v := gjson.Get(obj, "suggestedTakeProfit"); v.Exists() && v.Type == gjson.Number {
		d.TargetPrice = v.Float()
	}
	if v := gjson.Get(obj, "suggestedStopLoss"); v.Exists() && v.Type == gjson.Number {
		d.StopLoss = v.Float()
	}
	return d, nil
}
