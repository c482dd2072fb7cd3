package ai

import (
	"fmt"
	"strings"
)

// ValidationError 模型响应不符合 Decision schema，属于格式错误而非瞬时故障。
// 该错误不会被退避重试，也绝不降级为伪造的确信决策。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid ai response: %s", e.Reason)
	}
	return fmt.Sprintf("invalid ai response: field %q: %s", e.Field, e.Reason)
}

// Transient 标记给 retry 分类：schema 错误重试同一响应没有意义。
func (e *ValidationError) Transient() bool { return false }

// ProviderError 单个供应商调用失败，携带其 ID 便于聚合诊断。
type ProviderError struct {
	ProviderID string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.ProviderID, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AllProvidersError 所有供应商（含回退）都失败后的聚合错误。
// 调用方必须把它当作"无决策"处理并回退 WAIT。
type AllProvidersError struct {
	Errors []error
}

func (e *AllProvidersError) Error() string {
	if len(e.Errors) == 0 {
		return "all ai providers failed"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("all ai providers failed: %s", strings.Join(parts, "; "))
}

func (e *AllProvidersError) Unwrap() []error { return e.Errors }
