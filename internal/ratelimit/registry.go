package ratelimit

import (
	"sync"
	"time"
)

// Registry 按服务名管理独立的令牌桶：交易所与各 AI 服务配额互不相关。
type Registry struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
}

func NewRegistry() *Registry {
	return &Registry{buckets: make(map[string]*Bucket)}
}

// Bucket 返回已注册的桶，不存在时按给定参数创建。
func (r *Registry) Bucket(name string, capacity int, window time.Duration) *Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buckets[name]; ok {
		return b
	}
	b := NewBucket(name, capacity, window)
	b.SetLowQuotaHook(DefaultLowQuotaHook)
	r.buckets[name] = b
	return b
}

// Snapshot 返回所有桶的状态，用于观测接口。
func (r *Registry) Snapshot() map[string]Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Status, len(r.buckets))
	for name, b := range r.buckets {
		out[name] = b.Status()
	}
	return out
}
