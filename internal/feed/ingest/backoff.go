package ingest

import "time"

const (
	DefaultBackoffBase   = time.Second
	DefaultBackoffCap    = 30 * time.Second
	DefaultMaxReconnects = 10
)

// BackoffPolicy 重连退避策略：delay = min(base × 2^attempt, cap)，
// 尝试次数超过 MaxAttempts 后彻底放弃。独立成对象便于脱离真实连接测试。
type BackoffPolicy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:        DefaultBackoffBase,
		Cap:         DefaultBackoffCap,
		MaxAttempts: DefaultMaxReconnects,
	}
}

// Delay 返回第 attempt 次重连（1 起始）前的等待时长
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	return d
}

// Exhausted 报告 attempt 次尝试后是否应停止重连
func (p BackoffPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
