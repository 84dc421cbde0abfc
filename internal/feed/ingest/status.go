package ingest

import (
	"sync"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/emitter"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
)

// StatusManager 维护接入链路的连接状态，状态变化时对外广播。
// 两条通道共享同一个实例：WS 通道驱动 Connecting/Live/PollingOnly，
// 轮询通道在 RPC 持续失败时上报 Error。
type StatusManager struct {
	mu      sync.Mutex
	current types.ConnStatus
	emitter *emitter.Emitter
}

func NewStatusManager(em *emitter.Emitter) *StatusManager {
	return &StatusManager{
		current: types.StatusConnecting,
		emitter: em,
	}
}

// Set 切换状态，仅在发生变化时广播并记录日志
func (s *StatusManager) Set(status types.ConnStatus) {
	s.mu.Lock()
	if s.current == status {
		s.mu.Unlock()
		return
	}
	prev := s.current
	s.current = status
	s.mu.Unlock()

	logger.Infof("[StatusManager] connection status: %s -> %s", prev, status)
	if s.emitter != nil {
		s.emitter.EmitStatus(status)
	}
}

// Current 返回当前状态
func (s *StatusManager) Current() types.ConnStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
