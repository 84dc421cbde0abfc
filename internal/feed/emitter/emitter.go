package emitter

import (
	"runtime/debug"
	"sync"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
)

// Emitter 按事件种类订阅的出站回调面。
// 订阅通常发生在启动期，之后只有分发，用读写锁即可。
// 单个订阅者 panic 只影响它自己，不打断分发也不打断摄取循环。
type Emitter struct {
	mu          sync.RWMutex
	statusSubs  []func(types.ConnStatus)
	holdersSubs []func([]types.HolderRecord)
	txSubs      []func(types.TransactionEvent)
	statsSubs   []func(types.StatsSnapshot)
}

func New() *Emitter {
	return &Emitter{}
}

func (e *Emitter) OnStatusChange(fn func(types.ConnStatus)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statusSubs = append(e.statusSubs, fn)
}

func (e *Emitter) OnHoldersLoaded(fn func([]types.HolderRecord)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.holdersSubs = append(e.holdersSubs, fn)
}

func (e *Emitter) OnTransaction(fn func(types.TransactionEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.txSubs = append(e.txSubs, fn)
}

func (e *Emitter) OnStatsUpdated(fn func(types.StatsSnapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statsSubs = append(e.statsSubs, fn)
}

func (e *Emitter) EmitStatus(status types.ConnStatus) {
	e.mu.RLock()
	subs := e.statusSubs
	e.mu.RUnlock()
	for _, fn := range subs {
		safeCall(func() { fn(status) })
	}
}

func (e *Emitter) EmitHolders(holders []types.HolderRecord) {
	e.mu.RLock()
	subs := e.holdersSubs
	e.mu.RUnlock()
	for _, fn := range subs {
		safeCall(func() { fn(holders) })
	}
}

func (e *Emitter) EmitTransaction(event types.TransactionEvent) {
	e.mu.RLock()
	subs := e.txSubs
	e.mu.RUnlock()
	for _, fn := range subs {
		safeCall(func() { fn(event) })
	}
}

func (e *Emitter) EmitStats(snapshot types.StatsSnapshot) {
	e.mu.RLock()
	subs := e.statsSubs
	e.mu.RUnlock()
	for _, fn := range subs {
		safeCall(func() { fn(snapshot) })
	}
}

func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[Emitter] subscriber panicked: %v\n%s", r, string(debug.Stack()))
		}
	}()
	fn()
}
