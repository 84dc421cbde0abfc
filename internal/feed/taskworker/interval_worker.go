package taskworker

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/utils"
)

// JobFunc 周期任务体
type JobFunc func(ctx context.Context) error

// IntervalWorker 按固定间隔执行单个任务的 Worker。
// 支持暂停/恢复；任务执行慢于间隔时丢弃积压的 tick，不会追赶。
type IntervalWorker struct {
	name     string
	interval time.Duration
	job      JobFunc

	ctx    context.Context
	cancel context.CancelFunc

	isPaused       atomic.Bool
	lastErrLogTime atomic.Int64
}

// NewIntervalWorker 创建 IntervalWorker，初始为暂停状态
func NewIntervalWorker(name string, interval time.Duration, job JobFunc) *IntervalWorker {
	ctx, cancel := context.WithCancel(context.Background())
	worker := &IntervalWorker{
		name:     name,
		interval: interval,
		job:      job,
		ctx:      ctx,
		cancel:   cancel,
	}
	worker.isPaused.Store(true)
	return worker
}

func (w *IntervalWorker) Start() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			drainTicker(ticker)
			if w.isPaused.Load() {
				continue
			}
			w.runJob()
		}
	}
}

func (w *IntervalWorker) Stop() {
	w.isPaused.Store(true)
	w.cancel()
}

func (w *IntervalWorker) Resume() {
	w.isPaused.Store(false)
}

func (w *IntervalWorker) Pause() {
	w.isPaused.Store(true)
}

// RunNow 立即执行一次任务，不等 tick
func (w *IntervalWorker) RunNow() {
	if w.isPaused.Load() {
		return
	}
	w.runJob()
}

func drainTicker(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
		default:
			return
		}
	}
}

func (w *IntervalWorker) runJob() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[IntervalWorker:%s] job panicked: %v\n%s", w.name, r, string(debug.Stack()))
		}
	}()

	start := time.Now()
	err := w.job(w.ctx)
	duration := time.Since(start)
	if err != nil {
		if utils.ThrottleLog(&w.lastErrLogTime, 3*time.Second) {
			logger.Errorf("[IntervalWorker:%s] job failed: %v, duration=%v", w.name, err, duration)
		}
		return
	}
	logger.Debugf("[IntervalWorker:%s] job done, duration=%v", w.name, duration)
}
