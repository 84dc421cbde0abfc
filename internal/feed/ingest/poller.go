package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/metrics"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/utils"
)

const (
	defaultPollInterval = 10 * time.Second
	pollBatchLimit      = 50
	pollErrorThreshold  = 5 // 连续失败次数达到阈值后上报 Error 状态
)

// SignatureLister 按时间倒序拉取最近签名
type SignatureLister interface {
	RecentSignatures(ctx context.Context, before string, limit int) ([]types.SignatureInfo, error)
}

// Poller 是拉取通道：周期性查询代币铸币地址的最近签名并提交管线。
// 与 WS 通道互为兜底，去重由管线统一处理。
type Poller struct {
	lister   SignatureLister
	pipeline *Pipeline
	status   *StatusManager
	interval time.Duration

	failStreak  int
	lastLogTime atomic.Int64
}

func NewPoller(lister SignatureLister, pipeline *Pipeline, status *StatusManager, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		lister:   lister,
		pipeline: pipeline,
		status:   status,
		interval: interval,
	}
}

// Run 启动轮询循环，阻塞直到 ctx 取消
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	sigs, err := p.lister.RecentSignatures(ctx, "", pollBatchLimit)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.RpcErrorsTotal.WithLabelValues("get_signatures").Inc()
		p.failStreak++
		if utils.ThrottleLog(&p.lastLogTime, 3*time.Second) {
			logger.Errorf("[Poller] fetch recent signatures failed (streak %d): %v", p.failStreak, err)
		}
		// 仅轮询模式下持续失败，说明两条通道都已失效
		if p.failStreak >= pollErrorThreshold && p.status.Current() == types.StatusPollingOnly {
			p.status.Set(types.StatusError)
		}
		return
	}

	p.failStreak = 0
	if p.status.Current() == types.StatusError {
		p.status.Set(types.StatusPollingOnly)
	}

	// RPC 返回倒序，翻成时间正序后提交，保证事件产出顺序
	utils.Reverse(sigs)
	for _, sig := range sigs {
		p.pipeline.Submit(sig.Signature, sig.Failed)
	}
}
