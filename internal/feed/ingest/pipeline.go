package ingest

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/classify"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/dedup"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/emitter"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/metrics"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/statsagg"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/utils"
)

const (
	defaultQueueSize = 256
	fetchRetries     = 2
	fetchRetryDelay  = 500 * time.Millisecond
)

// DetailFetcher 拉取交易明细
type DetailFetcher interface {
	TransactionDetail(ctx context.Context, signature string) (*types.TxDetail, error)
}

// BalanceSink 接收买入事件带来的余额更新
type BalanceSink interface {
	UpdateBalance(owner types.Pubkey, balance float64) bool
}

// Pipeline 是两条接入通道汇合后的统一处理路径：
// 去重 -> 拉明细 -> 分类 -> 更新统计 -> 对外广播。
// 明细拉取与分类由单个 worker 串行执行，保证事件按提交顺序产出。
type Pipeline struct {
	fetcher    DetailFetcher
	seen       *dedup.SeenSignatures
	classifier *classify.Classifier
	balances   BalanceSink
	agg        *statsagg.Aggregator
	emitter    *emitter.Emitter

	queue       chan string
	lastLogTime atomic.Int64
}

func NewPipeline(
	fetcher DetailFetcher,
	seen *dedup.SeenSignatures,
	classifier *classify.Classifier,
	balances BalanceSink,
	agg *statsagg.Aggregator,
	em *emitter.Emitter,
) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		seen:       seen,
		classifier: classifier,
		balances:   balances,
		agg:        agg,
		emitter:    em,
		queue:      make(chan string, defaultQueueSize),
	}
}

// Submit 提交一条签名。失败交易只登记去重，不进处理队列；
// 重复签名直接丢弃。队列打满时丢弃并撤销去重标记，
// 任意一条通道再次看到该签名时可以重试。
func (p *Pipeline) Submit(signature string, failed bool) {
	if signature == "" {
		return
	}
	if !p.seen.TryMark(signature) {
		metrics.DedupHitsTotal.Inc()
		return
	}
	if failed {
		return
	}

	select {
	case p.queue <- signature:
		metrics.FetchQueueDepth.Set(float64(len(p.queue)))
	default:
		p.seen.Forget(signature)
		if utils.ThrottleLog(&p.lastLogTime, 3*time.Second) {
			logger.Warnf("[Pipeline] fetch queue full, dropping signature: %s", signature)
		}
	}
}

// Run 启动串行处理 worker，阻塞直到 ctx 取消
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-p.queue:
			metrics.FetchQueueDepth.Set(float64(len(p.queue)))
			p.safeProcess(ctx, sig)
		}
	}
}

func (p *Pipeline) safeProcess(ctx context.Context, signature string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[Pipeline] panic while processing %s: %v\n%s",
				signature, r, debug.Stack())
		}
	}()
	p.process(ctx, signature)
}

func (p *Pipeline) process(ctx context.Context, signature string) {
	detail, err := p.fetchDetail(ctx, signature)
	if err != nil {
		metrics.RpcErrorsTotal.WithLabelValues("get_transaction").Inc()
		if utils.ThrottleLog(&p.lastLogTime, 3*time.Second) {
			logger.Errorf("[Pipeline] fetch transaction detail failed: sig=%s err=%v", signature, err)
		}
		return
	}
	if detail == nil {
		return
	}

	// 窗口按签名计数，与链上重对账同口径；一笔交易不论产出几条事件都只计一次
	ts := time.Now()
	if detail.BlockTime > 0 {
		ts = time.Unix(detail.BlockTime, 0)
	}
	p.agg.RecordTransaction(ts)

	events := p.classifier.Classify(detail)
	if len(events) == 0 {
		return
	}

	for i := range events {
		ev := &events[i]
		metrics.EventsTotal.WithLabelValues(ev.Classification.String()).Inc()

		// 买入方若在榜单上，顺手用交易后余额修正榜单读数
		if ev.Classification == types.ClassBuy && ev.ToIsHolder {
			p.balances.UpdateBalance(ev.To, ev.ToPostBalance)
		}

		p.agg.RecordEvent(*ev)
		p.emitter.EmitTransaction(*ev)
	}
	p.emitter.EmitStats(p.agg.Snapshot())
}

func (p *Pipeline) fetchDetail(ctx context.Context, signature string) (*types.TxDetail, error) {
	var lastErr error
	for attempt := 0; attempt <= fetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(fetchRetryDelay):
			}
		}
		detail, err := p.fetcher.TransactionDetail(ctx, signature)
		if err == nil {
			return detail, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
