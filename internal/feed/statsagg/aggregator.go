package statsagg

import (
	"context"
	"sync"
	"time"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/utils"
)

const (
	accumRetention = 24 * time.Hour // 累计买入条目的保留期
	baselineMaxAge = 24 * time.Hour // 基线超龄后强制重建

	resyncPageLimit = 100 // 重对账时每页签名数
	resyncMaxPages  = 10  // 重对账最多翻页数
)

// SignatureSource 提供按时间倒序分页的签名历史，用于窗口计数重对账
type SignatureSource interface {
	RecentSignatures(ctx context.Context, before string, limit int) ([]types.SignatureInfo, error)
}

// HolderCounter 提供当前持有人数量，实现可以走本地榜单或全链扫描
type HolderCounter interface {
	HolderCount(ctx context.Context) (int, error)
}

// PoolView 判断地址是否为流动性池账户
type PoolView interface {
	IsPool(addr types.Pubkey) bool
}

// BaselineStore 持久化 24 小时持有人基线
type BaselineStore interface {
	LoadBaseline() (count int, recordedAt time.Time, ok bool, err error)
	SaveBaseline(count int, recordedAt time.Time) error
}

type accumEntry struct {
	amount    float64
	lastTouch time.Time
}

// Aggregator 维护仪表盘统计：24 小时交易数、持有人数及基线差值、
// 最大累计买入方、代币供应量。事件按到达增量计入，
// 周期任务负责重对账与清理。
type Aggregator struct {
	window *TxWindow
	store  BaselineStore
	pool   PoolView

	mu          sync.Mutex
	resyncDelta int64 // 链上重对账计数与本地窗口的差值修正
	accum       map[types.Pubkey]*accumEntry
	topOwner    types.Pubkey
	topAmount   float64

	holderCount    int
	baselineCount  int
	baselineAt     time.Time
	baselineLoaded bool

	totalSupply  float64
	supplyBurned bool
}

func NewAggregator(store BaselineStore, pool PoolView) *Aggregator {
	return &Aggregator{
		window: NewTxWindow(),
		store:  store,
		pool:   pool,
		accum:  make(map[types.Pubkey]*accumEntry),
	}
}

// RecordTransaction 将一笔成功获取的交易计入 24 小时窗口。
// 每个签名只计一次：一笔交易可能产出多条配对事件，
// 窗口口径要与链上签名重对账保持一致。
func (a *Aggregator) RecordTransaction(ts time.Time) {
	a.window.Add(ts)
}

// RecordEvent 将一条已分类事件计入累计买入统计，返回统计是否发生变化
func (a *Aggregator) RecordEvent(ev types.TransactionEvent) bool {
	if ev.Classification != types.ClassBuy || a.pool.IsPool(ev.To) {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.accum[ev.To]
	if !ok {
		entry = &accumEntry{}
		a.accum[ev.To] = entry
	}
	entry.amount += ev.Amount
	entry.lastTouch = time.Now()

	if entry.amount > a.topAmount {
		a.topAmount = entry.amount
		a.topOwner = ev.To
	}
	return true
}

// SetSupply 更新供应量读数
func (a *Aggregator) SetSupply(total float64, burned bool) {
	a.mu.Lock()
	a.totalSupply = total
	a.supplyBurned = burned
	a.mu.Unlock()
}

// RefreshWindowCounts 用链上签名历史重新核对 24 小时交易数。
// 本地窗口继续增量计数，这里只记录与链上的偏差修正值。
func (a *Aggregator) RefreshWindowCounts(ctx context.Context, src SignatureSource) error {
	cutoff := time.Now().Add(-24 * time.Hour).Unix()

	var chainCount int64
	var before string
	for page := 0; page < resyncMaxPages; page++ {
		sigs, err := src.RecentSignatures(ctx, before, resyncPageLimit)
		if err != nil {
			return err
		}
		if len(sigs) == 0 {
			break
		}

		reachedCutoff := false
		for _, sig := range sigs {
			if sig.BlockTime > 0 && sig.BlockTime < cutoff {
				reachedCutoff = true
				break
			}
			if !sig.Failed {
				chainCount++
			}
		}
		if reachedCutoff || len(sigs) < resyncPageLimit {
			break
		}
		before = sigs[len(sigs)-1].Signature
	}

	local := int64(a.window.Count())
	a.mu.Lock()
	a.resyncDelta = chainCount - local
	a.mu.Unlock()

	logger.Infof("[StatsAggregator] window resync: chain=%d local=%d delta=%d",
		chainCount, local, chainCount-local)
	return nil
}

// RefreshHolderCount 刷新持有人数量并与持久化基线对账。
// 基线缺失、超过 24 小时或明显失真（偏离当前值一倍以上）时重建。
func (a *Aggregator) RefreshHolderCount(ctx context.Context, src HolderCounter) error {
	count, err := src.HolderCount(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.holderCount = count

	if !a.baselineLoaded {
		stored, at, ok, err := a.store.LoadBaseline()
		if err != nil {
			logger.Errorf("[StatsAggregator] load holder baseline failed: %v", err)
		} else if ok {
			a.baselineCount = stored
			a.baselineAt = at
		}
		a.baselineLoaded = true
	}

	if a.baselineValidLocked(count) {
		return nil
	}

	a.baselineCount = count
	a.baselineAt = time.Now()
	if err := a.store.SaveBaseline(count, a.baselineAt); err != nil {
		logger.Errorf("[StatsAggregator] save holder baseline failed: %v", err)
	} else {
		logger.Infof("[StatsAggregator] holder baseline rebuilt: count=%d", count)
	}
	return nil
}

func (a *Aggregator) baselineValidLocked(current int) bool {
	if a.baselineAt.IsZero() || a.baselineCount <= 0 {
		return false
	}
	if time.Since(a.baselineAt) > baselineMaxAge {
		return false
	}
	// 基线与当前值偏离超过一倍视为失真
	if current > 0 && (a.baselineCount*2 < current || a.baselineCount > current*2) {
		return false
	}
	return true
}

// PruneStaleAccumulation 清掉超过保留期未活跃的累计买入条目
func (a *Aggregator) PruneStaleAccumulation() {
	cutoff := time.Now().Add(-accumRetention)

	a.mu.Lock()
	defer a.mu.Unlock()

	removedTop := false
	for owner, entry := range a.accum {
		if entry.lastTouch.Before(cutoff) {
			delete(a.accum, owner)
			if owner == a.topOwner {
				removedTop = true
			}
		}
	}
	if !removedTop {
		return
	}

	a.topOwner = types.Pubkey{}
	a.topAmount = 0
	for owner, entry := range a.accum {
		if entry.amount > a.topAmount {
			a.topAmount = entry.amount
			a.topOwner = owner
		}
	}
}

// Snapshot 返回当前统计快照
func (a *Aggregator) Snapshot() types.StatsSnapshot {
	windowCount := int64(a.window.Count())

	a.mu.Lock()
	defer a.mu.Unlock()

	txCount := utils.Clamp(windowCount+a.resyncDelta, 0, int64(1)<<62)

	snap := types.StatsSnapshot{
		TxCount24h:   uint64(txCount),
		HolderCount:  a.holderCount,
		TotalSupply:  a.totalSupply,
		SupplyBurned: a.supplyBurned,
		TakenAt:      time.Now(),
	}
	if !a.baselineAt.IsZero() {
		snap.HolderChange24h = a.holderCount - a.baselineCount
	}
	if !a.topOwner.IsZero() {
		snap.TopAccumulator = a.topOwner.String()
		snap.TopAccumulatorAmount = utils.Float64Round2(a.topAmount)
	}
	return snap
}
