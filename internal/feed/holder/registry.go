package holder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/chain"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/utils"
)

const (
	ownerResolvePoolSize = 8                // owner 解析并行度
	fallbackScanLimit    = 10               // 降级模式扫描的签名条数
	resolveTimeout       = 30 * time.Second // 一轮完整加载的超时
)

// Fetcher 注册表加载所需的链上查询，由 chain.Client 实现
type Fetcher interface {
	LargestTokenAccounts(ctx context.Context) ([]chain.LargestAccount, error)
	TokenAccountOwner(ctx context.Context, tokenAccount types.Pubkey) (types.Pubkey, error)
	RecentSignatures(ctx context.Context, before string, limit int) ([]types.SignatureInfo, error)
	TransactionDetail(ctx context.Context, signature string) (*types.TxDetail, error)
}

// entry 快照内的单个持有人。余额用原子量保存，
// 买入事件的机会性修正不需要整体替换快照。
type entry struct {
	owner   types.Pubkey
	balance utils.AtomicFloat64
	rank    int
	isPool  bool
}

// snapshot 一次完整加载的结果。替换是整体原子的：
// 读方要么看到旧快照要么看到新快照，不存在半更新状态。
type snapshot struct {
	entries  []*entry
	byOwner  map[types.Pubkey]*entry
	pool     types.Pubkey
	hasPool  bool
	loadedAt time.Time
}

var emptySnapshot = &snapshot{byOwner: map[types.Pubkey]*entry{}}

// Registry 被跟踪代币的当前头部持有人排名，rank 1 约定为池子地址
type Registry struct {
	fetcher Fetcher

	snap        atomic.Pointer[snapshot]
	loadMu      sync.Mutex // 串行化 Load/Refresh，不阻塞读
	pool        *ants.Pool
	lastLogTime atomic.Int64
}

func NewRegistry(fetcher Fetcher) *Registry {
	pool, _ := ants.NewPool(ownerResolvePoolSize, ants.WithNonblocking(true))
	r := &Registry{
		fetcher: fetcher,
		pool:    pool,
	}
	r.snap.Store(emptySnapshot)
	return r
}

// Load 拉取当前最大的持有人，解析钱包地址，按余额降序赋稠密排名，
// rank 1 标记为池子地址。上游返回的数量少于请求数不算失败；
// 主查询为空时走降级发现策略；彻底失败保留上一份快照。
func (r *Registry) Load(ctx context.Context) ([]types.HolderRecord, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	loadCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	accounts, err := r.fetcher.LargestTokenAccounts(loadCtx)
	if err != nil {
		if utils.ThrottleLog(&r.lastLogTime, 3*time.Second) {
			logger.Errorf("[HolderRegistry] largest accounts query failed: %v", err)
		}
		accounts = nil
	}

	var snap *snapshot
	if len(accounts) == 0 {
		// 降级：从最近的交易明细里推断池子地址，
		// 下游分类完全依赖池子地址，宁可只有一条记录也不要空表
		snap = r.fallbackSnapshot(loadCtx)
		if snap == nil {
			return nil, fmt.Errorf("holder load failed and fallback produced nothing")
		}
	} else {
		snap = r.buildSnapshot(loadCtx, accounts)
		if len(snap.entries) == 0 {
			return nil, fmt.Errorf("holder load resolved no owners")
		}
	}

	r.snap.Store(snap)
	logger.Infof("[HolderRegistry] loaded %d holders, pool=%s", len(snap.entries), snap.pool.Short())
	return r.Snapshot(), nil
}

// Refresh 重新加载并整体替换快照，可与读并发调用
func (r *Registry) Refresh(ctx context.Context) error {
	_, err := r.Load(ctx)
	return err
}

// buildSnapshot 并行解析每个代币账户的归属钱包，失败的单条跳过。
// 同一钱包持有多个代币账户时余额合并。
func (r *Registry) buildSnapshot(ctx context.Context, accounts []chain.LargestAccount) *snapshot {
	type resolved struct {
		owner   types.Pubkey
		balance float64
		ok      bool
	}

	results := make([]resolved, len(accounts))
	var wg sync.WaitGroup

	for i, acc := range accounts {
		idx := i
		it := acc

		wg.Add(1)
		task := func() {
			defer wg.Done()
			owner, err := r.fetcher.TokenAccountOwner(ctx, it.TokenAccount)
			if err != nil {
				if utils.ThrottleLog(&r.lastLogTime, 3*time.Second) {
					logger.Warnf("[HolderRegistry] owner resolve failed, account=%s: %v", it.TokenAccount.Short(), err)
				}
				return
			}
			results[idx] = resolved{owner: owner, balance: it.Balance, ok: true}
		}

		if err := r.pool.Submit(task); err != nil {
			// 池子拒绝时降级为同步执行，别丢记录
			task()
		}
	}
	wg.Wait()

	merged := make(map[types.Pubkey]float64, len(results))
	order := make([]types.Pubkey, 0, len(results))
	for _, res := range results {
		if !res.ok {
			continue
		}
		if _, seen := merged[res.owner]; !seen {
			order = append(order, res.owner)
		}
		merged[res.owner] += res.balance
	}

	entries := make([]*entry, 0, len(order))
	for _, owner := range order {
		e := &entry{owner: owner}
		e.balance.Store(merged[owner])
		entries = append(entries, e)
	}

	return finalizeSnapshot(entries)
}

// fallbackSnapshot 扫描最近的交易，把出现过的最大交易后余额的账户当作池子
func (r *Registry) fallbackSnapshot(ctx context.Context) *snapshot {
	sigs, err := r.fetcher.RecentSignatures(ctx, "", fallbackScanLimit)
	if err != nil {
		logger.Errorf("[HolderRegistry] fallback signature scan failed: %v", err)
		return nil
	}

	var best types.BalanceDelta
	found := false
	for _, s := range sigs {
		if s.Failed {
			continue
		}
		detail, err := r.fetcher.TransactionDetail(ctx, s.Signature)
		if err != nil {
			continue
		}
		for _, d := range detail.Deltas {
			if !found || d.PostBalance > best.PostBalance {
				best = d
				found = true
			}
		}
	}
	if !found {
		return nil
	}

	logger.Warnf("[HolderRegistry] degraded mode: pool inferred from recent activity, pool=%s", best.Owner.Short())
	e := &entry{owner: best.Owner}
	e.balance.Store(best.PostBalance)
	return finalizeSnapshot([]*entry{e})
}

// finalizeSnapshot 按余额降序排序、赋稠密排名并标记池子
func finalizeSnapshot(entries []*entry) *snapshot {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].balance.Load() > entries[j].balance.Load()
	})

	byOwner := make(map[types.Pubkey]*entry, len(entries))
	for i, e := range entries {
		e.rank = i + 1
		e.isPool = i == 0
		byOwner[e.owner] = e
	}

	snap := &snapshot{
		entries:  entries,
		byOwner:  byOwner,
		loadedAt: time.Now(),
	}
	if len(entries) > 0 {
		snap.pool = entries[0].owner
		snap.hasPool = true
	}
	return snap
}

// IsKnownHolder 报告地址是否在最近一次加载的快照中
func (r *Registry) IsKnownHolder(owner types.Pubkey) bool {
	_, ok := r.snap.Load().byOwner[owner]
	return ok
}

// RankOf 返回地址的当前排名，不在榜中返回 (0, false)
func (r *Registry) RankOf(owner types.Pubkey) (int, bool) {
	e, ok := r.snap.Load().byOwner[owner]
	if !ok {
		return 0, false
	}
	return e.rank, true
}

// IsPool 报告地址是否是当前的池子地址
func (r *Registry) IsPool(owner types.Pubkey) bool {
	snap := r.snap.Load()
	return snap.hasPool && snap.pool == owner
}

// PoolAddress 返回当前池子地址；快照为空时 ok 为 false
func (r *Registry) PoolAddress() (types.Pubkey, bool) {
	snap := r.snap.Load()
	return snap.pool, snap.hasPool
}

// UpdateBalance 机会性修正某个在榜地址的余额（买入事件的交易后余额）。
// 只改余额不重排名，重排在下一次整体刷新时发生。
// 返回该地址是否在榜。
func (r *Registry) UpdateBalance(owner types.Pubkey, balance float64) bool {
	e, ok := r.snap.Load().byOwner[owner]
	if !ok {
		return false
	}
	e.balance.Store(balance)
	return true
}

// Count 当前快照中的持有人数量
func (r *Registry) Count() int {
	return len(r.snap.Load().entries)
}

// Snapshot 当前快照的值拷贝，按排名升序
func (r *Registry) Snapshot() []types.HolderRecord {
	snap := r.snap.Load()
	out := make([]types.HolderRecord, 0, len(snap.entries))
	for _, e := range snap.entries {
		out = append(out, types.HolderRecord{
			Address: e.owner,
			Owner:   e.owner.String(),
			Balance: e.balance.Load(),
			Rank:    e.rank,
			IsPool:  e.isPool,
		})
	}
	return out
}

// Release 释放 owner 解析协程池
func (r *Registry) Release() {
	r.pool.Release()
}
