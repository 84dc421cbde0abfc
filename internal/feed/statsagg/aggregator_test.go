package statsagg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
)

type memBaselineStore struct {
	count    int
	at       time.Time
	ok       bool
	saveErr  error
	saved    int
	saveHits int
}

func (s *memBaselineStore) LoadBaseline() (int, time.Time, bool, error) {
	return s.count, s.at, s.ok, nil
}

func (s *memBaselineStore) SaveBaseline(count int, recordedAt time.Time) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.count = count
	s.at = recordedAt
	s.ok = true
	s.saved = count
	s.saveHits++
	return nil
}

type fixedPool struct {
	pool types.Pubkey
}

func (p fixedPool) IsPool(addr types.Pubkey) bool { return addr == p.pool }

type fixedCounter int

func (c fixedCounter) HolderCount(context.Context) (int, error) { return int(c), nil }

type pagedSource struct {
	pages [][]types.SignatureInfo
	calls int
}

func (s *pagedSource) RecentSignatures(_ context.Context, _ string, _ int) ([]types.SignatureInfo, error) {
	if s.calls >= len(s.pages) {
		return nil, nil
	}
	page := s.pages[s.calls]
	s.calls++
	return page, nil
}

func pk(b byte) types.Pubkey {
	var p types.Pubkey
	p[0] = b
	return p
}

func buyEvent(to types.Pubkey, amount float64) types.TransactionEvent {
	return types.TransactionEvent{
		To:             to,
		ToAddress:      to.String(),
		Amount:         amount,
		Classification: types.ClassBuy,
		Timestamp:      time.Now(),
	}
}

func TestRecordEvent_TracksTopAccumulator(t *testing.T) {
	pool := pk(1)
	a := NewAggregator(&memBaselineStore{}, fixedPool{pool: pool})

	buyerA, buyerB := pk(2), pk(3)
	a.RecordEvent(buyEvent(buyerA, 100))
	a.RecordEvent(buyEvent(buyerB, 60))
	a.RecordEvent(buyEvent(buyerB, 70))

	snap := a.Snapshot()
	if snap.TopAccumulator != buyerB.String() {
		t.Errorf("top accumulator = %s, want %s", snap.TopAccumulator, buyerB.String())
	}
	if snap.TopAccumulatorAmount != 130 {
		t.Errorf("top amount = %v, want 130", snap.TopAccumulatorAmount)
	}
}

func TestRecordTransaction_OncePerSignature(t *testing.T) {
	a := NewAggregator(&memBaselineStore{}, fixedPool{pool: pk(1)})

	// 一笔多配对交易：签名计一次，事件只进累计买入
	a.RecordTransaction(time.Now())
	a.RecordEvent(buyEvent(pk(2), 5))
	a.RecordEvent(buyEvent(pk(3), 3))

	snap := a.Snapshot()
	if snap.TxCount24h != 1 {
		t.Errorf("TxCount24h = %d, want 1 for a single signature", snap.TxCount24h)
	}
	if snap.TopAccumulatorAmount != 5 {
		t.Errorf("top amount = %v, want 5", snap.TopAccumulatorAmount)
	}
}

func TestRecordEvent_PoolNeverAccumulates(t *testing.T) {
	pool := pk(1)
	a := NewAggregator(&memBaselineStore{}, fixedPool{pool: pool})

	if changed := a.RecordEvent(buyEvent(pool, 1000)); changed {
		t.Error("pool buy reported as a stats change")
	}

	snap := a.Snapshot()
	if snap.TopAccumulator != "" {
		t.Errorf("pool leaked into top accumulator: %s", snap.TopAccumulator)
	}
}

func TestRecordEvent_NonBuyDoesNotAccumulate(t *testing.T) {
	a := NewAggregator(&memBaselineStore{}, fixedPool{pool: pk(1)})

	ev := buyEvent(pk(2), 50)
	ev.Classification = types.ClassSell
	a.RecordEvent(ev)
	ev.Classification = types.ClassTransfer
	a.RecordEvent(ev)

	if snap := a.Snapshot(); snap.TopAccumulator != "" {
		t.Errorf("non-buy event accumulated: %s", snap.TopAccumulator)
	}
}

func TestRefreshWindowCounts_DeltaCorrection(t *testing.T) {
	a := NewAggregator(&memBaselineStore{}, fixedPool{pool: pk(1)})

	// 本地只看到了 1 条，链上有 3 条成功 + 1 条失败
	a.RecordTransaction(time.Now())

	now := time.Now().Unix()
	src := &pagedSource{pages: [][]types.SignatureInfo{{
		{Signature: "s1", BlockTime: now},
		{Signature: "s2", BlockTime: now - 60, Failed: true},
		{Signature: "s3", BlockTime: now - 120},
		{Signature: "s4", BlockTime: now - 180},
	}}}

	if err := a.RefreshWindowCounts(context.Background(), src); err != nil {
		t.Fatalf("RefreshWindowCounts: %v", err)
	}
	if got := a.Snapshot().TxCount24h; got != 3 {
		t.Errorf("TxCount24h = %d, want 3 after resync", got)
	}
}

func TestRefreshWindowCounts_StopsAtCutoff(t *testing.T) {
	a := NewAggregator(&memBaselineStore{}, fixedPool{pool: pk(1)})

	now := time.Now().Unix()
	page := make([]types.SignatureInfo, 0, resyncPageLimit)
	for i := 0; i < resyncPageLimit; i++ {
		page = append(page, types.SignatureInfo{Signature: "a", BlockTime: now - int64(i)})
	}
	stale := []types.SignatureInfo{
		{Signature: "old", BlockTime: now - 25*3600},
		{Signature: "older", BlockTime: now - 26*3600},
	}
	src := &pagedSource{pages: [][]types.SignatureInfo{page, stale}}

	if err := a.RefreshWindowCounts(context.Background(), src); err != nil {
		t.Fatalf("RefreshWindowCounts: %v", err)
	}
	if got := a.Snapshot().TxCount24h; got != resyncPageLimit {
		t.Errorf("TxCount24h = %d, want %d; stale signatures counted", got, resyncPageLimit)
	}
}

func TestRefreshWindowCounts_SourceError(t *testing.T) {
	a := NewAggregator(&memBaselineStore{}, fixedPool{pool: pk(1)})
	src := errSource{errors.New("rpc down")}

	if err := a.RefreshWindowCounts(context.Background(), src); err == nil {
		t.Fatal("want error from failing source")
	}
}

type errSource struct{ err error }

func (s errSource) RecentSignatures(context.Context, string, int) ([]types.SignatureInfo, error) {
	return nil, s.err
}

func TestRefreshHolderCount_UsesStoredBaseline(t *testing.T) {
	store := &memBaselineStore{count: 90, at: time.Now().Add(-1 * time.Hour), ok: true}
	a := NewAggregator(store, fixedPool{pool: pk(1)})

	if err := a.RefreshHolderCount(context.Background(), fixedCounter(100)); err != nil {
		t.Fatalf("RefreshHolderCount: %v", err)
	}

	snap := a.Snapshot()
	if snap.HolderCount != 100 {
		t.Errorf("HolderCount = %d, want 100", snap.HolderCount)
	}
	if snap.HolderChange24h != 10 {
		t.Errorf("HolderChange24h = %d, want 10", snap.HolderChange24h)
	}
	if store.saveHits != 0 {
		t.Error("valid baseline should not be rewritten")
	}
}

func TestRefreshHolderCount_RebuildsBaseline(t *testing.T) {
	tests := []struct {
		name  string
		store *memBaselineStore
	}{
		{"missing", &memBaselineStore{}},
		{"expired", &memBaselineStore{count: 95, at: time.Now().Add(-25 * time.Hour), ok: true}},
		{"too low", &memBaselineStore{count: 40, at: time.Now().Add(-1 * time.Hour), ok: true}},
		{"too high", &memBaselineStore{count: 500, at: time.Now().Add(-1 * time.Hour), ok: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAggregator(tc.store, fixedPool{pool: pk(1)})
			if err := a.RefreshHolderCount(context.Background(), fixedCounter(100)); err != nil {
				t.Fatalf("RefreshHolderCount: %v", err)
			}
			if tc.store.saveHits != 1 || tc.store.saved != 100 {
				t.Errorf("baseline not rebuilt: saves=%d saved=%d", tc.store.saveHits, tc.store.saved)
			}
			if got := a.Snapshot().HolderChange24h; got != 0 {
				t.Errorf("HolderChange24h = %d, want 0 after rebuild", got)
			}
		})
	}
}

func TestPruneStaleAccumulation(t *testing.T) {
	a := NewAggregator(&memBaselineStore{}, fixedPool{pool: pk(1)})

	stale, fresh := pk(2), pk(3)
	a.RecordEvent(buyEvent(stale, 500))
	a.RecordEvent(buyEvent(fresh, 100))

	a.mu.Lock()
	a.accum[stale].lastTouch = time.Now().Add(-25 * time.Hour)
	a.mu.Unlock()

	a.PruneStaleAccumulation()

	snap := a.Snapshot()
	if snap.TopAccumulator != fresh.String() {
		t.Errorf("top after prune = %s, want %s", snap.TopAccumulator, fresh.String())
	}
	if snap.TopAccumulatorAmount != 100 {
		t.Errorf("top amount after prune = %v, want 100", snap.TopAccumulatorAmount)
	}
}

func TestSetSupply(t *testing.T) {
	a := NewAggregator(&memBaselineStore{}, fixedPool{pool: pk(1)})
	a.SetSupply(1_000_000, false)

	snap := a.Snapshot()
	if snap.TotalSupply != 1_000_000 || snap.SupplyBurned {
		t.Errorf("supply snapshot = (%v, %v), want (1000000, false)", snap.TotalSupply, snap.SupplyBurned)
	}
}
