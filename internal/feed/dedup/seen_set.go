package dedup

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/KatriaDopex/jestermaxxing/internal/pkg/utils"
)

const (
	DefaultMaxEntries  = 1000 // 集合上限
	DefaultKeepEntries = 500  // 截断后保留的最近插入条数
)

// SeenSignatures 有界的已处理签名集合，两条摄取通道的唯一串行化点。
// 超过上限后只保留最近插入的一半（按插入序，非 LRU）。这是刻意的近似：
// 上游不会重放任意旧的事件，极旧签名截断后被重复处理的概率可以接受。
// 集合内只存签名的 xxhash64，内存占用与签名长度无关。
type SeenSignatures struct {
	mu    sync.Mutex
	set   map[uint64]struct{}
	order []uint64 // 插入顺序，truncate 时从头部驱逐

	maxEntries  int
	keepEntries int
}

func NewSeenSignatures() *SeenSignatures {
	return NewSeenSignaturesWithBounds(DefaultMaxEntries, DefaultKeepEntries)
}

func NewSeenSignaturesWithBounds(maxEntries, keepEntries int) *SeenSignatures {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if keepEntries <= 0 || keepEntries > maxEntries {
		keepEntries = maxEntries / 2
	}
	return &SeenSignatures{
		set:         make(map[uint64]struct{}, maxEntries),
		order:       make([]uint64, 0, maxEntries),
		maxEntries:  maxEntries,
		keepEntries: keepEntries,
	}
}

// TryMark 首次见到该签名时记录并返回 true，已记录过则返回 false。
// 检查与写入在同一把锁内完成，两条通道对同一签名竞争时只有一方拿到 true。
func (s *SeenSignatures) TryMark(signature string) bool {
	key := xxhash.Sum64String(signature)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[key]; ok {
		return false
	}

	s.set[key] = struct{}{}
	s.order = append(s.order, key)

	if len(s.order) > s.maxEntries {
		s.truncateLocked()
	}
	return true
}

// Forget 将签名从集合移除，之后可以重新 TryMark。
// 用于标记后入队失败的回滚，另一条通道再看到该签名时还有机会处理。
func (s *SeenSignatures) Forget(signature string) {
	key := xxhash.Sum64String(signature)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[key]; !ok {
		return
	}
	delete(s.set, key)

	// 回滚紧跟在 TryMark 之后，目标几乎总在尾部
	for i := len(s.order) - 1; i >= 0; i-- {
		if s.order[i] == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Contains 只读探测，不修改集合
func (s *SeenSignatures) Contains(signature string) bool {
	key := xxhash.Sum64String(signature)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.set[key]
	return ok
}

func (s *SeenSignatures) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// truncateLocked 驱逐最旧的条目，仅保留最近插入的 keepEntries 条
func (s *SeenSignatures) truncateLocked() {
	kept := make([]uint64, s.keepEntries, s.maxEntries)
	copy(kept, s.order[len(s.order)-s.keepEntries:])

	utils.ClearOrResetMap(&s.set, s.maxEntries, s.maxEntries)
	for _, key := range kept {
		s.set[key] = struct{}{}
	}
	s.order = kept
}
