package statsagg

import (
	"sync"
	"time"
)

const (
	bucketSeconds = 120 // 2分钟桶
	bucketCount   = 720 // 720 个桶覆盖 24 小时
)

// TxWindow 滑动 24 小时的交易计数，固定 720×2 分钟的桶环。
// 过期的桶在读写经过时清零，总内存恒定。
type TxWindow struct {
	mu          sync.Mutex
	counts      [bucketCount]uint32
	bucketStart [bucketCount]int64 // 每个槽位当前承载的桶起始时间（Unix 秒）
}

func NewTxWindow() *TxWindow {
	return &TxWindow{}
}

func bucketAlign(ts int64) int64 {
	return ts - ts%bucketSeconds
}

// Add 将一条事件计入其时间戳所属的桶，早于窗口起点的事件忽略
func (w *TxWindow) Add(ts time.Time) {
	now := time.Now().Unix()
	sec := ts.Unix()
	if sec <= now-bucketCount*bucketSeconds {
		return
	}

	start := bucketAlign(sec)
	slot := (start / bucketSeconds) % bucketCount

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.bucketStart[slot] != start {
		// 槽位还承载着上一圈的旧桶，先回收
		w.bucketStart[slot] = start
		w.counts[slot] = 0
	}
	w.counts[slot]++
}

// Count 返回最近 24 小时内的事件总数
func (w *TxWindow) Count() uint64 {
	cutoff := time.Now().Unix() - bucketCount*bucketSeconds

	w.mu.Lock()
	defer w.mu.Unlock()

	var total uint64
	for i := 0; i < bucketCount; i++ {
		if w.bucketStart[i] > cutoff && w.counts[i] > 0 {
			total += uint64(w.counts[i])
		}
	}
	return total
}
