package supply

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/blocto/solana-go-sdk/client"

	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/utils"
)

// Reading 一次供应量读数
type Reading struct {
	Total    float64 // 按精度换算后的总供应量
	IsBurned bool    // 铸币账户缺失或供应量为零
}

// Tracker 周期性读取代币铸币账户，解析 SPL Mint 布局得到总供应量
type Tracker struct {
	cli         *client.Client
	mint        string
	timeout     time.Duration
	lastLogTime atomic.Int64
}

func NewTracker(endpoint, mint string, timeoutMs int) *Tracker {
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}
	return &Tracker{
		cli:     client.NewClient(endpoint),
		mint:    mint,
		timeout: time.Duration(timeoutMs) * time.Millisecond,
	}
}

// Fetch 拉取当前供应量
func (t *Tracker) Fetch(ctx context.Context) (Reading, error) {
	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	infos, err := t.cli.GetMultipleAccounts(reqCtx, []string{t.mint})
	if err != nil {
		if utils.ThrottleLog(&t.lastLogTime, 3*time.Second) {
			logger.Errorf("[SupplyTracker] GetMultipleAccounts failed: %v", err)
		}
		return Reading{}, err
	}
	if len(infos) != 1 {
		return Reading{}, fmt.Errorf("GetMultipleAccounts returned %d accounts, expected 1", len(infos))
	}

	raw, decimals, burned := parseMintAccount(infos[0].Data)
	return Reading{
		Total:    utils.RawAmountToFloat64(raw, decimals),
		IsBurned: burned,
	}, nil
}

func parseMintAccount(data []byte) (uint64, uint8, bool) {
	// SPL Mint 布局偏移：
	// 0-3   : mintAuthorityOption (u32)
	// 4-35  : mintAuthority (PublicKey, 32 bytes)
	// 36-43 : supply (u64, little-endian)
	// 44    : decimals (u8)
	if len(data) < 45 { // 长度不足视为已销毁
		return 0, 0, true
	}

	supply := binary.LittleEndian.Uint64(data[36:44])
	decimals := data[44]
	if supply == 0 {
		return 0, decimals, true
	}
	return supply, decimals, false
}
