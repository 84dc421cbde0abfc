package classify

import (
	"time"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
)

// DefaultDustThreshold 低于该数量的余额变化按噪声忽略
const DefaultDustThreshold = 1e-6

// HolderView 分类时需要的持有人信息视图，由 holder.Registry 实现
type HolderView interface {
	PoolAddress() (types.Pubkey, bool)
	IsKnownHolder(types.Pubkey) bool
}

// Classifier 将一笔交易的余额变化转换为已分类的转移事件
type Classifier struct {
	holders HolderView
	dust    float64
}

func NewClassifier(holders HolderView, dustThreshold float64) *Classifier {
	if dustThreshold <= 0 {
		dustThreshold = DefaultDustThreshold
	}
	return &Classifier{holders: holders, dust: dustThreshold}
}

// Classify 把账户余额变化划分为发送方（负变化）和接收方（正变化），
// 对每个 发送方×接收方 组合产出一条事件，金额取 min(|发送方变化|, 接收方变化)。
// 这是对真实资金流的刻意简化：单条链上指令的参与方可能多于 1:1 模型能表达的
// 数量，多发送方×多接收方时金额会被重复计入，不做精确的账本还原。
// 输入顺序决定输出顺序，相同输入的输出完全一致。
func (c *Classifier) Classify(detail *types.TxDetail) []types.TransactionEvent {
	if detail == nil || len(detail.Deltas) == 0 {
		return nil
	}

	var senders, receivers []types.BalanceDelta
	for _, d := range detail.Deltas {
		delta := d.Delta()
		switch {
		case delta <= -c.dust:
			senders = append(senders, d)
		case delta >= c.dust:
			receivers = append(receivers, d)
		}
	}
	if len(senders) == 0 || len(receivers) == 0 {
		return nil
	}

	pool, hasPool := c.holders.PoolAddress()
	now := time.Now()

	events := make([]types.TransactionEvent, 0, len(senders)*len(receivers))
	for _, s := range senders {
		for _, r := range receivers {
			amount := min(-s.Delta(), r.Delta())
			if amount < c.dust {
				continue
			}

			// 分类要用注册表当前的池子地址，而不是加载时的快照
			class := types.ClassTransfer
			if hasPool {
				switch {
				case s.Owner == pool:
					class = types.ClassBuy
				case r.Owner == pool:
					class = types.ClassSell
				}
			}

			events = append(events, types.TransactionEvent{
				Signature:      detail.Signature,
				From:           s.Owner,
				To:             r.Owner,
				FromAddress:    s.Owner.String(),
				ToAddress:      r.Owner.String(),
				Amount:         amount,
				Classification: class,
				Kind:           class.String(),
				ToPostBalance:  r.PostBalance,
				FromIsHolder:   c.holders.IsKnownHolder(s.Owner),
				ToIsHolder:     c.holders.IsKnownHolder(r.Owner),
				Timestamp:      now,
			})
		}
	}
	return events
}
