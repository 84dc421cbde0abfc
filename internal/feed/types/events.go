package types

import "time"

// Classification 表示一次代币转移相对池子地址的分类结果
type Classification uint8

const (
	ClassTransfer Classification = iota // 普通转账
	ClassBuy                           // from 为池子地址
	ClassSell                          // to 为池子地址
)

func (c Classification) String() string {
	switch c {
	case ClassBuy:
		return "buy"
	case ClassSell:
		return "sell"
	default:
		return "transfer"
	}
}

// ConnStatus 摄取子系统的连接状态机
type ConnStatus uint8

const (
	StatusConnecting  ConnStatus = iota // 启动中 / 重连中
	StatusLive                          // 推送通道活跃
	StatusPollingOnly                   // 推送通道重试耗尽，仅轮询
	StatusError                         // 两条通道都不可用
)

func (s ConnStatus) String() string {
	switch s {
	case StatusLive:
		return "Live"
	case StatusPollingOnly:
		return "PollingOnly"
	case StatusError:
		return "Error"
	default:
		return "Connecting"
	}
}

// TransactionEvent 一条已分类的代币转移事件，创建后不可变
type TransactionEvent struct {
	Signature      string         `json:"signature"`
	From           Pubkey         `json:"-"`
	To             Pubkey         `json:"-"`
	FromAddress    string         `json:"from"`
	ToAddress      string         `json:"to"`
	Amount         float64        `json:"amount"` // 代币展示单位，恒为正
	Classification Classification `json:"-"`
	Kind           string         `json:"kind"` // Classification 的字符串形式
	ToPostBalance  float64        `json:"-"`    // 接收方交易后的余额，买入时用于修正持仓
	FromIsHolder   bool           `json:"fromIsHolder"`
	ToIsHolder     bool           `json:"toIsHolder"`
	Timestamp      time.Time      `json:"timestamp"` // 处理时间，并非链上时间
}

// HolderRecord 排名榜中的一个持有人
type HolderRecord struct {
	Address Pubkey  `json:"-"`
	Owner   string  `json:"address"`
	Balance float64 `json:"balance"`
	Rank    int     `json:"rank"`   // 1 起始的稠密排名
	IsPool  bool    `json:"isPool"` // 仅 rank 1 为 true
}

// StatsSnapshot 聚合统计的一次只读快照
type StatsSnapshot struct {
	TxCount24h           uint64    `json:"txCount24h"`
	HolderCount          int       `json:"holderCount"`
	HolderChange24h      int       `json:"holderChange24h"`
	TopAccumulator       string    `json:"topAccumulator"` // 空串表示窗口内尚无买入
	TopAccumulatorAmount float64   `json:"topAccumulatorAmount"`
	TotalSupply          float64   `json:"totalSupply"`
	SupplyBurned         bool      `json:"supplyBurned"`
	TakenAt              time.Time `json:"takenAt"`
}

// BalanceDelta 一笔链上交易中单个账户对被跟踪代币的余额变化
type BalanceDelta struct {
	Owner       Pubkey  // 代币账户归属的钱包地址
	PreBalance  float64 // 交易前余额（展示单位）
	PostBalance float64 // 交易后余额（展示单位）
}

func (d BalanceDelta) Delta() float64 {
	return d.PostBalance - d.PreBalance
}

// SignatureInfo 签名列表查询返回的单条摘要
type SignatureInfo struct {
	Signature string
	Failed    bool  // 链上执行失败
	BlockTime int64 // Unix 秒，0 表示未知
}

// TxDetail 一笔交易的完整明细中与分类相关的部分
type TxDetail struct {
	Signature string
	Deltas    []BalanceDelta
	BlockTime int64
}
