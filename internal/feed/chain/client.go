package chain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/KatriaDopex/jestermaxxing/internal/consts"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/utils"
)

// LargestAccount getTokenLargestAccounts 返回的单个代币账户
type LargestAccount struct {
	TokenAccount types.Pubkey
	Balance      float64 // 展示单位
}

// Client 封装对 Solana JSON-RPC 的只读访问，所有调用都带统一超时
type Client struct {
	rpc     *rpc.Client
	mint    solana.PublicKey
	timeout time.Duration
}

func NewClient(endpoint string, mint types.Pubkey, timeoutMs int) *Client {
	if timeoutMs <= 0 {
		timeoutMs = 10_000
	}
	return &Client{
		rpc:     rpc.New(endpoint),
		mint:    solana.PublicKeyFromBytes(mint[:]),
		timeout: time.Duration(timeoutMs) * time.Millisecond,
	}
}

func (c *Client) Mint() types.Pubkey {
	var p types.Pubkey
	copy(p[:], c.mint[:])
	return p
}

// RecentSignatures 拉取 mint 地址最近的交易签名，按 RPC 返回顺序（新到旧）
func (c *Client) RecentSignatures(ctx context.Context, before string, limit int) ([]types.SignatureInfo, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	}
	if before != "" {
		sig, err := solana.SignatureFromBase58(before)
		if err != nil {
			return nil, fmt.Errorf("invalid before signature %q: %w", before, err)
		}
		opts.Before = sig
	}

	sigs, err := c.rpc.GetSignaturesForAddressWithOpts(reqCtx, c.mint, opts)
	if err != nil {
		return nil, fmt.Errorf("getSignaturesForAddress: %w", err)
	}

	out := make([]types.SignatureInfo, 0, len(sigs))
	for _, s := range sigs {
		if s == nil {
			continue
		}
		info := types.SignatureInfo{
			Signature: s.Signature.String(),
			Failed:    s.Err != nil,
		}
		if s.BlockTime != nil {
			info.BlockTime = s.BlockTime.Time().Unix()
		}
		out = append(out, info)
	}
	return out, nil
}

// TransactionDetail 拉取一笔交易的完整明细，并抽取被跟踪 mint 的余额变化。
// 明细按 accountIndex 升序排列，保证相同输入的输出顺序确定。
func (c *Client) TransactionDetail(ctx context.Context, signature string) (*types.TxDetail, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// 余额变化只依赖 meta 的 pre/post token balances，与交易体编码无关；
	// 客户端对 getTransaction 只接受 base58/base64 系列编码
	maxVersion := uint64(0)
	tx, err := c.rpc.GetTransaction(reqCtx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("getTransaction %s: %w", signature, err)
	}
	if tx == nil || tx.Meta == nil {
		return nil, fmt.Errorf("getTransaction %s: empty meta", signature)
	}

	detail := &types.TxDetail{
		Signature: signature,
		Deltas:    extractDeltas(tx.Meta, c.mint),
	}
	if tx.BlockTime != nil {
		detail.BlockTime = tx.BlockTime.Time().Unix()
	}
	return detail, nil
}

// extractDeltas 将 pre/post token balances 合并为按账户的余额变化列表。
// 同一笔交易里一个账户只出现一次；没有 owner 的记录跳过（残缺数据）。
func extractDeltas(meta *rpc.TransactionMeta, mint solana.PublicKey) []types.BalanceDelta {
	type entry struct {
		accountIndex uint16
		delta        types.BalanceDelta
		hasPost      bool
	}
	byIndex := make(map[uint16]*entry, len(meta.PostTokenBalances))

	for _, post := range meta.PostTokenBalances {
		if !post.Mint.Equals(mint) || post.Owner == nil || post.UiTokenAmount == nil {
			continue
		}
		var owner types.Pubkey
		copy(owner[:], post.Owner[:])
		byIndex[post.AccountIndex] = &entry{
			accountIndex: post.AccountIndex,
			delta: types.BalanceDelta{
				Owner:       owner,
				PostBalance: uiAmount(post.UiTokenAmount),
			},
			hasPost: true,
		}
	}

	for _, pre := range meta.PreTokenBalances {
		if !pre.Mint.Equals(mint) || pre.UiTokenAmount == nil {
			continue
		}
		if e, ok := byIndex[pre.AccountIndex]; ok {
			e.delta.PreBalance = uiAmount(pre.UiTokenAmount)
			continue
		}
		// 账户在交易后被关闭：post 缺失视为余额归零
		if pre.Owner == nil {
			continue
		}
		var owner types.Pubkey
		copy(owner[:], pre.Owner[:])
		byIndex[pre.AccountIndex] = &entry{
			accountIndex: pre.AccountIndex,
			delta: types.BalanceDelta{
				Owner:      owner,
				PreBalance: uiAmount(pre.UiTokenAmount),
			},
		}
	}

	entries := make([]*entry, 0, len(byIndex))
	for _, e := range byIndex {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].accountIndex < entries[j].accountIndex
	})

	deltas := make([]types.BalanceDelta, 0, len(entries))
	for _, e := range entries {
		deltas = append(deltas, e.delta)
	}
	return deltas
}

func uiAmount(a *rpc.UiTokenAmount) float64 {
	if a == nil {
		return 0
	}
	if a.UiAmount != nil {
		return *a.UiAmount
	}
	return utils.AmountToFloat64(a.Amount, a.Decimals)
}

// LargestTokenAccounts 返回 mint 余额最大的代币账户（最多 20 个，RPC 上限）
func (c *Client) LargestTokenAccounts(ctx context.Context) ([]LargestAccount, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.rpc.GetTokenLargestAccounts(reqCtx, c.mint, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("getTokenLargestAccounts: %w", err)
	}
	if res == nil {
		return nil, nil
	}

	out := make([]LargestAccount, 0, len(res.Value))
	for _, v := range res.Value {
		if v == nil {
			continue
		}
		var acc types.Pubkey
		copy(acc[:], v.Address[:])
		balance := 0.0
		if v.UiAmount != nil {
			balance = *v.UiAmount
		} else {
			balance = utils.AmountToFloat64(v.Amount, v.Decimals)
		}
		out = append(out, LargestAccount{TokenAccount: acc, Balance: balance})
	}
	return out, nil
}

// TokenAccountOwner 解析代币账户归属的钱包地址。
// SPL 代币账户布局：mint[0:32]、owner[32:64]、amount u64 LE[64:72]。
func (c *Client) TokenAccountOwner(ctx context.Context, tokenAccount types.Pubkey) (types.Pubkey, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.rpc.GetAccountInfoWithOpts(reqCtx, solana.PublicKeyFromBytes(tokenAccount[:]), &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("getAccountInfo %s: %w", tokenAccount, err)
	}
	if res == nil || res.Value == nil {
		return types.Pubkey{}, fmt.Errorf("getAccountInfo %s: account not found", tokenAccount)
	}

	data := res.Value.Data.GetBinary()
	if len(data) < 64 {
		return types.Pubkey{}, fmt.Errorf("getAccountInfo %s: data too short (%d)", tokenAccount, len(data))
	}

	var owner types.Pubkey
	copy(owner[:], data[32:64])
	return owner, nil
}

// TokenAccountCount 枚举 mint 的全部代币账户并统计非零余额数量。
// 只取每个账户的 amount 8 字节切片，控制响应体积。
func (c *Client) TokenAccountCount(ctx context.Context) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 3*c.timeout)
	defer cancel()

	amountOffset := uint64(64)
	amountLen := uint64(8)
	res, err := c.rpc.GetProgramAccountsWithOpts(reqCtx, solana.PublicKeyFromBytes(consts.TokenProgram[:]), &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
		DataSlice: &rpc.DataSlice{
			Offset: &amountOffset,
			Length: &amountLen,
		},
		Filters: []rpc.RPCFilter{
			{DataSize: consts.TokenAccountDataSize},
			{Memcmp: &rpc.RPCFilterMemcmp{
				Offset: 0,
				Bytes:  solana.Base58(c.mint[:]),
			}},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("getProgramAccounts: %w", err)
	}

	count := 0
	for _, acc := range res {
		if acc == nil || acc.Account == nil {
			continue
		}
		data := acc.Account.Data.GetBinary()
		if len(data) == 8 && !allZero(data) {
			count++
		}
	}
	return count, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
