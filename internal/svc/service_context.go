package svc

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/KatriaDopex/jestermaxxing/internal/config"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/chain"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
	"github.com/KatriaDopex/jestermaxxing/internal/storage"
)

type ServiceContext struct {
	Cfg           *config.Config
	Mint          types.Pubkey
	MintPk        solana.PublicKey // 订阅通道使用的公钥表示
	ChainClient   *chain.Client
	BaselineStore *storage.BaselineStore
}

func NewServiceContext(c *config.Config) *ServiceContext {
	mint, err := types.TryPubkeyFromString(c.Token.Mint)
	if err != nil {
		panic(fmt.Sprintf("invalid mint address %q: %v", c.Token.Mint, err))
	}

	baselineStore, err := storage.NewBaselineStore(c.Stats.BaselineDbPath)
	if err != nil {
		panic(err)
	}

	return &ServiceContext{
		Cfg:           c,
		Mint:          mint,
		MintPk:        solana.PublicKeyFromBytes(mint[:]),
		ChainClient:   chain.NewClient(c.Rpc.Endpoint, mint, c.Rpc.TimeoutMs),
		BaselineStore: baselineStore,
	}
}
