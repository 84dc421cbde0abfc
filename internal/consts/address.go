package consts

import "github.com/KatriaDopex/jestermaxxing/internal/feed/types"

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	// SPL Token 程序，用于按 mint 枚举代币账户
	TokenProgramStr = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

	// JESTERMAXXING 代币 mint，配置未指定时的默认值
	DefaultMintStr = "6WdHhpRY7vL8SQ69bd89tAj3sk8jsjBrCLDUTZSNpump"
)

var (
	TokenProgram = types.PubkeyFromString(TokenProgramStr)
	DefaultMint  = types.PubkeyFromString(DefaultMintStr)
)

// SPL 代币账户固定长度，getProgramAccounts 按 dataSize 过滤时使用
const TokenAccountDataSize = 165
