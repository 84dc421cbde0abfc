package config

import (
	"fmt"

	"github.com/KatriaDopex/jestermaxxing/internal/consts"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/mq"
)

type ServerConfig struct {
	Port int `json:"port" yaml:"port"` // REST 服务端口
}

type LogConfig struct {
	Format   string `json:"format" yaml:"format"`     // 日志格式，可选 "console"（开发调试）或 "json"（结构化，推荐生产使用）
	LogDir   string `json:"log_dir" yaml:"log_dir"`   // 日志文件目录，可为相对路径或绝对路径
	Level    string `json:"level" yaml:"level"`       // 日志级别：debug / info / warn / error
	Compress bool   `json:"compress" yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

type RpcConf struct {
	Endpoint   string `json:"endpoint" yaml:"endpoint"`       // HTTP RPC 节点地址
	WsEndpoint string `json:"ws_endpoint" yaml:"ws_endpoint"` // WS 节点地址
	TimeoutMs  int    `json:"timeout_ms" yaml:"timeout_ms"`   // 单次请求超时（ms）
}

type TokenConfig struct {
	Mint          string  `json:"mint" yaml:"mint"`                     // 代币铸币地址，空值使用默认值
	DustThreshold float64 `json:"dust_threshold" yaml:"dust_threshold"` // 粉尘金额阈值，低于该值的转移忽略
}

// IngestConfig 接入通道配置
type IngestConfig struct {
	PollIntervalMs int `json:"poll_interval_ms" yaml:"poll_interval_ms"` // 轮询间隔（ms）
}

// StatsConfig 统计任务配置
type StatsConfig struct {
	HolderCountSource   string `json:"holder_count_source" yaml:"holder_count_source"`     // 持有人数来源：registry（榜单）/ chain（全链扫描）
	HolderRefreshMs     int    `json:"holder_refresh_ms" yaml:"holder_refresh_ms"`         // 持有人榜单刷新间隔（ms）
	WindowResyncMs      int    `json:"window_resync_ms" yaml:"window_resync_ms"`           // 24h 交易数重对账间隔（ms）
	AccumulationPruneMs int    `json:"accumulation_prune_ms" yaml:"accumulation_prune_ms"` // 累计买入清理间隔（ms）
	SupplyRefreshMs     int    `json:"supply_refresh_ms" yaml:"supply_refresh_ms"`         // 供应量刷新间隔（ms）
	BaselineDbPath      string `json:"baseline_db_path" yaml:"baseline_db_path"`           // 持有人基线 SQLite 路径
}

type Config struct {
	Server              ServerConfig          `json:"server" yaml:"server"`                 // REST/监控配置
	LogConf             LogConfig             `json:"logger" yaml:"logger"`                 // 日志配置
	Rpc                 RpcConf               `json:"rpc" yaml:"rpc"`                       // 链上 RPC 配置
	Token               TokenConfig           `json:"token" yaml:"token"`                   // 代币配置
	Ingest              IngestConfig          `json:"ingest" yaml:"ingest"`                 // 接入通道配置
	Stats               StatsConfig           `json:"stats" yaml:"stats"`                   // 统计任务配置
	KafkaProducerConfig *mq.KafkaProducerConf `json:"kafka_producer" yaml:"kafka_producer"` // Kafka 生产者配置，nil 表示关闭推送
}

// Validate 填充默认值并校验必填项
func (c *Config) Validate() error {
	if c.Rpc.Endpoint == "" {
		return fmt.Errorf("rpc.endpoint is required")
	}
	if c.Rpc.WsEndpoint == "" {
		return fmt.Errorf("rpc.ws_endpoint is required")
	}
	if c.Token.Mint == "" {
		c.Token.Mint = consts.DefaultMintStr
	}
	if c.Stats.HolderCountSource == "" {
		c.Stats.HolderCountSource = "registry"
	}
	if c.Stats.HolderCountSource != "registry" && c.Stats.HolderCountSource != "chain" {
		return fmt.Errorf("stats.holder_count_source must be registry or chain, got %q", c.Stats.HolderCountSource)
	}
	return nil
}
