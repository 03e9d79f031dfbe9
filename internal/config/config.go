package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"openbook-cli-sol/internal/consts"
	"openbook-cli-sol/internal/pkg/logger"

	"github.com/zeromicro/go-zero/core/conf"
)

type LogConfig struct {
	Format   string `json:"format,default=console"` // 日志格式，支持 "console" 或 "json"
	LogDir   string `json:"log_dir,optional"`       // 日志目录，为空则只输出到 stderr
	Level    string `json:"level,default=info"`     // 日志级别：debug / info / warn / error
	Compress bool   `json:"compress,optional"`      // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// MarketConfig 目标市场与 DEX 程序，显式传入客户端构造，不依赖进程环境变量
type MarketConfig struct {
	MarketID  string `json:"market_id,optional"`
	ProgramID string `json:"program_id,optional"`
}

// RpcConfig Solana RPC 相关配置
type RpcConfig struct {
	Endpoint          string `json:"endpoint,optional"`
	Commitment        string `json:"commitment,default=confirmed,options=processed|confirmed|finalized"`
	ConfirmTimeoutSec int    `json:"confirm_timeout_sec,default=60"` // 发送后等待确认的最长时间
	PollIntervalMs    int    `json:"poll_interval_ms,default=500"`   // 轮询签名状态的间隔
	RequestTimeoutSec int    `json:"request_timeout_sec,default=30"` // 单次查询超时
}

// WalletConfig 签名账户及其关联账户
type WalletConfig struct {
	KeypairPath string `json:"keypair_path,optional"` // Solana CLI 格式的 keypair 文件
	OpenOrders  string `json:"open_orders,optional"`  // 指定 open orders 账户，为空则链上查找
	BaseWallet  string `json:"base_wallet,optional"`  // base token 账户，为空则使用 ATA
	QuoteWallet string `json:"quote_wallet,optional"` // quote token 账户，为空则使用 ATA
}

// DispatchConfig 命令分发相关参数
type DispatchConfig struct {
	SettleDelayMs        int `json:"settle_delay_ms,default=50000"`       // 确认后等待 crank 的固定延迟
	MaxCancelOrders      int `json:"max_cancel_orders,default=5"`         // 单次撤单最多处理的指令数
	MaxCancelOrdersPerTx int `json:"max_cancel_orders_per_tx,default=5"` // 每笔交易最多指令数
}

// CacheConfig 市场元数据缓存，RedisAddr 为空时不启用
type CacheConfig struct {
	RedisAddr string `json:"redis_addr,optional"`
	TtlSec    int    `json:"ttl_sec,default=3600"`
}

// CliConfig 是主配置结构体
type CliConfig struct {
	LogConf      LogConfig      `json:"logger,optional"`
	MarketConf   MarketConfig   `json:"market,optional"`
	RpcConf      RpcConfig      `json:"rpc,optional"`
	WalletConf   WalletConfig   `json:"wallet,optional"`
	DispatchConf DispatchConfig `json:"dispatch,optional"`
	CacheConf    CacheConfig    `json:"cache,optional"`
}

const (
	defaultRpcEndpoint = "https://api.mainnet-beta.solana.com"

	envRpcURL     = "RPC_URL"
	envKeypair    = "KEY"
	envOpenOrders = "OOS_KEY"
)

// Default 返回全部默认值，配置文件中出现的字段会覆盖它
func Default() CliConfig {
	return CliConfig{
		LogConf: LogConfig{Format: "console", Level: "info"},
		MarketConf: MarketConfig{
			MarketID:  consts.DefaultMarketStr,
			ProgramID: consts.OpenBookV1ProgramStr,
		},
		RpcConf: RpcConfig{
			Endpoint:          defaultRpcEndpoint,
			Commitment:        "confirmed",
			ConfirmTimeoutSec: 60,
			PollIntervalMs:    500,
			RequestTimeoutSec: 30,
		},
		DispatchConf: DispatchConfig{
			SettleDelayMs:        int(consts.CrankDelay / time.Millisecond),
			MaxCancelOrders:      consts.MaxCancelOrders,
			MaxCancelOrdersPerTx: consts.MaxCancelOrdersPerTx,
		},
		CacheConf: CacheConfig{TtlSec: 3600},
	}
}

// Load 读取配置文件（支持 ${ENV} 展开）；path 为空时只使用默认值。
// 之后再叠加 RPC_URL / KEY / OOS_KEY 环境变量。
func Load(path string) (CliConfig, error) {
	c := Default()
	if path != "" {
		if err := conf.Load(path, &c, conf.UseEnv()); err != nil {
			return c, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	c.ApplyEnv(os.Getenv)
	c.Normalize()
	return c, nil
}

// ApplyEnv 环境变量优先于配置文件
func (c *CliConfig) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(envRpcURL)); v != "" {
		c.RpcConf.Endpoint = v
	}
	if v := strings.TrimSpace(getenv(envKeypair)); v != "" {
		c.WalletConf.KeypairPath = v
	}
	if v := strings.TrimSpace(getenv(envOpenOrders)); v != "" {
		c.WalletConf.OpenOrders = v
	}
}

// Normalize 兜底默认值
func (c *CliConfig) Normalize() {
	if c.LogConf.Format == "" {
		c.LogConf.Format = "console"
	}
	if c.LogConf.Level == "" {
		c.LogConf.Level = "info"
	}
	if c.MarketConf.MarketID == "" {
		c.MarketConf.MarketID = consts.DefaultMarketStr
	}
	if c.MarketConf.ProgramID == "" {
		c.MarketConf.ProgramID = consts.OpenBookV1ProgramStr
	}
	if c.RpcConf.Endpoint == "" {
		c.RpcConf.Endpoint = defaultRpcEndpoint
	}
	if c.RpcConf.Commitment == "" {
		c.RpcConf.Commitment = "confirmed"
	}
	if c.RpcConf.ConfirmTimeoutSec <= 0 {
		c.RpcConf.ConfirmTimeoutSec = 60
	}
	if c.RpcConf.PollIntervalMs <= 0 {
		c.RpcConf.PollIntervalMs = 500
	}
	if c.RpcConf.RequestTimeoutSec <= 0 {
		c.RpcConf.RequestTimeoutSec = 30
	}
	if c.DispatchConf.SettleDelayMs < 0 {
		c.DispatchConf.SettleDelayMs = int(consts.CrankDelay / time.Millisecond)
	}
	if c.DispatchConf.MaxCancelOrders < 0 {
		c.DispatchConf.MaxCancelOrders = consts.MaxCancelOrders
	}
	if c.DispatchConf.MaxCancelOrdersPerTx <= 0 {
		c.DispatchConf.MaxCancelOrdersPerTx = consts.MaxCancelOrdersPerTx
	}
	if c.CacheConf.TtlSec <= 0 {
		c.CacheConf.TtlSec = 3600
	}
}

func (c *RpcConfig) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSec) * time.Second
}

func (c *RpcConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *RpcConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c *DispatchConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TtlSec) * time.Second
}
