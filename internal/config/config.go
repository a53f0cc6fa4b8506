package config

import (
	"fmt"
	"log"
	"math"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// StorageConfig 账户文件存储配置
// 每个账户一个 JSON 文件，备份快照放在独立目录
type StorageConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	BackupDir string `mapstructure:"backup_dir"`
}

// ArchiveConfig 流水归档库（SQLite）配置
type ArchiveConfig struct {
	Path          string `mapstructure:"path"`
	MaxRetryCount int    `mapstructure:"max_retry_count"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	TransactionAudit string `mapstructure:"transaction_audit"`
}

// LedgerConfig 账本业务策略
//
// 【注意】该部分支持热更新：修改配置文件后，新的费率/限额立即对后续
// 操作生效，但已创建账户的 MaxBalance 在开户时已固化，不受影响。
type LedgerConfig struct {
	TransactionFeeRate   float64  `mapstructure:"transaction_fee_rate"`   // 转账手续费率（0~1）
	DefaultStartBalance  int64    `mapstructure:"default_start_balance"`  // 开户初始余额
	DefaultMaxBalance    int64    `mapstructure:"default_max_balance"`    // 开户时固化的余额上限
	MinTransactionAmount int64    `mapstructure:"min_transaction_amount"` // 单笔最小金额
	MaxSingleTransaction int64    `mapstructure:"max_single_transaction"` // 单笔最大金额
	DailyWithdrawalLimit int64    `mapstructure:"daily_withdrawal_limit"` // 每日取款限额（0 表示不限）
	TransactionQueueSize int      `mapstructure:"transaction_queue_size"` // 异步流水队列容量
	CurrenciesAccepted   []string `mapstructure:"currencies_accepted"`    // 可接受的货币类别
	AutoBackup           bool     `mapstructure:"auto_backup"`            // 保存前是否先做快照备份
	BackupRetentionDays  int      `mapstructure:"backup_retention_days"`  // 备份保留天数
	VerboseLogs          bool     `mapstructure:"verbose_logs"`           // 是否打印每笔操作日志
	NotifyOnReceive      bool     `mapstructure:"notify_on_receive"`      // 收款方是否收到通知
	NotifyOnSend         bool     `mapstructure:"notify_on_send"`         // 付款方是否收到通知
	ShowBalanceInNotice  bool     `mapstructure:"show_balance_in_notice"` // 通知中是否附带余额
	ShowFeeInNotice      bool     `mapstructure:"show_fee_in_notice"`     // 通知中是否附带手续费
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	if err := config.Ledger.Validate(); err != nil {
		log.Fatalf("账本策略配置非法: %v", err)
	}

	return config
}

// WatchLedgerPolicy 监听配置文件变更，校验通过后回调新策略
// 校验失败的策略直接丢弃，继续沿用旧值
func WatchLedgerPolicy(apply func(LedgerConfig)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		next := &Config{}
		if err := viper.Unmarshal(next); err != nil {
			log.Printf("[Config] 配置重载解析失败，维持旧策略: %v", err)
			return
		}
		if err := next.Ledger.Validate(); err != nil {
			log.Printf("[Config] 配置重载校验失败，维持旧策略: %v", err)
			return
		}
		log.Printf("[Config] 账本策略已重载: %s", e.Name)
		apply(next.Ledger)
	})
	viper.WatchConfig()
}

// Validate 校验策略取值范围
func (c *LedgerConfig) Validate() error {
	if c.TransactionFeeRate < 0 || c.TransactionFeeRate > 1 {
		return fmt.Errorf("transaction_fee_rate 必须在 0~1 之间，当前 %v", c.TransactionFeeRate)
	}
	if c.DefaultStartBalance < 0 {
		return fmt.Errorf("default_start_balance 不能为负数")
	}
	if c.DefaultMaxBalance < 0 {
		return fmt.Errorf("default_max_balance 不能为负数")
	}
	if c.MinTransactionAmount < 0 || c.MaxSingleTransaction < 0 {
		return fmt.Errorf("单笔金额上下限不能为负数")
	}
	if c.MinTransactionAmount > c.MaxSingleTransaction {
		return fmt.Errorf("min_transaction_amount(%d) 不能大于 max_single_transaction(%d)",
			c.MinTransactionAmount, c.MaxSingleTransaction)
	}
	if c.DailyWithdrawalLimit < 0 {
		return fmt.Errorf("daily_withdrawal_limit 不能为负数")
	}
	if c.TransactionQueueSize <= 0 {
		return fmt.Errorf("transaction_queue_size 必须大于 0")
	}
	if c.BackupRetentionDays < 0 {
		return fmt.Errorf("backup_retention_days 不能为负数")
	}
	return nil
}

// CalculateFee 按当前费率计算转账手续费（向下取整）
func (c *LedgerConfig) CalculateFee(amount int64) int64 {
	return int64(math.Floor(float64(amount) * c.TransactionFeeRate))
}

// IsValidTransactionAmount 单笔金额是否在策略允许的区间内
func (c *LedgerConfig) IsValidTransactionAmount(amount int64) bool {
	if amount < c.MinTransactionAmount {
		return false
	}
	if amount > c.MaxSingleTransaction {
		return false
	}
	return true
}

// IsAcceptedCurrency 货币类别是否在白名单内
func (c *LedgerConfig) IsAcceptedCurrency(currency string) bool {
	for _, accepted := range c.CurrenciesAccepted {
		if accepted == currency {
			return true
		}
	}
	return false
}
