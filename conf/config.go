package conf

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// 配置加载，启动时读取一次，之后只读

type Db struct {
	DbName   string `yaml:"dbname"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

// RedisConfig is used to configure redis
type RedisConfig struct {
	Addr         string `yaml:"address"`
	Password     string `yaml:"password"`
	Db           int    `yaml:"db"`
	PoolSize     int    `yaml:"pool-size"`
	MinIdleConns int    `yaml:"min-idle-conns"`
	IdleTimeout  int    `yaml:"idle-timeout"`
	LeaseTTL     int    `yaml:"lease-ttl" validate:"gte=0"` // 单写者租约（秒）
}

type KafkaConfig struct {
	Broker       string `yaml:"broker"`
	Topic        string `yaml:"topic"`
	CommandTopic string `yaml:"command-topic"` // 人工指令，为空时不消费
	GroupID      string `yaml:"group-id"`
}

type EmailConfig struct {
	Host       string   `yaml:"smtp-host"`
	Port       int      `yaml:"smtp-port"`
	Username   string   `yaml:"smtp-user"`
	Password   string   `yaml:"smtp-password"`
	Sender     string   `yaml:"smtp-sender"`
	Recipients []string `yaml:"recipients"`
	PreCheck   bool     `yaml:"precheck"` // 启动时校验收件人地址
}

// RecencyConfig 30分钟K线时效规则
type RecencyConfig struct {
	BarDistance       int     `yaml:"bar-distance" validate:"gte=0"`
	Inclusive         bool    `yaml:"inclusive"` // true: 间隔<=BarDistance
	SessionOpenHour   int     `yaml:"session-open-hour" validate:"gte=0,lte=23"`
	DailyGapLimit     int     `yaml:"daily-gap-limit" validate:"gte=0"`
	DailyGapWideLimit int     `yaml:"daily-gap-wide-limit" validate:"gte=0"`
	DailyGapWideDiff  float64 `yaml:"daily-gap-wide-diff" validate:"gte=0"`
	CrossingMaxGap    int     `yaml:"crossing-max-gap" validate:"gte=0"`
}

type TradeConfig struct {
	Balance                float64       `yaml:"balance" validate:"gte=0"`
	Directions             []string      `yaml:"directions" validate:"dive,oneof=long short"`
	Strategies             []string      `yaml:"strategies" validate:"dive,oneof=main bottom"`
	Journal                string        `yaml:"journal"`
	TickInterval           time.Duration `yaml:"tick-interval"`
	FinalWindowStart       string        `yaml:"final-window-start"`
	FinalWindowEnd         string        `yaml:"final-window-end"`
	BottomRequiresApproval bool          `yaml:"bottom-requires-approval"`
	Simulated              bool          `yaml:"simulated"`
	CandleCapacity         int           `yaml:"candle-capacity" validate:"gte=0"`
	Recency                RecencyConfig `yaml:"recency"`
	DataDir                string        `yaml:"data-dir"` // 模拟盘K线文件目录
	NodeID                 int64         `yaml:"node-id" validate:"gte=0,lte=1023"`
}

// ScaleConfig 单方向止盈止损倍数，价格 = 开仓价 * (1 ± base * 倍数)
type ScaleConfig struct {
	BaseScale         float64 `yaml:"base-scale" validate:"gt=0"`
	StopLossScale     float64 `yaml:"stop-loss-scale" validate:"gt=0"`
	ProfitStartScale1 float64 `yaml:"profit-start-scale-1" validate:"gte=0"`
	ProfitStartScale2 float64 `yaml:"profit-start-scale-2" validate:"gte=0"`
	PromoteScale      float64 `yaml:"promote-scale" validate:"gte=0"`
	PromoteTarget     float64 `yaml:"promote-target" validate:"gte=0"`
	SecondTarget      float64 `yaml:"second-target-scale" validate:"gte=0"`
}

// FutureConfig 单个品种
type FutureConfig struct {
	Symbol       string      `yaml:"symbol" validate:"required"` // 主连合约，如 KQ.m@SHFE.rb
	Name         string      `yaml:"name"`
	Active       bool        `yaml:"active"`
	Multiplier   float64     `yaml:"multiplier" validate:"gt=0"`
	OpenPosScale float64     `yaml:"open-pos-scale" validate:"gt=0,lte=1"`
	SwitchDays   []int       `yaml:"switch-days" validate:"len=2,dive,gte=0"` // [持仓换月天数, 空仓换月天数]
	MainMonths   []int       `yaml:"main-months" validate:"min=1,dive,gte=1,lte=12"`
	Long         ScaleConfig `yaml:"long"`
	Short        ScaleConfig `yaml:"short"`

	// 模拟盘使用：主连合约当前对应的具体合约与剩余天数
	Underlying     string `yaml:"underlying"`
	ExpireRestDays int    `yaml:"expire-rest-days" validate:"gte=0"`
}

func (f FutureConfig) TradeSwitchDays() int {
	return f.SwitchDays[0]
}

func (f FutureConfig) NoTradeSwitchDays() int {
	return f.SwitchDays[1]
}

type Config struct {
	AppName string `yaml:"app_name"`
	Listen  string `yaml:"listen"`
	Mode    string `yaml:"mode"`

	Db      `yaml:"database"`
	Log     LogConfig      `yaml:"log"`
	Redis   RedisConfig    `yaml:"redis"`
	Email   EmailConfig    `yaml:"email"`
	Kafka   KafkaConfig    `yaml:"kafka"`
	Trade   TradeConfig    `yaml:"trade"`
	Futures []FutureConfig `yaml:"futures" validate:"dive"`
}

var AppConfig Config

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Read config file error %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return err
	}
	AppConfig = *cfg
	return nil
}

// Parse 解析并校验配置，环境变量覆盖连接参数
func Parse(data []byte) (*Config, error) {
	cfg := Config{Trade: defaultTrade()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("Unmarshal config yaml error: %w", err)
	}
	applyEnv(&cfg)
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func defaultTrade() TradeConfig {
	return TradeConfig{
		Directions:       []string{"long", "short"},
		Strategies:       []string{"main"},
		Journal:          "logs/trades.jsonl",
		TickInterval:     time.Second,
		FinalWindowStart: "14:55",
		FinalWindowEnd:   "15:00",
		CandleCapacity:   300,
		Recency: RecencyConfig{
			BarDistance:       5,
			SessionOpenHour:   21,
			DailyGapLimit:     2,
			DailyGapWideLimit: 3,
			DailyGapWideDiff:  5,
			CrossingMaxGap:    5,
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Db.Password = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.DbName = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		cfg.Redis.Db = cast.ToInt(v)
	}
	if v := os.Getenv("KAFKA_BROKER"); v != "" {
		cfg.Kafka.Broker = v
	}
	if v := os.Getenv("TRADE_BALANCE"); v != "" {
		cfg.Trade.Balance = cast.ToFloat64(v)
	}
	if v := os.Getenv("TRADE_SIMULATED"); v != "" {
		cfg.Trade.Simulated = cast.ToBool(v)
	}
}

// Future 按主连合约查找品种配置
func (c *Config) Future(symbol string) (FutureConfig, bool) {
	for _, f := range c.Futures {
		if f.Symbol == symbol {
			return f, true
		}
	}
	return FutureConfig{}, false
}
