package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"fulfillment-line/internal/types"
)

// DefaultRestockRule 默认补货规则：每次约三分之一的概率补货，且未达到上限
const DefaultRestockRule = "roll == 0 && level < limit"

// ErrInvalidConfig 启动参数或配置文件不合法
var ErrInvalidConfig = errors.New("invalid configuration")

// Config 定义应用程序的配置结构
// 使用 mapstructure 标签来映射配置文件中的字段
type Config struct {
	Stations           int           `mapstructure:"stations"`             // 工站数量 [1, MaxStations]
	Generate           bool          `mapstructure:"generate"`             // 是否自动生成随机订单
	Seed               int64         `mapstructure:"seed"`                 // 随机数种子，0 表示使用当前时间
	Inventory          []int         `mapstructure:"inventory"`            // 每个工站的初始库存 (6 个非负整数)
	GlobalCapacity     int           `mapstructure:"global_capacity"`      // 全局队列容量
	StationCapacity    int           `mapstructure:"station_capacity"`     // 工站队列容量
	DispatchIntervalMs int           `mapstructure:"dispatch_interval_ms"` // 分派器空闲时的休眠间隔
	GenerateIntervalMs int           `mapstructure:"generate_interval_ms"` // 自动生成订单的间隔
	PrepDelayMs        int           `mapstructure:"prep_delay_ms"`        // 模拟制作耗时
	Restock            RestockConfig `mapstructure:"restock"`              // 自动补货配置
	HTTPAddr           string        `mapstructure:"http_addr"`            // 控制 API 与展示服务地址，空表示不启动
	JournalPath        string        `mapstructure:"journal_path"`         // 订单审计日志路径，空表示不记录
	LogLevel           string        `mapstructure:"log_level"`            // debug/info/warn/error
}

// RestockConfig 定义自动补货的参数
type RestockConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	IntervalMs int    `mapstructure:"interval_ms"`
	Max        int    `mapstructure:"max"`  // 单种食材库存上限
	Rule       string `mapstructure:"rule"` // expr 规则，变量: station, ingredient, level, limit, roll
}

// RegisterFlags 注册启动参数
func RegisterFlags(fs *pflag.FlagSet) {
	fs.IntP("stations", "n", 2, fmt.Sprintf("number of stations (1..%d)", types.MaxStations))
	fs.BoolP("generate", "g", false, "generate random orders automatically")
	fs.Int64P("seed", "s", 0, "RNG seed (0 uses the current time)")
	fs.IntSlice("inventory", nil, "initial inventory for every station: pan,tomate,cebolla,lechuga,queso,carne")
	fs.String("config", "", "config file (default ./config.yaml if present)")
	fs.String("http-addr", ":8080", "control API and display address (empty disables)")
	fs.String("journal", "", "order journal file (empty disables)")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stations", 2)
	v.SetDefault("generate", false)
	v.SetDefault("seed", 0)
	v.SetDefault("inventory", []int{10, 10, 10, 10, 10, 10})
	v.SetDefault("global_capacity", types.DefaultGlobalQueueCapacity)
	v.SetDefault("station_capacity", types.DefaultStationQueueCapacity)
	v.SetDefault("dispatch_interval_ms", 100)
	v.SetDefault("generate_interval_ms", 100)
	v.SetDefault("prep_delay_ms", 300)
	v.SetDefault("restock.enabled", true)
	v.SetDefault("restock.interval_ms", 500)
	v.SetDefault("restock.max", 50)
	v.SetDefault("restock.rule", DefaultRestockRule)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("journal_path", "")
	v.SetDefault("log_level", "info")
}

// LoadConfig 从配置文件、环境变量 (LINE_ 前缀) 和命令行参数加载配置
// 优先级：命令行 > 环境变量 > 配置文件 > 默认值
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
		bindings := map[string]string{
			"stations":     "stations",
			"generate":     "generate",
			"seed":         "seed",
			"inventory":    "inventory",
			"http_addr":    "http-addr",
			"journal_path": "journal",
			"log_level":    "log-level",
		}
		for key, name := range bindings {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("绑定参数 %s 失败: %w", name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config") // 配置文件名称 (不带扩展名)
		v.SetConfigType("yaml")   // 配置文件类型
		v.AddConfigPath(".")      // 查找配置文件的路径 (当前目录)
	}

	// 读取配置文件，默认路径下找不到文件时使用默认值
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 将配置解析到结构体中
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查所有参数，一次性返回全部问题
func (c *Config) Validate() error {
	var errs error
	invalid := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Stations < 1 || c.Stations > types.MaxStations {
		invalid("stations must be in [1,%d], got %d", types.MaxStations, c.Stations)
	}
	if len(c.Inventory) != types.NumIngredients {
		invalid("inventory must have %d values, got %d", types.NumIngredients, len(c.Inventory))
	}
	for i, lvl := range c.Inventory {
		if lvl < 0 {
			invalid("inventory[%d] must be non-negative, got %d", i, lvl)
		}
	}
	if c.GlobalCapacity < 1 {
		invalid("global_capacity must be positive, got %d", c.GlobalCapacity)
	}
	if c.StationCapacity < 1 {
		invalid("station_capacity must be positive, got %d", c.StationCapacity)
	}
	if c.DispatchIntervalMs < 1 {
		invalid("dispatch_interval_ms must be positive, got %d", c.DispatchIntervalMs)
	}
	if c.GenerateIntervalMs < 1 {
		invalid("generate_interval_ms must be positive, got %d", c.GenerateIntervalMs)
	}
	if c.PrepDelayMs < 0 {
		invalid("prep_delay_ms must be non-negative, got %d", c.PrepDelayMs)
	}
	if c.Restock.Enabled {
		if c.Restock.IntervalMs < 1 {
			invalid("restock.interval_ms must be positive, got %d", c.Restock.IntervalMs)
		}
		if c.Restock.Max < 1 {
			invalid("restock.max must be positive, got %d", c.Restock.Max)
		}
		if strings.TrimSpace(c.Restock.Rule) == "" {
			invalid("restock.rule must not be empty")
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		invalid("%v", err)
	}
	return errs
}

// InitialLevels 返回初始库存向量，调用前需通过 Validate
func (c *Config) InitialLevels() types.Levels {
	var lv types.Levels
	copy(lv[:], c.Inventory)
	return lv
}

func (c *Config) DispatchInterval() time.Duration {
	return time.Duration(c.DispatchIntervalMs) * time.Millisecond
}

func (c *Config) GenerateInterval() time.Duration {
	return time.Duration(c.GenerateIntervalMs) * time.Millisecond
}

func (c *Config) PrepDelay() time.Duration {
	return time.Duration(c.PrepDelayMs) * time.Millisecond
}

func (c *Config) RestockInterval() time.Duration {
	return time.Duration(c.Restock.IntervalMs) * time.Millisecond
}

// ParseLevel 解析日志级别
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// Default 返回默认配置，主要用于测试
func Default() *Config {
	return &Config{
		Stations:           2,
		Inventory:          []int{10, 10, 10, 10, 10, 10},
		Seed:               1,
		GlobalCapacity:     types.DefaultGlobalQueueCapacity,
		StationCapacity:    types.DefaultStationQueueCapacity,
		DispatchIntervalMs: 100,
		GenerateIntervalMs: 100,
		PrepDelayMs:        300,
		Restock: RestockConfig{
			Enabled:    true,
			IntervalMs: 500,
			Max:        50,
			Rule:       DefaultRestockRule,
		},
		HTTPAddr: ":8080",
		LogLevel: "info",
	}
}
