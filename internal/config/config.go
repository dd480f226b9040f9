// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 SEOROCKET_DATABASE_DSN 覆盖 database.dsn
const EnvPrefix = "SEOROCKET"

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Search   SearchConfig   `mapstructure:"search"`
	Legacy   LegacyConfig   `mapstructure:"legacy"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// LoginRate 每个 IP 每分钟允许的登录次数
	LoginRate int `mapstructure:"login_rate"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// DatabaseConfig 中 DSN 为空表示未配置数据库，服务以只读的 JSON 文件模式运行。
type DatabaseConfig struct {
	Driver string      `mapstructure:"driver"`
	DSN    string      `mapstructure:"dsn"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// AdminConfig 用户表为空时创建的初始管理员
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type RealtimeConfig struct {
	DataDebounce  time.Duration `mapstructure:"data_debounce"`
	FocusDebounce time.Duration `mapstructure:"focus_debounce"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Coalesce      bool          `mapstructure:"coalesce"`
	RedisChannel  string        `mapstructure:"redis_channel"`
}

type SearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
}

type LegacyConfig struct {
	DataFile string `mapstructure:"data_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.login_rate", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.redis.addr", "")
	v.SetDefault("jwt.access_token_expire_hours", 2)
	v.SetDefault("jwt.refresh_token_expire_days", 7)
	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("realtime.data_debounce", "500ms")
	v.SetDefault("realtime.focus_debounce", "1s")
	v.SetDefault("realtime.poll_interval", "10s")
	v.SetDefault("realtime.coalesce", true)
	v.SetDefault("realtime.redis_channel", "seorocket:changes")
	v.SetDefault("search.enabled", false)
	v.SetDefault("search.index", "seorocket-products")
	v.SetDefault("legacy.data_file", "data/products.json")
}

// Load 读取 .env、YAML 配置文件与 SEOROCKET_ 前缀的环境变量，后者优先。
// 配置文件不存在时只使用默认值与环境变量。
func Load(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return conf, nil
}

// Init 加载配置到全局 Conf，失败直接 panic
func Init(configPath string) {
	conf, err := Load(configPath)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	Conf = conf
}
