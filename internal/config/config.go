// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Email     EmailConfig     `mapstructure:"email"`
	MagicLink MagicLinkConfig `mapstructure:"magic_link"`
	Files     FilesConfig     `mapstructure:"files"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Public    PublicConfig    `mapstructure:"public"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmailConfig 存储 SMTP 发信相关的配置。
type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// MagicLinkConfig 存储登录魔法链接的配置。
type MagicLinkConfig struct {
	ExpireMinutes int `mapstructure:"expire_minutes"`
	// 同一邮箱在滑动窗口内允许的请求次数（防滥用）。
	RateLimitPerHour int `mapstructure:"rate_limit_per_hour"`
}

// FilesConfig 存储文件上传相关的配置。
type FilesConfig struct {
	MaxSizeBytes   int64 `mapstructure:"max_size_bytes"`
	ExpirationDays int   `mapstructure:"expiration_days"`
}

// LimitsConfig 存储按账户聚合的上传配额配置。
type LimitsConfig struct {
	MaxFilesPerDay int64 `mapstructure:"max_files_per_day"`
	MaxBytesPerDay int64 `mapstructure:"max_bytes_per_day"`
	MaxTotalFiles  int64 `mapstructure:"max_total_files"`
	MaxTotalBytes  int64 `mapstructure:"max_total_bytes"`
}

// DiscordConfig 存储 Discord 机器人接入相关的配置。
type DiscordConfig struct {
	// 机器人调用本服务时携带的共享密钥。
	BotToken string `mapstructure:"bot_token"`
	// Discord REST API 基础地址，留空则使用官方地址。
	APIBaseURL string `mapstructure:"api_base_url"`
	// 上传会话的有效期（分钟）。
	SessionExpireMinutes int `mapstructure:"session_expire_minutes"`
}

// PublicConfig 存储对外可见的访问地址配置。
type PublicConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	CDNBaseURL string `mapstructure:"cdn_base_url"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults(&Conf)
}

// applyDefaults 为未配置的项填充默认值。
func applyDefaults(c *Config) {
	if c.MagicLink.ExpireMinutes <= 0 {
		c.MagicLink.ExpireMinutes = 15
	}
	if c.MagicLink.RateLimitPerHour <= 0 {
		c.MagicLink.RateLimitPerHour = 10
	}
	if c.Files.MaxSizeBytes <= 0 {
		c.Files.MaxSizeBytes = 100 << 20
	}
	if c.Limits.MaxFilesPerDay <= 0 {
		c.Limits.MaxFilesPerDay = 50
	}
	if c.Limits.MaxBytesPerDay <= 0 {
		c.Limits.MaxBytesPerDay = 2 << 30
	}
	if c.Limits.MaxTotalFiles <= 0 {
		c.Limits.MaxTotalFiles = 500
	}
	if c.Limits.MaxTotalBytes <= 0 {
		c.Limits.MaxTotalBytes = 10 << 30
	}
	if c.Discord.SessionExpireMinutes <= 0 {
		c.Discord.SessionExpireMinutes = 15
	}
	if c.Discord.APIBaseURL == "" {
		c.Discord.APIBaseURL = "https://discord.com/api/v10"
	}
}
