package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Remover RemoverConfig `mapstructure:"remover"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	MaxPixels    int      `mapstructure:"max_pixels"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// RemoverConfig 背景去除后端配置
type RemoverConfig struct {
	Backend         string        `mapstructure:"backend"` // automask, remote, grabcut, none
	Endpoint        string        `mapstructure:"endpoint"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	QueueTimeout    time.Duration `mapstructure:"queue_timeout"`
	AnalysisMaxSide int           `mapstructure:"analysis_max_side"`
	Iterations      int           `mapstructure:"iterations"`
	BorderSize      int           `mapstructure:"border_size"`
}

// Load 从 YAML 文件加载配置，环境变量优先
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，使用默认值和环境变量
		return Default()
	}
	return cfg
}

// Default 返回默认配置（叠加环境变量）
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	v.SetEnvPrefix("CUTOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "CUTOUT_SERVER_PORT", "PORT")

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Server.Port = normalizePort(cfg.Server.Port)
	return &cfg, nil
}

// normalizePort 兼容 PORT=5001 这种只给端口号的写法
func normalizePort(port string) string {
	if port == "" || strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":5001")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.request_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 20*1024*1024)
	v.SetDefault("upload.max_pixels", 40_000_000)
	v.SetDefault("upload.allowed_types", []string{
		"image/jpeg", "image/jpg", "image/png", "image/gif",
		"image/webp", "image/bmp", "image/tiff",
	})

	// 默认不依赖外部模型，生产环境建议 remote
	v.SetDefault("remover.backend", "automask")
	v.SetDefault("remover.endpoint", "http://localhost:7000/api/remove")
	v.SetDefault("remover.timeout", 60*time.Second)
	v.SetDefault("remover.max_concurrent", 3)
	v.SetDefault("remover.queue_timeout", 30*time.Second)
	v.SetDefault("remover.analysis_max_side", 512)
	v.SetDefault("remover.iterations", 5)
	v.SetDefault("remover.border_size", 10)
}
