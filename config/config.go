package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Upload    UploadConfig    `mapstructure:"upload"`
	GrabCut   GrabCutConfig   `mapstructure:"grabcut"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Variants  VariantsConfig  `mapstructure:"variants"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
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
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// GrabCutConfig 产品分割参数
type GrabCutConfig struct {
	Strategy       string `mapstructure:"strategy"` // grabcut, edge, none
	Iterations     int    `mapstructure:"iterations"`
	WorkSize       int    `mapstructure:"work_size"`
	Clusters       int    `mapstructure:"clusters"`
	ColorTolerance int    `mapstructure:"color_tolerance"`
	MaxConcurrent  int    `mapstructure:"max_concurrent"`
	QueueTimeout   int    `mapstructure:"queue_timeout"`
}

// OptimizerConfig 主流程参数
type OptimizerConfig struct {
	CanvasSize      int     `mapstructure:"canvas_size"`
	FillRatio       float64 `mapstructure:"fill_ratio"`
	MaxOutputKB     int     `mapstructure:"max_output_kb"`
	SkipMaxKB       int     `mapstructure:"skip_max_kb"`
	BrightThreshold int     `mapstructure:"bright_threshold"`
	BrightFraction  float64 `mapstructure:"bright_fraction"`
	MinQuality      int     `mapstructure:"min_quality"`
	MaxQuality      int     `mapstructure:"max_quality"`
	FallbackQuality int     `mapstructure:"fallback_quality"`
}

// VariantsConfig 变体生成参数
type VariantsConfig struct {
	OutputSize    int     `mapstructure:"output_size"`
	MinKB         int     `mapstructure:"min_kb"`
	MaxKB         int     `mapstructure:"max_kb"`
	ZoomOutFactor float64 `mapstructure:"zoom_out_factor"`
	RotationDeg   float64 `mapstructure:"rotation_deg"`
	Contrast      float64 `mapstructure:"contrast"`
	Saturation    float64 `mapstructure:"saturation"`
	Warmth        int     `mapstructure:"warmth"`
	MaxConcurrent int     `mapstructure:"max_concurrent"`
	SeedMode      string  `mapstructure:"seed_mode"` // random, content
	DefaultLayout string  `mapstructure:"default_layout"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return Default()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 20*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg", "image/webp"})

	v.SetDefault("grabcut.strategy", "grabcut")
	v.SetDefault("grabcut.iterations", 5)
	v.SetDefault("grabcut.work_size", 800)
	v.SetDefault("grabcut.clusters", 3)
	v.SetDefault("grabcut.color_tolerance", 30)
	v.SetDefault("grabcut.max_concurrent", 3)
	v.SetDefault("grabcut.queue_timeout", 30)

	v.SetDefault("optimizer.canvas_size", 1200)
	v.SetDefault("optimizer.fill_ratio", 0.90)
	v.SetDefault("optimizer.max_output_kb", 180)
	v.SetDefault("optimizer.skip_max_kb", 200)
	v.SetDefault("optimizer.bright_threshold", 240)
	v.SetDefault("optimizer.bright_fraction", 0.60)
	v.SetDefault("optimizer.min_quality", 20)
	v.SetDefault("optimizer.max_quality", 95)
	v.SetDefault("optimizer.fallback_quality", 75)

	v.SetDefault("variants.output_size", 1200)
	v.SetDefault("variants.min_kb", 150)
	v.SetDefault("variants.max_kb", 300)
	v.SetDefault("variants.zoom_out_factor", 0.85)
	v.SetDefault("variants.rotation_deg", 3.0)
	v.SetDefault("variants.contrast", 12.0)
	v.SetDefault("variants.saturation", 10.0)
	v.SetDefault("variants.warmth", 10)
	v.SetDefault("variants.max_concurrent", 4)
	v.SetDefault("variants.seed_mode", "random")
	v.SetDefault("variants.default_layout", "2x3")

	v.SetDefault("database.dsn", "")

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      20 * 1024 * 1024,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg", "image/webp"},
		},
		GrabCut: GrabCutConfig{
			Strategy:       "grabcut",
			Iterations:     5,
			WorkSize:       800,
			Clusters:       3,
			ColorTolerance: 30,
			MaxConcurrent:  3,
			QueueTimeout:   30,
		},
		Optimizer: OptimizerConfig{
			CanvasSize:      1200,
			FillRatio:       0.90,
			MaxOutputKB:     180,
			SkipMaxKB:       200,
			BrightThreshold: 240,
			BrightFraction:  0.60,
			MinQuality:      20,
			MaxQuality:      95,
			FallbackQuality: 75,
		},
		Variants: VariantsConfig{
			OutputSize:    1200,
			MinKB:         150,
			MaxKB:         300,
			ZoomOutFactor: 0.85,
			RotationDeg:   3.0,
			Contrast:      12.0,
			Saturation:    10.0,
			Warmth:        10,
			MaxConcurrent: 4,
			SeedMode:      "random",
			DefaultLayout: "2x3",
		},
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}
