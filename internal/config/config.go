package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	OCR       OCRConfig       `mapstructure:"ocr"`
	AI        AIConfig        `mapstructure:"ai"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Upload    UploadConfig    `mapstructure:"upload"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

// OCRConfig Mistral OCR 服务配置
type OCRConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// AIConfig Groq 托管大模型配置（OpenAI 兼容接口）
type AIConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	ExtractionModel string `mapstructure:"extraction_model"`
	AnswerKeyModel  string `mapstructure:"answer_key_model"`
	VisionModel     string `mapstructure:"vision_model"`
	ChatModel       string `mapstructure:"chat_model"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// PipelineConfig 提取管线参数
type PipelineConfig struct {
	AnswerKeyPageWindow  int `mapstructure:"answer_key_page_window"` // 答案页检测窗口（末尾页数）
	ReconcileIntervalMin int `mapstructure:"reconcile_interval_min"` // 孤儿对象清理周期（分钟）
}

// UploadConfig 上传限制
type UploadConfig struct {
	MaxFileSizeMB int `mapstructure:"max_file_size_mb"`
	MaxPages      int `mapstructure:"max_pages"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("EXAM_TUTOR")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// OCR
	viper.BindEnv("ocr.base_url", "OCR_BASE_URL")
	viper.BindEnv("ocr.api_key", "OCR_API_KEY")
	viper.BindEnv("ocr.model", "OCR_MODEL")

	// AI
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.extraction_model", "AI_EXTRACTION_MODEL")
	viper.BindEnv("ai.answer_key_model", "AI_ANSWER_KEY_MODEL")
	viper.BindEnv("ai.vision_model", "AI_VISION_MODEL")
	viper.BindEnv("ai.chat_model", "AI_CHAT_MODEL")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")
	viper.BindEnv("storage.minio_use_ssl", "MINIO_USE_SSL")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Pipeline.AnswerKeyPageWindow <= 0 {
		cfg.Pipeline.AnswerKeyPageWindow = 4
	}
	if cfg.Pipeline.ReconcileIntervalMin <= 0 {
		cfg.Pipeline.ReconcileIntervalMin = 60
	}
	if cfg.Upload.MaxFileSizeMB <= 0 {
		cfg.Upload.MaxFileSizeMB = 20
	}
	if cfg.Upload.MaxPages <= 0 {
		cfg.Upload.MaxPages = 40
	}
	if cfg.OCR.MaxRetries <= 0 {
		cfg.OCR.MaxRetries = 2
	}
	if cfg.AI.MaxRetries <= 0 {
		cfg.AI.MaxRetries = 3
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}
