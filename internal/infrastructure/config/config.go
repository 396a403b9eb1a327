package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ストレージドライバ
const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

// 監査ログのバックエンド
const (
	AuditBackendDatabase = "database"
	AuditBackendBolt     = "bolt"
)

// Config アプリケーション全体の設定
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Storage       StorageConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AdminAPI      AdminAPIConfig
	Token         TokenConfig
	Signing       SigningConfig
	Audit         AuditConfig
	Expiry        ExpiryConfig
	OpenTelemetry OpenTelemetryConfig
	Environment   string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"INFO"` // "DEBUG", "INFO", "WARN", "ERROR"
}

// ServerConfig サーバー設定
type ServerConfig struct {
	Port         int           `env:"SERVER_PORT" envDefault:"8080"`
	GRPCPort     int           `env:"GRPC_PORT" envDefault:"9090"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
}

// DatabaseConfig データベース設定
type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"3306"`
	User            string        `env:"DB_USER" envDefault:"root"`
	Password        string        `env:"DB_PASSWORD"`
	Database        string        `env:"DB_NAME" envDefault:"redemption_db"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"10m"`
}

// StorageConfig クーポンストアの設定
type StorageConfig struct {
	Driver   string `env:"STORAGE_DRIVER" envDefault:"mysql"` // "mysql", "memory"
	SeedFile string `env:"STORAGE_SEED_FILE"`                  // memoryドライバ用の初期データ
}

// RedisConfig Redis設定（リプレイキャッシュ）
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
}

// JWTConfig ダッシュボード認証用JWT設定
type JWTConfig struct {
	Secret     string        `env:"JWT_SECRET"`
	Issuer     string        `env:"JWT_ISSUER" envDefault:"merchant-dashboard"`
	Expiration time.Duration `env:"JWT_EXPIRATION" envDefault:"24h"`
}

// AdminAPIConfig 運用者向け管理API設定
type AdminAPIConfig struct {
	Enabled    bool     `env:"ADMIN_API_ENABLED" envDefault:"false"`
	APIKey     string   `env:"ADMIN_API_KEY"`
	AllowedIPs []string `env:"ADMIN_API_ALLOWED_IPS" envSeparator:","`
}

// TokenConfig 引き換えトークン設定
type TokenConfig struct {
	TTL       time.Duration `env:"TOKEN_TTL" envDefault:"60s"`
	ClockSkew time.Duration `env:"TOKEN_CLOCK_SKEW" envDefault:"5s"`
	Issuer    string        `env:"TOKEN_ISSUER" envDefault:"redemption-server"`
}

// SigningConfig 署名鍵設定
// KeysFileが指定された場合はファイルを優先し、未指定の場合は単一鍵で起動する
type SigningConfig struct {
	KeysFile   string        `env:"SIGNING_KEYS_FILE"`
	KeyVersion string        `env:"SIGNING_KEY_VERSION" envDefault:"v1"`
	KeySecret  string        `env:"SIGNING_KEY_SECRET"`
	Grace      time.Duration `env:"SIGNING_KEY_GRACE" envDefault:"5m"`
}

// AuditConfig 監査ログ設定
type AuditConfig struct {
	Backend  string `env:"AUDIT_BACKEND" envDefault:"database"` // "database", "bolt"
	BoltPath string `env:"AUDIT_BOLT_PATH" envDefault:"data/audit.db"`
}

// ExpiryConfig 期限切れクーポンの掃除設定
type ExpiryConfig struct {
	Enabled   bool          `env:"EXPIRY_SWEEP_ENABLED" envDefault:"true"`
	Interval  time.Duration `env:"EXPIRY_SWEEP_INTERVAL" envDefault:"1m"`
	BatchSize int           `env:"EXPIRY_SWEEP_BATCH" envDefault:"100"`
}

// OpenTelemetryConfig OpenTelemetry設定
type OpenTelemetryConfig struct {
	Enabled         bool   `env:"OTEL_ENABLED" envDefault:"true"`
	ServiceName     string `env:"OTEL_SERVICE_NAME" envDefault:"redemption-server"`
	ServiceVersion  string `env:"OTEL_SERVICE_VERSION" envDefault:"1.0.0"`
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"http://localhost:4318"`
	OTLPInsecure    bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	TraceExporter   string `env:"OTEL_TRACES_EXPORTER" envDefault:"otlp"`  // "otlp", "none"
	MetricsExporter string `env:"OTEL_METRICS_EXPORTER" envDefault:"otlp"` // "otlp", "none"
}

// Load 設定を読み込む
func Load() (*Config, error) {
	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// 必須設定の検証
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadDatabase データベース設定のみを読み込む（運用コマンド用）
func LoadDatabase() (*DatabaseConfig, error) {
	_ = godotenv.Load()

	cfg := &DatabaseConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.Host == "" || cfg.Database == "" {
		return nil, fmt.Errorf("DB_HOST and DB_NAME are required")
	}
	return cfg, nil
}

// validate 設定の検証
func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageMySQL:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER: %s", c.Storage.Driver)
	}

	switch c.Audit.Backend {
	case AuditBackendDatabase, AuditBackendBolt:
	default:
		return fmt.Errorf("unsupported AUDIT_BACKEND: %s", c.Audit.Backend)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AdminAPI.Enabled && c.AdminAPI.APIKey == "" {
		return fmt.Errorf("ADMIN_API_KEY is required when ADMIN_API_ENABLED is true")
	}
	if c.Signing.KeysFile == "" && c.Signing.KeySecret == "" {
		return fmt.Errorf("SIGNING_KEYS_FILE or SIGNING_KEY_SECRET is required")
	}
	if c.Token.TTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.Token.ClockSkew < 0 {
		return fmt.Errorf("TOKEN_CLOCK_SKEW must not be negative")
	}
	if c.Expiry.Enabled && (c.Expiry.Interval <= 0 || c.Expiry.BatchSize <= 0) {
		return fmt.Errorf("EXPIRY_SWEEP_INTERVAL and EXPIRY_SWEEP_BATCH must be positive")
	}
	return nil
}

// IsDevelopment 開発環境かどうかを返す
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// DSN データベース接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&multiStatements=true",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address Redis接続アドレスを返す
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AllowsIP IPアドレスが許可リスト（単一IPまたはCIDR）に含まれているかチェック
// 許可リストが空の場合は全て許可する
func (c *AdminAPIConfig) AllowsIP(ip string) bool {
	if len(c.AllowedIPs) == 0 {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, allowed := range c.AllowedIPs {
		allowed = strings.TrimSpace(allowed)
		if strings.Contains(allowed, "/") {
			if _, network, err := net.ParseCIDR(allowed); err == nil && network.Contains(parsed) {
				return true
			}
			continue
		}
		if allowedIP := net.ParseIP(allowed); allowedIP != nil && allowedIP.Equal(parsed) {
			return true
		}
	}
	return false
}
