package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Otp      OtpConfig
	Email    EmailConfig
	Storage  StorageConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	// Для 'single', если не пуст, используется первый адрес из списка.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single'.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: Максимальное количество попыток переподключения (-1 - бесконечно). По умолчанию 0.
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff: Минимальный интервал между попытками (в миллисекундах). По умолчанию 8ms.
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`

	// MaxRetryBackoff: Максимальный интервал между попытками (в миллисекундах). По умолчанию 512ms.
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// OtpConfig содержит настройки кодов верификации email
type OtpConfig struct {
	// TTL — время жизни кода
	TTL time.Duration `mapstructure:"ttl"`
	// CleanupInterval — интервал фоновой очистки просроченных кодов
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// EmailConfig содержит настройки отправки почты через Resend
type EmailConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	From    string `mapstructure:"from"`
}

// StorageConfig содержит настройки хранилища файлов
type StorageConfig struct {
	// Driver: "supabase" или "local"
	Driver string `mapstructure:"driver"`

	SupabaseURL    string `mapstructure:"supabase_url"`
	SupabaseKey    string `mapstructure:"supabase_key"`
	SupabaseBucket string `mapstructure:"supabase_bucket"`

	// LocalDir и LocalBaseURL используются при Driver="local"
	LocalDir     string `mapstructure:"local_dir"`
	LocalBaseURL string `mapstructure:"local_base_url"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	vip.SetDefault("server.port", "8080")
	vip.SetDefault("otp.ttl", 5*time.Minute)
	vip.SetDefault("otp.cleanup_interval", time.Hour)
	vip.SetDefault("storage.driver", "local")
	vip.SetDefault("storage.local_dir", "./uploads")
	vip.SetDefault("storage.local_base_url", "/uploads")

	// Привязываем переменные окружения ЯВНО
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("otp.ttl", "OTP_TTL")
	vip.BindEnv("otp.cleanup_interval", "OTP_CLEANUP_INTERVAL")

	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	vip.BindEnv("storage.driver", "STORAGE_DRIVER")
	vip.BindEnv("storage.supabase_url", "SUPABASE_URL")
	vip.BindEnv("storage.supabase_key", "SUPABASE_SERVICE_KEY")
	vip.BindEnv("storage.supabase_bucket", "SUPABASE_BUCKET")
	vip.BindEnv("storage.local_dir", "STORAGE_LOCAL_DIR")
	vip.BindEnv("storage.local_base_url", "STORAGE_LOCAL_BASE_URL")

	vip.BindEnv("server.port", "SERVER_PORT")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Port: %s", cfg.Database.Port)
		log.Printf("Database User: %s", cfg.Database.User)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Otp TTL: %s", cfg.Otp.TTL)
		log.Printf("Email Enabled: %t", cfg.Email.Enabled)
		log.Printf("Storage Driver: %s", cfg.Storage.Driver)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("-----------------------------------------")
	}

	// Проверка обязательных параметров
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.Email.Enabled {
		if cfg.Email.APIKey == "" {
			return nil, fmt.Errorf("email is enabled but RESEND_API_KEY is not set")
		}
		if cfg.Email.From == "" {
			return nil, fmt.Errorf("email is enabled but EMAIL_FROM is not set")
		}
	}
	if cfg.Storage.Driver == "supabase" {
		if cfg.Storage.SupabaseURL == "" || cfg.Storage.SupabaseKey == "" || cfg.Storage.SupabaseBucket == "" {
			return nil, fmt.Errorf("supabase storage requires SUPABASE_URL, SUPABASE_SERVICE_KEY and SUPABASE_BUCKET")
		}
	}
	if os.Getenv("GIN_MODE") == "release" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("database password is required in release mode (check DATABASE_PASSWORD env var)")
	}

	return &cfg, nil
}
