// Package config предоставляет структуры и функции для парсинга и загрузки конфига
// клиента доступа и staging-бэкенда.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string      `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string      `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string      `yaml:"migrations_path" env-default:"./migrations"`
	Backend                 Backend     `yaml:"backend"`
	Store                   Store       `yaml:"store"`
	Session                 Session     `yaml:"session"`
	SecretStore             SecretStore `yaml:"secret_store"`
	RabbitMQ                RabbitMQ    `yaml:"rabbitmq"`
	Account                 Account     `yaml:"account"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
}

// Backend структура для настройки клиента бэкенда подписок
type Backend struct {
	BaseURL string        `yaml:"base_url" env:"BACKEND_BASE_URL" env-default:"http://localhost:8080/api/v1"`
	Timeout time.Duration `yaml:"timeout" env-default:"15s"`
}

// Store структура для настройки платформы покупок
type Store struct {
	// Mode — sandbox (встроенный магазин) или storekit (подписанные транзакции из очереди).
	Mode      string `yaml:"mode" env:"STORE_MODE" env-default:"sandbox"`
	ProductID    string `yaml:"product_id" env-default:"com.homeworkhelper.premium.monthly"`
	ProductName  string `yaml:"product_name" env-default:"Homework Helper Premium"`
	ProductPrice string `yaml:"product_price" env-default:"$4.99"`
	// VerificationSecret — общий секрет HS256 для песочницы.
	VerificationSecret string `yaml:"verification_secret" env:"STORE_VERIFICATION_SECRET"`
	// VerificationKeyPath — PEM с публичным ключом ES256 для боевого режима.
	VerificationKeyPath string `yaml:"verification_key_path"`
	NotificationsQueue  string `yaml:"notifications_queue" env-default:"store.notifications"`
}

// Session структура для настройки повторной проверки сессии
type Session struct {
	// RevalidateInterval — минимальный интервал между проверками при возврате приложения
	// на передний план. Ноль отключает ограничение.
	RevalidateInterval time.Duration `yaml:"revalidate_interval" env-default:"5m"`
	SyncTimeout        time.Duration `yaml:"sync_timeout" env-default:"10s"`
	Timezone           string        `yaml:"timezone" env-default:"UTC"`
	// PollInterval — период, с которым клиент имитирует возврат на передний план.
	PollInterval time.Duration `yaml:"poll_interval" env-default:"1m"`
}

// SecretStore структура для настройки защищённого хранилища токена
type SecretStore struct {
	Path       string `yaml:"path" env-default:"./data/secrets.json"`
	Passphrase string `yaml:"passphrase" env:"SECRET_STORE_PASSPHRASE"`
}

// RabbitMQ структура для настройки подключения к брокеру
type RabbitMQ struct {
	URL     string        `yaml:"url" env:"RABBITMQ_URL"`
	Retries int           `yaml:"retries" env-default:"5"`
	Delay   time.Duration `yaml:"delay" env-default:"2s"`
}

// Account структура для настройки аккаунтов бэкенда
type Account struct {
	TrialPeriod  time.Duration `yaml:"trial_period" env-default:"168h"`
	UserCacheTTL time.Duration `yaml:"user_cache_ttl" env-default:"5m"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// RateLimit — запросов в секунду на открытые маршруты входа и регистрации.
	RateLimit float64 `yaml:"rate_limit" env-default:"5"`
	RateBurst int     `yaml:"rate_burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"720h"`
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH, при ошибке завершает процесс
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла и переменных окружения.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Location возвращает часовой пояс для расчёта календарных дней.
func (s Session) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"Backend:\n"+
			"  BaseURL: %s\n"+
			"  Timeout: %s\n"+
			"Store:\n"+
			"  Mode: %s\n"+
			"  ProductID: %s\n"+
			"Session:\n"+
			"  RevalidateInterval: %s\n"+
			"  Timezone: %s\n"+
			"SecretStore:\n"+
			"  Path: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  JWTSecretKey: %s\n"+
			"  TokenTTL: %s\n",
		c.Env,
		redact(c.StorageConnectionString),
		c.Backend.BaseURL,
		c.Backend.Timeout,
		c.Store.Mode,
		c.Store.ProductID,
		c.Session.RevalidateInterval,
		c.Session.Timezone,
		c.SecretStore.Path,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		redact(c.JWTSecretKey),
		c.TokenTTL,
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
