// Package config 載入服務配置
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 整個應用的配置
type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Redis struct {
		Addr         string        `yaml:"addr"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size"`
		MinIdleConns int           `yaml:"min_idle_conns"`
		MaxRetries   int           `yaml:"max_retries"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"redis"`

	// Postgres 僅供評論歸檔使用；Enabled 為 false 時不連線
	Postgres struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
		MaxConns int32  `yaml:"max_conns"`
		MinConns int32  `yaml:"min_conns"`
	} `yaml:"postgres"`

	Archive struct {
		BatchSize     int           `yaml:"batch_size"`
		FlushInterval time.Duration `yaml:"flush_interval"`
	} `yaml:"archive"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Catalog struct {
		KeyPrefix       string  `yaml:"key_prefix"`
		DefaultPageSize int     `yaml:"default_page_size"`
		MaxPageSize     int     `yaml:"max_page_size"`
		MinRating       float64 `yaml:"min_rating"`
		MaxRating       float64 `yaml:"max_rating"`

		// SerializeReviews 以行程內的每餐廳鎖序列化評分更新
		SerializeReviews bool `yaml:"serialize_reviews"`
	} `yaml:"catalog"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
}

// Default 回傳填好預設值的配置
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Port = 3000
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.PoolSize = 10
	cfg.Redis.MinIdleConns = 2
	cfg.Redis.MaxRetries = 3
	cfg.Redis.DialTimeout = 5 * time.Second
	cfg.Redis.ReadTimeout = 3 * time.Second
	cfg.Redis.WriteTimeout = 3 * time.Second

	cfg.Postgres.Host = "localhost"
	cfg.Postgres.Port = 5432
	cfg.Postgres.User = "postgres"
	cfg.Postgres.DBName = "catalog"
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2

	cfg.Archive.BatchSize = 100
	cfg.Archive.FlushInterval = time.Second

	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.SubjectPrefix = "catalog"

	cfg.Catalog.KeyPrefix = "bites"
	cfg.Catalog.DefaultPageSize = 10
	cfg.Catalog.MaxPageSize = 100
	cfg.Catalog.MinRating = 1
	cfg.Catalog.MaxRating = 5

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Log.Output = "stdout"

	return cfg
}

// Load 讀取 YAML 配置檔，未填寫的欄位保留預設值，最後套用環境變數
func Load(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path 來自命令列旗標，非使用者請求
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv 以環境變數覆蓋配置（容器部署常用）
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	return nil
}

// Validate 檢查配置是否合理
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.Catalog.DefaultPageSize <= 0 {
		errs = append(errs, fmt.Errorf("catalog.default_page_size must be positive: %d", c.Catalog.DefaultPageSize))
	}
	if c.Catalog.MaxPageSize < c.Catalog.DefaultPageSize {
		errs = append(errs, fmt.Errorf("catalog.max_page_size (%d) below default_page_size (%d)",
			c.Catalog.MaxPageSize, c.Catalog.DefaultPageSize))
	}
	if c.Catalog.MinRating > c.Catalog.MaxRating {
		errs = append(errs, fmt.Errorf("catalog rating range inverted: [%v, %v]",
			c.Catalog.MinRating, c.Catalog.MaxRating))
	}
	if c.Archive.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("archive.batch_size must be positive: %d", c.Archive.BatchSize))
	}
	if c.Archive.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("archive.flush_interval must be positive: %s", c.Archive.FlushInterval))
	}
	return errors.Join(errs...)
}

// PostgresDSN 生成 PostgreSQL 連線字串
func (c *Config) PostgresDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
	)
}
