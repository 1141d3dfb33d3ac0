package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// StoreConfig は BaseX ドキュメントストアへの接続設定です。
type StoreConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	User       string        `yaml:"user"`
	Password   string        `yaml:"password"`
	Database   string        `yaml:"database"`
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
	Layout     LayoutConfig  `yaml:"layout"`
}

// LayoutConfig はストア内のコレクション要素名です。
type LayoutConfig struct {
	Root        string `yaml:"root"`
	Departments string `yaml:"departments"`
	Employees   string `yaml:"employees"`
}

// JournalConfig は操作ジャーナルを保存する PostgreSQL 接続に関する設定です。
type JournalConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// LogConfig はログ出力に関する設定です。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	defaultStorePort = 1984
	defaultRoot      = "root"
	defaultDepts     = "departments"
	defaultEmps      = "employees"
)

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if err := c.Store.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Journal.validateAndNormalize(); err != nil {
		return err
	}

	switch c.Log.Level {
	case "":
		c.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is not supported", c.Log.Level)
	}

	switch c.Log.Format {
	case "":
		c.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format %q is not supported", c.Log.Format)
	}

	return nil
}

// RequireServer は gRPC サーバー起動に必要な設定を検証します。
func (c *Config) RequireServer() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}
	return nil
}

func (s *StoreConfig) validateAndNormalize() error {
	if s.Host == "" {
		return fmt.Errorf("config: store.host must be set")
	}
	if s.Port == 0 {
		s.Port = defaultStorePort
	}
	if s.User == "" {
		return fmt.Errorf("config: store.user must be set")
	}
	if s.Password == "" {
		return fmt.Errorf("config: store.password must be set")
	}
	if s.Database == "" {
		return fmt.Errorf("config: store.database must be set")
	}

	timeout, err := parseDurationAllowEmpty(s.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: store.timeout: %w", err)
	}
	s.Timeout = timeout

	if s.Layout.Root == "" {
		s.Layout.Root = defaultRoot
	}
	if s.Layout.Departments == "" {
		s.Layout.Departments = defaultDepts
	}
	if s.Layout.Employees == "" {
		s.Layout.Employees = defaultEmps
	}

	return nil
}

func (d *JournalConfig) validateAndNormalize() error {
	if !d.Enabled {
		return nil
	}
	if d.Host == "" {
		return fmt.Errorf("config: journal.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: journal.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: journal.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: journal.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: journal.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: journal.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: journal.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。
func (d JournalConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
