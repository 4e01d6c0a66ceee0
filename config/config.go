package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port int `toml:"port"`
}

// MailConfig tunes the retrieval client. Timeouts are whole seconds.
type MailConfig struct {
	Mailbox           string `toml:"mailbox"`
	ConnectTimeoutSec int    `toml:"connect_timeout_seconds"`
	CommandTimeoutSec int    `toml:"command_timeout_seconds"`
	FetchTimeoutSec   int    `toml:"fetch_timeout_seconds"`
	DefaultLimit      int    `toml:"default_limit"`
	MaxLimit          int    `toml:"max_limit"`
	FetchConcurrency  int    `toml:"fetch_concurrency"`
}

// ResolverConfig extends the built-in known-domain table. Values are
// "host:port"; entries are merged once at startup and read-only afterwards.
type ResolverConfig struct {
	Servers map[string]string `toml:"servers"`
}

type SessionConfig struct {
	Path     string `toml:"path"`
	TTLHours int    `toml:"ttl_hours"`
}

type JWTConfig struct {
	Secret string `toml:"secret"`
}

type EncryptionConfig struct {
	Key string `toml:"key"` // 32-byte key sealing credentials in the session store
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Mail       MailConfig       `toml:"mail"`
	Resolver   ResolverConfig   `toml:"resolver"`
	Session    SessionConfig    `toml:"session"`
	JWT        JWTConfig        `toml:"jwt"`
	Encryption EncryptionConfig `toml:"encryption"`
	Log        LogConfig        `toml:"log"`
}

// LoadConfig reads a TOML file over the built-in defaults and validates the
// parts that cannot be defaulted.
func LoadConfig(filepath string) (*Config, error) {
	config := defaultConfig()

	if _, err := toml.DecodeFile(filepath, config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000},
		Mail: MailConfig{
			Mailbox:           "INBOX",
			ConnectTimeoutSec: 10,
			CommandTimeoutSec: 30,
			FetchTimeoutSec:   45,
			DefaultLimit:      20,
			MaxLimit:          100,
			FetchConcurrency:  4,
		},
		Session: SessionConfig{
			Path:     "./data",
			TTLHours: 24,
		},
		Log: LogConfig{Level: "info"},
	}
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if len(c.Encryption.Key) != 32 {
		return fmt.Errorf("encryption.key must be exactly 32 bytes, got %d", len(c.Encryption.Key))
	}
	if c.Mail.DefaultLimit < 1 {
		return fmt.Errorf("mail.default_limit must be positive")
	}
	if c.Mail.MaxLimit < c.Mail.DefaultLimit {
		return fmt.Errorf("mail.max_limit must be >= mail.default_limit")
	}
	if c.Mail.FetchConcurrency < 1 {
		return fmt.Errorf("mail.fetch_concurrency must be positive")
	}
	return nil
}

func (c *MailConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

func (c *MailConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSec) * time.Second
}

func (c *MailConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

func (c *SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}
