package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"burstq/internal/runner"
)

type Config struct {
	Listen   string   `mapstructure:"listen"`
	Log      Log      `mapstructure:"log"`
	Storage  Storage  `mapstructure:"storage"`
	Defaults Defaults `mapstructure:"defaults"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Storage struct {
	DB     string `mapstructure:"db"`
	LogDir string `mapstructure:"log_dir"`
}

// Defaults fill in fields a start request leaves out.
type Defaults struct {
	URL         string `mapstructure:"url"`
	Requests    int    `mapstructure:"requests"`
	Concurrency int    `mapstructure:"concurrency"`
}

// RunConfig builds a runner config, taking zero fields from the defaults.
func (d Defaults) RunConfig(url string, requests, concurrency int) runner.Config {
	cfg := runner.Config{URL: url, NumRequests: requests, Concurrency: concurrency}
	if cfg.URL == "" {
		cfg.URL = d.URL
	}
	if cfg.NumRequests == 0 {
		cfg.NumRequests = d.Requests
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = d.Concurrency
	}
	return cfg
}

// SetDefaults registers every key so env vars and Unmarshal see them.
func SetDefaults(v *viper.Viper, home string) {
	v.SetDefault("listen", ":5001")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("storage.db", filepath.Join(home, ".burstq", "runs.db"))
	v.SetDefault("storage.log_dir", "logs")
	v.SetDefault("defaults.url", "http://httpbin.org/delay/1")
	v.SetDefault("defaults.requests", runner.DefaultRequests)
	v.SetDefault("defaults.concurrency", runner.DefaultConcurrency)
}

// Init wires the config file and environment into v. A missing config file
// is not an error.
func Init(v *viper.Viper, cfgFile, home string) error {
	SetDefaults(v, home)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home != "" {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".burstq")
	}
	v.SetEnvPrefix("burstq")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if c.Defaults.Requests < 0 || c.Defaults.Concurrency < 0 {
		return Config{}, fmt.Errorf("defaults.requests and defaults.concurrency must not be negative")
	}
	return c, nil
}

// Live holds the current config and refreshes it when the config file
// changes on disk.
type Live struct {
	mu  sync.RWMutex
	cur Config
}

func NewLive(c Config) *Live {
	return &Live{cur: c}
}

func (l *Live) Get() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

func (l *Live) set(c Config) {
	l.mu.Lock()
	l.cur = c
	l.mu.Unlock()
}

// Watch reloads l whenever v's config file is written. onChange is called
// after each reload attempt with the event and the decode error, if any.
func Watch(v *viper.Viper, l *Live, onChange func(fsnotify.Event, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c, err := Load(v)
		if err == nil {
			l.set(c)
		}
		if onChange != nil {
			onChange(e, err)
		}
	})
	v.WatchConfig()
}
