// Package config loads throwscope settings from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/aggregate"
	"github.com/tinytelemetry/throwscope/internal/modclass"
	"github.com/tinytelemetry/throwscope/internal/model"
	"github.com/tinytelemetry/throwscope/internal/passfilter"
	"github.com/tinytelemetry/throwscope/internal/resolver"
)

const (
	envPrefix                   = "THROWSCOPE"
	defaultHistoryBatchSize     = 500
	defaultHistoryFlushInterval = 250 * time.Millisecond
	defaultHistoryRetention     = 30
	defaultPatternRows          = 10
	defaultLogLevel             = "info"
)

// ErrMalformed marks a config file that exists but could not be parsed.
var ErrMalformed = errors.New("config: malformed file")

// ModuleTables overrides the module classifier buckets.
type ModuleTables struct {
	Runtime    []string `mapstructure:"runtime"`
	Platform   []string `mapstructure:"platform"`
	FirstParty []string `mapstructure:"first-party"`
}

// HistoryConfig configures the optional DuckDB history store.
type HistoryConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DBPath        string        `mapstructure:"db-path"`
	BatchSize     int           `mapstructure:"batch-size"`
	FlushInterval time.Duration `mapstructure:"flush-interval"`
	// RetentionDays of zero keeps rows forever.
	RetentionDays int `mapstructure:"retention-days"`
}

// Config is the effective runtime configuration.
type Config struct {
	ShowFullLog       bool              `mapstructure:"show-full-log"`
	HideKnownNoise    bool              `mapstructure:"hide-known-noise"`
	ShowInfoMessages  bool              `mapstructure:"show-info-messages"`
	SinglePass        map[string]string `mapstructure:"single-pass"`
	DoublePass        map[string]string `mapstructure:"double-pass"`
	ContentRoot       string            `mapstructure:"content-root"`
	RootFolderName    string            `mapstructure:"root-folder-name"`
	AuditLog          string            `mapstructure:"audit-log"`
	SymbolTable       string            `mapstructure:"symbol-table"`
	InternalPrefixes  []string          `mapstructure:"internal-prefixes"`
	Modules           ModuleTables      `mapstructure:"modules"`
	Window            time.Duration     `mapstructure:"window"`
	TopN              int               `mapstructure:"top-n"`
	RefreshInterval   time.Duration     `mapstructure:"refresh-interval"`
	SuppressThreshold int               `mapstructure:"suppress-threshold"`
	PatternRows       int               `mapstructure:"pattern-rows"` // 0 disables template mining
	History           HistoryConfig     `mapstructure:"history"`
	LogLevel          string            `mapstructure:"log-level"`
	LogFile           string            `mapstructure:"log-file"`
	ConfigPath        string            `mapstructure:"-"` // not from config file
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	d := defaultPaths()
	return Config{
		SinglePass:        map[string]string{},
		DoublePass:        map[string]string{},
		RootFolderName:    model.DefaultRootFolderName,
		AuditLog:          d.auditLog,
		InternalPrefixes:  append([]string(nil), resolver.DefaultInternalPrefixes...),
		Modules:           ModuleTables(modclass.DefaultTables()),
		Window:            model.DefaultWindow,
		TopN:              model.DefaultTopN,
		RefreshInterval:   model.DefaultRefreshInterval,
		SuppressThreshold: model.DefaultSuppressThreshold,
		PatternRows:       defaultPatternRows,
		History: HistoryConfig{
			DBPath:        d.historyDB,
			BatchSize:     defaultHistoryBatchSize,
			FlushInterval: defaultHistoryFlushInterval,
			RetentionDays: defaultHistoryRetention,
		},
		LogLevel: defaultLogLevel,
		LogFile:  d.logFile,
	}
}

type paths struct {
	config    string
	auditLog  string
	historyDB string
	logFile   string
}

func defaultPaths() paths {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return paths{
		config:    filepath.Join(home, ".config", "throwscope", "config.yml"),
		auditLog:  filepath.Join(home, ".local", "share", "throwscope", "audit.log"),
		historyDB: filepath.Join(home, ".local", "share", "throwscope", "history.duckdb"),
		logFile:   filepath.Join(home, ".local", "state", "throwscope", "throwscope.log"),
	}
}

// DefaultPath returns the config file used when none is given.
func DefaultPath() string { return defaultPaths().config }

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("show-full-log", d.ShowFullLog)
	v.SetDefault("hide-known-noise", d.HideKnownNoise)
	v.SetDefault("show-info-messages", d.ShowInfoMessages)
	v.SetDefault("single-pass", d.SinglePass)
	v.SetDefault("double-pass", d.DoublePass)
	v.SetDefault("content-root", d.ContentRoot)
	v.SetDefault("root-folder-name", d.RootFolderName)
	v.SetDefault("audit-log", d.AuditLog)
	v.SetDefault("symbol-table", d.SymbolTable)
	v.SetDefault("internal-prefixes", d.InternalPrefixes)
	v.SetDefault("modules.runtime", d.Modules.Runtime)
	v.SetDefault("modules.platform", d.Modules.Platform)
	v.SetDefault("modules.first-party", d.Modules.FirstParty)
	v.SetDefault("window", d.Window)
	v.SetDefault("top-n", d.TopN)
	v.SetDefault("refresh-interval", d.RefreshInterval)
	v.SetDefault("suppress-threshold", d.SuppressThreshold)
	v.SetDefault("pattern-rows", d.PatternRows)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.db-path", d.History.DBPath)
	v.SetDefault("history.batch-size", d.History.BatchSize)
	v.SetDefault("history.flush-interval", d.History.FlushInterval)
	v.SetDefault("history.retention-days", d.History.RetentionDays)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-file", d.LogFile)
}

// Loader reads one config file and can watch it for changes.
type Loader struct {
	mu     sync.Mutex
	v      *viper.Viper
	path   string
	logger *zap.Logger
}

// NewLoader creates a Loader for path. An empty path uses DefaultPath.
func NewLoader(path string, logger *zap.Logger) *Loader {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	setDefaults(v)
	v.SetConfigFile(path)

	return &Loader{v: v, path: path, logger: logger}
}

// Path returns the config file path.
func (l *Loader) Path() string { return l.path }

// Load reads the config file. A missing file yields the defaults with a nil
// error; a malformed file yields the defaults and an error wrapping
// ErrMalformed so callers can log it and keep going.
func (l *Loader) Load() (Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return l.unmarshal()
		}
		d := Defaults()
		d.ConfigPath = l.path
		return d, fmt.Errorf("%w: %s: %v", ErrMalformed, l.path, err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		d := Defaults()
		d.ConfigPath = l.path
		return d, fmt.Errorf("%w: %s: %v", ErrMalformed, l.path, err)
	}
	cfg.ConfigPath = l.path
	cfg.normalize()
	return cfg, nil
}

// Watch calls fn with the reloaded config whenever the file changes. It is a
// no-op when the file does not exist yet.
func (l *Loader) Watch(fn func(Config)) bool {
	if _, err := os.Stat(l.path); err != nil {
		l.logger.Debug("config: not watching", zap.String("path", l.path), zap.Error(err))
		return false
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.Load()
		if err != nil {
			l.logger.Warn("config: reload failed, keeping current settings", zap.String("path", e.Name), zap.Error(err))
			return
		}
		l.logger.Info("config: reloaded", zap.String("path", e.Name))
		fn(cfg)
	})
	l.v.WatchConfig()
	return true
}

// Load is a shorthand for NewLoader(path, nil).Load().
func Load(path string) (Config, error) {
	return NewLoader(path, nil).Load()
}

func (c *Config) normalize() {
	d := Defaults()
	if c.SinglePass == nil {
		c.SinglePass = map[string]string{}
	}
	if c.DoublePass == nil {
		c.DoublePass = map[string]string{}
	}
	if strings.TrimSpace(c.RootFolderName) == "" {
		c.RootFolderName = d.RootFolderName
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.TopN < 0 {
		c.TopN = d.TopN
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = d.RefreshInterval
	}
	if c.SuppressThreshold <= 0 {
		c.SuppressThreshold = d.SuppressThreshold
	}
	if c.PatternRows < 0 {
		c.PatternRows = 0
	}
	if c.History.BatchSize <= 0 {
		c.History.BatchSize = d.History.BatchSize
	}
	if c.History.FlushInterval <= 0 {
		c.History.FlushInterval = d.History.FlushInterval
	}
	if c.History.RetentionDays < 0 {
		c.History.RetentionDays = 0
	}
	c.AuditLog = expandHome(c.AuditLog)
	c.SymbolTable = expandHome(c.SymbolTable)
	c.History.DBPath = expandHome(c.History.DBPath)
	c.LogFile = expandHome(c.LogFile)
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// Validate reports settings that cannot be used even after defaults apply.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log-level must be one of debug, info, warn, error: %q", c.LogLevel)
	}
	if strings.TrimSpace(c.AuditLog) == "" {
		return errors.New("config: audit-log is required")
	}
	if c.History.Enabled && strings.TrimSpace(c.History.DBPath) == "" {
		return errors.New("config: history.db-path is required when history is enabled")
	}
	return nil
}

// AggregateSettings returns the emission settings for the aggregator.
func (c Config) AggregateSettings() aggregate.Settings {
	return aggregate.Settings{
		ShowFullLog:       c.ShowFullLog,
		HideKnownNoise:    c.HideKnownNoise,
		ShowInfoMessages:  c.ShowInfoMessages,
		ContentRoot:       c.ContentRoot,
		RootFolderName:    c.RootFolderName,
		SuppressThreshold: c.SuppressThreshold,
	}
}

// Filter builds the pass filter from the configured rule tables.
func (c Config) Filter() *passfilter.Filter {
	return passfilter.New(c.DoublePass, c.SinglePass)
}

// ResolverConfig returns the resolver tunables.
func (c Config) ResolverConfig() resolver.Config {
	return resolver.Config{
		ContentRoot:      c.ContentRoot,
		RootFolderName:   c.RootFolderName,
		InternalPrefixes: c.InternalPrefixes,
	}
}

// ModuleTables returns the classifier bucket tables.
func (c Config) ModuleTables() modclass.Tables {
	return modclass.Tables(c.Modules)
}
