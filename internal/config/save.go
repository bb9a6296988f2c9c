package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type fileModules struct {
	Runtime    []string `yaml:"runtime"`
	Platform   []string `yaml:"platform"`
	FirstParty []string `yaml:"first-party"`
}

type fileHistory struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db-path"`
	BatchSize     int    `yaml:"batch-size"`
	FlushInterval string `yaml:"flush-interval"`
	RetentionDays int    `yaml:"retention-days"`
}

// fileConfig is the on-disk shape written by Save. Durations are stored in
// their string form so the file stays hand-editable.
type fileConfig struct {
	ShowFullLog       bool              `yaml:"show-full-log"`
	HideKnownNoise    bool              `yaml:"hide-known-noise"`
	ShowInfoMessages  bool              `yaml:"show-info-messages"`
	SinglePass        map[string]string `yaml:"single-pass"`
	DoublePass        map[string]string `yaml:"double-pass"`
	ContentRoot       string            `yaml:"content-root"`
	RootFolderName    string            `yaml:"root-folder-name"`
	AuditLog          string            `yaml:"audit-log"`
	SymbolTable       string            `yaml:"symbol-table,omitempty"`
	InternalPrefixes  []string          `yaml:"internal-prefixes"`
	Modules           fileModules       `yaml:"modules"`
	Window            string            `yaml:"window"`
	TopN              int               `yaml:"top-n"`
	RefreshInterval   string            `yaml:"refresh-interval"`
	SuppressThreshold int               `yaml:"suppress-threshold"`
	PatternRows       int               `yaml:"pattern-rows"`
	History           fileHistory       `yaml:"history"`
	LogLevel          string            `yaml:"log-level"`
	LogFile           string            `yaml:"log-file"`
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	fc := fileConfig{
		ShowFullLog:       cfg.ShowFullLog,
		HideKnownNoise:    cfg.HideKnownNoise,
		ShowInfoMessages:  cfg.ShowInfoMessages,
		SinglePass:        cfg.SinglePass,
		DoublePass:        cfg.DoublePass,
		ContentRoot:       cfg.ContentRoot,
		RootFolderName:    cfg.RootFolderName,
		AuditLog:          cfg.AuditLog,
		SymbolTable:       cfg.SymbolTable,
		InternalPrefixes:  cfg.InternalPrefixes,
		Modules:           fileModules(cfg.Modules),
		Window:            cfg.Window.String(),
		TopN:              cfg.TopN,
		RefreshInterval:   cfg.RefreshInterval.String(),
		SuppressThreshold: cfg.SuppressThreshold,
		PatternRows:       cfg.PatternRows,
		History: fileHistory{
			Enabled:       cfg.History.Enabled,
			DBPath:        cfg.History.DBPath,
			BatchSize:     cfg.History.BatchSize,
			FlushInterval: cfg.History.FlushInterval.String(),
			RetentionDays: cfg.History.RetentionDays,
		},
		LogLevel: cfg.LogLevel,
		LogFile:  cfg.LogFile,
	}

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}
