/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config holds the user-editable YAML configuration, environment
// overrides, and the OS-keyring token store. Environment variables are
// read-only overrides applied after the file; the coordinator token
// never touches disk.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	keyring "github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
	EnableServer   bool   `yaml:"enable_server"`
}

type CoordinatorConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

// GenerationConfig tunes the batch progress client. The coordinator
// expects a 3s poll; don't lower it below 1s in production setups.
type GenerationConfig struct {
	ProgressPollMs int `yaml:"progress_poll_ms"`
	RefreshDelayMs int `yaml:"refresh_delay_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is persisted as YAML in the user scope.
// config_version: bump on backward-incompatible structure changes.
type AppConfig struct {
	ConfigVersion int               `yaml:"config_version"`
	General       GeneralConfig     `yaml:"general"`
	Coordinator   CoordinatorConfig `yaml:"coordinator"`
	Generation    GenerationConfig  `yaml:"generation"`
	Logging       LoggingConfig     `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system", EnableServer: false},
		Coordinator:   CoordinatorConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, TLSInsecure: false},
		Generation:    GenerationConfig{ProgressPollMs: 3000, RefreshDelayMs: 1500},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvCoordinatorURL       = "CST_COORDINATOR_URL"
	EnvCoordinatorTimeoutMs = "CST_COORDINATOR_TIMEOUT_MS"
	EnvTLSInsecure          = "CST_TLS_INSECURE"
	EnvTelemetryOptIn       = "CST_TELEMETRY_OPT_IN"
	EnvEnableServer         = "CST_ENABLE_SERVER"
	EnvProgressPollMs       = "CST_PROGRESS_POLL_MS"
	EnvRefreshDelayMs       = "CST_REFRESH_DELAY_MS"
	EnvLogLevel             = "CST_LOG_LEVEL"
	EnvLogFormat            = "CST_LOG_FORMAT"
	EnvLogSource            = "CST_LOG_SOURCE"
	EnvLogFile              = "CST_LOG_FILE"
)

// Service/keys for the OS keyring.
const (
	keyringService = "CertStudio"
	keyringToken   = "coordinator_token"
)

// TokenStore abstracts the keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// tokenStore is swappable in tests via SetTokenStore.
var tokenStore TokenStore = osKeyring{}

// SetTokenStore replaces the token backend and returns the previous one.
func SetTokenStore(s TokenStore) TokenStore {
	prev := tokenStore
	tokenStore = s
	return prev
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "CertStudio")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "CertStudio")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "certstudio")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and
// merges environment overrides. The coordinator token comes from the
// keyring and is returned separately, never kept inside the struct.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into the OS
// keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

// ForgetToken removes the coordinator token from the keyring.
func ForgetToken() error { return tokenStore.Delete(keyringService, keyringToken) }

func mergeInto(dst, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy directly from the file so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.General.EnableServer = src.General.EnableServer
	if src.Coordinator.BaseURL != "" {
		dst.Coordinator.BaseURL = src.Coordinator.BaseURL
	}
	if src.Coordinator.TimeoutMs != 0 {
		dst.Coordinator.TimeoutMs = src.Coordinator.TimeoutMs
	}
	dst.Coordinator.TLSInsecure = src.Coordinator.TLSInsecure
	if src.Generation.ProgressPollMs > 0 {
		dst.Generation.ProgressPollMs = src.Generation.ProgressPollMs
	}
	if src.Generation.RefreshDelayMs > 0 {
		dst.Generation.RefreshDelayMs = src.Generation.RefreshDelayMs
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvCoordinatorURL)); v != "" {
		cfg.Coordinator.BaseURL = v
	}
	if n, ok := envInt(EnvCoordinatorTimeoutMs); ok {
		cfg.Coordinator.TimeoutMs = n
	}
	if b, ok := envBool(EnvTLSInsecure); ok {
		cfg.Coordinator.TLSInsecure = b
	}
	if b, ok := envBool(EnvTelemetryOptIn); ok {
		cfg.General.TelemetryOptIn = b
	}
	if b, ok := envBool(EnvEnableServer); ok {
		cfg.General.EnableServer = b
	}
	if n, ok := envInt(EnvProgressPollMs); ok && n > 0 {
		cfg.Generation.ProgressPollMs = n
	}
	if n, ok := envInt(EnvRefreshDelayMs); ok && n > 0 {
		cfg.Generation.RefreshDelayMs = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if b, ok := envBool(EnvLogSource); ok {
		cfg.Logging.Source = b
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string) (bool, bool) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	if v == "" {
		return false, false
	}
	return v == "1" || v == "true" || v == "on" || v == "yes", true
}

// EnvOverrideFor returns the env var name if the field is overridden by
// the environment. Keys use the "section.field" YAML spelling.
func EnvOverrideFor(key string) (string, bool) {
	envs := map[string]string{
		"coordinator.base_url":        EnvCoordinatorURL,
		"coordinator.timeout_ms":      EnvCoordinatorTimeoutMs,
		"coordinator.tls_insecure":    EnvTLSInsecure,
		"general.telemetry_opt_in":    EnvTelemetryOptIn,
		"general.enable_server":       EnvEnableServer,
		"generation.progress_poll_ms": EnvProgressPollMs,
		"generation.refresh_delay_ms": EnvRefreshDelayMs,
		"logging.level":               EnvLogLevel,
		"logging.format":              EnvLogFormat,
		"logging.source":              EnvLogSource,
		"logging.file":                EnvLogFile,
	}
	name, ok := envs[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Timeout returns the coordinator HTTP timeout as a duration.
func (c CoordinatorConfig) Timeout() time.Duration {
	ms := c.TimeoutMs
	if ms <= 0 {
		ms = Defaults().Coordinator.TimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// PollInterval returns the progress poll cadence as a duration.
func (g GenerationConfig) PollInterval() time.Duration {
	ms := g.ProgressPollMs
	if ms <= 0 {
		ms = Defaults().Generation.ProgressPollMs
	}
	return time.Duration(ms) * time.Millisecond
}

// RefreshDelay returns the post-completion settle delay as a duration.
func (g GenerationConfig) RefreshDelay() time.Duration {
	ms := g.RefreshDelayMs
	if ms <= 0 {
		ms = Defaults().Generation.RefreshDelayMs
	}
	return time.Duration(ms) * time.Millisecond
}
