package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "aethersecure"
	// DataDirEnv overrides the resolved data directory.
	DataDirEnv = "AETHERSECURE_DATA_DIR"
	// DefaultListenAddress is used when no user override exists.
	DefaultListenAddress = "127.0.0.1:8000"
	// DefaultTokenTTLMinutes is the session token lifetime.
	DefaultTokenTTLMinutes = 60
	// DefaultMaxUploadBytes caps request bodies carrying files and images.
	DefaultMaxUploadBytes = 16 << 20
	// LogFormatText and LogFormatJSON select the logrus formatter.
	LogFormatText = "text"
	LogFormatJSON = "json"
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
	// envFileName is loaded from the working directory when present.
	envFileName = ".env"
)

// VaultConfig contains persistent instance settings.
type VaultConfig struct {
	InstanceID            string `json:"instance_id"`
	InstanceName          string `json:"instance_name"`
	ListenAddress         string `json:"listen_address"`
	SigningPrivateKeyPath string `json:"signing_private_key_path"`
	SigningPublicKeyPath  string `json:"signing_public_key_path"`
	TokenTTLMinutes       int    `json:"token_ttl_minutes"`
	RequireFaceMatch      bool   `json:"require_face_match"`
	MaxUploadBytes        int64  `json:"max_upload_bytes"`
	// AdvertiseMDNS is a pointer so an explicit false survives normalization.
	AdvertiseMDNS *bool  `json:"advertise_mdns"`
	LogLevel      string `json:"log_level"`
	LogFormat     string `json:"log_format"`
}

// ShouldAdvertise reports whether the instance announces itself over mDNS.
func (c *VaultConfig) ShouldAdvertise() bool {
	return c.AdvertiseMDNS == nil || *c.AdvertiseMDNS
}

// LoadEnvFile loads .env from the working directory into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile() error {
	return loadEnvFile(envFileName)
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If AETHERSECURE_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv(DataDirEnv); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// EnsureDataDirectories creates the app data directory layout if needed.
func EnsureDataDirectories(dataDir string) error {
	dirs := []string{
		dataDir,
		filepath.Join(dataDir, "keys"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	return nil
}

// Load reads and unmarshals config.json from disk.
func Load(path string) (*VaultConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg VaultConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *VaultConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures directories and config exist, then returns the config and the
// data directory it lives in.
func LoadOrCreate() (*VaultConfig, string, error) {
	if err := LoadEnvFile(); err != nil {
		return nil, "", err
	}

	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := EnsureDataDirectories(dataDir); err != nil {
		return nil, "", err
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = defaultConfig(dataDir)
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}

		return cfg, dataDir, nil
	}

	if normalizeDefaults(cfg, dataDir) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	return cfg, dataDir, nil
}

func defaultConfig(dataDir string) *VaultConfig {
	cfg := &VaultConfig{}
	normalizeDefaults(cfg, dataDir)
	return cfg
}

func defaultInstanceName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "AetherSecure Vault"
}

func normalizeDefaults(cfg *VaultConfig, dataDir string) bool {
	updated := false
	keysDir := filepath.Join(dataDir, "keys")

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
		updated = true
	}

	if cfg.InstanceName == "" {
		cfg.InstanceName = defaultInstanceName()
		updated = true
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
		updated = true
	}

	if cfg.SigningPrivateKeyPath == "" {
		cfg.SigningPrivateKeyPath = filepath.Join(keysDir, "token_signing_private.pem")
		updated = true
	}

	if cfg.SigningPublicKeyPath == "" {
		cfg.SigningPublicKeyPath = filepath.Join(keysDir, "token_signing_public.pem")
		updated = true
	}

	if cfg.TokenTTLMinutes <= 0 {
		cfg.TokenTTLMinutes = DefaultTokenTTLMinutes
		updated = true
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
		updated = true
	}

	if cfg.AdvertiseMDNS == nil {
		advertise := true
		cfg.AdvertiseMDNS = &advertise
		updated = true
	}

	level := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if level == "" {
		level = "info"
	}
	if cfg.LogLevel != level {
		cfg.LogLevel = level
		updated = true
	}

	format := normalizeLogFormat(cfg.LogFormat)
	if cfg.LogFormat != format {
		cfg.LogFormat = format
		updated = true
	}

	return updated
}

func normalizeLogFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case LogFormatJSON:
		return LogFormatJSON
	default:
		return LogFormatText
	}
}
