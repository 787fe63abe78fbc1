// Package config loads signserver's configuration from a YAML file,
// overlaid with SF_-prefixed environment variables, into a single
// immutable Config value. Config is treated as read-only once Load
// returns: mutated only while being built, never afterward.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PassphraseMode selects how the Passphrase DB acquires key
// passphrases at startup.
type PassphraseMode string

const (
	PassphrasePrompt PassphraseMode = "prompt"
	PassphraseDev    PassphraseMode = "dev"
)

// SigningBackend selects which backend the facade resolves to.
type SigningBackend string

const (
	BackendGPG SigningBackend = "gpg"
	BackendKMS SigningBackend = "kms"
)

// KMSKeyMapping pairs a remote KMS key id with the GPG fingerprint it
// should be wrapped as.
type KMSKeyMapping struct {
	KMSID          string `yaml:"kms_id"`
	GPGFingerprint string `yaml:"gpg_fingerprint"`
}

// Config is the full set of settings signserver and signctl need.
type Config struct {
	// GPG backend
	GPGBinPath     string   `yaml:"gpg_bin_path"`
	KeyringPath    string   `yaml:"keyring_path"`
	LocksDir       string   `yaml:"locks_dir"`
	KeyIDs         []string `yaml:"key_ids"`
	PassphraseMode PassphraseMode `yaml:"passphrase_mode"`
	DevPassphrase  string   `yaml:"dev_passphrase"`

	// Database
	DatabaseURL     string `yaml:"database_url"`
	DBMaxOpenConns  int    `yaml:"db_max_open_conns"`
	DBMaxIdleConns  int    `yaml:"db_max_idle_conns"`

	// JWT
	JWTSecret        string `yaml:"jwt_secret"`
	JWTAlgorithm     string `yaml:"jwt_algorithm"`
	JWTExpiryMinutes int    `yaml:"jwt_expiry_minutes"`

	// JWTExpiry is JWTExpiryMinutes converted to a time.Duration. Load
	// populates it after the YAML and env overlay passes; it carries
	// no yaml tag of its own.
	JWTExpiry time.Duration `yaml:"-"`

	// Upload / tmp
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	TmpDir         string `yaml:"tmp_dir"`

	// Backend selection
	SigningBackend SigningBackend `yaml:"signing_backend"`

	// KMS backend
	KMSRegion          string          `yaml:"kms_region"`
	KMSAccessKeyID     string          `yaml:"kms_access_key_id"`
	KMSSecretAccessKey string          `yaml:"kms_secret_access_key"`
	KMSAlgorithm       string          `yaml:"kms_algorithm"`
	KMSMaxWorkers      int             `yaml:"kms_max_workers"`
	KMSKeys            []KMSKeyMapping `yaml:"kms_keys"`

	// HTTP server
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a Config with its non-zero defaults populated.
func Default() *Config {
	return &Config{
		GPGBinPath:       "gpg2",
		LocksDir:         "/var/lib/signserver/locks",
		PassphraseMode:   PassphrasePrompt,
		DBMaxOpenConns:   10,
		DBMaxIdleConns:   2,
		JWTAlgorithm:     "HS256",
		JWTExpiryMinutes: 60,
		MaxUploadBytes:   100 * 1024 * 1024,
		TmpDir:           os.TempDir(),
		SigningBackend:   BackendGPG,
		KMSAlgorithm:     "RSASSA_PKCS1_V1_5_SHA_256",
		KMSMaxWorkers:    4,
		ListenAddr:       ":8080",
	}
}

// Load reads path (if non-empty) as YAML over the defaults, then
// overlays SF_-prefixed environment variables, and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	overlayEnv(cfg)
	cfg.JWTExpiry = time.Duration(cfg.JWTExpiryMinutes) * time.Minute

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv("SF_" + key); ok {
			*dst = v
		}
	}
	i64 := func(key string, dst *int64) {
		if v, ok := os.LookupEnv("SF_" + key); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	i := func(key string, dst *int) {
		if v, ok := os.LookupEnv("SF_" + key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	strs := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv("SF_" + key); ok {
			*dst = strings.Split(v, ",")
		}
	}

	str("GPG_BIN_PATH", &cfg.GPGBinPath)
	str("KEYRING_PATH", &cfg.KeyringPath)
	str("LOCKS_DIR", &cfg.LocksDir)
	strs("KEY_IDS", &cfg.KeyIDs)
	if v, ok := os.LookupEnv("SF_PASSPHRASE_MODE"); ok {
		cfg.PassphraseMode = PassphraseMode(v)
	}
	str("DEV_PASSPHRASE", &cfg.DevPassphrase)

	str("DATABASE_URL", &cfg.DatabaseURL)
	i("DB_MAX_OPEN_CONNS", &cfg.DBMaxOpenConns)
	i("DB_MAX_IDLE_CONNS", &cfg.DBMaxIdleConns)

	str("JWT_SECRET", &cfg.JWTSecret)
	str("JWT_ALGORITHM", &cfg.JWTAlgorithm)
	i("JWT_EXPIRY_MINUTES", &cfg.JWTExpiryMinutes)

	i64("MAX_UPLOAD_BYTES", &cfg.MaxUploadBytes)
	str("TMP_DIR", &cfg.TmpDir)

	if v, ok := os.LookupEnv("SF_SIGNING_BACKEND"); ok {
		cfg.SigningBackend = SigningBackend(v)
	}

	str("KMS_REGION", &cfg.KMSRegion)
	str("KMS_ACCESS_KEY_ID", &cfg.KMSAccessKeyID)
	str("KMS_SECRET_ACCESS_KEY", &cfg.KMSSecretAccessKey)
	str("KMS_ALGORITHM", &cfg.KMSAlgorithm)
	i("KMS_MAX_WORKERS", &cfg.KMSMaxWorkers)

	str("LISTEN_ADDR", &cfg.ListenAddr)
}

func (c *Config) validate() error {
	if c.SigningBackend != BackendGPG && c.SigningBackend != BackendKMS {
		return fmt.Errorf("config: signing_backend must be %q or %q, got %q", BackendGPG, BackendKMS, c.SigningBackend)
	}
	if c.SigningBackend == BackendGPG && len(c.KeyIDs) == 0 {
		return fmt.Errorf("config: key_ids is required for the gpg backend")
	}
	if c.SigningBackend == BackendKMS && len(c.KMSKeys) == 0 {
		return fmt.Errorf("config: kms_keys is required for the kms backend")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: max_upload_bytes must be positive")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: jwt_secret is required")
	}
	return nil
}
