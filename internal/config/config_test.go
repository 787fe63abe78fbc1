package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	path := writeConfigFile(t, `
signing_backend: gpg
key_ids: ["ABCDEF"]
jwt_secret: test-secret
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendGPG, cfg.SigningBackend)
	require.Equal(t, "gpg2", cfg.GPGBinPath)
	require.Equal(t, int64(100*1024*1024), cfg.MaxUploadBytes)
}

func TestLoadRejectsMissingJWTSecret(t *testing.T) {
	path := writeConfigFile(t, `
signing_backend: gpg
key_ids: ["ABCDEF"]
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsGPGBackendWithoutKeyIDs(t *testing.T) {
	path := writeConfigFile(t, `
signing_backend: gpg
jwt_secret: test-secret
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsKMSBackendWithoutKeys(t *testing.T) {
	path := writeConfigFile(t, `
signing_backend: kms
jwt_secret: test-secret
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverlayOverridesFileValues(t *testing.T) {
	path := writeConfigFile(t, `
signing_backend: gpg
key_ids: ["ABCDEF"]
jwt_secret: file-secret
`)
	t.Setenv("SF_JWT_SECRET", "env-secret")
	t.Setenv("SF_MAX_UPLOAD_BYTES", "2048")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env-secret", cfg.JWTSecret)
	require.Equal(t, int64(2048), cfg.MaxUploadBytes)
}

func TestLoadConvertsJWTExpiryMinutesToDuration(t *testing.T) {
	path := writeConfigFile(t, `
signing_backend: gpg
key_ids: ["ABCDEF"]
jwt_secret: test-secret
jwt_expiry_minutes: 15
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 15, cfg.JWTExpiryMinutes)
	require.Equal(t, 15*time.Minute, cfg.JWTExpiry)
}

func TestEnvOverlayOverridesJWTExpiryMinutes(t *testing.T) {
	path := writeConfigFile(t, `
signing_backend: gpg
key_ids: ["ABCDEF"]
jwt_secret: test-secret
jwt_expiry_minutes: 15
`)
	t.Setenv("SF_JWT_EXPIRY_MINUTES", "30")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, cfg.JWTExpiry)
}

func TestLoadWithoutPathUsesDefaultsPlusEnv(t *testing.T) {
	t.Setenv("SF_JWT_SECRET", "env-only-secret")
	t.Setenv("SF_SIGNING_BACKEND", "gpg")
	t.Setenv("SF_KEY_IDS", "AAA,BBB")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, []string{"AAA", "BBB"}, cfg.KeyIDs)
}
