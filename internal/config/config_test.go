package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse()
	require.NoError(t, err)

	require.Equal(t, "DEV", cfg.GetEnv())
	require.True(t, cfg.IsDev())
	require.Equal(t, "Admin Console", cfg.GetAppName())
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "http://localhost:8080/api/v1", cfg.GetBaseURL())
	require.Equal(t, 10*time.Second, cfg.API.Timeout)
	require.Equal(t, config.StoreFile, cfg.Credentials.Backend)
	require.Equal(t, config.DefaultCredentialsPath(), cfg.Credentials.Path)
	require.True(t, strings.HasSuffix(cfg.Credentials.Path, filepath.Join("admin-console", "credentials.json")))
	require.False(t, cfg.Credentials.Sealed())
	require.Equal(t, "admin-console:", cfg.Credentials.RedisPrefix)
	require.Empty(t, cfg.MetricsAddr)
}

func TestParseFromEnvironment(t *testing.T) {
	key := strings.Repeat("ab", 32)
	t.Setenv("ENV", "prod")
	t.Setenv("API_BASE_URL", "https://console.example.com/api/v1/")
	t.Setenv("API_TIMEOUT", "3s")
	t.Setenv("CREDENTIALS_BACKEND", "Redis")
	t.Setenv("CREDENTIALS_REDIS_ADDR", "redis:6379")
	t.Setenv("CREDENTIALS_REDIS_DB", "2")
	t.Setenv("CREDENTIALS_ENCRYPTION_KEY", key)
	t.Setenv("METRICS_ADDR", ":9102")

	cfg, err := config.Parse()
	require.NoError(t, err)

	require.Equal(t, "PROD", cfg.Env)
	require.False(t, cfg.IsDev())
	require.Equal(t, "https://console.example.com/api/v1", cfg.API.BaseURL)
	require.Equal(t, 3*time.Second, cfg.API.Timeout)
	require.Equal(t, config.StoreRedis, cfg.Credentials.Backend)
	require.Equal(t, "redis:6379", cfg.Credentials.RedisAddr)
	require.Equal(t, 2, cfg.Credentials.RedisDB)
	require.Empty(t, cfg.Credentials.Path, "path is only defaulted for the file backend")
	require.True(t, cfg.Credentials.Sealed())
	require.Equal(t, ":9102", cfg.MetricsAddr)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "unknown backend", key: "CREDENTIALS_BACKEND", value: "sqlite", wantErr: "[Parse] env.Parse"},
		{name: "short key", key: "CREDENTIALS_ENCRYPTION_KEY", value: "abcd", wantErr: "[CredentialsConfig.Validate]"},
		{name: "non hex key", key: "CREDENTIALS_ENCRYPTION_KEY", value: strings.Repeat("zz", 32), wantErr: "[CredentialsConfig.Validate]"},
		{name: "bad timeout", key: "API_TIMEOUT", value: "soon", wantErr: "[Parse] env.Parse"},
		{name: "empty base url", key: "API_BASE_URL", value: " ", wantErr: "[Validate] API_BASE_URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Parse()
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestTimeoutGuardrails(t *testing.T) {
	t.Setenv("API_TIMEOUT", "1h")
	cfg, err := config.Parse()
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, cfg.API.Timeout)

	t.Setenv("API_TIMEOUT", "0s")
	cfg, err = config.Parse()
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.API.Timeout)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APP_NAME=From Dotenv\nCREDENTIALS_BACKEND=memory\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("APP_NAME")
		_ = os.Unsetenv("CREDENTIALS_BACKEND")
	})

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "From Dotenv", cfg.AppName)
	require.Equal(t, config.StoreMemory, cfg.Credentials.Backend)
}

func TestLoadWithoutDotEnv(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = config.Load()
	require.NoError(t, err)
}
