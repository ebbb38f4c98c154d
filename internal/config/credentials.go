package config

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// StoreBackend selects where the credential pair is persisted.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreFile   StoreBackend = "file"
	StoreRedis  StoreBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreBackend.
func (b *StoreBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch StoreBackend(v) {
	case StoreMemory, StoreFile, StoreRedis:
		*b = StoreBackend(v)
		return nil
	default:
		return errors.Errorf("[StoreBackend.UnmarshalText] invalid StoreBackend: %q (valid options: memory, file, redis)", v)
	}
}

// CredentialsConfig configures the credential store.
type CredentialsConfig struct {
	Backend StoreBackend `env:"BACKEND" envDefault:"file"`

	// Path of the credentials file. Empty means DefaultCredentialsPath().
	Path string `env:"PATH"`

	// EncryptionKey is an optional 64 character hex key; when set the file is sealed.
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX"   envDefault:"admin-console:"`
}

// Sanitize fills derived defaults.
func (c *CredentialsConfig) Sanitize() {
	if c.Backend == "" {
		c.Backend = StoreFile
	}
	c.Path = strings.TrimSpace(c.Path)
	if c.Backend == StoreFile && c.Path == "" {
		c.Path = DefaultCredentialsPath()
	}
	c.EncryptionKey = strings.TrimSpace(c.EncryptionKey)
	if c.RedisDB < 0 {
		c.RedisDB = 0
	}
}

// Validate checks backend specific requirements.
func (c CredentialsConfig) Validate() error {
	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return errors.New("[CredentialsConfig.Validate] CREDENTIALS_ENCRYPTION_KEY must be 64 hex characters")
		}
	}
	if c.Backend == StoreRedis && strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("[CredentialsConfig.Validate] CREDENTIALS_REDIS_ADDR is required for the redis backend")
	}
	return nil
}

// Sealed reports whether the file store should encrypt at rest.
func (c CredentialsConfig) Sealed() bool {
	return c.EncryptionKey != ""
}
