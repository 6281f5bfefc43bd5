package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Client     ClientConfig     `yaml:"client"`
	User       UserConfig       `yaml:"user"`
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
	Render     RenderConfig     `yaml:"render"`
	MockServer MockServerConfig `yaml:"mock_server"`
	Includes   []string         `yaml:"includes,omitempty"`
}

// ServiceConfig describes how to reach the assistant service.
type ServiceConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Streaming    bool          `yaml:"streaming"`     // false = one-shot POST /chat
	StreamMethod string        `yaml:"stream_method"` // "GET" (query parameters) or "POST" (JSON body)
	StreamPath   string        `yaml:"stream_path"`
	ConnTimeout  time.Duration `yaml:"conn_timeout"`
	RespTimeout  time.Duration `yaml:"resp_timeout"` // time to first response byte, not the whole stream
	Pool         PoolConfig    `yaml:"pool"`
}

// PoolConfig holds HTTP connection pool settings.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ClientConfig holds client-side protection settings.
type ClientConfig struct {
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// RateLimitConfig paces outgoing requests. Zero RequestsPerMinute disables pacing.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// CircuitBreakerConfig holds circuit breaker settings for service calls.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// UserConfig holds the identity used for service calls.
// Password may be stored encrypted as "enc:<salt>:<ciphertext>".
type UserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// RenderConfig controls how assistant replies are printed.
type RenderConfig struct {
	Markdown bool   `yaml:"markdown"`
	Style    string `yaml:"style"` // "auto", "dark", "light", "notty", "ascii"
	WordWrap int    `yaml:"word_wrap"`
}

// MockServerConfig configures the local development service.
type MockServerConfig struct {
	Addr             string        `yaml:"addr"`
	DBPath           string        `yaml:"db_path"`
	RateLimitPerMin  int           `yaml:"rate_limit_per_min"`
	RateLimitBurst   int           `yaml:"rate_limit_burst"`
	ChunkDelay       time.Duration `yaml:"chunk_delay"`
	MaxRequestBodyKB int           `yaml:"max_request_body_kb"`
}

// defaultDataDir returns the persistent data directory under $HOME/.chatline.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".chatline")
}

// DefaultPath returns the config file location used when --config is not given.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Service: ServiceConfig{
			BaseURL:      "http://localhost:8000",
			Streaming:    true,
			StreamMethod: http.MethodGet,
			StreamPath:   "/chat",
			ConnTimeout:  10 * time.Second,
			RespTimeout:  60 * time.Second,
		},
		Client: ClientConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Render: RenderConfig{
			Markdown: true,
			Style:    "auto",
			WordWrap: 80,
		},
		MockServer: MockServerConfig{
			Addr:             "127.0.0.1:8000",
			DBPath:           filepath.Join(dataDir, "mock.db"),
			RateLimitPerMin:  120,
			RateLimitBurst:   20,
			ChunkDelay:       40 * time.Millisecond,
			MaxRequestBodyKB: 64,
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file is not an error: defaults plus env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := finish(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// First pass: unmarshal to get the includes list.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		if err := processIncludes(cfg, absPath); err != nil {
			return nil, err
		}

		// Second pass: re-unmarshal main config so it takes precedence over includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish decrypts secrets and validates the assembled config.
func finish(cfg *Config) error {
	if passphrase := os.Getenv("CHATLINE_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return fmt.Errorf("decrypt secrets: %w", err)
		}
	}
	return Validate(cfg)
}

// ApplyEnvOverrides maps CHATLINE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHATLINE_SERVICE_BASE_URL"); v != "" {
		cfg.Service.BaseURL = v
	}
	if v := os.Getenv("CHATLINE_SERVICE_STREAMING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Service.Streaming = b
		}
	}
	if v := os.Getenv("CHATLINE_SERVICE_STREAM_METHOD"); v != "" {
		cfg.Service.StreamMethod = strings.ToUpper(v)
	}
	if v := os.Getenv("CHATLINE_SERVICE_RESP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Service.RespTimeout = d
		}
	}
	if v := os.Getenv("CHATLINE_CLIENT_RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Client.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("CHATLINE_CLIENT_CIRCUIT_BREAKER_ENABLED"); v == "false" {
		cfg.Client.CircuitBreaker.Enabled = false
	}
	if v := os.Getenv("CHATLINE_USER_USERNAME"); v != "" {
		cfg.User.Username = v
	}
	if v := os.Getenv("CHATLINE_USER_PASSWORD"); v != "" {
		cfg.User.Password = v
	}
	if v := os.Getenv("CHATLINE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CHATLINE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("CHATLINE_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("CHATLINE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("CHATLINE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("CHATLINE_RENDER_MARKDOWN"); v == "false" {
		cfg.Render.Markdown = false
	}
	if v := os.Getenv("CHATLINE_RENDER_STYLE"); v != "" {
		cfg.Render.Style = v
	}
	if v := os.Getenv("CHATLINE_MOCK_SERVER_ADDR"); v != "" {
		cfg.MockServer.Addr = v
	}
	if v := os.Getenv("CHATLINE_MOCK_SERVER_DB_PATH"); v != "" {
		cfg.MockServer.DBPath = v
	}
	if v := os.Getenv("CHATLINE_MOCK_SERVER_CHUNK_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.MockServer.ChunkDelay = d
		}
	}
}

// decryptSecrets replaces "enc:..." values with their plaintext.
func decryptSecrets(cfg *Config, passphrase string) error {
	if strings.HasPrefix(cfg.User.Password, "enc:") {
		decrypted, err := DecryptValue(strings.TrimPrefix(cfg.User.Password, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("user password: %w", err)
		}
		cfg.User.Password = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}

	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
