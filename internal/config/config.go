package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration, loaded once at startup
// and passed explicitly to every component.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Workers  WorkersConfig  `yaml:"workers"`
	Storage  StorageConfig  `yaml:"storage"`
	Limits   LimitsConfig   `yaml:"limits"`
	Auth     AuthConfig     `yaml:"auth"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type OpenAIConfig struct {
	// APIKey falls back to the OPENAI_API_KEY environment variable.
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	TranscribeModel string `yaml:"transcribe_model"`
	SummarizeModel  string `yaml:"summarize_model"`
	Language        string `yaml:"language"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

type WorkersConfig struct {
	Count int `yaml:"count"`
}

type StorageConfig struct {
	Database    string            `yaml:"database"`
	BlobBackend string            `yaml:"blob_backend"` // "local" or "gdrive"
	BlobDir     string            `yaml:"blob_dir"`
	GoogleDrive GoogleDriveConfig `yaml:"google_drive"`
}

type GoogleDriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	FolderName      string `yaml:"folder_name"`
}

type LimitsConfig struct {
	DailyLimit       int      `yaml:"daily_limit"`
	MaxFileSizeMB    int      `yaml:"max_file_size_mb"`
	SupportedFormats []string `yaml:"supported_formats"`
}

type AuthConfig struct {
	// RequireAuth rejects unauthenticated uploads. When false, uploads
	// without a resolved identity proceed as anonymous notebooks.
	RequireAuth    bool   `yaml:"require_auth"`
	IdentityHeader string `yaml:"identity_header"`
	AdminID        int64  `yaml:"admin_id"`
	AdminEmail     string `yaml:"admin_email"`
}

type CleanupConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
	MaxAgeHours     int `yaml:"max_age_hours"`
}

type LoggingConfig struct {
	Mode string `yaml:"mode"` // "dev" or "prod"
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Storage.Database == "" {
		return fmt.Errorf("storage.database is required")
	}
	if c.Storage.BlobBackend == "" {
		c.Storage.BlobBackend = "local"
	}
	if c.Storage.BlobBackend != "local" && c.Storage.BlobBackend != "gdrive" {
		return fmt.Errorf("storage.blob_backend must be \"local\" or \"gdrive\", got %q", c.Storage.BlobBackend)
	}
	if c.Storage.BlobDir == "" {
		c.Storage.BlobDir = "temp"
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com"
	}
	if c.OpenAI.TranscribeModel == "" {
		c.OpenAI.TranscribeModel = "whisper-1"
	}
	if c.OpenAI.SummarizeModel == "" {
		c.OpenAI.SummarizeModel = "gpt-4o-mini"
	}
	if c.OpenAI.Language == "" {
		c.OpenAI.Language = "he"
	}
	if c.OpenAI.TimeoutSeconds == 0 {
		c.OpenAI.TimeoutSeconds = 120
	}
	if c.Workers.Count == 0 {
		c.Workers.Count = 2
	}
	if c.Limits.DailyLimit == 0 {
		c.Limits.DailyLimit = 10
	}
	if c.Limits.MaxFileSizeMB == 0 {
		c.Limits.MaxFileSizeMB = 25
	}
	if len(c.Limits.SupportedFormats) == 0 {
		c.Limits.SupportedFormats = []string{"mp3", "mp4", "mpeg", "mpga", "m4a", "wav", "webm"}
	}
	if c.Auth.IdentityHeader == "" {
		c.Auth.IdentityHeader = "X-Auth-Email"
	}
	if c.Cleanup.IntervalMinutes == 0 {
		c.Cleanup.IntervalMinutes = 30
	}
	if c.Cleanup.MaxAgeHours == 0 {
		c.Cleanup.MaxAgeHours = 24
	}
	if c.Logging.Mode == "" {
		c.Logging.Mode = "dev"
	}
	return nil
}

// MaxFileSizeBytes returns the upload size cap in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}

// FormatSupported reports whether a file extension (without the dot,
// case-insensitive) is in the supported-audio allow-list.
func (c *Config) FormatSupported(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, f := range c.Limits.SupportedFormats {
		if ext == strings.ToLower(f) {
			return true
		}
	}
	return false
}
