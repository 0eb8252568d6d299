package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Default batch sizes for streaming loads. These match the granularity the
// consumer renders at: conversations arrive in coarser batches than messages.
const (
	DefaultConversationBatchSize = 50
	DefaultMessageBatchSize      = 200
)

// Config represents the global ~/.imarchive/config.toml.
type Config struct {
	ArchivePath           string `toml:"archive_path"`
	ContactsPath          string `toml:"contacts_path"`
	ConversationBatchSize int    `toml:"conversation_batch_size"`
	MessageBatchSize      int    `toml:"message_batch_size"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Default returns a config with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ConversationBatchSize <= 0 {
		c.ConversationBatchSize = DefaultConversationBatchSize
	}
	if c.MessageBatchSize <= 0 {
		c.MessageBatchSize = DefaultMessageBatchSize
	}
}
