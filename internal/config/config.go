package config

import (
	"encoding/json"
	"log/slog"

	"SQLChat/internal/storage"
)

const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

const (
	SQLModeReadOnly      = "read_only"
	SQLModeWriteNoDelete = "write_no_delete"
	SQLModeWriteFull     = "write_full"
)

// Config holds the connection and provider settings sent with every query.
type Config struct {
	DatabaseURL string `json:"database_url"`
	APIKey      string `json:"api_key"`
	Provider    string `json:"provider"`
	SQLMode     string `json:"sql_mode"`
}

// Default returns the configuration used before the user has saved anything.
func Default() Config {
	return Config{
		DatabaseURL: "",
		APIKey:      "",
		Provider:    ProviderGroq,
		SQLMode:     SQLModeWriteFull,
	}
}

// Store loads and persists the single process-wide Config.
// No validation happens here: malformed values (an empty api_key, say) are
// accepted and surface only as downstream request failures.
type Store struct {
	kv     *storage.Store
	logger *slog.Logger
}

// NewStore creates a config store over the given blob store.
func NewStore(kv *storage.Store, logger *slog.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Load returns the last-persisted config, or Default when nothing usable
// has been persisted. A corrupt blob falls back to Default rather than
// failing startup.
func (s *Store) Load() Config {
	blob, ok, err := s.kv.Get(storage.KeyConfig)
	if err != nil {
		s.logger.Warn("failed to load config, using defaults", "error", err)
		return Default()
	}
	if !ok {
		return Default()
	}

	var cfg Config
	if err := json.Unmarshal(blob, &cfg); err != nil {
		s.logger.Warn("corrupt config blob, using defaults", "error", err)
		return Default()
	}
	return cfg
}

// Save fully overwrites the persisted config. Called on every field change.
func (s *Store) Save(cfg Config) error {
	blob, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := s.kv.Put(storage.KeyConfig, blob); err != nil {
		return err
	}
	s.logger.Info("config saved", "provider", cfg.Provider, "sql_mode", cfg.SQLMode)
	return nil
}
