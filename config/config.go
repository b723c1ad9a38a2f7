// Package config loads service settings from config/config.yaml with AUDITCHAIN_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Log     LogConfig
	LevelDB LevelDBConfig
	Ledger  LedgerConfig
	Signer  SignerConfig
}

type ServerConfig struct {
	Port int
}

type LogConfig struct {
	AppLogFile string
	Level      string
}

type LevelDBConfig struct {
	Enabled bool
	Path    string
}

type LedgerConfig struct {
	Difficulty     int
	BlockThreshold int
	IdleInterval   time.Duration
	MiningTimeout  time.Duration
	NodeID         string
}

type SignerConfig struct {
	Type       string // hmac or schnorr
	Secret     string
	PrivateKey string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.app_log_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("leveldb.enabled", true)
	v.SetDefault("leveldb.path", "data/auditchain")
	v.SetDefault("ledger.difficulty", 4)
	v.SetDefault("ledger.block_threshold", 10)
	v.SetDefault("ledger.idle_interval", 5*time.Minute)
	v.SetDefault("ledger.mining_timeout", 2*time.Minute)
	v.SetDefault("ledger.node_id", "audit-node")
	v.SetDefault("signer.type", "hmac")
	v.SetDefault("signer.secret", "")
	v.SetDefault("signer.private_key", "")
}

// Load reads the YAML file at path. An empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AUDITCHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{Port: v.GetInt("server.port")},
		Log: LogConfig{
			AppLogFile: v.GetString("log.app_log_file"),
			Level:      v.GetString("log.level"),
		},
		LevelDB: LevelDBConfig{
			Enabled: v.GetBool("leveldb.enabled"),
			Path:    v.GetString("leveldb.path"),
		},
		Ledger: LedgerConfig{
			Difficulty:     v.GetInt("ledger.difficulty"),
			BlockThreshold: v.GetInt("ledger.block_threshold"),
			IdleInterval:   v.GetDuration("ledger.idle_interval"),
			MiningTimeout:  v.GetDuration("ledger.mining_timeout"),
			NodeID:         v.GetString("ledger.node_id"),
		},
		Signer: SignerConfig{
			Type:       strings.ToLower(v.GetString("signer.type")),
			Secret:     v.GetString("signer.secret"),
			PrivateKey: v.GetString("signer.private_key"),
		},
	}

	if cfg.Signer.Type != "hmac" && cfg.Signer.Type != "schnorr" {
		return nil, fmt.Errorf("unknown signer type %q", cfg.Signer.Type)
	}
	if cfg.LevelDB.Enabled && cfg.LevelDB.Path == "" {
		return nil, fmt.Errorf("leveldb.path is required when leveldb is enabled")
	}
	return cfg, nil
}
