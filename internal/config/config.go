package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`

	// SessionTTL bounds how long an idle session survives without a pong.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// ReconcileInterval is the period of the background drift sweep.
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`

	// MinClientVersion is a major.minor.patch floor for the optional client
	// version handshake. Empty disables the check.
	MinClientVersion string `mapstructure:"min_client_version"`

	AuthURL        string `mapstructure:"auth_url"`
	PersistenceURL string `mapstructure:"persistence_url"`
	// InternalSecret guards the collaborator-facing fanout endpoints.
	InternalSecret string `mapstructure:"internal_secret"`

	ICEServers []ICEServer `mapstructure:"ice_servers"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("session_ttl", "90s")
	v.SetDefault("reconcile_interval", "30s")
	v.SetDefault("auth_url", "http://localhost:8081")
	v.SetDefault("persistence_url", "http://localhost:8082")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
