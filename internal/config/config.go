package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Vote      VoteConfig      `mapstructure:"vote"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Events    EventsConfig    `mapstructure:"events"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type VoteConfig struct {
	Window time.Duration `mapstructure:"window"`
}

type DiscoveryConfig struct {
	StrongRangeMeters float64       `mapstructure:"strong_range_meters"`
	SightingTTL       time.Duration `mapstructure:"sighting_ttl"`
}

type EventsConfig struct {
	Buffer int `mapstructure:"buffer"`
}

type IdentityConfig struct {
	CanHostDefault bool     `mapstructure:"can_host_default"`
	// Hosts lists the member ids allowed to host, not client tokens.
	Hosts          []string `mapstructure:"hosts"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
}

// CatalogConfig selects the remote catalog when BaseURL is set, the built-in
// demo catalog otherwise.
type CatalogConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "soundsync-dev-secret")
	v.SetDefault("log_level", "info")

	v.SetDefault("vote.window", "10s")
	v.SetDefault("discovery.strong_range_meters", 3.0)
	v.SetDefault("discovery.sighting_ttl", "30s")
	v.SetDefault("events.buffer", 32)
	v.SetDefault("identity.can_host_default", true)
	v.SetDefault("identity.hosts", []string{})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", "2s")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "soundsync")
	v.SetDefault("mqtt.topic", "soundsync/proximity/#")
	v.SetDefault("mqtt.qos", 0)

	v.SetDefault("catalog.base_url", "")
	v.SetDefault("catalog.timeout", "3s")

	v.SetDefault("ratelimit.limit", 10)
	v.SetDefault("ratelimit.interval", "5s")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). Any key can be
// overridden by SOUNDSYNC_<KEY> with dots replaced by underscores.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("SOUNDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}
