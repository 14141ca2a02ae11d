package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/marketplace-admin-chat/pkg/config"
)

type Config struct {
	Server  ServerConfig
	Chat    ChatConfig
	Session SessionConfig
	Cache   CacheConfig
	Notify  NotifyConfig
	Metrics MetricsConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host   string
	Port   int
	APIKey string `mapstructure:"api_key"`
}

type ChatConfig struct {
	URL                string        `mapstructure:"url"`
	Optional           bool          `mapstructure:"optional"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	BaseDelay          time.Duration `mapstructure:"base_delay"`
	MaxDelay           time.Duration `mapstructure:"max_delay"`
	TypingTTL          time.Duration `mapstructure:"typing_ttl"`
	HandshakeTimeout   time.Duration `mapstructure:"handshake_timeout"`
	PingInterval       time.Duration `mapstructure:"ping_interval"`
	PongWait           time.Duration `mapstructure:"pong_wait"`
	WriteWait          time.Duration `mapstructure:"write_wait"`
	MaxMessageSize     int64         `mapstructure:"max_message_size"`
	IDStrategy         string        `mapstructure:"id_strategy"`
	StopOnAuthRejected bool          `mapstructure:"stop_on_auth_rejected"`
}

type SessionConfig struct {
	UserID    string `mapstructure:"user_id"`
	Role      string
	Token     string
	TokenFile string `mapstructure:"token_file"`
}

type CacheConfig struct {
	Enabled   bool
	Channel   string
	KeyPrefix string `mapstructure:"key_prefix"`
	Buffer    int
	Redis     RedisConfig
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type NotifyConfig struct {
	Desktop bool
	Sound   bool
	Title   string
	Icon    string
}

type MetricsConfig struct {
	Enabled   bool
	Path      string
	Namespace string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	return LoadFrom("./config", "config")
}

// LoadFrom reads configName from configPath, falling back to defaults and
// environment variables.
func LoadFrom(configPath, configName string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, configName)
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8095)
	v.SetDefault("server.api_key", "")
	v.SetDefault("chat.url", "ws://localhost:3001/chat")
	v.SetDefault("chat.optional", false)
	v.SetDefault("chat.max_attempts", 5)
	v.SetDefault("chat.base_delay", "1s")
	v.SetDefault("chat.max_delay", "30s")
	v.SetDefault("chat.typing_ttl", "3s")
	v.SetDefault("chat.handshake_timeout", "10s")
	v.SetDefault("chat.ping_interval", "25s")
	v.SetDefault("chat.pong_wait", "60s")
	v.SetDefault("chat.write_wait", "10s")
	v.SetDefault("chat.max_message_size", 65536)
	v.SetDefault("chat.id_strategy", "ulid")
	v.SetDefault("chat.stop_on_auth_rejected", false)
	v.SetDefault("session.role", "admin")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.channel", "chat:cache:invalidate")
	v.SetDefault("cache.key_prefix", "")
	v.SetDefault("cache.buffer", 256)
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("notify.desktop", true)
	v.SetDefault("notify.sound", true)
	v.SetDefault("notify.title", "Marketplace Support")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "admin_chat")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	if err := pkgconfig.BindEnvs(v, map[string]string{
		"server.port":                "PORT",
		"server.api_key":             "CONSOLE_API_KEY",
		"chat.url":                   "CHAT_URL",
		"chat.optional":              "CHAT_OPTIONAL",
		"chat.id_strategy":           "CHAT_ID_STRATEGY",
		"chat.stop_on_auth_rejected": "CHAT_STOP_ON_AUTH_REJECTED",
		"session.user_id":            "CHAT_USER_ID",
		"session.token":              "CHAT_TOKEN",
		"session.token_file":         "CHAT_TOKEN_FILE",
		"cache.enabled":              "CACHE_ENABLED",
		"cache.redis.address":        "REDIS_ADDRESS",
		"cache.redis.password":       "REDIS_PASSWORD",
		"notify.desktop":             "NOTIFY_DESKTOP",
		"log.level":                  "LOG_LEVEL",
	}); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Chat.BaseDelay = parseDuration(v, "chat.base_delay", time.Second)
	cfg.Chat.MaxDelay = parseDuration(v, "chat.max_delay", 30*time.Second)
	cfg.Chat.TypingTTL = parseDuration(v, "chat.typing_ttl", 3*time.Second)
	cfg.Chat.HandshakeTimeout = parseDuration(v, "chat.handshake_timeout", 10*time.Second)
	cfg.Chat.PingInterval = parseDuration(v, "chat.ping_interval", 25*time.Second)
	cfg.Chat.PongWait = parseDuration(v, "chat.pong_wait", 60*time.Second)
	cfg.Chat.WriteWait = parseDuration(v, "chat.write_wait", 10*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
