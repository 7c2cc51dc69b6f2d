package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "EVERAFTER"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabasePath   = "everafter.db"
	defaultLogLevel       = "info"
	defaultCookieName     = "ea_session"
	defaultSessionIssuer  = "everafter-auth"
	defaultTokenTTLMins   = 30
	defaultMediaDirectory = "media"
	defaultMediaBaseURL   = "/media"
	defaultInviteID       = "main"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	LogLevel        string
	SessionSecret   string
	SessionIssuer   string
	SessionCookie   string
	TokenTTL        time.Duration
	MediaDirectory  string
	MediaBaseURL    string
	RedisAddr       string
	RedisPassword   string
	DefaultInviteID string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMins)
	configViper.SetDefault("media.dir", defaultMediaDirectory)
	configViper.SetDefault("media.base_url", defaultMediaBaseURL)
	configViper.SetDefault("invite.default_id", defaultInviteID)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		SessionSecret:   configViper.GetString("session.signing_secret"),
		SessionIssuer:   configViper.GetString("session.issuer"),
		SessionCookie:   configViper.GetString("session.cookie_name"),
		TokenTTL:        time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		MediaDirectory:  configViper.GetString("media.dir"),
		MediaBaseURL:    configViper.GetString("media.base_url"),
		RedisAddr:       configViper.GetString("redis.addr"),
		RedisPassword:   configViper.GetString("redis.password"),
		DefaultInviteID: configViper.GetString("invite.default_id"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SessionCookie) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.MediaDirectory) == "" {
		return fmt.Errorf("media.dir is required")
	}
	if strings.TrimSpace(c.DefaultInviteID) == "" {
		return fmt.Errorf("invite.default_id is required")
	}
	return nil
}
