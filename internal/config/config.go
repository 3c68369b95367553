package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL"`
	APIPort     int    `env:"API_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	EmailServer    string `env:"EMAIL_SERVER"`
	EmailPort      int    `env:"EMAIL_PORT,default=587"`
	EmailUseTLS    bool   `env:"EMAIL_USE_TLS,default=true"`
	EmailUsername  string `env:"EMAIL_USERNAME"`
	EmailPassword  string `env:"EMAIL_PASSWORD"`
	EmailFromName  string `env:"EMAIL_FROM_NAME,default=DueTrack"`
	EmailFromEmail string `env:"EMAIL_FROM_EMAIL"`

	PushEnabled  bool   `env:"PUSH_ENABLED,default=false"`
	PushService  string `env:"PUSH_SERVICE,default=firebase"`
	PushAPIKey   string `env:"PUSH_API_KEY"`
	PushEndpoint string `env:"PUSH_ENDPOINT"`

	DesktopEnabled bool `env:"DESKTOP_ENABLED,default=true"`

	AlertScanInterval time.Duration `env:"ALERT_SCAN_INTERVAL,default=15m"`
	AlertMatchMode    string        `env:"ALERT_MATCH_MODE,default=exact"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL,default=1h"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
