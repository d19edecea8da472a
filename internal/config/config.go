package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string `env:"PORT,default=8080"`

	BackendURL     string        `env:"BACKEND_URL,required"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT,default=15s"`
	BackendRPS     float64       `env:"BACKEND_RPS,default=10"`
	BackendBurst   int           `env:"BACKEND_BURST,default=20"`

	AuthURL    string `env:"AUTH_URL,required"`
	AuthAPIKey string `env:"AUTH_API_KEY"`

	ConversationPollInterval time.Duration `env:"CONVERSATION_POLL_INTERVAL,default=15s"`
	MessagePollInterval      time.Duration `env:"MESSAGE_POLL_INTERVAL,default=15s"`
	MessagePageSize          int           `env:"MESSAGE_PAGE_SIZE,default=50"`

	// optional: audit log is off without it
	DatabaseURL string `env:"DATABASE_URL"`

	// optional: reply drafting is off without it
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	OpenAIModel string `env:"OPENAI_MODEL"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	// origins of the browser UI; credentials are allowed, so no wildcard
	CORSOrigins string `env:"CORS_ALLOWED_ORIGINS,required"`

	// off only for plain-http local development
	CookieSecure bool `env:"COOKIE_SECURE,default=true"`
}

// Load reads .env if present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	for name, raw := range map[string]string{"BACKEND_URL": c.BackendURL, "AUTH_URL": c.AuthURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: %s must be an absolute url, got %q", name, raw)
		}
	}
	if c.ConversationPollInterval <= 0 || c.MessagePollInterval <= 0 {
		return errors.New("config: poll intervals must be positive")
	}
	if c.MessagePageSize <= 0 {
		return errors.New("config: MESSAGE_PAGE_SIZE must be positive")
	}
	if c.BackendRPS <= 0 || c.BackendBurst <= 0 {
		return errors.New("config: BACKEND_RPS and BACKEND_BURST must be positive")
	}

	origins := c.AllowedOrigins()
	if len(origins) == 0 {
		return errors.New("config: CORS_ALLOWED_ORIGINS must name the UI origin")
	}
	for _, o := range origins {
		u, err := url.Parse(o)
		if o == "*" || err != nil || u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") {
			return fmt.Errorf("config: CORS_ALLOWED_ORIGINS entry %q must be an origin like https://desk.example.com", o)
		}
	}
	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
