// Package config provides configuration loading and validation for the CLI.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/application-tracker/internal/llm"
	"github.com/jonathan/application-tracker/internal/logging"
	"github.com/jonathan/application-tracker/internal/mail"
	"github.com/jonathan/application-tracker/internal/types"
)

// Config is the full tracker configuration.
// Values come from defaults, then the YAML file, then environment variables, then CLI flags.
type Config struct {
	IMAP     IMAPConfig     `koanf:"imap"`
	Source   SourceConfig   `koanf:"source"`
	LLM      LLMConfig      `koanf:"llm"`
	Database DatabaseConfig `koanf:"database"`
	Run      RunConfig      `koanf:"run"`
	Policy   PolicyConfig   `koanf:"policy"`
	Server   ServerConfig   `koanf:"server"`
	Log      logging.Config `koanf:"log"`
	Export   ExportConfig   `koanf:"export"`
}

// IMAPConfig is the mailbox connection
type IMAPConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=0,lte=65535"`
	Username          string        `koanf:"username"`
	Password          string        `koanf:"password"`
	UseTLS            bool          `koanf:"use_tls"`
	Provider          string        `koanf:"provider" validate:"omitempty,oneof=gmail outlook yahoo custom"`
	Folders           []string      `koanf:"folders"`
	OAuthClientID     string        `koanf:"oauth_client_id"`
	OAuthClientSecret string        `koanf:"oauth_client_secret"`
	OAuthRefreshToken string        `koanf:"oauth_refresh_token"`
	OAuthTokenURL     string        `koanf:"oauth_token_url" validate:"omitempty,url"`
	Timeout           time.Duration `koanf:"timeout"`
}

// SourceConfig selects where messages come from
type SourceConfig struct {
	Kind        string   `koanf:"kind" validate:"oneof=imap maildir"`
	Maildir     string   `koanf:"maildir"`
	Keywords    []string `koanf:"keywords"`
	MaxMessages int      `koanf:"max_messages" validate:"gte=0"`
}

// LLMConfig selects and tunes the model provider
type LLMConfig struct {
	Provider          string            `koanf:"provider" validate:"oneof=gemini openai"`
	APIKey            string            `koanf:"api_key"`
	BaseURL           string            `koanf:"base_url" validate:"omitempty,url"`
	Models            map[string]string `koanf:"models"`
	Temperature       float64           `koanf:"temperature" validate:"gte=0,lte=2"`
	RequestsPerSecond float64           `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int               `koanf:"burst" validate:"gte=0"`
}

// DatabaseConfig selects the application store
type DatabaseConfig struct {
	URL   string `koanf:"url"`
	Store string `koanf:"store" validate:"oneof=postgres memory"`
}

// RunConfig controls how and how often the pipeline runs
type RunConfig struct {
	Mode      string        `koanf:"mode" validate:"oneof=once continuous scheduled"`
	Interval  time.Duration `koanf:"interval"`
	Cron      string        `koanf:"cron"`
	Days      int           `koanf:"days" validate:"gte=0"`
	EmailMode string        `koanf:"email_mode" validate:"oneof=recent unread all"`
	Verbose   bool          `koanf:"verbose"`
	LeaseTTL  time.Duration `koanf:"lease_ttl"`
}

// PolicyConfig overrides status priorities, e.g. {offer_received: 7}
type PolicyConfig struct {
	Priorities map[string]int `koanf:"priorities"`
}

// ServerConfig is the HTTP listener for the serve command
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

// ExportConfig names the CSV files written by the export command
type ExportConfig struct {
	File      string `koanf:"file"`
	StatsFile string `koanf:"stats_file"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		IMAP: IMAPConfig{
			Port:    993,
			UseTLS:  true,
			Timeout: 30 * time.Second,
		},
		Source: SourceConfig{
			Kind:        "imap",
			MaxMessages: 200,
		},
		LLM: LLMConfig{
			Provider:    string(llm.ProviderGemini),
			Temperature: 0.1,
		},
		Database: DatabaseConfig{
			Store: "postgres",
		},
		Run: RunConfig{
			Mode:      "once",
			Interval:  time.Hour,
			Days:      7,
			EmailMode: "recent",
			LeaseTTL:  30 * time.Minute,
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    logging.DefaultConfig(),
		Export: ExportConfig{
			File:      "applications.csv",
			StatsFile: "statistics.csv",
		},
	}
}

var validate = validator.New()

// Validate checks that the configuration has valid values.
// Note: This doesn't check for credentials since only some commands need them; see ValidateForRun.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if _, err := c.StatusPolicy(); err != nil {
		return fmt.Errorf("config error: policy.priorities: %w", err)
	}
	if c.Run.Mode == "continuous" && c.Run.Interval <= 0 {
		return fmt.Errorf("config error: 'run.interval' must be positive in continuous mode")
	}
	if c.Run.Mode == "scheduled" && c.Run.Cron == "" && c.Run.Interval <= 0 {
		return fmt.Errorf("config error: scheduled mode needs 'run.cron' or a positive 'run.interval'")
	}
	if c.Run.LeaseTTL < 0 {
		return fmt.Errorf("config error: 'run.lease_ttl' must be non-negative")
	}
	return nil
}

// ValidateForRun checks everything an ingestion run needs: a mailbox, model credentials and a store
func (c *Config) ValidateForRun() error {
	if err := c.Validate(); err != nil {
		return err
	}

	switch c.Source.Kind {
	case "maildir":
		if c.Source.Maildir == "" {
			return fmt.Errorf("config error: 'source.maildir' is required when source.kind is maildir")
		}
	default:
		if c.IMAP.Host == "" {
			return fmt.Errorf("config error: 'imap.host' is required (could not infer it from %q)", c.IMAP.Username)
		}
		if c.IMAP.Username == "" {
			return fmt.Errorf("config error: 'imap.username' is required")
		}
		if c.IMAP.Password == "" && c.OAuth() == nil {
			return fmt.Errorf("config error: 'imap.password' or OAuth credentials are required")
		}
	}

	if c.LLM.APIKey == "" {
		return fmt.Errorf("config error: 'llm.api_key' is required")
	}
	return c.ValidateStore()
}

// ValidateStore checks the store settings
func (c *Config) ValidateStore() error {
	if c.Database.Store == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("config error: 'database.url' is required for the postgres store")
	}
	return nil
}

// Addr returns host:port for the IMAP server. A port already in host wins.
func (c IMAPConfig) Addr() string {
	if c.Host == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(c.Host); err == nil {
		return c.Host
	}
	port := c.Port
	if port == 0 {
		port = 993
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// OAuth returns the OAuth credentials, or nil when they are not configured
func (c *Config) OAuth() *mail.OAuthConfig {
	oc := &mail.OAuthConfig{
		ClientID:     c.IMAP.OAuthClientID,
		ClientSecret: c.IMAP.OAuthClientSecret,
		RefreshToken: c.IMAP.OAuthRefreshToken,
		TokenURL:     c.IMAP.OAuthTokenURL,
	}
	if !oc.Enabled() {
		return nil
	}
	return oc
}

// MailConfig converts the IMAP section for mail.NewIMAPSource
func (c *Config) MailConfig() mail.IMAPConfig {
	return mail.IMAPConfig{
		Addr:     c.IMAP.Addr(),
		Username: c.IMAP.Username,
		Password: c.IMAP.Password,
		UseTLS:   c.IMAP.UseTLS,
		Folders:  c.IMAP.Folders,
		OAuth:    c.OAuth(),
		Timeout:  c.IMAP.Timeout,
	}
}

// FetchQuery builds the fetch query for a run
func (c *Config) FetchQuery() (mail.FetchQuery, error) {
	mode, err := mail.ParseFetchMode(c.Run.EmailMode)
	if err != nil {
		return mail.FetchQuery{}, err
	}
	return mail.FetchQuery{
		Mode:        mode,
		Days:        c.Run.Days,
		Keywords:    c.Source.Keywords,
		MaxMessages: c.Source.MaxMessages,
	}, nil
}

// ClientConfig builds the model configuration, layering configured models over the provider defaults
func (c *Config) ClientConfig() *llm.Config {
	cfg := llm.DefaultConfigFor(llm.Provider(c.LLM.Provider))
	for tier, model := range c.LLM.Models {
		if model != "" {
			cfg = cfg.WithModel(llm.ModelTier(strings.ToLower(tier)), model)
		}
	}
	cfg.Temperature = c.LLM.Temperature
	cfg.BaseURL = c.LLM.BaseURL
	cfg.RequestsPerSecond = c.LLM.RequestsPerSecond
	cfg.Burst = c.LLM.Burst
	return cfg
}

// StatusPolicy builds the status priority policy with configured overrides
func (c *Config) StatusPolicy() (types.StatusPolicy, error) {
	return types.NewStatusPolicy(c.Policy.Priorities)
}
