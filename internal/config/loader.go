package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces tracker environment variables, e.g. TRACKER_RUN_MODE -> run.mode
const EnvPrefix = "TRACKER_"

const maxConfigFileSize = 1024 * 1024

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// legacyEnv maps the plain variable names used by older .env files to config keys
var legacyEnv = map[string]string{
	"EMAIL_ADDRESS":     "imap.username",
	"EMAIL_PASSWORD":    "imap.password",
	"EMAIL_IMAP_SERVER": "imap.host",
	"EMAIL_IMAP_PORT":   "imap.port",
	"DATABASE_URL":      "database.url",
	"AI_MODEL":          "llm.models.standard",
	"TEMPERATURE":       "llm.temperature",
	"CHECK_INTERVAL":    "run.interval",
	"LOOKBACK_DAYS":     "run.days",
}

// Load builds the configuration.
//
// Precedence (highest to lowest):
//  1. TRACKER_ environment variables (TRACKER_RUN_MODE -> run.mode)
//  2. Legacy variables (EMAIL_ADDRESS, DATABASE_URL, GEMINI_API_KEY, ...)
//  3. The YAML file at path, with ${VAR} references expanded
//  4. Default()
//
// A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		expanded := expandEnvVars(string(content))
		if err := k.Load(rawbytes.Provider([]byte(expanded)), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", legacyValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", prefixedValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyProviderDefaults(&cfg)
	applyAPIKey(&cfg, k.Exists("llm.provider"))
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// prefixedValue maps TRACKER_SECTION_FIELD_NAME to section.field_name, skipping empty values
func prefixedValue(name, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}
	return envKey(name), value
}

func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// legacyValue keeps only the known legacy names; an empty key tells koanf to skip the variable
func legacyValue(name, value string) (string, interface{}) {
	key, ok := legacyEnv[name]
	if !ok || value == "" {
		return "", nil
	}
	switch name {
	case "CHECK_INTERVAL":
		// Plain seconds in older files
		if secs, err := strconv.Atoi(value); err == nil {
			return key, fmt.Sprintf("%ds", secs)
		}
	}
	return key, value
}

// expandEnvVars replaces ${VAR} with the variable's value; unset variables are left as written
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(m string) string {
		name := envVarPattern.FindStringSubmatch(m)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})
}

// applyProviderDefaults fills IMAP host and folders from the address when they were not configured
func applyProviderDefaults(cfg *Config) {
	if cfg.IMAP.Provider == "" {
		cfg.IMAP.Provider = inferEmailProvider(cfg.IMAP.Username)
	}
	if cfg.IMAP.Host == "" {
		cfg.IMAP.Host = imapHost(cfg.IMAP.Provider)
	}
	if len(cfg.IMAP.Folders) == 0 {
		cfg.IMAP.Folders = defaultFolders(cfg.IMAP.Provider)
	}
}

// applyAPIKey falls back to GEMINI_API_KEY or OPENAI_API_KEY when llm.api_key is unset.
// With no explicit provider, an OpenAI key alone selects the openai provider.
func applyAPIKey(cfg *Config, providerSet bool) {
	if cfg.LLM.APIKey != "" {
		return
	}
	gemini, openai := os.Getenv("GEMINI_API_KEY"), os.Getenv("OPENAI_API_KEY")
	if !providerSet && gemini == "" && openai != "" {
		cfg.LLM.Provider = "openai"
	}
	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = openai
	default:
		cfg.LLM.APIKey = gemini
	}
}

func inferEmailProvider(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "custom"
	}
	domain := strings.ToLower(email[at+1:])
	switch domain {
	case "gmail.com", "googlemail.com":
		return "gmail"
	case "outlook.com", "hotmail.com", "live.com":
		return "outlook"
	case "yahoo.com":
		return "yahoo"
	default:
		return "custom"
	}
}

func imapHost(provider string) string {
	switch provider {
	case "gmail":
		return "imap.gmail.com"
	case "outlook":
		return "outlook.office365.com"
	case "yahoo":
		return "imap.mail.yahoo.com"
	default:
		return ""
	}
}

func defaultFolders(provider string) []string {
	switch provider {
	case "gmail":
		return []string{"INBOX", "[Gmail]/Sent Mail"}
	case "outlook":
		return []string{"INBOX", "Sent Items"}
	case "yahoo":
		return []string{"INBOX", "Sent"}
	default:
		return []string{"INBOX"}
	}
}
