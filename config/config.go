// Package config loads the Blackscope service configuration from an optional
// YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the service needs at startup.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// AllowedOrigins are the CORS origins permitted to call the API.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Provider selects the model backend: openai, anthropic, google or mock.
	Provider string `yaml:"provider"`

	// Model and VisionModel name the chat and vision models. Empty selects
	// the provider default.
	Model       string `yaml:"model"`
	VisionModel string `yaml:"vision_model"`

	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GoogleAPIKey    string `yaml:"google_api_key"`

	HeadlessBrowser bool `yaml:"headless_browser"`
	BrowserWidth    int  `yaml:"browser_width"`
	BrowserHeight   int  `yaml:"browser_height"`

	// RequestTimeout bounds individual HTTP fetches against the target.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// LogJSON switches the event log from text to NDJSON.
	LogJSON bool `yaml:"log_json"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:3000"},
		Provider:        "openai",
		HeadlessBrowser: true,
		BrowserWidth:    1920,
		BrowserHeight:   1080,
		RequestTimeout:  30 * time.Second,
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// File is optional.
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.ListenAddr, "BLACKSCOPE_LISTEN_ADDR")
	setString(&c.Provider, "BLACKSCOPE_PROVIDER")
	setString(&c.Model, "BLACKSCOPE_MODEL")
	setString(&c.VisionModel, "BLACKSCOPE_VISION_MODEL")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&c.GoogleAPIKey, "GOOGLE_API_KEY")
	setBool(&c.HeadlessBrowser, "BLACKSCOPE_HEADLESS")
	setBool(&c.LogJSON, "BLACKSCOPE_LOG_JSON")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}
