// Package provider builds the OpenAI-compatible client used for the hosted embedding and
// chat models, and the retry and pacing policy shared by both.
package provider

import (
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.mistral.ai"
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3
)

// Config holds connection settings for the provider.
type Config struct {
	// BaseURL is the provider root without the /v1 suffix.
	BaseURL string
	APIKey  string
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// RequestsPerSecond paces outgoing calls. Zero or less disables pacing.
	RequestsPerSecond float64
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// APIBase returns the versioned API root, always ending in "/v1/".
func (c Config) APIBase() string {
	base := strings.TrimRight(c.withDefaults().BaseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/"
}

// NewClient creates an OpenAI-compatible client. The SDK's own retries are disabled;
// callers wrap requests in a Retrier instead.
func NewClient(cfg Config) openai.Client {
	cfg = cfg.withDefaults()
	return openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.APIBase()),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	)
}
