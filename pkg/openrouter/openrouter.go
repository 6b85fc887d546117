package openrouter

import (
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Config points the OpenAI SDK at OpenRouter or any OpenAI-compatible
// endpoint. The concierge only uses it for embeddings. MaxRetries is 0 unless
// set, so a failed call surfaces to the caller on the first attempt.
type Config struct {
	BaseURL    string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey     string        `envconfig:"API_KEY" split_words:"true"`
	Timeout    time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	MaxRetries int           `envconfig:"MAX_RETRIES" split_words:"true" default:"0"`
	SiteURL    string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName   string        `envconfig:"SITE_NAME" split_words:"true"`
}

// NewClient returns nil when no API key is configured so callers can treat
// the integration as disabled. extra is appended after the config options.
func NewClient(cfg Config, extra ...option.RequestOption) *openaisdk.Client {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed+"/"))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	// attribution headers shown on the OpenRouter dashboard
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}
	opts = append(opts, extra...)

	client := openaisdk.NewClient(opts...)
	return &client
}
