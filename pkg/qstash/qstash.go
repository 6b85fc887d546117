package qstash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxResponseSizeBytes = 1 << 20

type Config struct {
	URL               string        `split_words:"true" default:"https://qstash.upstash.io"`
	Token             string        `split_words:"true" required:"true"`
	CurrentSigningKey string        `split_words:"true" required:"true"`
	NextSigningKey    string        `split_words:"true" required:"true"`
	Timeout           time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL           string
	token             string
	currentSigningKey string
	nextSigningKey    string
	httpClient        *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("qstash token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		token:             token,
		currentSigningKey: strings.TrimSpace(cfg.CurrentSigningKey),
		nextSigningKey:    strings.TrimSpace(cfg.NextSigningKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	return client, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// PublishOptions maps to the Upstash-* request headers.
type PublishOptions struct {
	DeduplicationID string
	Delay           time.Duration
	Retries         *int
}

type publishResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// Publish enqueues body for delivery to destination and returns the message id.
func (c *Client) Publish(ctx context.Context, destination string, body []byte, opts PublishOptions) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", errors.New("qstash destination is required")
	}
	if _, err := url.ParseRequestURI(destination); err != nil {
		return "", fmt.Errorf("invalid qstash destination: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/publish/"+destination, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build qstash request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	if opts.DeduplicationID != "" {
		req.Header.Set("Upstash-Deduplication-Id", opts.DeduplicationID)
	}
	if opts.Delay > 0 {
		req.Header.Set("Upstash-Delay", strconv.FormatInt(int64(opts.Delay/time.Second), 10)+"s")
	}
	if opts.Retries != nil {
		req.Header.Set("Upstash-Retries", strconv.Itoa(*opts.Retries))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute qstash request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return "", fmt.Errorf("read qstash response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("qstash http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed publishResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode qstash response: %w", err)
	}
	if parsed.Error != "" {
		return "", errors.New(parsed.Error)
	}
	return parsed.MessageID, nil
}
