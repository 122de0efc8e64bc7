// Package llm is the language model behind the assistant, reached through
// langchaingo. Ollama is the default backend; any OpenAI-compatible API
// works too.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type Options struct {
	Provider string
	BaseURL  string // Ollama host or OpenAI-compatible base URL
	Model    string
	APIKey   string
	Timeout  time.Duration

	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Defaults match the sampling the assistant prompt was tuned with.
func DefaultOptions() Options {
	return Options{
		Provider:    ProviderOllama,
		BaseURL:     "http://localhost:11434",
		Model:       "llama3:8b",
		Timeout:     30 * time.Second,
		Temperature: 0.3,
		TopP:        0.9,
		MaxTokens:   200,
	}
}

type Client struct {
	model    llms.Model
	opts     Options
	callOpts []llms.CallOption
	hc       *http.Client
}

func New(o Options) (*Client, error) {
	var (
		model llms.Model
		err   error
	)
	switch o.Provider {
	case "", ProviderOllama:
		model, err = ollama.New(
			ollama.WithServerURL(o.BaseURL),
			ollama.WithModel(o.Model),
			ollama.WithFormat("json"),
		)
	case ProviderOpenAI:
		oo := []openai.Option{openai.WithModel(o.Model), openai.WithToken(o.APIKey)}
		if o.BaseURL != "" {
			oo = append(oo, openai.WithBaseURL(o.BaseURL))
		}
		model, err = openai.New(oo...)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", o.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("llm: %s: %w", o.Provider, err)
	}
	return NewWithModel(model, o), nil
}

// NewWithModel wraps an already built langchaingo model.
func NewWithModel(m llms.Model, o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = DefaultOptions().Timeout
	}
	return &Client{
		model: m,
		opts:  o,
		callOpts: []llms.CallOption{
			llms.WithTemperature(o.Temperature),
			llms.WithTopP(o.TopP),
			llms.WithMaxTokens(o.MaxTokens),
		},
		hc: &http.Client{Timeout: 3 * time.Second},
	}
}

// Complete sends prompt as a single human message and returns the trimmed
// reply. The call is bounded by the client timeout.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, c.callOpts...)
	if err != nil {
		return "", fmt.Errorf("llm: complete: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Ping checks that the Ollama server answers. Other providers are not
// probed.
func (c *Client) Ping(ctx context.Context) error {
	if c.opts.Provider != "" && c.opts.Provider != ProviderOllama {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.opts.BaseURL, "/")+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("llm: ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return errors.New("llm: ping: " + resp.Status)
	}
	return nil
}
