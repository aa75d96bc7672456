// Package provider wraps the LLM completion and embedding backends behind a
// small interface so the pipeline and tests never touch HTTP directly.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Provider is the completion surface the agents run on.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Options configures the OpenAI-compatible backend.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	Retries        int
	Backoff        time.Duration
}

// New returns a Provider for the named backend. Any OpenAI-compatible
// endpoint works via Options.BaseURL.
func New(backend string, opts Options) (Provider, error) {
	switch strings.ToLower(backend) {
	case "", "openai":
		if opts.APIKey == "" {
			return nil, errors.New("provider: missing API key")
		}
		return newOpenAI(opts), nil
	default:
		return nil, fmt.Errorf("provider: unknown backend %q", backend)
	}
}

type openAIProvider struct {
	opts   Options
	client *http.Client
	logger *log.Logger
}

func newOpenAI(opts Options) *openAIProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o"
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = "text-embedding-3-small"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Backoff == 0 {
		opts.Backoff = 2 * time.Second
	}
	return &openAIProvider{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: log.New(log.Writer(), "[LLM] ", log.LstdFlags),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *openAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       p.opts.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	var resp chatResponse
	if err := p.post(ctx, "/chat/completions", body, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("provider: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("provider: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (p *openAIProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	var resp embedResponse
	if err := p.post(ctx, "/embeddings", embedRequest{Model: p.opts.EmbeddingModel, Input: texts}, &resp); err != nil {
		return nil, err
	}
	out := make([][]float64, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, d.Embedding)
	}
	return out, nil
}

// post sends one JSON request. Transport errors and 5xx responses are
// retried with linear backoff (wait grows by one backoff unit per attempt);
// everything else fails immediately.
func (p *openAIProvider) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 0; attempt < p.opts.Retries; attempt++ {
		if attempt > 0 {
			wait := p.opts.Backoff * time.Duration(attempt+1)
			p.logger.Printf("transient failure, retry %d/%d in %s: %v", attempt+1, p.opts.Retries, wait, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+p.opts.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		b, rerr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%s: %s", resp.Status, string(b[:min(len(b), 256)]))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: %s", resp.Status, string(b[:min(len(b), 256)]))
		}
		if rerr != nil {
			lastErr = rerr
			continue
		}
		return json.Unmarshal(b, out)
	}
	return lastErr
}
