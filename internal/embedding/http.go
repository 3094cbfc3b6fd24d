package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sourcelens/sourcelens/internal/coreerr"
)

// HTTPConfig configures an HTTP-backed remote embedding provider (spec
// §4.4 "HTTP-backed remotes (OpenAI-style, Voyage-style, Gemini, Ollama)").
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
	Retry      RetryConfig

	// RequestBuilder and ResponseParser adapt to a specific provider's wire
	// format (OpenAI, Voyage, Gemini, and Ollama all differ), keeping one
	// HTTP client implementation for every remote variant.
	RequestBuilder func(texts []string, model string) ([]byte, error)
	ResponseParser func(body []byte) ([][]float32, error)
}

// HTTPProvider is a generic HTTP-backed Embedder. Provider-specific wire
// formats are supplied via HTTPConfig.RequestBuilder/ResponseParser so this
// single type serves OpenAI-style, Voyage-style, Gemini, and Ollama
// backends without duplicating the request/retry/health-check plumbing.
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
	name   string
}

// NewHTTPProvider creates an HTTPProvider named name (used for metrics and
// logging, e.g. "openai", "voyage", "ollama").
func NewHTTPProvider(name string, cfg HTTPConfig) *HTTPProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		name:   name,
	}
}

func (p *HTTPProvider) Dimensions() int      { return p.cfg.Dimensions }
func (p *HTTPProvider) ProviderName() string { return p.name }

func (p *HTTPProvider) EmbedText(ctx context.Context, text string) (Embedding, error) {
	out, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	return out[0], nil
}

// EmbedBatch preserves input ordering and fails the whole batch on any
// partial provider failure.
func (p *HTTPProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	err := Retry(ctx, p.cfg.Retry, func() error {
		body, err := p.cfg.RequestBuilder(texts, p.cfg.Model)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if p.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return coreerr.Wrap("embedding", coreerr.Unavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return coreerr.Newf(coreerr.Unavailable, "%s: server error %d", p.name, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return coreerr.Newf(coreerr.InvalidArgument, "%s: request rejected with status %d", p.name, resp.StatusCode)
		}

		var respBody bytes.Buffer
		if _, err := respBody.ReadFrom(resp.Body); err != nil {
			return err
		}
		vectors, err = p.cfg.ResponseParser(respBody.Bytes())
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, coreerr.Newf(coreerr.Internal, "%s: expected %d vectors, got %d", p.name, len(texts), len(vectors))
	}

	out := make([]Embedding, len(vectors))
	for i, v := range vectors {
		out[i] = Embedding{Vector: v, Dimensions: len(v), Model: p.cfg.Model}
	}
	return out, nil
}

func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	_, err := p.EmbedText(ctx, "health check")
	return err
}

// OpenAIRequestBuilder builds an OpenAI-style embeddings request body.
func OpenAIRequestBuilder(texts []string, model string) ([]byte, error) {
	return json.Marshal(struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}{Input: texts, Model: model})
}

// OpenAIResponseParser parses an OpenAI-style embeddings response body.
func OpenAIResponseParser(body []byte) ([][]float32, error) {
	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("embedding: parse response: %w", err)
	}
	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// OllamaRequestBuilder builds an Ollama-style embeddings request body.
func OllamaRequestBuilder(texts []string, model string) ([]byte, error) {
	return json.Marshal(struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{Model: model, Input: texts})
}

// OllamaResponseParser parses an Ollama-style embeddings response body.
func OllamaResponseParser(body []byte) ([][]float32, error) {
	var parsed struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("embedding: parse response: %w", err)
	}
	return parsed.Embeddings, nil
}
