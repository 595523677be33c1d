package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	scouterr "github.com/vulnscout/vulnscout/internal/errors"
)

// HTTPConfig configures the HTTP embedding provider.
type HTTPConfig struct {
	Endpoint   string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration

	// RatePerSecond throttles upstream calls. Zero disables throttling.
	RatePerSecond float64

	// Retry overrides the default bounded backoff.
	Retry *scouterr.RetryConfig
}

// HTTPEmbedder calls an Ollama-compatible embeddings endpoint
// (POST {endpoint}/api/embed). It is the only place embedding traffic
// leaves the process, so retry, throttling, and error classification all
// live here.
type HTTPEmbedder struct {
	client  *http.Client
	cfg     HTTPConfig
	limiter *rate.Limiter
	retry   scouterr.RetryConfig

	mu     sync.Mutex
	dims   int
	closed bool
}

var _ Embedder = (*HTTPEmbedder)(nil)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewHTTPEmbedder creates the provider. Dimensions may be zero; they are
// learned from the first response.
func NewHTTPEmbedder(cfg HTTPConfig) *HTTPEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	retryCfg := scouterr.DefaultRetryConfig()
	if cfg.Retry != nil {
		retryCfg = *cfg.Retry
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}
	// No client-level timeout: per-request contexts carry it instead.
	return &HTTPEmbedder{
		client:  &http.Client{Transport: transport},
		cfg:     cfg,
		limiter: limiter,
		retry:   retryCfg,
		dims:    cfg.Dimensions,
	}
}

// Embed generates an embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string, kind InputKind) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text}, kind)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts, splitting into sub-batches of
// the configured size. Transient upstream failures are retried with
// exponential backoff; invalid input surfaces immediately.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string, kind InputKind) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[start:end]
		vecs, err := scouterr.RetryWithResult(ctx, e.retry, func() ([][]float32, error) {
			return e.doEmbed(ctx, batch, kind)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *HTTPEmbedder) doEmbed(ctx context.Context, texts []string, kind InputKind) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	// Asymmetric models want the input kind as a task prefix.
	input := texts
	if kind == KindQuery {
		input = make([]string, len(texts))
		for i, t := range texts {
			input[i] = "search_query: " + t
		}
	}

	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: input})
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeInvalidInput, "marshal embed request", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.cfg.Endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeInternal, "build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeProviderTimeout, "embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus(resp.StatusCode, string(data))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, scouterr.New(scouterr.ErrCodeProviderUnavailable, "decode embed response", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, scouterr.New(scouterr.ErrCodeProviderUnavailable,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(parsed.Embeddings)), nil)
	}

	e.mu.Lock()
	if e.dims == 0 && len(parsed.Embeddings) > 0 {
		e.dims = len(parsed.Embeddings[0])
	}
	e.mu.Unlock()

	return parsed.Embeddings, nil
}

// classifyStatus maps HTTP status codes onto the error taxonomy: 429 and
// 5xx are transient, everything else in 4xx is permanent input error.
func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return scouterr.New(scouterr.ErrCodeRateLimited, "embedding provider rate limited", nil).
			WithDetail("body", body)
	case status >= 500:
		return scouterr.New(scouterr.ErrCodeProviderUnavailable,
			fmt.Sprintf("embedding provider returned %d", status), nil).WithDetail("body", body)
	default:
		return scouterr.New(scouterr.ErrCodeInvalidInput,
			fmt.Sprintf("embedding provider rejected input with %d", status), nil).WithDetail("body", body)
	}
}

// Dimensions returns the embedding width (0 until the first response when
// not configured).
func (e *HTTPEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *HTTPEmbedder) ModelName() string {
	return e.cfg.Model
}

// Available probes the endpoint.
func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, e.cfg.Endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close shuts down idle connections.
func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if t, ok := e.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}
