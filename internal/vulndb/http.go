package vulndb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vulnscout/vulnscout/internal/config"
	scouterr "github.com/vulnscout/vulnscout/internal/errors"
)

// HTTPStore queries a qdrant-style vector search API:
// POST {endpoint}/collections/{collection}/points/search.
type HTTPStore struct {
	client *http.Client
	cfg    config.VulnDBConfig
	logger *slog.Logger
	retry  scouterr.RetryConfig

	warnOnce sync.Once
}

var _ Store = (*HTTPStore)(nil)

func NewHTTPStore(cfg config.VulnDBConfig, logger *slog.Logger) *HTTPStore {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	return &HTTPStore{
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		}},
		cfg:    cfg,
		logger: logger,
		retry:  scouterr.DefaultRetryConfig(),
	}
}

type searchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	ScoreThreshold float64   `json:"score_threshold,omitempty"`
	WithPayload    bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []struct {
		ID      json.Number `json:"id"`
		Score   float64     `json:"score"`
		Payload struct {
			VulnID      string   `json:"vuln_id"`
			Title       string   `json:"title"`
			Description string   `json:"description"`
			CWE         string   `json:"cwe"`
			Severity    string   `json:"severity"`
			References  []string `json:"references"`
		} `json:"payload"`
	} `json:"result"`
}

// SimilaritySearch queries the external store. A local embedding whose
// width differs from the store's is padded or truncated first; the
// adaptation loses precision and is logged once per process. With
// StrictDimensions set, the mismatch is a permanent input error instead.
func (s *HTTPStore) SimilaritySearch(ctx context.Context, vector []float32, limit int, threshold float64) ([]Record, error) {
	adapted, err := s.adaptWidth(vector)
	if err != nil {
		return nil, err
	}

	return scouterr.RetryWithResult(ctx, s.retry, func() ([]Record, error) {
		return s.doSearch(ctx, adapted, limit, threshold)
	})
}

func (s *HTTPStore) doSearch(ctx context.Context, vector []float32, limit int, threshold float64) ([]Record, error) {
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	body, err := json.Marshal(searchRequest{
		Vector:         vector,
		Limit:          limit,
		ScoreThreshold: threshold,
		WithPayload:    true,
	})
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeInternal, "marshal vulndb search", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", s.cfg.Endpoint, s.cfg.Collection)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeInternal, "build vulndb request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeProviderTimeout, "vulndb request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, scouterr.New(scouterr.ErrCodeRateLimited, "vulndb rate limited", nil)
	case resp.StatusCode >= 500:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, scouterr.New(scouterr.ErrCodeProviderUnavailable,
			fmt.Sprintf("vulndb returned %d", resp.StatusCode), nil).WithDetail("body", string(data))
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, scouterr.New(scouterr.ErrCodeInvalidInput,
			fmt.Sprintf("vulndb rejected request with %d", resp.StatusCode), nil).WithDetail("body", string(data))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, scouterr.New(scouterr.ErrCodeProviderUnavailable, "decode vulndb response", err)
	}

	records := make([]Record, 0, len(parsed.Result))
	for _, hit := range parsed.Result {
		id := hit.Payload.VulnID
		if id == "" {
			id = hit.ID.String()
		}
		records = append(records, Record{
			ID:          id,
			Title:       hit.Payload.Title,
			Description: hit.Payload.Description,
			CWE:         hit.Payload.CWE,
			Severity:    hit.Payload.Severity,
			References:  hit.Payload.References,
			Score:       hit.Score,
		})
	}
	return records, nil
}

// adaptWidth reconciles the local embedding width with the store's.
// Zero-padding a shorter vector (or truncating a longer one) changes the
// similarity geometry, so the result is an approximation. All width
// handling is confined here.
func (s *HTTPStore) adaptWidth(vector []float32) ([]float32, error) {
	want := s.cfg.Dimensions
	if want == 0 || len(vector) == want {
		return vector, nil
	}
	if s.cfg.StrictDimensions {
		return nil, scouterr.New(scouterr.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding width %d does not match vulndb width %d", len(vector), want), nil)
	}

	s.warnOnce.Do(func() {
		s.logger.Warn("adapting embedding width for vulndb search, similarity precision degrades",
			"local", len(vector), "store", want)
	})

	adapted := make([]float32, want)
	copy(adapted, vector)
	return adapted, nil
}

// Dimensions reports the configured store-side width.
func (s *HTTPStore) Dimensions() int { return s.cfg.Dimensions }
