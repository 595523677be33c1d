package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/vulnscout/vulnscout/internal/config"
	scouterr "github.com/vulnscout/vulnscout/internal/errors"
)

// HTTPReranker calls a cross-encoder rerank endpoint
// (POST {endpoint}/rerank, Cohere-compatible request shape).
type HTTPReranker struct {
	client *http.Client
	cfg    config.RerankConfig
	retry  scouterr.RetryConfig
}

var _ Reranker = (*HTTPReranker)(nil)

func NewHTTPReranker(cfg config.RerankConfig) *HTTPReranker {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	return &HTTPReranker{
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		}},
		cfg:   cfg,
		retry: scouterr.DefaultRetryConfig(),
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (r *HTTPReranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]Result, error) {
	if len(docs) == 0 {
		return []Result{}, nil
	}
	return scouterr.RetryWithResult(ctx, r.retry, func() ([]Result, error) {
		return r.doRerank(ctx, query, docs, topN)
	})
}

func (r *HTTPReranker) doRerank(ctx context.Context, query string, docs []string, topN int) ([]Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	body, err := json.Marshal(rerankRequest{
		Model:     r.cfg.Model,
		Query:     query,
		Documents: docs,
		TopN:      topN,
	})
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeInternal, "marshal rerank request", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.cfg.Endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeInternal, "build rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeProviderTimeout, "rerank request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, scouterr.New(scouterr.ErrCodeRateLimited, "rerank provider rate limited", nil)
	case resp.StatusCode >= 500:
		return nil, scouterr.New(scouterr.ErrCodeProviderUnavailable,
			fmt.Sprintf("rerank provider returned %d", resp.StatusCode), nil)
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, scouterr.New(scouterr.ErrCodeInvalidInput,
			fmt.Sprintf("rerank provider rejected request with %d", resp.StatusCode), nil).
			WithDetail("body", string(data))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, scouterr.New(scouterr.ErrCodeProviderUnavailable, "decode rerank response", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, hit := range parsed.Results {
		if hit.Index < 0 || hit.Index >= len(docs) {
			return nil, scouterr.New(scouterr.ErrCodeProviderUnavailable,
				fmt.Sprintf("rerank index %d out of range", hit.Index), nil)
		}
		results = append(results, Result{Index: hit.Index, Score: hit.RelevanceScore})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}
