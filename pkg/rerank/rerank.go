// Package rerank calls an external cross-encoder service and blends its
// relevance scores with the retrieval scores. Every failure here is soft:
// callers fall back to the unreranked order.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"jobmatch/pkg/config"
	"jobmatch/pkg/model"
)

// Client talks to the cross-encoder endpoint behind a circuit breaker.
type Client struct {
	endpoint  string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	crossW    float64
	retrieveW float64
	log       *zap.Logger
}

// New builds a Client from config. The breaker opens after consecutive
// failures and an open breaker short-circuits to the downgrade path.
func New(cfg *config.Config, log *zap.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "reranker",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("reranker breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Client{
		endpoint:  cfg.Reranker.Endpoint,
		http:      &http.Client{Timeout: cfg.Reranker.Timeout.Std()},
		breaker:   breaker,
		crossW:    cfg.Pipeline.CrossWeight,
		retrieveW: cfg.Pipeline.RetrieveWeight,
		log:       log,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank scores the matches against the query with the cross-encoder and
// returns them reordered by the blended score. The calibrated score is left
// untouched; the cross-encoder relevance lands in CrossScore. Ties keep
// retrieval order. Any error means the caller should keep the original
// ranking.
func (c *Client) Rerank(ctx context.Context, query string, matches []model.JobMatch) ([]model.JobMatch, error) {
	docs := make([]string, len(matches))
	for i, m := range matches {
		doc := m.Title
		if m.ShortDescription != "" {
			doc += "\n" + m.ShortDescription
		} else if m.Description != "" {
			doc += "\n" + m.Description
		}
		docs[i] = doc
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.score(ctx, query, docs)
	})
	if err != nil {
		return nil, err
	}
	cross := result.([]float64)
	if len(cross) != len(matches) {
		return nil, fmt.Errorf("reranker returned %d scores for %d documents",
			len(cross), len(matches))
	}

	type ranked struct {
		match model.JobMatch
		score float64
	}
	out := make([]ranked, len(matches))
	for i, m := range matches {
		s := math.Round(clamp01(cross[i])*10000) / 10000
		m.CrossScore = &s
		out[i] = ranked{match: m, score: c.crossW*s + c.retrieveW*m.Score}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })

	reranked := make([]model.JobMatch, len(out))
	for i, r := range out {
		reranked[i] = r.match
	}
	c.log.Debug("reranked candidates", zap.Int("count", len(reranked)))
	return reranked, nil
}

func (c *Client) score(ctx context.Context, query string, docs []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Documents: docs})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("reranker status %d: %s", resp.StatusCode, payload)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode reranker response: %w", err)
	}
	return parsed.Scores, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
