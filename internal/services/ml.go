// ml.go implements the client for the external classification engine. The
// engine is an optional collaborator: every failure surfaces as
// apperr.ErrClassificationUnavailable, which callers treat as "proceed without
// a score". Document classifications are cached in Redis keyed by content
// hash, since the same captured content is frequently re-submitted.
package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentinel-dlp/sentinel-dlp/internal/apperr"
	"github.com/sentinel-dlp/sentinel-dlp/internal/config"
	"github.com/sentinel-dlp/sentinel-dlp/internal/telemetry"
)

// DocumentClassification is the engine's verdict on a piece of content.
type DocumentClassification struct {
	SensitivityScore float64  `json:"sensitivity_score"`
	Classification   string   `json:"classification"`
	KeywordsFound    []string `json:"keywords_found,omitempty"`
}

// AnomalyScore is the engine's verdict on a set of user activity features.
type AnomalyScore struct {
	AnomalyScore        float64  `json:"anomaly_score"`
	IsAnomalous         bool     `json:"is_anomalous"`
	ContributingFactors []string `json:"contributing_factors,omitempty"`
}

// Classifier is the interface consumed by handlers and the auto-classification
// job. MLClient is the production implementation.
type Classifier interface {
	ClassifyDocument(ctx context.Context, text string, metadata map[string]interface{}) (*DocumentClassification, error)
	ScoreUserActivity(ctx context.Context, features map[string]interface{}) (*AnomalyScore, error)
}

// MLClient calls the external classification engine over HTTP.
type MLClient struct {
	cfg    *config.MLConfig
	client *http.Client
	cache  *redis.Client
	logger *slog.Logger
}

// NewMLClient creates a new MLClient. cache may be nil, in which case
// classification results are not cached.
func NewMLClient(cfg *config.MLConfig, cache *redis.Client, logger *slog.Logger) *MLClient {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MLClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		cache:  cache,
		logger: logger,
	}
}

// ClassifyDocument submits text content for sensitivity classification.
// Identical content within the cache TTL is served from Redis without a
// network round-trip.
func (c *MLClient) ClassifyDocument(ctx context.Context, text string, metadata map[string]interface{}) (*DocumentClassification, error) {
	if !c.cfg.Enabled {
		return nil, fmt.Errorf("%w: classification engine is disabled", apperr.ErrClassificationUnavailable)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: text content is required", apperr.ErrValidation)
	}

	cacheKey := documentCacheKey(text)
	if cached := c.cacheGet(ctx, cacheKey); cached != nil {
		result := &DocumentClassification{}
		if err := json.Unmarshal(cached, result); err == nil {
			telemetry.MLClassificationsTotal.WithLabelValues("document", "cache_hit").Inc()
			return result, nil
		}
	}

	result := &DocumentClassification{}
	err := c.post(ctx, "document", "/predict/document_sensitivity", map[string]interface{}{
		"text_content": text,
		"metadata":     metadata,
	}, result)
	if err != nil {
		return nil, err
	}

	c.cacheSet(ctx, cacheKey, result)
	return result, nil
}

// ScoreUserActivity submits user activity features for anomaly scoring.
// Activity features are point-in-time, so results are never cached.
func (c *MLClient) ScoreUserActivity(ctx context.Context, features map[string]interface{}) (*AnomalyScore, error) {
	if !c.cfg.Enabled {
		return nil, fmt.Errorf("%w: classification engine is disabled", apperr.ErrClassificationUnavailable)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: activity features are required", apperr.ErrValidation)
	}

	result := &AnomalyScore{}
	err := c.post(ctx, "user_anomaly", "/predict/user_anomaly", map[string]interface{}{
		"activity_features": features,
	}, result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// post sends one prediction request and decodes the response. Every transport
// or engine failure collapses into ErrClassificationUnavailable; the detail
// stays in the log.
func (c *MLClient) post(ctx context.Context, kind, path string, payload interface{}, out interface{}) error {
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		telemetry.MLClassificationsTotal.WithLabelValues(kind, "error").Inc()
		c.logger.Warn("classification engine unreachable", "kind", kind, "error", err)
		return fmt.Errorf("%w: no response from classification engine", apperr.ErrClassificationUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		telemetry.MLClassificationsTotal.WithLabelValues(kind, "error").Inc()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("classification engine returned error",
			"kind", kind, "status", resp.StatusCode, "body", string(detail))
		return fmt.Errorf("%w: classification engine returned status %d",
			apperr.ErrClassificationUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		telemetry.MLClassificationsTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("%w: malformed classification response", apperr.ErrClassificationUnavailable)
	}

	telemetry.MLClassificationsTotal.WithLabelValues(kind, "success").Inc()
	telemetry.MLClassificationDuration.Observe(time.Since(start).Seconds())
	return nil
}

// cacheGet fetches a cached classification; any cache failure reads as a miss.
func (c *MLClient) cacheGet(ctx context.Context, key string) []byte {
	if c.cache == nil || c.cfg.CacheTTL <= 0 {
		return nil
	}
	data, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("classification cache read failed", "error", err)
		}
		return nil
	}
	return data
}

// cacheSet stores a classification result best-effort.
func (c *MLClient) cacheSet(ctx context.Context, key string, result *DocumentClassification) {
	if c.cache == nil || c.cfg.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cfg.CacheTTL).Err(); err != nil {
		c.logger.Warn("classification cache write failed", "error", err)
	}
}

func documentCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "ml:doc:" + hex.EncodeToString(sum[:])
}
