// alert_classifier.go implements the AlertClassifierJob background job, which
// periodically scans for alerts whose captured content has no sensitivity score
// yet and submits it to the classification engine. The score is written into
// the alert's data snapshot, so an alert is classified exactly once. The job is
// a no-op when ml.enabled is false, so it is always safe to start regardless of
// deployment environment.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentinel-dlp/sentinel-dlp/internal/apperr"
	"github.com/sentinel-dlp/sentinel-dlp/internal/config"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/repositories"
	"github.com/sentinel-dlp/sentinel-dlp/internal/services"
)

// scanBatchSize caps how many alerts one scan classifies.
const scanBatchSize = 50

// AlertClassifierJob periodically scores unclassified alert content.
type AlertClassifierJob struct {
	alerts     *repositories.AlertRepository
	classifier services.Classifier
	cfg        *config.MLConfig
	logger     *slog.Logger
	interval   time.Duration
	stopChan   chan struct{}
}

// NewAlertClassifierJob creates a new AlertClassifierJob. The scan interval
// comes from ml.scan_interval and defaults to 5 minutes.
func NewAlertClassifierJob(
	alerts *repositories.AlertRepository,
	classifier services.Classifier,
	cfg *config.MLConfig,
	logger *slog.Logger,
) *AlertClassifierJob {
	interval := cfg.ScanInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &AlertClassifierJob{
		alerts:     alerts,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the background classification loop. It runs an initial scan
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (j *AlertClassifierJob) Start(ctx context.Context) {
	if !j.cfg.Enabled {
		j.logger.Info("alert classifier: disabled (ml.enabled=false)")
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("alert classifier started", "interval", j.interval)

	j.runScan(ctx)

	for {
		select {
		case <-ticker.C:
			j.runScan(ctx)
		case <-j.stopChan:
			j.logger.Info("alert classifier stopped")
			return
		case <-ctx.Done():
			j.logger.Info("alert classifier context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (j *AlertClassifierJob) Stop() {
	close(j.stopChan)
}

// runScan classifies one batch of unscored alerts. An unavailable engine ends
// the scan early; the remaining alerts are retried on the next tick.
func (j *AlertClassifierJob) runScan(ctx context.Context) {
	alerts, err := j.alerts.ListUnscoredAlerts(ctx, scanBatchSize)
	if err != nil {
		j.logger.Error("alert classifier: failed to query unscored alerts", "error", err)
		return
	}
	if len(alerts) == 0 {
		return
	}

	j.logger.Info("alert classifier: scoring alerts", "count", len(alerts))

	for _, alert := range alerts {
		if err := j.classifyAlert(ctx, alert); err != nil {
			if errors.Is(err, apperr.ErrClassificationUnavailable) {
				j.logger.Warn("alert classifier: engine unavailable, ending scan", "error", err)
				return
			}
			j.logger.Error("alert classifier: failed to classify alert",
				"alert_id", alert.ID, "error", err)
		}
	}
}

// classifyAlert scores one alert's captured content and persists the verdict
// in its data snapshot alongside a history entry.
func (j *AlertClassifierJob) classifyAlert(ctx context.Context, alert *models.Alert) error {
	content, _ := alert.DataSnapshot["content"].(string)
	if content == "" {
		return nil
	}

	result, err := j.classifier.ClassifyDocument(ctx, content, map[string]interface{}{
		"alert_id": alert.ID,
		"source":   alert.Source,
	})
	if err != nil {
		return err
	}

	alert.DataSnapshot["sensitivity_score"] = result.SensitivityScore
	alert.DataSnapshot["classification"] = result.Classification
	if len(result.KeywordsFound) > 0 {
		alert.DataSnapshot["keywords_found"] = result.KeywordsFound
	}

	alert.History = append(alert.History, models.HistoryEntry{
		Action:    fmt.Sprintf("Content auto-classified as %s (sensitivity %.2f)", result.Classification, result.SensitivityScore),
		Timestamp: time.Now().UTC(),
		NewValue:  result.SensitivityScore,
	})

	return j.alerts.UpdateAlert(ctx, alert)
}
