// alerts.go implements detection alert management and triage. A status change
// is recorded in history as "Status changed to <new>"; any other triage update
// gets a single entry naming the patched fields.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sentinel-dlp/sentinel-dlp/internal/apperr"
	"github.com/sentinel-dlp/sentinel-dlp/internal/auth"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/repositories"
	"github.com/sentinel-dlp/sentinel-dlp/internal/telemetry"
)

// AlertService implements alert creation, triage, and deletion.
type AlertService struct {
	alerts *repositories.AlertRepository
	logger *slog.Logger
}

// NewAlertService creates a new AlertService.
func NewAlertService(alerts *repositories.AlertRepository, logger *slog.Logger) *AlertService {
	return &AlertService{alerts: alerts, logger: logger}
}

// CreateAlertInput carries the fields accepted on alert creation. Severity
// defaults to Medium and status to New.
type CreateAlertInput struct {
	Title         string             `json:"title" binding:"required"`
	Description   string             `json:"description"`
	Severity      models.Severity    `json:"severity"`
	Status        models.AlertStatus `json:"status"`
	PolicyID      *string            `json:"policy_id"`
	UsersInvolved models.StringList  `json:"users_involved"`
	DataSnapshot  models.JSONMap     `json:"data_snapshot"`
	Source        string             `json:"source"`
	Tags          models.StringList  `json:"tags"`
	OccurredAt    *time.Time         `json:"occurred_at"`
}

// AlertPatch carries the triage fields an update may touch. Nil fields are
// left unchanged; Note appends an analyst note rather than replacing the list.
type AlertPatch struct {
	Status     *models.AlertStatus `json:"status"`
	Severity   *models.Severity    `json:"severity"`
	Note       *string             `json:"note"`
	AssignedTo *string             `json:"assigned_to"`
}

func (p AlertPatch) empty() bool {
	return p.Status == nil && p.Severity == nil && p.Note == nil && p.AssignedTo == nil
}

func (p AlertPatch) changedFields() []string {
	fields := make([]string, 0, 4)
	if p.Status != nil {
		fields = append(fields, "status")
	}
	if p.Severity != nil {
		fields = append(fields, "severity")
	}
	if p.Note != nil {
		fields = append(fields, "notes")
	}
	if p.AssignedTo != nil {
		fields = append(fields, "assigned_to")
	}
	return fields
}

// CreateAlert validates and persists a new alert with an empty history.
// GeneratedBy records the raising user; system-generated alerts pass a nil
// actor.
func (s *AlertService) CreateAlert(ctx context.Context, actor *auth.Identity, input CreateAlertInput) (*models.Alert, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, fmt.Errorf("%w: alert title is required", apperr.ErrValidation)
	}
	if input.Source == "" {
		return nil, fmt.Errorf("%w: alert source is required", apperr.ErrValidation)
	}
	if input.Severity == "" {
		input.Severity = models.SeverityMedium
	}
	if !input.Severity.Valid() {
		return nil, fmt.Errorf("%w: invalid severity %q", apperr.ErrValidation, input.Severity)
	}
	if input.Status == "" {
		input.Status = models.AlertStatusNew
	}
	if !input.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, input.Status)
	}

	alert := &models.Alert{
		Title:         input.Title,
		Description:   input.Description,
		Severity:      input.Severity,
		Status:        input.Status,
		PolicyID:      input.PolicyID,
		UsersInvolved: input.UsersInvolved,
		DataSnapshot:  input.DataSnapshot,
		Source:        input.Source,
		Tags:          input.Tags,
	}
	if input.OccurredAt != nil {
		alert.OccurredAt = *input.OccurredAt
	}
	if actor != nil {
		alert.GeneratedBy = &actor.ID
	}

	if err := s.alerts.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}

	telemetry.AlertsCreatedTotal.WithLabelValues(string(alert.Severity), alert.Source).Inc()
	s.logger.Info("alert created", "alert_id", alert.ID, "severity", alert.Severity, "source", alert.Source)
	return alert, nil
}

// GetAlert retrieves an alert by ID.
func (s *AlertService) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	alert, err := s.alerts.GetAlertByID(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("getting alert: %w", err)
	}
	if alert == nil {
		return nil, fmt.Errorf("%w: alert %s", apperr.ErrNotFound, alertID)
	}
	return alert, nil
}

// ListAlerts retrieves a filtered, paginated alert list plus the total count.
func (s *AlertService) ListAlerts(ctx context.Context, filter repositories.AlertFilter, limit, offset int) ([]*models.Alert, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, filter.Status)
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		return nil, 0, fmt.Errorf("%w: invalid severity %q", apperr.ErrValidation, filter.Severity)
	}
	return s.alerts.ListAlerts(ctx, filter, limit, offset)
}

// UpdateAlert applies a triage patch and appends exactly one history entry.
// When the patch changes the status, the entry records the transition with its
// before and after values; otherwise it names the patched fields.
func (s *AlertService) UpdateAlert(ctx context.Context, actor *auth.Identity, alertID string, patch AlertPatch) (*models.Alert, error) {
	if patch.empty() {
		return nil, fmt.Errorf("%w: no fields to update provided", apperr.ErrValidation)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, *patch.Status)
	}
	if patch.Severity != nil && !patch.Severity.Valid() {
		return nil, fmt.Errorf("%w: invalid severity %q", apperr.ErrValidation, *patch.Severity)
	}
	if patch.Note != nil && strings.TrimSpace(*patch.Note) == "" {
		return nil, fmt.Errorf("%w: note text cannot be empty", apperr.ErrValidation)
	}

	alert, err := applyMutation(ctx, actor, mutation[*models.Alert]{
		load: func(ctx context.Context) (*models.Alert, error) {
			return s.GetAlert(ctx, alertID)
		},
		store: s.alerts.UpdateAlert,
		apply: func(alert *models.Alert) (models.HistoryEntry, error) {
			oldStatus := alert.Status

			if patch.Status != nil {
				alert.Status = *patch.Status
			}
			if patch.Severity != nil {
				alert.Severity = *patch.Severity
			}
			if patch.AssignedTo != nil {
				if *patch.AssignedTo == "" {
					alert.AssignedTo = nil
				} else {
					alert.AssignedTo = patch.AssignedTo
				}
			}
			if patch.Note != nil {
				note := models.AlertNote{Text: *patch.Note, CreatedAt: time.Now()}
				if actor != nil {
					note.AuthorID = actor.ID
				}
				alert.Notes = append(alert.Notes, note)
			}

			if patch.Status != nil && alert.Status != oldStatus {
				telemetry.StatusTransitionsTotal.WithLabelValues("alert", string(alert.Status)).Inc()
				return models.HistoryEntry{
					Action:   fmt.Sprintf("Status changed to %s", alert.Status),
					OldValue: string(oldStatus),
					NewValue: string(alert.Status),
				}, nil
			}
			return models.HistoryEntry{
				Action: "Alert updated: " + strings.Join(patch.changedFields(), ", "),
			}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("alert updated", "alert_id", alert.ID, "status", alert.Status)
	return alert, nil
}

// DeleteAlert removes an alert.
func (s *AlertService) DeleteAlert(ctx context.Context, actor *auth.Identity, alertID string) error {
	alert, err := s.GetAlert(ctx, alertID)
	if err != nil {
		return err
	}
	if err := s.alerts.DeleteAlert(ctx, alert.ID); err != nil {
		return fmt.Errorf("deleting alert: %w", err)
	}
	s.logger.Info("alert deleted", "alert_id", alert.ID, "deleted_by", actor.ID)
	return nil
}
