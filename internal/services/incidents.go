// incidents.go implements incident response lifecycle management. Status
// transitions stamp the response timeline markers exactly once: ContainedAt on
// first entry to Contained, EradicatedAt on Eradicated, RecoveredAt on
// Recovered, and Resolution.ResolvedAt on the first entry to a terminal
// resolved status.
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

// IncidentService implements incident creation, lifecycle updates, comments,
// and deletion.
type IncidentService struct {
	incidents *repositories.IncidentRepository
	logger    *slog.Logger
}

// NewIncidentService creates a new IncidentService.
func NewIncidentService(incidents *repositories.IncidentRepository, logger *slog.Logger) *IncidentService {
	return &IncidentService{incidents: incidents, logger: logger}
}

// CreateIncidentInput carries the fields accepted on incident creation.
// Severity and priority default to Medium, status to Open.
type CreateIncidentInput struct {
	Title         string                  `json:"title" binding:"required"`
	Description   string                  `json:"description" binding:"required"`
	Severity      models.Severity         `json:"severity"`
	Priority      models.IncidentPriority `json:"priority"`
	Status        models.IncidentStatus   `json:"status"`
	Assignee      *string                 `json:"assignee"`
	RelatedAlerts models.StringList       `json:"related_alerts"`
	Tags          models.StringList       `json:"tags"`
	Source        string                  `json:"source"`
	DetectedAt    *time.Time              `json:"detected_at"`
}

// IncidentPatch carries the mutable incident fields. Nil fields are left
// unchanged.
type IncidentPatch struct {
	Title         *string                   `json:"title"`
	Description   *string                   `json:"description"`
	Severity      *models.Severity          `json:"severity"`
	Priority      *models.IncidentPriority  `json:"priority"`
	Status        *models.IncidentStatus    `json:"status"`
	Assignee      *string                   `json:"assignee"`
	RelatedAlerts *models.StringList        `json:"related_alerts"`
	Resolution    *models.ResolutionDetails `json:"resolution"`
	Impact        *models.ImpactAssessment  `json:"impact"`
	Tags          *models.StringList        `json:"tags"`
}

func (p IncidentPatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.Severity == nil && p.Priority == nil &&
		p.Status == nil && p.Assignee == nil && p.RelatedAlerts == nil && p.Resolution == nil &&
		p.Impact == nil && p.Tags == nil
}

func (p IncidentPatch) changedFields() []string {
	fields := make([]string, 0, 10)
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.Severity != nil {
		fields = append(fields, "severity")
	}
	if p.Priority != nil {
		fields = append(fields, "priority")
	}
	if p.Status != nil {
		fields = append(fields, "status")
	}
	if p.Assignee != nil {
		fields = append(fields, "assignee")
	}
	if p.RelatedAlerts != nil {
		fields = append(fields, "related_alerts")
	}
	if p.Resolution != nil {
		fields = append(fields, "resolution")
	}
	if p.Impact != nil {
		fields = append(fields, "impact")
	}
	if p.Tags != nil {
		fields = append(fields, "tags")
	}
	return fields
}

// CreateIncident validates and persists a new incident with an empty history.
func (s *IncidentService) CreateIncident(ctx context.Context, actor *auth.Identity, input CreateIncidentInput) (*models.Incident, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, fmt.Errorf("%w: incident title is required", apperr.ErrValidation)
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, fmt.Errorf("%w: incident description is required", apperr.ErrValidation)
	}
	if input.Severity == "" {
		input.Severity = models.SeverityMedium
	}
	if !input.Severity.Valid() {
		return nil, fmt.Errorf("%w: invalid severity %q", apperr.ErrValidation, input.Severity)
	}
	if input.Priority == "" {
		input.Priority = models.IncidentPriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, fmt.Errorf("%w: invalid priority %q", apperr.ErrValidation, input.Priority)
	}
	if input.Status == "" {
		input.Status = models.IncidentStatusOpen
	}
	if !input.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, input.Status)
	}

	incident := &models.Incident{
		Title:         input.Title,
		Description:   input.Description,
		Severity:      input.Severity,
		Priority:      input.Priority,
		Status:        input.Status,
		Assignee:      input.Assignee,
		RelatedAlerts: input.RelatedAlerts,
		Tags:          input.Tags,
		Source:        input.Source,
		CreatedBy:     actor.ID,
		UpdatedBy:     actor.ID,
	}
	if input.DetectedAt != nil {
		incident.DetectedAt = *input.DetectedAt
	}

	if err := s.incidents.CreateIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("creating incident: %w", err)
	}

	s.logger.Info("incident created", "incident_id", incident.ID,
		"priority", incident.Priority, "created_by", actor.ID)
	return incident, nil
}

// GetIncident retrieves an incident by ID.
func (s *IncidentService) GetIncident(ctx context.Context, incidentID string) (*models.Incident, error) {
	incident, err := s.incidents.GetIncidentByID(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("getting incident: %w", err)
	}
	if incident == nil {
		return nil, fmt.Errorf("%w: incident %s", apperr.ErrNotFound, incidentID)
	}
	return incident, nil
}

// ListIncidents retrieves a filtered, paginated incident list plus the total
// count.
func (s *IncidentService) ListIncidents(ctx context.Context, filter repositories.IncidentFilter, limit, offset int) ([]*models.Incident, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, filter.Status)
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, 0, fmt.Errorf("%w: invalid priority %q", apperr.ErrValidation, filter.Priority)
	}
	return s.incidents.ListIncidents(ctx, filter, limit, offset)
}

// UpdateIncident applies a partial update and appends exactly one history
// entry. Status changes stamp the response timeline; ResolvedAt is fixed on
// the first transition into a terminal resolved status and never overwritten.
func (s *IncidentService) UpdateIncident(ctx context.Context, actor *auth.Identity, incidentID string, patch IncidentPatch) (*models.Incident, error) {
	if patch.empty() {
		return nil, fmt.Errorf("%w: no fields to update provided", apperr.ErrValidation)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, *patch.Status)
	}
	if patch.Severity != nil && !patch.Severity.Valid() {
		return nil, fmt.Errorf("%w: invalid severity %q", apperr.ErrValidation, *patch.Severity)
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, fmt.Errorf("%w: invalid priority %q", apperr.ErrValidation, *patch.Priority)
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("%w: incident title cannot be empty", apperr.ErrValidation)
	}

	incident, err := applyMutation(ctx, actor, mutation[*models.Incident]{
		load: func(ctx context.Context) (*models.Incident, error) {
			return s.GetIncident(ctx, incidentID)
		},
		store: s.incidents.UpdateIncident,
		apply: func(incident *models.Incident) (models.HistoryEntry, error) {
			oldStatus := incident.Status

			if patch.Title != nil {
				incident.Title = strings.TrimSpace(*patch.Title)
			}
			if patch.Description != nil {
				incident.Description = *patch.Description
			}
			if patch.Severity != nil {
				incident.Severity = *patch.Severity
			}
			if patch.Priority != nil {
				incident.Priority = *patch.Priority
			}
			if patch.Status != nil {
				incident.Status = *patch.Status
			}
			if patch.Assignee != nil {
				if *patch.Assignee == "" {
					incident.Assignee = nil
				} else {
					incident.Assignee = patch.Assignee
				}
			}
			if patch.RelatedAlerts != nil {
				incident.RelatedAlerts = *patch.RelatedAlerts
			}
			if patch.Resolution != nil {
				// ResolvedAt is owned by the status transition below
				resolvedAt := incident.Resolution.ResolvedAt
				incident.Resolution = *patch.Resolution
				incident.Resolution.ResolvedAt = resolvedAt
			}
			if patch.Impact != nil {
				incident.Impact = *patch.Impact
			}
			if patch.Tags != nil {
				incident.Tags = *patch.Tags
			}
			incident.UpdatedBy = actor.ID

			if patch.Status != nil && incident.Status != oldStatus {
				s.stampTimeline(incident, actor)
				telemetry.StatusTransitionsTotal.WithLabelValues("incident", string(incident.Status)).Inc()
				return models.HistoryEntry{
					Action:   fmt.Sprintf("Status changed to %s", incident.Status),
					OldValue: string(oldStatus),
					NewValue: string(incident.Status),
				}, nil
			}
			return models.HistoryEntry{
				Action: "Incident updated: " + strings.Join(patch.changedFields(), ", "),
			}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("incident updated", "incident_id", incident.ID,
		"status", incident.Status, "updated_by", actor.ID)
	return incident, nil
}

// AddComment prepends a responder comment, so comments read newest-first.
func (s *IncidentService) AddComment(ctx context.Context, actor *auth.Identity, incidentID, text string) (*models.Incident, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: comment text is required", apperr.ErrValidation)
	}

	incident, err := applyMutation(ctx, actor, mutation[*models.Incident]{
		load: func(ctx context.Context) (*models.Incident, error) {
			return s.GetIncident(ctx, incidentID)
		},
		store: s.incidents.UpdateIncident,
		apply: func(incident *models.Incident) (models.HistoryEntry, error) {
			comment := models.IncidentComment{
				AuthorID:  actor.ID,
				Text:      text,
				CreatedAt: time.Now(),
			}
			incident.Comments = append(models.CommentList{comment}, incident.Comments...)
			incident.UpdatedBy = actor.ID

			return models.HistoryEntry{Action: "Comment added"}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("incident comment added", "incident_id", incident.ID, "author", actor.ID)
	return incident, nil
}

// DeleteIncident removes an incident. Alerts that referenced it keep their
// incident_id cleared by the schema.
func (s *IncidentService) DeleteIncident(ctx context.Context, actor *auth.Identity, incidentID string) error {
	incident, err := s.GetIncident(ctx, incidentID)
	if err != nil {
		return err
	}
	if err := s.incidents.DeleteIncident(ctx, incident.ID); err != nil {
		return fmt.Errorf("deleting incident: %w", err)
	}
	s.logger.Info("incident deleted", "incident_id", incident.ID, "deleted_by", actor.ID)
	return nil
}

// stampTimeline fixes the response timeline marker for the status just
// entered. Each marker is set once; revisiting a phase keeps the original
// timestamp.
func (s *IncidentService) stampTimeline(incident *models.Incident, actor *auth.Identity) {
	now := time.Now()
	switch incident.Status {
	case models.IncidentStatusContained:
		if incident.ContainedAt == nil {
			incident.ContainedAt = &now
		}
	case models.IncidentStatusEradicated:
		if incident.EradicatedAt == nil {
			incident.EradicatedAt = &now
		}
	case models.IncidentStatusRecovered:
		if incident.RecoveredAt == nil {
			incident.RecoveredAt = &now
		}
	}
	if incident.Status.TerminalResolved() && incident.Resolution.ResolvedAt == nil {
		incident.Resolution.ResolvedAt = &now
		if incident.Resolution.ResolvedBy == "" && actor != nil {
			incident.Resolution.ResolvedBy = actor.ID
		}
	}
}
