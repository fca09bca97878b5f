package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
)

// IncidentFilter narrows ListIncidents. Zero-valued fields are ignored.
type IncidentFilter struct {
	Status   models.IncidentStatus
	Priority models.IncidentPriority
	Assignee string
}

// IncidentRepository handles incident database operations via sqlx struct mapping.
type IncidentRepository struct {
	db *sqlx.DB
}

// NewIncidentRepository creates a new IncidentRepository
func NewIncidentRepository(db *sql.DB) *IncidentRepository {
	return &IncidentRepository{db: sqlx.NewDb(db, "postgres")}
}

// CreateIncident inserts a new incident with empty comments and history.
func (r *IncidentRepository) CreateIncident(ctx context.Context, incident *models.Incident) error {
	incident.ID = uuid.New().String()
	incident.Comments = models.CommentList{}
	incident.History = models.HistoryList{}
	if incident.DetectedAt.IsZero() {
		incident.DetectedAt = time.Now()
	}
	incident.CreatedAt = time.Now()
	incident.UpdatedAt = time.Now()

	query := `
		INSERT INTO incidents (id, title, description, status, priority, severity, assignee,
		                       related_alerts, comments, tags, resolution, impact, source,
		                       detected_at, contained_at, eradicated_at, recovered_at, history,
		                       created_by, updated_by, created_at, updated_at)
		VALUES (:id, :title, :description, :status, :priority, :severity, :assignee,
		        :related_alerts, :comments, :tags, :resolution, :impact, :source,
		        :detected_at, :contained_at, :eradicated_at, :recovered_at, :history,
		        :created_by, :updated_by, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, incident)
	return err
}

// GetIncidentByID retrieves an incident by ID
func (r *IncidentRepository) GetIncidentByID(ctx context.Context, incidentID string) (*models.Incident, error) {
	query := `SELECT * FROM incidents WHERE id = $1`

	incident := &models.Incident{}
	err := r.db.GetContext(ctx, incident, query, incidentID)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return incident, nil
}

// UpdateIncident persists a mutated incident. Merged fields, comments, the
// resolution block, and the appended history land in one UPDATE so state and
// audit trail stay consistent.
func (r *IncidentRepository) UpdateIncident(ctx context.Context, incident *models.Incident) error {
	incident.UpdatedAt = time.Now()

	query := `
		UPDATE incidents
		SET title = :title, description = :description, status = :status, priority = :priority,
		    severity = :severity, assignee = :assignee, related_alerts = :related_alerts,
		    comments = :comments, tags = :tags, resolution = :resolution, impact = :impact,
		    source = :source, detected_at = :detected_at, contained_at = :contained_at,
		    eradicated_at = :eradicated_at, recovered_at = :recovered_at, history = :history,
		    updated_by = :updated_by, updated_at = :updated_at
		WHERE id = :id
	`

	_, err := r.db.NamedExecContext(ctx, query, incident)
	return err
}

// DeleteIncident deletes an incident
func (r *IncidentRepository) DeleteIncident(ctx context.Context, incidentID string) error {
	query := `DELETE FROM incidents WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, incidentID)
	return err
}

// ListIncidents retrieves a filtered, paginated list of incidents, newest first.
func (r *IncidentRepository) ListIncidents(ctx context.Context, filter IncidentFilter, limit, offset int) ([]*models.Incident, int, error) {
	where := `
		($1 = '' OR status = $1)
		AND ($2 = '' OR priority = $2)
		AND ($3 = '' OR assignee::text = $3)
	`

	var total int
	countQuery := `SELECT COUNT(*) FROM incidents WHERE ` + where
	err := r.db.QueryRowContext(ctx, countQuery,
		string(filter.Status), string(filter.Priority), filter.Assignee).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT * FROM incidents WHERE ` + where + `
		ORDER BY detected_at DESC
		LIMIT $4 OFFSET $5
	`

	incidents := make([]*models.Incident, 0)
	err = r.db.SelectContext(ctx, &incidents, query,
		string(filter.Status), string(filter.Priority), filter.Assignee, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return incidents, total, nil
}
