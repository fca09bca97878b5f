package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
)

// AlertFilter narrows ListAlerts. Zero-valued fields are ignored.
type AlertFilter struct {
	Status     models.AlertStatus
	Severity   models.Severity
	AssignedTo string
	PolicyID   string
}

// AlertRepository handles alert database operations via sqlx struct mapping.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new AlertRepository
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: sqlx.NewDb(db, "postgres")}
}

// CreateAlert inserts a new alert with an empty history.
func (r *AlertRepository) CreateAlert(ctx context.Context, alert *models.Alert) error {
	alert.ID = uuid.New().String()
	alert.History = models.HistoryList{}
	if alert.OccurredAt.IsZero() {
		alert.OccurredAt = time.Now()
	}
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = time.Now()

	query := `
		INSERT INTO alerts (id, title, description, severity, status, policy_id, users_involved,
		                    data_snapshot, source, tags, notes, assigned_to, incident_id,
		                    generated_by, history, occurred_at, created_at, updated_at)
		VALUES (:id, :title, :description, :severity, :status, :policy_id, :users_involved,
		        :data_snapshot, :source, :tags, :notes, :assigned_to, :incident_id,
		        :generated_by, :history, :occurred_at, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, alert)
	return err
}

// GetAlertByID retrieves an alert by ID
func (r *AlertRepository) GetAlertByID(ctx context.Context, alertID string) (*models.Alert, error) {
	query := `SELECT * FROM alerts WHERE id = $1`

	alert := &models.Alert{}
	err := r.db.GetContext(ctx, alert, query, alertID)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return alert, nil
}

// UpdateAlert persists a mutated alert. Merged fields and the appended history
// land in one UPDATE so state and audit trail stay consistent.
func (r *AlertRepository) UpdateAlert(ctx context.Context, alert *models.Alert) error {
	alert.UpdatedAt = time.Now()

	query := `
		UPDATE alerts
		SET title = :title, description = :description, severity = :severity, status = :status,
		    policy_id = :policy_id, users_involved = :users_involved, data_snapshot = :data_snapshot,
		    source = :source, tags = :tags, notes = :notes, assigned_to = :assigned_to,
		    incident_id = :incident_id, history = :history, updated_at = :updated_at
		WHERE id = :id
	`

	_, err := r.db.NamedExecContext(ctx, query, alert)
	return err
}

// DeleteAlert deletes an alert
func (r *AlertRepository) DeleteAlert(ctx context.Context, alertID string) error {
	query := `DELETE FROM alerts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, alertID)
	return err
}

// ListAlerts retrieves a filtered, paginated list of alerts, newest first.
func (r *AlertRepository) ListAlerts(ctx context.Context, filter AlertFilter, limit, offset int) ([]*models.Alert, int, error) {
	where := `
		($1 = '' OR status = $1)
		AND ($2 = '' OR severity = $2)
		AND ($3 = '' OR assigned_to::text = $3)
		AND ($4 = '' OR policy_id::text = $4)
	`

	var total int
	countQuery := `SELECT COUNT(*) FROM alerts WHERE ` + where
	err := r.db.QueryRowContext(ctx, countQuery,
		string(filter.Status), string(filter.Severity), filter.AssignedTo, filter.PolicyID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT * FROM alerts WHERE ` + where + `
		ORDER BY occurred_at DESC
		LIMIT $5 OFFSET $6
	`

	alerts := make([]*models.Alert, 0)
	err = r.db.SelectContext(ctx, &alerts, query,
		string(filter.Status), string(filter.Severity), filter.AssignedTo, filter.PolicyID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return alerts, total, nil
}

// ListUnscoredAlerts returns recent alerts whose data snapshot has no
// sensitivity score yet. Consumed by the auto-classification job.
func (r *AlertRepository) ListUnscoredAlerts(ctx context.Context, limit int) ([]*models.Alert, error) {
	query := `
		SELECT * FROM alerts
		WHERE data_snapshot ? 'content' AND NOT data_snapshot ? 'sensitivity_score'
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	alerts := make([]*models.Alert, 0)
	if err := r.db.SelectContext(ctx, &alerts, query, limit); err != nil {
		return nil, err
	}

	return alerts, nil
}
