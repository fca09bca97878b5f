package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
)

// PolicyRepository handles policy database operations. Policies carry several
// JSONB columns (conditions, actions, scope, history) so this repository uses
// sqlx struct mapping rather than hand-written Scan lists.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository creates a new PolicyRepository
func NewPolicyRepository(db *sql.DB) *PolicyRepository {
	return &PolicyRepository{db: sqlx.NewDb(db, "postgres")}
}

// CreatePolicy inserts a new policy. Version always starts at 1 and history
// starts empty; creation performs no history append.
func (r *PolicyRepository) CreatePolicy(ctx context.Context, policy *models.Policy) error {
	policy.ID = uuid.New().String()
	policy.Version = 1
	policy.History = models.HistoryList{}
	policy.CreatedAt = time.Now()
	policy.UpdatedAt = time.Now()

	query := `
		INSERT INTO policies (id, name, description, is_enabled, conditions, actions, tags, scope,
		                      version, history, created_by, updated_by, created_at, updated_at)
		VALUES (:id, :name, :description, :is_enabled, :conditions, :actions, :tags, :scope,
		        :version, :history, :created_by, :updated_by, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, policy)
	return err
}

// GetPolicyByID retrieves a policy by ID
func (r *PolicyRepository) GetPolicyByID(ctx context.Context, policyID string) (*models.Policy, error) {
	query := `SELECT * FROM policies WHERE id = $1`

	policy := &models.Policy{}
	err := r.db.GetContext(ctx, policy, query, policyID)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return policy, nil
}

// NameExists reports whether any policy other than excludeID already uses the
// given name. Pass excludeID = "" for creation checks.
func (r *PolicyRepository) NameExists(ctx context.Context, name, excludeID string) (bool, error) {
	query := `SELECT COUNT(*) FROM policies WHERE name = $1 AND id != $2`

	var count int
	err := r.db.QueryRowContext(ctx, query, name, excludeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdatePolicy persists a mutated policy. The merged fields, the incremented
// version, and the appended history all land in one UPDATE so entity state and
// audit trail can never desynchronize.
func (r *PolicyRepository) UpdatePolicy(ctx context.Context, policy *models.Policy) error {
	policy.UpdatedAt = time.Now()

	query := `
		UPDATE policies
		SET name = :name, description = :description, is_enabled = :is_enabled,
		    conditions = :conditions, actions = :actions, tags = :tags, scope = :scope,
		    version = :version, history = :history, updated_by = :updated_by, updated_at = :updated_at
		WHERE id = :id
	`

	_, err := r.db.NamedExecContext(ctx, query, policy)
	return err
}

// DeletePolicy deletes a policy
func (r *PolicyRepository) DeletePolicy(ctx context.Context, policyID string) error {
	query := `DELETE FROM policies WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, policyID)
	return err
}

// ListPolicies retrieves a paginated list of policies ordered by name.
// enabledOnly narrows to enabled policies when non-nil and true.
func (r *PolicyRepository) ListPolicies(ctx context.Context, enabledOnly *bool, limit, offset int) ([]*models.Policy, int, error) {
	countQuery := `SELECT COUNT(*) FROM policies WHERE ($1::boolean IS NULL OR is_enabled = $1)`

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, enabledOnly).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT * FROM policies
		WHERE ($1::boolean IS NULL OR is_enabled = $1)
		ORDER BY name ASC
		LIMIT $2 OFFSET $3
	`

	policies := make([]*models.Policy, 0)
	if err := r.db.SelectContext(ctx, &policies, query, enabledOnly, limit, offset); err != nil {
		return nil, 0, err
	}

	return policies, total, nil
}
