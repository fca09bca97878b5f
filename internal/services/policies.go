// policies.go implements enforcement policy management. Conditions and actions
// are stored configuration consumed by external enforcement points; the backend
// validates their shape but never evaluates them.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sentinel-dlp/sentinel-dlp/internal/apperr"
	"github.com/sentinel-dlp/sentinel-dlp/internal/auth"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/repositories"
)

// PolicyService implements enforcement policy CRUD with versioning and change
// history.
type PolicyService struct {
	policies *repositories.PolicyRepository
	logger   *slog.Logger
}

// NewPolicyService creates a new PolicyService.
func NewPolicyService(policies *repositories.PolicyRepository, logger *slog.Logger) *PolicyService {
	return &PolicyService{policies: policies, logger: logger}
}

// CreatePolicyInput carries the fields accepted on policy creation.
type CreatePolicyInput struct {
	Name        string               `json:"name" binding:"required"`
	Description string               `json:"description"`
	IsEnabled   *bool                `json:"is_enabled"`
	Conditions  models.ConditionList `json:"conditions"`
	Actions     models.ActionList    `json:"actions"`
	Tags        models.StringList    `json:"tags"`
	Scope       *models.PolicyScope  `json:"scope"`
}

// PolicyPatch carries the mutable policy fields. Nil fields are left unchanged.
type PolicyPatch struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	IsEnabled   *bool                 `json:"is_enabled"`
	Conditions  *models.ConditionList `json:"conditions"`
	Actions     *models.ActionList    `json:"actions"`
	Tags        *models.StringList    `json:"tags"`
	Scope       *models.PolicyScope   `json:"scope"`
}

func (p PolicyPatch) empty() bool {
	return p.Name == nil && p.Description == nil && p.IsEnabled == nil &&
		p.Conditions == nil && p.Actions == nil && p.Tags == nil && p.Scope == nil
}

// changedFields lists the patched field names for the history entry.
func (p PolicyPatch) changedFields() []string {
	fields := make([]string, 0, 7)
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.IsEnabled != nil {
		fields = append(fields, "is_enabled")
	}
	if p.Conditions != nil {
		fields = append(fields, "conditions")
	}
	if p.Actions != nil {
		fields = append(fields, "actions")
	}
	if p.Tags != nil {
		fields = append(fields, "tags")
	}
	if p.Scope != nil {
		fields = append(fields, "scope")
	}
	return fields
}

// CreatePolicy validates and persists a new policy at version 1 with an empty
// history. Policy names are unique; collisions return ErrConflict.
func (s *PolicyService) CreatePolicy(ctx context.Context, actor *auth.Identity, input CreatePolicyInput) (*models.Policy, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, fmt.Errorf("%w: policy name is required", apperr.ErrValidation)
	}
	if err := validateConditions(input.Conditions); err != nil {
		return nil, err
	}
	if err := validateActions(input.Actions); err != nil {
		return nil, err
	}

	taken, err := s.policies.NameExists(ctx, input.Name, "")
	if err != nil {
		return nil, fmt.Errorf("checking policy name: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: policy name already exists", apperr.ErrConflict)
	}

	policy := &models.Policy{
		Name:        input.Name,
		Description: input.Description,
		IsEnabled:   true,
		Conditions:  input.Conditions,
		Actions:     input.Actions,
		Tags:        input.Tags,
		CreatedBy:   actor.ID,
		UpdatedBy:   actor.ID,
	}
	if input.IsEnabled != nil {
		policy.IsEnabled = *input.IsEnabled
	}
	if input.Scope != nil {
		policy.Scope = *input.Scope
	}

	if err := s.policies.CreatePolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("creating policy: %w", err)
	}

	s.logger.Info("policy created", "policy_id", policy.ID, "name", policy.Name, "created_by", actor.ID)
	return policy, nil
}

// GetPolicy retrieves a policy by ID.
func (s *PolicyService) GetPolicy(ctx context.Context, policyID string) (*models.Policy, error) {
	policy, err := s.policies.GetPolicyByID(ctx, policyID)
	if err != nil {
		return nil, fmt.Errorf("getting policy: %w", err)
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: policy %s", apperr.ErrNotFound, policyID)
	}
	return policy, nil
}

// ListPolicies retrieves a paginated policy list, optionally filtered by
// enabled state, plus the total count.
func (s *PolicyService) ListPolicies(ctx context.Context, enabledOnly *bool, limit, offset int) ([]*models.Policy, int, error) {
	return s.policies.ListPolicies(ctx, enabledOnly, limit, offset)
}

// UpdatePolicy applies a partial update, bumps the version by exactly one, and
// appends one history entry. A rename is checked for conflicts against all
// other policies.
func (s *PolicyService) UpdatePolicy(ctx context.Context, actor *auth.Identity, policyID string, patch PolicyPatch) (*models.Policy, error) {
	if patch.empty() {
		return nil, fmt.Errorf("%w: no fields to update provided", apperr.ErrValidation)
	}
	if patch.Name != nil {
		*patch.Name = strings.TrimSpace(*patch.Name)
		if *patch.Name == "" {
			return nil, fmt.Errorf("%w: policy name cannot be empty", apperr.ErrValidation)
		}
	}
	if patch.Conditions != nil {
		if err := validateConditions(*patch.Conditions); err != nil {
			return nil, err
		}
	}
	if patch.Actions != nil {
		if err := validateActions(*patch.Actions); err != nil {
			return nil, err
		}
	}

	policy, err := applyMutation(ctx, actor, mutation[*models.Policy]{
		load: func(ctx context.Context) (*models.Policy, error) {
			policy, err := s.GetPolicy(ctx, policyID)
			if err != nil {
				return nil, err
			}
			if patch.Name != nil && !strings.EqualFold(*patch.Name, policy.Name) {
				taken, err := s.policies.NameExists(ctx, *patch.Name, policy.ID)
				if err != nil {
					return nil, fmt.Errorf("checking policy name: %w", err)
				}
				if taken {
					return nil, fmt.Errorf("%w: another policy with this name already exists", apperr.ErrConflict)
				}
			}
			return policy, nil
		},
		store: s.policies.UpdatePolicy,
		apply: func(policy *models.Policy) (models.HistoryEntry, error) {
			if patch.Name != nil {
				policy.Name = *patch.Name
			}
			if patch.Description != nil {
				policy.Description = *patch.Description
			}
			if patch.IsEnabled != nil {
				policy.IsEnabled = *patch.IsEnabled
			}
			if patch.Conditions != nil {
				policy.Conditions = *patch.Conditions
			}
			if patch.Actions != nil {
				policy.Actions = *patch.Actions
			}
			if patch.Tags != nil {
				policy.Tags = *patch.Tags
			}
			if patch.Scope != nil {
				policy.Scope = *patch.Scope
			}

			oldVersion := policy.Version
			policy.Version++
			policy.UpdatedBy = actor.ID

			return models.HistoryEntry{
				Action:   "Policy updated: " + strings.Join(patch.changedFields(), ", "),
				OldValue: oldVersion,
				NewValue: policy.Version,
			}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("policy updated", "policy_id", policy.ID, "version", policy.Version, "updated_by", actor.ID)
	return policy, nil
}

// DeletePolicy removes a policy. Alerts referencing it keep their policy_id
// cleared by the schema.
func (s *PolicyService) DeletePolicy(ctx context.Context, actor *auth.Identity, policyID string) error {
	policy, err := s.GetPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	if err := s.policies.DeletePolicy(ctx, policy.ID); err != nil {
		return fmt.Errorf("deleting policy: %w", err)
	}
	s.logger.Info("policy deleted", "policy_id", policy.ID, "name", policy.Name, "deleted_by", actor.ID)
	return nil
}

// validateConditions checks the stored shape of each condition.
func validateConditions(conditions models.ConditionList) error {
	for i, c := range conditions {
		if c.Field == "" {
			return fmt.Errorf("%w: condition %d: field is required", apperr.ErrValidation, i)
		}
		if c.Operator == "" {
			return fmt.Errorf("%w: condition %d: operator is required", apperr.ErrValidation, i)
		}
	}
	return nil
}

// validateActions checks the stored shape of each action.
func validateActions(actions models.ActionList) error {
	for i, a := range actions {
		if a.Type == "" {
			return fmt.Errorf("%w: action %d: type is required", apperr.ErrValidation, i)
		}
	}
	return nil
}
