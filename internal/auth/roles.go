// roles.go declares the static per-operation role allow-sets and the
// authorization gate that checks membership. The allow-sets are contracts, not
// runtime-derived data.
package auth

import (
	"github.com/sentinel-dlp/sentinel-dlp/internal/apperr"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
)

// Static allow-sets, one per gated operation group.
var (
	// UserManageRoles gates user CRUD
	UserManageRoles = []models.Role{models.RoleAdmin, models.RoleSuperAdmin}

	// PolicyReadRoles gates policy listing and retrieval
	PolicyReadRoles = []models.Role{models.RoleAnalyst, models.RoleAdmin, models.RoleSuperAdmin}

	// PolicyWriteRoles gates policy create/update/delete
	PolicyWriteRoles = []models.Role{models.RoleAdmin, models.RoleSuperAdmin}

	// AlertTriageRoles gates alert read and update (triage)
	AlertTriageRoles = []models.Role{
		models.RoleAnalyst, models.RoleIncidentResponder, models.RoleAdmin, models.RoleSuperAdmin,
	}

	// AlertManageRoles gates alert create and delete
	AlertManageRoles = []models.Role{models.RoleAdmin, models.RoleSuperAdmin}

	// IncidentRoles gates incident read/create/update and comments
	IncidentRoles = []models.Role{
		models.RoleIncidentResponder, models.RoleAnalyst, models.RoleAdmin, models.RoleSuperAdmin,
	}

	// IncidentDeleteRoles gates incident deletion
	IncidentDeleteRoles = []models.Role{models.RoleAdmin, models.RoleSuperAdmin}

	// AuditReadRoles gates audit log retrieval
	AuditReadRoles = []models.Role{models.RoleAdmin, models.RoleSuperAdmin}
)

// Authorize checks an identity's role against an operation's allow-set.
// A nil identity is Unauthorized; a known identity outside the set is
// Forbidden. The two are distinct by contract.
func Authorize(identity *Identity, allowed []models.Role) error {
	if identity == nil {
		return apperr.ErrUnauthorized
	}
	for _, role := range allowed {
		if identity.Role == role {
			return nil
		}
	}
	return apperr.ErrForbidden
}
