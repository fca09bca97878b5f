package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sentinel-dlp/sentinel-dlp/internal/auth"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
)

// newRBACRouter builds a router that seeds the given identity (nil for
// unauthenticated) before RequireRoles runs.
func newRBACRouter(identity *auth.Identity, allowed []models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if identity != nil {
			c.Set(IdentityKey, identity)
		}
		c.Next()
	})
	r.Use(RequireRoles(allowed))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doRBACRequest(r *gin.Engine) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireRoles_Unauthenticated(t *testing.T) {
	r := newRBACRouter(nil, auth.PolicyReadRoles)
	if code := doRBACRequest(r); code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without identity", code)
	}
}

func TestRequireRoles_AllowedAndDenied(t *testing.T) {
	cases := []struct {
		name    string
		role    models.Role
		allowed []models.Role
		want    int
	}{
		{"analyst can read policies", models.RoleAnalyst, auth.PolicyReadRoles, http.StatusOK},
		{"analyst cannot write policies", models.RoleAnalyst, auth.PolicyWriteRoles, http.StatusForbidden},
		{"responder can triage alerts", models.RoleIncidentResponder, auth.AlertTriageRoles, http.StatusOK},
		{"responder cannot manage users", models.RoleIncidentResponder, auth.UserManageRoles, http.StatusForbidden},
		{"plain user cannot work incidents", models.RoleUser, auth.IncidentRoles, http.StatusForbidden},
		{"admin can delete incidents", models.RoleAdmin, auth.IncidentDeleteRoles, http.StatusOK},
		{"super admin can read audit", models.RoleSuperAdmin, auth.AuditReadRoles, http.StatusOK},
		{"analyst cannot read audit", models.RoleAnalyst, auth.AuditReadRoles, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			identity := &auth.Identity{ID: "user-1", Username: "alice", Role: tc.role}
			r := newRBACRouter(identity, tc.allowed)
			if code := doRBACRequest(r); code != tc.want {
				t.Errorf("status = %d, want %d", code, tc.want)
			}
		})
	}
}
