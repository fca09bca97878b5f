// audit.go implements handlers for querying the audit trail.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-dlp/sentinel-dlp/internal/db/repositories"
)

// AuditHandlers handles audit trail endpoints
type AuditHandlers struct {
	audit *repositories.AuditRepository
}

// NewAuditHandlers creates a new AuditHandlers instance
func NewAuditHandlers(audit *repositories.AuditRepository) *AuditHandlers {
	return &AuditHandlers{audit: audit}
}

// @Summary      List audit logs
// @Description  Get a paginated list of audit entries, newest first, filterable by actor, action, resource type, and time range.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        user_id        query  string  false  "Filter by actor user ID"
// @Param        action         query  string  false  "Filter by action, e.g. alert.updated"
// @Param        resource_type  query  string  false  "Filter by resource type"
// @Param        start_date     query  string  false  "RFC 3339 lower bound"
// @Param        end_date       query  string  false  "RFC 3339 upper bound"
// @Param        page           query  int     false  "Page number (default 1)"
// @Param        per_page       query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "audit_logs: []models.AuditLog, pagination: map"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Router       /api/v1/audit [get]
// ListAuditLogsHandler lists audit entries with pagination and filters
// GET /api/v1/audit?action=policy.updated&start_date=2026-01-01T00:00:00Z
func (h *AuditHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage, offset := pagination(c)

		var filters repositories.AuditFilters
		if v := c.Query("user_id"); v != "" {
			filters.UserID = &v
		}
		if v := c.Query("action"); v != "" {
			filters.Action = &v
		}
		if v := c.Query("resource_type"); v != "" {
			filters.ResourceType = &v
		}
		if v := c.Query("start_date"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date, expected RFC 3339"})
				return
			}
			filters.StartDate = &t
		}
		if v := c.Query("end_date"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date, expected RFC 3339"})
				return
			}
			filters.EndDate = &t
		}

		logs, total, err := h.audit.ListAuditLogs(c.Request.Context(), filters, perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit logs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"audit_logs": logs,
			"pagination": paginationMeta(page, perPage, total),
		})
	}
}

// @Summary      Get audit log
// @Description  Get a single audit entry by ID.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Audit log ID"
// @Success      200  {object}  map[string]interface{}  "audit_log: models.AuditLog"
// @Failure      404  {object}  map[string]interface{}  "Audit log not found"
// @Router       /api/v1/audit/{id} [get]
// GetAuditLogHandler retrieves a single audit entry
// GET /api/v1/audit/:id
func (h *AuditHandlers) GetAuditLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := h.audit.GetAuditLog(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve audit log"})
			return
		}
		if entry == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Audit log not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"audit_log": entry})
	}
}
