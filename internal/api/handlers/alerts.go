// alerts.go implements handlers for detection alert CRUD and triage.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/repositories"
	"github.com/sentinel-dlp/sentinel-dlp/internal/middleware"
	"github.com/sentinel-dlp/sentinel-dlp/internal/services"
)

// AlertHandlers handles detection alert endpoints
type AlertHandlers struct {
	alerts *services.AlertService
}

// NewAlertHandlers creates a new AlertHandlers instance
func NewAlertHandlers(alerts *services.AlertService) *AlertHandlers {
	return &AlertHandlers{alerts: alerts}
}

// @Summary      List alerts
// @Description  Get a paginated list of detection alerts, filterable by status, severity, assignee, and policy.
// @Tags         Alerts
// @Security     Bearer
// @Produce      json
// @Param        status       query  string  false  "Filter by status"
// @Param        severity     query  string  false  "Filter by severity"
// @Param        assigned_to  query  string  false  "Filter by assigned user ID"
// @Param        policy_id    query  string  false  "Filter by originating policy ID"
// @Param        page         query  int     false  "Page number (default 1)"
// @Param        per_page     query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "alerts: []models.Alert, pagination: map"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Router       /api/v1/alerts [get]
// ListAlertsHandler lists alerts with pagination and filters
// GET /api/v1/alerts?status=New&severity=High&page=1
func (h *AlertHandlers) ListAlertsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage, offset := pagination(c)

		filter := repositories.AlertFilter{
			Status:     models.AlertStatus(c.Query("status")),
			Severity:   models.Severity(c.Query("severity")),
			AssignedTo: c.Query("assigned_to"),
			PolicyID:   c.Query("policy_id"),
		}

		alerts, total, err := h.alerts.ListAlerts(c.Request.Context(), filter, perPage, offset)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"alerts":     alerts,
			"pagination": paginationMeta(page, perPage, total),
		})
	}
}

// @Summary      Get alert
// @Description  Get a detection alert by ID, including notes and history.
// @Tags         Alerts
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Alert ID"
// @Success      200  {object}  map[string]interface{}  "alert: models.Alert"
// @Failure      404  {object}  map[string]interface{}  "Alert not found"
// @Router       /api/v1/alerts/{id} [get]
// GetAlertHandler retrieves a specific alert by ID
// GET /api/v1/alerts/:id
func (h *AlertHandlers) GetAlertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		alert, err := h.alerts.GetAlert(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"alert": alert})
	}
}

// @Summary      Create alert
// @Description  Raise a detection alert manually. Severity defaults to Medium, status to New.
// @Tags         Alerts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  services.CreateAlertInput  true  "Alert payload"
// @Success      201  {object}  map[string]interface{}  "alert: models.Alert"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Router       /api/v1/alerts [post]
// CreateAlertHandler creates a new alert
// POST /api/v1/alerts
func (h *AlertHandlers) CreateAlertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.CreateAlertInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		alert, err := h.alerts.CreateAlert(c.Request.Context(), middleware.CurrentIdentity(c), input)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"alert": alert})
	}
}

// @Summary      Update alert
// @Description  Triage an alert: change status or severity, reassign, or append an analyst note.
// @Tags         Alerts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "Alert ID"
// @Param        body  body  services.AlertPatch  true  "Fields to change"
// @Success      200  {object}  map[string]interface{}  "alert: models.Alert"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      404  {object}  map[string]interface{}  "Alert not found"
// @Router       /api/v1/alerts/{id} [put]
// UpdateAlertHandler updates an existing alert
// PUT /api/v1/alerts/:id
func (h *AlertHandlers) UpdateAlertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch services.AlertPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		alert, err := h.alerts.UpdateAlert(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), patch)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"alert": alert})
	}
}

// @Summary      Delete alert
// @Description  Permanently delete an alert. Requires Admin or SuperAdmin.
// @Tags         Alerts
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Alert ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "Alert not found"
// @Router       /api/v1/alerts/{id} [delete]
// DeleteAlertHandler deletes an alert
// DELETE /api/v1/alerts/:id
func (h *AlertHandlers) DeleteAlertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.alerts.DeleteAlert(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Alert deleted"})
	}
}
