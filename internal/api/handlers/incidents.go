// incidents.go implements handlers for escalated incident CRUD and responder
// comments.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/repositories"
	"github.com/sentinel-dlp/sentinel-dlp/internal/middleware"
	"github.com/sentinel-dlp/sentinel-dlp/internal/services"
)

// IncidentHandlers handles escalated incident endpoints
type IncidentHandlers struct {
	incidents *services.IncidentService
}

// NewIncidentHandlers creates a new IncidentHandlers instance
func NewIncidentHandlers(incidents *services.IncidentService) *IncidentHandlers {
	return &IncidentHandlers{incidents: incidents}
}

// AddCommentRequest is the payload for a responder comment.
type AddCommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// @Summary      List incidents
// @Description  Get a paginated list of incidents, filterable by status, priority, and assignee.
// @Tags         Incidents
// @Security     Bearer
// @Produce      json
// @Param        status    query  string  false  "Filter by status"
// @Param        priority  query  string  false  "Filter by priority"
// @Param        assignee  query  string  false  "Filter by assignee user ID"
// @Param        page      query  int     false  "Page number (default 1)"
// @Param        per_page  query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "incidents: []models.Incident, pagination: map"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Router       /api/v1/incidents [get]
// ListIncidentsHandler lists incidents with pagination and filters
// GET /api/v1/incidents?status=Open&priority=High
func (h *IncidentHandlers) ListIncidentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage, offset := pagination(c)

		filter := repositories.IncidentFilter{
			Status:   models.IncidentStatus(c.Query("status")),
			Priority: models.IncidentPriority(c.Query("priority")),
			Assignee: c.Query("assignee"),
		}

		incidents, total, err := h.incidents.ListIncidents(c.Request.Context(), filter, perPage, offset)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"incidents":  incidents,
			"pagination": paginationMeta(page, perPage, total),
		})
	}
}

// @Summary      Get incident
// @Description  Get an incident by ID, including comments, resolution, and history.
// @Tags         Incidents
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Incident ID"
// @Success      200  {object}  map[string]interface{}  "incident: models.Incident"
// @Failure      404  {object}  map[string]interface{}  "Incident not found"
// @Router       /api/v1/incidents/{id} [get]
// GetIncidentHandler retrieves a specific incident by ID
// GET /api/v1/incidents/:id
func (h *IncidentHandlers) GetIncidentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		incident, err := h.incidents.GetIncident(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"incident": incident})
	}
}

// @Summary      Create incident
// @Description  Escalate to a new incident. Severity and priority default to Medium, status to Open.
// @Tags         Incidents
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  services.CreateIncidentInput  true  "Incident payload"
// @Success      201  {object}  map[string]interface{}  "incident: models.Incident"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Router       /api/v1/incidents [post]
// CreateIncidentHandler creates a new incident
// POST /api/v1/incidents
func (h *IncidentHandlers) CreateIncidentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.CreateIncidentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		incident, err := h.incidents.CreateIncident(c.Request.Context(), middleware.CurrentIdentity(c), input)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"incident": incident})
	}
}

// @Summary      Update incident
// @Description  Patch an incident's fields or advance its response lifecycle status.
// @Tags         Incidents
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "Incident ID"
// @Param        body  body  services.IncidentPatch  true  "Fields to change"
// @Success      200  {object}  map[string]interface{}  "incident: models.Incident"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      404  {object}  map[string]interface{}  "Incident not found"
// @Router       /api/v1/incidents/{id} [put]
// UpdateIncidentHandler updates an existing incident
// PUT /api/v1/incidents/:id
func (h *IncidentHandlers) UpdateIncidentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch services.IncidentPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		incident, err := h.incidents.UpdateIncident(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), patch)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"incident": incident})
	}
}

// @Summary      Add comment
// @Description  Append a responder comment. Comments are returned newest-first.
// @Tags         Incidents
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "Incident ID"
// @Param        body  body  AddCommentRequest  true  "Comment text"
// @Success      201  {object}  map[string]interface{}  "incident: models.Incident"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      404  {object}  map[string]interface{}  "Incident not found"
// @Router       /api/v1/incidents/{id}/comments [post]
// AddCommentHandler appends a comment to an incident
// POST /api/v1/incidents/:id/comments
func (h *IncidentHandlers) AddCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		incident, err := h.incidents.AddComment(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), req.Text)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"incident": incident})
	}
}

// @Summary      Delete incident
// @Description  Permanently delete an incident. Requires Admin or SuperAdmin.
// @Tags         Incidents
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Incident ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "Incident not found"
// @Router       /api/v1/incidents/{id} [delete]
// DeleteIncidentHandler deletes an incident
// DELETE /api/v1/incidents/:id
func (h *IncidentHandlers) DeleteIncidentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.incidents.DeleteIncident(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Incident deleted"})
	}
}
