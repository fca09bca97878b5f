// policies.go implements handlers for enforcement policy CRUD.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-dlp/sentinel-dlp/internal/middleware"
	"github.com/sentinel-dlp/sentinel-dlp/internal/services"
)

// PolicyHandlers handles enforcement policy endpoints
type PolicyHandlers struct {
	policies *services.PolicyService
}

// NewPolicyHandlers creates a new PolicyHandlers instance
func NewPolicyHandlers(policies *services.PolicyService) *PolicyHandlers {
	return &PolicyHandlers{policies: policies}
}

// @Summary      List policies
// @Description  Get a paginated list of enforcement policies, optionally filtered to enabled ones.
// @Tags         Policies
// @Security     Bearer
// @Produce      json
// @Param        enabled   query  bool  false  "Only enabled policies when true"
// @Param        page      query  int   false  "Page number (default 1)"
// @Param        per_page  query  int   false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "policies: []models.Policy, pagination: map"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Router       /api/v1/policies [get]
// ListPoliciesHandler lists policies with pagination
// GET /api/v1/policies?enabled=true&page=1&per_page=20
func (h *PolicyHandlers) ListPoliciesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage, offset := pagination(c)

		var enabledOnly *bool
		if raw := c.Query("enabled"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid enabled filter"})
				return
			}
			enabledOnly = &v
		}

		policies, total, err := h.policies.ListPolicies(c.Request.Context(), enabledOnly, perPage, offset)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"policies":   policies,
			"pagination": paginationMeta(page, perPage, total),
		})
	}
}

// @Summary      Get policy
// @Description  Get an enforcement policy by ID, including its version and history.
// @Tags         Policies
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Policy ID"
// @Success      200  {object}  map[string]interface{}  "policy: models.Policy"
// @Failure      404  {object}  map[string]interface{}  "Policy not found"
// @Router       /api/v1/policies/{id} [get]
// GetPolicyHandler retrieves a specific policy by ID
// GET /api/v1/policies/:id
func (h *PolicyHandlers) GetPolicyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		policy, err := h.policies.GetPolicy(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"policy": policy})
	}
}

// @Summary      Create policy
// @Description  Create an enforcement policy at version 1. Requires Admin or SuperAdmin.
// @Tags         Policies
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  services.CreatePolicyInput  true  "Policy payload"
// @Success      201  {object}  map[string]interface{}  "policy: models.Policy"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      409  {object}  map[string]interface{}  "Policy name taken"
// @Router       /api/v1/policies [post]
// CreatePolicyHandler creates a new enforcement policy
// POST /api/v1/policies
func (h *PolicyHandlers) CreatePolicyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.CreatePolicyInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		policy, err := h.policies.CreatePolicy(c.Request.Context(), middleware.CurrentIdentity(c), input)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"policy": policy})
	}
}

// @Summary      Update policy
// @Description  Patch an enforcement policy. Every successful update increments the version by one.
// @Tags         Policies
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                true  "Policy ID"
// @Param        body  body  services.PolicyPatch  true  "Fields to change"
// @Success      200  {object}  map[string]interface{}  "policy: models.Policy"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      404  {object}  map[string]interface{}  "Policy not found"
// @Router       /api/v1/policies/{id} [put]
// UpdatePolicyHandler updates an existing policy
// PUT /api/v1/policies/:id
func (h *PolicyHandlers) UpdatePolicyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch services.PolicyPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		policy, err := h.policies.UpdatePolicy(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), patch)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"policy": policy})
	}
}

// @Summary      Delete policy
// @Description  Permanently delete an enforcement policy. Requires Admin or SuperAdmin.
// @Tags         Policies
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Policy ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "Policy not found"
// @Router       /api/v1/policies/{id} [delete]
// DeletePolicyHandler deletes a policy
// DELETE /api/v1/policies/:id
func (h *PolicyHandlers) DeletePolicyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.policies.DeletePolicy(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Policy deleted"})
	}
}
