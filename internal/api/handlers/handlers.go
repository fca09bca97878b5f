// Package handlers implements the HTTP handlers for the Sentinel DLP REST API:
// authentication, user administration, enforcement policies, detection alerts,
// escalated incidents, and the audit trail. Handlers bind and validate request
// payloads, delegate to the service layer, and translate service errors to
// HTTP status codes.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-dlp/sentinel-dlp/internal/apperr"
)

// pagination parses the page/per_page query parameters and returns the page,
// page size, and row offset. Page defaults to 1; per_page defaults to 20 and
// is capped at 100.
func pagination(c *gin.Context) (page, perPage, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	return page, perPage, (page - 1) * perPage
}

// paginationMeta builds the pagination block included in list responses.
func paginationMeta(page, perPage, total int) gin.H {
	return gin.H{
		"page":     page,
		"per_page": perPage,
		"total":    total,
	}
}

// respondError translates a service error into an HTTP response. Internal
// errors are masked with a generic message; everything else surfaces the
// error text.
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.Status(err), gin.H{"error": apperr.Message(err)})
}
