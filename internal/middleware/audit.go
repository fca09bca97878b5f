// audit.go provides Gin middleware that records authenticated write operations
// to the audit trail, with optional shipping to external audit destinations.
package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sentinel-dlp/sentinel-dlp/internal/audit"
	"github.com/sentinel-dlp/sentinel-dlp/internal/config"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/repositories"
	"github.com/sentinel-dlp/sentinel-dlp/internal/telemetry"
)

// AuditMiddleware logs authenticated actions to the database only.
func AuditMiddleware(auditRepo *repositories.AuditRepository) gin.HandlerFunc {
	return AuditMiddlewareWithShipper(auditRepo, nil, nil)
}

// AuditMiddlewareWithShipper logs authenticated actions and ships them to
// external destinations. The trail write happens after the response on a
// background goroutine so audit persistence never adds request latency.
func AuditMiddlewareWithShipper(auditRepo *repositories.AuditRepository, shipper audit.Shipper, auditCfg *config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process the request first; the trail records the outcome.
		c.Next()

		if c.Request.Method == "OPTIONS" {
			return
		}

		logReadOps := auditCfg != nil && auditCfg.LogReadOperations
		logFailedReqs := auditCfg != nil && auditCfg.LogFailedRequests

		isReadOp := c.Request.Method == "GET"
		isFailed := c.Writer.Status() >= 400

		// Default behavior: only log successful write operations.
		if isReadOp && !logReadOps {
			return
		}
		if isFailed && !logFailedReqs {
			return
		}

		action, resourceType := classifyRequest(c)
		ipAddress := c.ClientIP()

		auditLog := &models.AuditLog{
			Action:    action,
			IPAddress: &ipAddress,
			CreatedAt: time.Now(),
		}

		var userID string
		if identity := CurrentIdentity(c); identity != nil {
			userID = identity.ID
			auditLog.UserID = &userID
		}
		if resourceType != "" {
			auditLog.ResourceType = &resourceType
		}

		var resourceID string
		if id := c.Param("id"); id != "" {
			resourceID = id
			auditLog.ResourceID = &resourceID
		}

		metadata := models.JSONMap{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
		}
		auditLog.Metadata = metadata

		statusCode := c.Writer.Status()

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if auditRepo != nil {
				if err := auditRepo.CreateAuditLog(ctx, auditLog); err != nil {
					slog.Error("failed to write audit trail entry", "action", action, "error", err)
					return
				}
				telemetry.AuditEntriesTotal.WithLabelValues(action).Inc()
			}

			if shipper != nil {
				entry := &audit.LogEntry{
					Timestamp:    auditLog.CreatedAt,
					Action:       action,
					UserID:       userID,
					ResourceType: resourceType,
					ResourceID:   resourceID,
					IPAddress:    ipAddress,
					StatusCode:   statusCode,
					Metadata:     metadata,
				}
				if err := shipper.Ship(ctx, entry); err != nil {
					slog.Warn("failed to ship audit trail entry", "action", action, "error", err)
				}
			}
		}()
	}
}

// classifyRequest maps a request to a dotted audit action and resource type,
// e.g. "alert.updated"/"alert" or "auth.login"/"auth".
func classifyRequest(c *gin.Context) (action, resourceType string) {
	path := c.Request.URL.Path

	switch {
	case strings.Contains(path, "/auth/"):
		resourceType = "auth"
		switch {
		case strings.Contains(path, "/login"):
			action = "auth.login"
		case strings.Contains(path, "/register"):
			action = "auth.register"
		case strings.Contains(path, "/forgotpassword"):
			action = "auth.password_reset_requested"
		case strings.Contains(path, "/resetpassword"):
			action = "auth.password_reset_completed"
		default:
			action = "auth." + methodVerb(c.Request.Method)
		}
		return action, resourceType
	case strings.Contains(path, "/users"):
		resourceType = "user"
	case strings.Contains(path, "/policies"):
		resourceType = "policy"
	case strings.Contains(path, "/alerts"):
		resourceType = "alert"
	case strings.Contains(path, "/incidents"):
		resourceType = "incident"
		if strings.Contains(path, "/comments") && c.Request.Method == "POST" {
			return "incident.comment_added", resourceType
		}
	case strings.Contains(path, "/audit"):
		resourceType = "audit"
	default:
		return c.Request.Method + " " + path, ""
	}

	return resourceType + "." + methodVerb(c.Request.Method), resourceType
}

func methodVerb(method string) string {
	switch method {
	case "POST":
		return "created"
	case "PUT", "PATCH":
		return "updated"
	case "DELETE":
		return "deleted"
	case "GET":
		return "viewed"
	default:
		return strings.ToLower(method)
	}
}
