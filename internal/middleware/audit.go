package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/shuletrack/academic-api/internal/models"
	"github.com/shuletrack/academic-api/internal/service"
)

// Audit records an audit trail entry after a successful mutating request.
// Entries go through the async audit queue, never blocking the response.
func Audit(audit *service.AuditService, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if audit == nil || c.Writer.Status() >= 400 {
			return
		}

		entry := service.AuditEntry{
			Action:     action,
			Resource:   resource,
			ResourceID: c.Param("id"),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
			NewValues: map[string]interface{}{
				"path":   c.FullPath(),
				"method": c.Request.Method,
				"status": c.Writer.Status(),
			},
		}
		if claimsValue, ok := c.Get(ContextUserKey); ok {
			if claims, ok := claimsValue.(*models.JWTClaims); ok {
				entry.UserID = claims.UserID
				entry.SchoolID = claims.SchoolID
			}
		}
		audit.Record(entry)
	}
}
