package middleware

import (
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuditRule describes the audit event written for one privileged read.
// TargetParam names the path parameter holding the target id; when empty the
// target id is the request path.
type AuditRule struct {
	Action      domain.AuditAction
	TargetType  string
	TargetParam string
	SkipOwner   bool // an actor reading their own resource is not audited
}

// AuditAccess records a privileged read before it is served. If the event
// cannot be stored the read is refused.
func AuditAccess(auditSvc ports.AuditService, rule AuditRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.Next()
			return
		}

		target := c.Request.URL.Path
		if rule.TargetParam != "" {
			target = c.Param(rule.TargetParam)
		}
		if rule.SkipOwner && target == actor.ID {
			c.Next()
			return
		}

		metadata := map[string]string{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}
		if q := c.Request.URL.RawQuery; q != "" {
			metadata["query"] = q
		}
		if id := c.GetString(CtxRequestID); id != "" {
			metadata["request_id"] = id
		}

		_, err := auditSvc.Record(c.Request.Context(), ports.RecordInput{
			Actor:      *actor,
			Action:     rule.Action,
			TargetType: rule.TargetType,
			TargetID:   target,
			Reason:     actor.Justification,
			Metadata:   metadata,
		})
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
