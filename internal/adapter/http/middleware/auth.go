package middleware

import (
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// JWTAuth validates the bearer token and stores the caller as a *domain.Actor.
// The justification header is attached as-is; only wildcard grants require it.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			response.Error(c, apperror.ErrUnauthorized())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			log.Debug().Err(err).Str("client_ip", c.ClientIP()).Msg("rejected bearer token")
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxActor, &domain.Actor{
			ID:            claims.ActorID,
			Role:          claims.Role,
			Justification: strings.TrimSpace(c.GetHeader(HeaderJustification)),
			IPAddress:     c.ClientIP(),
			UserAgent:     c.Request.UserAgent(),
		})
		c.Next()
	}
}

// ActorFrom returns the authenticated actor, if any.
func ActorFrom(c *gin.Context) (*domain.Actor, bool) {
	v, ok := c.Get(CtxActor)
	if !ok {
		return nil, false
	}
	actor, ok := v.(*domain.Actor)
	return actor, ok && actor != nil
}

// RequireAccess aborts unless the actor satisfies req.
func RequireAccess(access ports.AccessControl, req ports.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		if err := access.Authorize(actor, req); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireOwnerOr lets an actor read their own wallet, and anyone else only
// with perm. The owner is taken from the named path parameter.
func RequireOwnerOr(access ports.AccessControl, param string, perm domain.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if ok && actor.ID == c.Param(param) {
			c.Next()
			return
		}
		if err := access.Authorize(actor, ports.RequirePermission(perm)); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
