package ginserver

import (
	"strings"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/policies"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// GatewayPrincipal reads the caller identity asserted by the gateway. A
// request without X-User-ID stays anonymous.
func GatewayPrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if id == "" {
			c.Next()
			return
		}
		roles := policies.ParseRoles(c.GetHeader(HeaderUserRole))
		if len(roles) == 0 {
			roles = []policies.Role{policies.RoleGuest}
		}
		p := policies.Principal{ID: id, Roles: roles}
		c.Request = c.Request.WithContext(policies.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func principalOf(c *gin.Context) policies.Principal {
	return policies.PrincipalFrom(c.Request.Context())
}
