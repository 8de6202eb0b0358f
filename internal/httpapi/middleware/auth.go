package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agroguard/internal/auth"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/models"
)

const SessionIDKey = "session_id"

// CurrentSession reports the device's active session.
type CurrentSession interface {
	Current() (models.Session, bool)
}

// AuthRequired accepts a bearer token only while its subject is the current
// session, so logging out invalidates every token issued before.
func AuthRequired(secret string, sessions CurrentSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40101, "missing bearer token")
			return
		}
		sub, err := auth.ParseJWT(strings.TrimPrefix(authz, "Bearer "), secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40101, "invalid token")
			return
		}
		cur, ok := sessions.Current()
		if !ok || cur.ID != sub {
			common.Fail(c, http.StatusUnauthorized, 40101, "session expired")
			return
		}
		c.Set(SessionIDKey, sub)
		c.Next()
	}
}
