package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agroguard/internal/ai"
	"github.com/suPer8Hu/agroguard/internal/catalog"
	"github.com/suPer8Hu/agroguard/internal/chat"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/detection"
	"github.com/suPer8Hu/agroguard/internal/httpapi/middleware"
	"github.com/suPer8Hu/agroguard/internal/session"
	"github.com/suPer8Hu/agroguard/internal/store"
	"go.uber.org/zap"
)

type Handler struct {
	Sessions  *session.Manager
	Store     *store.Store
	Detector  *detection.Controller
	Chat      *chat.Service
	Gateway   *ai.Gateway
	Catalog   *catalog.Catalog
	JWTSecret string
	TokenTTL  time.Duration
	Log       *zap.Logger
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true, "provider": h.Gateway.ProviderName()})
}

func sessionIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.SessionIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// writeError maps domain failures to the response envelope. Raw causes are
// logged, never returned.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		common.Fail(c, http.StatusUnauthorized, 40101, "sign in first")
		return
	case errors.Is(err, detection.ErrAnalysisInFlight):
		common.Fail(c, http.StatusConflict, 40901, "an analysis is already running")
		return
	case errors.Is(err, chat.ErrReplyPending):
		common.Fail(c, http.StatusConflict, 40901, "waiting for the previous reply")
		return
	case errors.Is(err, chat.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "conversation not found")
		return
	case errors.Is(err, store.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "not found")
		return
	case errors.Is(err, context.Canceled) && common.KindOf(err) == "":
		common.Fail(c, http.StatusRequestTimeout, 40801, "request cancelled")
		return
	}

	var code int
	switch common.KindOf(err) {
	case common.KindValidation:
		code = 40001
	case common.KindCredential:
		code = 40102
	case common.KindMalformedResponse:
		code = 50201
	case common.KindNetwork:
		code = 50301
	default:
		code = 50001
	}
	status := common.HTTPStatus(err)
	if status >= 500 {
		h.Log.Warn("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err))
	}
	common.Fail(c, status, code, common.UserMessage(err))
}
