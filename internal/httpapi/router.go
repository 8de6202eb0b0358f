package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/httpapi/handlers"
	"github.com/suPer8Hu/agroguard/internal/httpapi/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *handlers.Handler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	// session
	r.POST("/session/redeem", h.RedeemCode)
	r.POST("/session/register", h.Register)

	// theme is a device preference, readable before sign in
	r.GET("/theme", h.GetTheme)
	r.PUT("/theme", h.SetTheme)

	r.GET("/catalog/diseases", h.ListDiseases)
	r.GET("/catalog/lookup", h.LookupDisease)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(h.JWTSecret, h.Sessions))
	authGroup.GET("/session", h.GetSession)
	authGroup.DELETE("/session", h.Logout)
	authGroup.PUT("/session/plan", h.ChangePlan)

	authGroup.GET("/profile", h.GetProfile)
	authGroup.PUT("/profile", h.SaveProfile)

	authGroup.POST("/detections", h.CreateDetection)
	authGroup.POST("/detections/cancel", h.CancelDetection)
	authGroup.GET("/detections/status", h.DetectionStatus)
	authGroup.GET("/detections", h.ListDetections)
	authGroup.GET("/detections/:id", h.GetDetection)
	authGroup.GET("/insights", h.Insights)

	authGroup.POST("/chat/conversations", h.CreateConversation)
	authGroup.POST("/chat/messages", h.SendChatMessage)
	authGroup.GET("/chat/conversations/:conversation_id/messages", h.ListChatMessages)
	authGroup.GET("/chat/conversations/:conversation_id/transcript", h.Transcript)

	authGroup.GET("/weather", h.Weather)
	authGroup.GET("/market", h.Market)
	return r
}
