package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agroguard/internal/auth"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/models"
	"go.uber.org/zap"
)

type redeemReq struct {
	Code string `json:"code" binding:"required"`
}

type registerReq struct {
	FarmName string `json:"farm_name" binding:"required"`
	Plan     string `json:"plan"`
}

type planReq struct {
	Plan string `json:"plan" binding:"required"`
}

type sessionResp struct {
	Session   models.Session `json:"session"`
	Token     string         `json:"token"`
	AccessKey string         `json:"access_key,omitempty"`
}

func (h *Handler) issue(c *gin.Context, sess models.Session, accessKey string) {
	token, err := auth.SignJWT(sess.ID, h.JWTSecret, h.TokenTTL)
	if err != nil {
		h.Log.Error("sign token", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to issue token")
		return
	}
	common.OK(c, sessionResp{Session: sess, Token: token, AccessKey: accessKey})
}

func (h *Handler) RedeemCode(c *gin.Context) {
	var req redeemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	sess, err := h.Sessions.RedeemCode(c.Request.Context(), req.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.issue(c, *sess, "")
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	reg, err := h.Sessions.Register(c.Request.Context(), req.FarmName, models.Plan(req.Plan))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.issue(c, reg.Session, reg.AccessKey)
}

func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.Sessions.Require()
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"session": sess, "state": h.Sessions.State()})
}

func (h *Handler) ChangePlan(c *gin.Context) {
	var req planReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	sess, err := h.Sessions.ChangePlan(c.Request.Context(), models.Plan(req.Plan))
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"session": sess})
}

// Logout ends the session and drops its in-memory conversations. Any
// running analysis is abandoned.
func (h *Handler) Logout(c *gin.Context) {
	sid, _ := sessionIDFromContext(c)
	if err := h.Sessions.Logout(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	h.Detector.Reset()
	h.Chat.DropOwner(c.Request.Context(), sid)
	common.OK(c, gin.H{"logged_out": true})
}

type themeReq struct {
	Theme string `json:"theme" binding:"required"`
}

func (h *Handler) GetTheme(c *gin.Context) {
	th, err := h.Store.GetTheme(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"theme": th})
}

func (h *Handler) SetTheme(c *gin.Context) {
	var req themeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	th, ok := models.ParseTheme(req.Theme)
	if !ok {
		common.Fail(c, http.StatusBadRequest, 40001, "theme must be light or dark")
		return
	}
	if err := h.Store.SetTheme(c.Request.Context(), th); err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"theme": th})
}

func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.Sessions.Profile(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"profile": p})
}

func (h *Handler) SaveProfile(c *gin.Context) {
	var p models.FarmProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	saved, err := h.Sessions.SaveProfile(c.Request.Context(), p)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"profile": saved})
}
