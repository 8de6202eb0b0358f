package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agroguard/internal/common"
)

type createConversationReq struct {
	Seed string `json:"seed"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	sid, _ := sessionIDFromContext(c)

	var req createConversationReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	conv, err := h.Chat.CreateConversation(c.Request.Context(), sid, req.Seed)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"conversation_id": conv.ID})
}

type sendMessageReq struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Message        string `json:"message" binding:"required"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	sid, _ := sessionIDFromContext(c)

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	reply, err := h.Chat.SendMessage(c.Request.Context(), sid, req.ConversationID, req.Message)
	if err != nil {
		h.writeError(c, err)
		return
	}

	common.OK(c, gin.H{
		"conversation_id": req.ConversationID,
		"reply":           reply.Content,
		"links":           reply.Links,
		"message_id":      reply.ID,
	})
}

// ListChatMessages pages newest first. Pass next_before_id back as before_id
// for the next page.
func (h *Handler) ListChatMessages(c *gin.Context) {
	sid, _ := sessionIDFromContext(c)
	conversationID := c.Param("conversation_id")

	limit, _ := strconv.Atoi(c.Query("limit"))
	var beforeID uint64
	if s := c.Query("before_id"); s != "" {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			beforeID = n
		}
	}

	msgs, err := h.Chat.ListMessages(c.Request.Context(), sid, conversationID, limit, beforeID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var nextBeforeID uint64
	if len(msgs) > 0 {
		nextBeforeID = msgs[len(msgs)-1].ID
	}

	common.OK(c, gin.H{
		"messages":       msgs,
		"next_before_id": nextBeforeID,
	})
}

func (h *Handler) Transcript(c *gin.Context) {
	sid, _ := sessionIDFromContext(c)
	msgs, err := h.Chat.Transcript(c.Request.Context(), sid, c.Param("conversation_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}
