package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/models"
)

func (h *Handler) ListDiseases(c *gin.Context) {
	common.OK(c, gin.H{"diseases": h.Catalog.List()})
}

func (h *Handler) LookupDisease(c *gin.Context) {
	crop, ok := models.ParseCropType(c.Query("crop"))
	if !ok {
		common.Fail(c, http.StatusBadRequest, 40001, "unknown crop")
		return
	}
	entry, ok := h.Catalog.Lookup(crop, c.Query("disease"))
	if !ok {
		common.Fail(c, http.StatusNotFound, 40403, "disease not in catalog")
		return
	}
	common.OK(c, entry)
}
