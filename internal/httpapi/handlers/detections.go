package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agroguard/internal/catalog"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/detection"
	"github.com/suPer8Hu/agroguard/internal/models"
)

type detectionResp struct {
	Detection *models.DetectionRecord `json:"detection"`
	Catalog   *catalog.Entry          `json:"catalog,omitempty"`
}

// CreateDetection takes a multipart "image" field, diagnoses it and stores the
// record.
func (h *Handler) CreateDetection(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "image file required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "image file unreadable")
		return
	}
	defer f.Close()

	// one byte past the limit is enough to reject oversize images
	data, err := io.ReadAll(io.LimitReader(f, h.Gateway.MaxImageBytes()+1))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "image file unreadable")
		return
	}

	rec, err := h.Detector.Submit(c.Request.Context(), data)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := detectionResp{Detection: rec}
	if entry, ok := h.Catalog.Lookup(rec.CropType, rec.DiseaseName); ok {
		resp.Catalog = &entry
	}
	common.OK(c, resp)
}

func (h *Handler) CancelDetection(c *gin.Context) {
	common.OK(c, gin.H{"cancelled": h.Detector.Cancel()})
}

func (h *Handler) DetectionStatus(c *gin.Context) {
	st := h.Detector.Status()
	out := gin.H{"state": st.State, "detection": st.Record}
	if st.State == detection.StateFailed && st.Err != nil {
		out["error"] = common.UserMessage(st.Err)
	}
	common.OK(c, out)
}

func (h *Handler) ListDetections(c *gin.Context) {
	sid, _ := sessionIDFromContext(c)
	recs, err := h.Store.ListDetections(c.Request.Context(), sid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if recs == nil {
		recs = []models.DetectionRecord{}
	}
	common.OK(c, gin.H{"detections": recs})
}

func (h *Handler) GetDetection(c *gin.Context) {
	sid, _ := sessionIDFromContext(c)
	rec, err := h.Store.GetDetection(c.Request.Context(), sid, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := detectionResp{Detection: rec}
	if entry, ok := h.Catalog.Lookup(rec.CropType, rec.DiseaseName); ok {
		resp.Catalog = &entry
	}
	common.OK(c, resp)
}

func (h *Handler) Insights(c *gin.Context) {
	sid, _ := sessionIDFromContext(c)
	recs, err := h.Store.ListDetections(c.Request.Context(), sid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, detection.Summarize(recs))
}
