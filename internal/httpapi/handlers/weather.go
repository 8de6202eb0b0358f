package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agroguard/internal/ai"
	"github.com/suPer8Hu/agroguard/internal/common"
)

// Weather forecasts for ?location= or ?lat=&lng=. Without either it falls back
// to the farm profile.
func (h *Handler) Weather(c *gin.Context) {
	q := ai.WeatherQuery{Location: c.Query("location")}
	var err error
	if q.Latitude, err = optFloat(c.Query("lat")); err != nil {
		h.writeError(c, common.Validation("weather", "lat must be a number"))
		return
	}
	if q.Longitude, err = optFloat(c.Query("lng")); err != nil {
		h.writeError(c, common.Validation("weather", "lng must be a number"))
		return
	}

	if q.Location == "" && q.Latitude == nil && q.Longitude == nil {
		p, err := h.Sessions.Profile(c.Request.Context())
		if err != nil {
			h.writeError(c, err)
			return
		}
		q.Location, q.Latitude, q.Longitude = p.Location, p.Latitude, p.Longitude
	}

	res, err := h.Gateway.Weather(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, res)
}

func (h *Handler) Market(c *gin.Context) {
	res, err := h.Gateway.MarketPrices(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, res)
}

func optFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
