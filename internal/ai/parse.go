package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/models"
)

const defaultLinkTitle = "External Resource"

type rawDiagnosis struct {
	CropType           string          `json:"crop_type"`
	DiseaseName        string          `json:"disease_name"`
	ScientificName     *string         `json:"scientific_name"`
	ConfidenceScore    json.RawMessage `json:"confidence_score"`
	SeverityLevel      string          `json:"severity_level"`
	Description        *string         `json:"description"`
	SuggestedSolutions []string        `json:"suggested_solutions"`
}

// stripFences removes a surrounding markdown code fence, which some models
// add even in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func decodeJSON(op, text string, v any) error {
	body := stripFences(text)
	if body == "" {
		return common.Malformed(op, errors.New("empty reply"))
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return common.Malformed(op, err)
	}
	return nil
}

func parseDiagnosis(text string) (*DiagnosisResult, error) {
	const op = "ai.parseDiagnosis"

	var raw rawDiagnosis
	if err := decodeJSON(op, text, &raw); err != nil {
		return nil, err
	}

	crop, ok := models.ParseCropType(raw.CropType)
	if !ok {
		return nil, common.Malformed(op, fmt.Errorf("unknown crop_type %q", raw.CropType))
	}
	disease := strings.TrimSpace(raw.DiseaseName)
	if disease == "" {
		return nil, common.Malformed(op, errors.New("missing disease_name"))
	}
	severity, ok := models.ParseSeverityLevel(raw.SeverityLevel)
	if !ok {
		return nil, common.Malformed(op, fmt.Errorf("unknown severity_level %q", raw.SeverityLevel))
	}
	score, err := parseScore(raw.ConfidenceScore)
	if err != nil {
		return nil, common.Malformed(op, err)
	}

	out := &DiagnosisResult{
		CropType:        crop,
		DiseaseName:     disease,
		ScientificName:  optional(raw.ScientificName),
		Description:     optional(raw.Description),
		ConfidenceScore: models.ClampConfidence(score),
		SeverityLevel:   severity,
		CitationLinks:   []models.Link{},
	}
	for _, s := range raw.SuggestedSolutions {
		if s = strings.TrimSpace(s); s != "" {
			out.SuggestedSolutions = append(out.SuggestedSolutions, s)
		}
	}
	return out, nil
}

// parseScore accepts a JSON number or a numeric string. A missing or null
// score is 0.
func parseScore(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("confidence_score: %w", err)
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("confidence_score %q is not a number", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, nil
	}
	return f, nil
}

// optional maps absent and placeholder strings to "".
func optional(p *string) string {
	if p == nil {
		return ""
	}
	v := strings.TrimSpace(*p)
	switch strings.ToLower(v) {
	case "", "n/a", "na", "none", "unknown", "null", "-":
		return ""
	}
	return v
}

// citationLinks keeps links with a uri, defaults the title and caps the
// count when limit > 0. The result is never nil.
func citationLinks(in []models.Link, limit int) []models.Link {
	out := []models.Link{}
	for _, l := range in {
		uri := strings.TrimSpace(l.URI)
		if uri == "" {
			continue
		}
		title := strings.TrimSpace(l.Title)
		if title == "" {
			title = defaultLinkTitle
		}
		out = append(out, models.Link{Title: title, URI: uri})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

type rawForecast struct {
	Forecast []ForecastDay `json:"forecast"`
	Alert    string        `json:"alert"`
}

func parseForecast(text string) (*ForecastResult, error) {
	const op = "ai.parseForecast"
	var raw rawForecast
	if err := decodeJSON(op, text, &raw); err != nil {
		return nil, err
	}
	if len(raw.Forecast) == 0 {
		return nil, common.Malformed(op, errors.New("forecast is empty"))
	}
	for i := range raw.Forecast {
		d := &raw.Forecast[i]
		d.Day = strings.TrimSpace(d.Day)
		d.Condition = strings.TrimSpace(d.Condition)
		if d.Day == "" {
			return nil, common.Malformed(op, fmt.Errorf("forecast[%d]: missing day", i))
		}
		d.RainChance = models.ClampConfidence(d.RainChance)
	}
	return &ForecastResult{Days: raw.Forecast, Alert: strings.TrimSpace(raw.Alert)}, nil
}

type rawPrices struct {
	Prices []CommodityPrice `json:"prices"`
}

func parsePrices(text string) (*PriceResult, error) {
	const op = "ai.parsePrices"
	var raw rawPrices
	if err := decodeJSON(op, text, &raw); err != nil {
		return nil, err
	}
	out := &PriceResult{Prices: make([]CommodityPrice, 0, len(raw.Prices))}
	for i, p := range raw.Prices {
		p.Crop = strings.TrimSpace(p.Crop)
		if p.Crop == "" {
			return nil, common.Malformed(op, fmt.Errorf("prices[%d]: missing crop", i))
		}
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price < 0 {
			p.Price = 0
		}
		switch p.Trend {
		case TrendUp, TrendDown, TrendStable:
		default:
			p.Trend = TrendStable
		}
		out.Prices = append(out.Prices, p)
	}
	return out, nil
}
