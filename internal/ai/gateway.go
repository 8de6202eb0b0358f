package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultTimeout       = 45 * time.Second
	DefaultMaxImageBytes = 10 << 20
	DefaultCitationLimit = 3

	chatFallback = "I'm sorry, I couldn't process that request."

	agronomistInstruction = "You are an expert Agronomist AI. Provide practical, sustainable, and scientifically accurate advice to farmers. Use Google Search to find latest pest alerts or treatment prices if relevant."

	diagnosisPrompt = "Analyze this crop image for potential diseases. Identify the crop type (Tomato, Potato, Corn, Rice, or Unknown) and the specific disease. " +
		"List practical remediation steps as suggested_solutions. Provide the output in JSON format with the given schema."
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

type Options struct {
	Timeout       time.Duration
	MaxImageBytes int64
	CitationLimit int
	MarketRegion  string

	// Cache is optional; weather and market results are cached for CacheTTL.
	Cache    Cache
	CacheTTL time.Duration
}

// Gateway shapes requests to the provider and normalizes its replies. It is
// safe for concurrent use.
type Gateway struct {
	provider Provider
	opts     Options
	log      *zap.Logger
}

func NewGateway(p Provider, opts Options, log *zap.Logger) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = DefaultMaxImageBytes
	}
	if opts.CitationLimit <= 0 {
		opts.CitationLimit = DefaultCitationLimit
	}
	if opts.MarketRegion == "" {
		opts.MarketRegion = "Philippines"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{provider: p, opts: opts, log: log}
}

func (g *Gateway) ProviderName() string {
	if g.provider == nil {
		return ""
	}
	return g.provider.Name()
}

func (g *Gateway) MaxImageBytes() int64 { return g.opts.MaxImageBytes }

type DiagnosisResult struct {
	CropType           models.CropType      `json:"crop_type"`
	DiseaseName        string               `json:"disease_name"`
	ScientificName     string               `json:"scientific_name,omitempty"`
	Description        string               `json:"description,omitempty"`
	ConfidenceScore    float64              `json:"confidence_score"`
	SeverityLevel      models.SeverityLevel `json:"severity_level"`
	SuggestedSolutions []string             `json:"suggested_solutions,omitempty"`
	CitationLinks      []models.Link        `json:"grounding_links"`
}

// Record builds the detection record for this diagnosis. Id and creation time
// are left for the store to assign.
func (d DiagnosisResult) Record(ownerID, imageRef string) models.DetectionRecord {
	return models.DetectionRecord{
		OwnerID:            ownerID,
		CropType:           d.CropType,
		DiseaseName:        d.DiseaseName,
		ScientificName:     d.ScientificName,
		Description:        d.Description,
		ConfidenceScore:    d.ConfidenceScore,
		SeverityLevel:      d.SeverityLevel,
		ImageReference:     imageRef,
		SuggestedSolutions: d.SuggestedSolutions,
		CitationLinks:      d.CitationLinks,
	}
}

type ChatReply struct {
	Text  string        `json:"text"`
	Links []models.Link `json:"links"`
}

type WeatherQuery struct {
	Location  string   `json:"location,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type ForecastDay struct {
	Day        string  `json:"day"`
	Condition  string  `json:"condition"`
	HighC      float64 `json:"high_c"`
	LowC       float64 `json:"low_c"`
	RainChance float64 `json:"rain_chance"`
}

type ForecastResult struct {
	Location string        `json:"location"`
	Days     []ForecastDay `json:"forecast"`
	Alert    string        `json:"alert,omitempty"`
	Links    []models.Link `json:"links"`
}

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

type CommodityPrice struct {
	Crop          string  `json:"crop"`
	Price         float64 `json:"price"`
	Unit          string  `json:"unit"`
	Currency      string  `json:"currency,omitempty"`
	Trend         Trend   `json:"trend"`
	SourceSummary string  `json:"source_summary,omitempty"`
}

type PriceResult struct {
	Region string           `json:"region"`
	Prices []CommodityPrice `json:"prices"`
	Links  []models.Link    `json:"links"`
}

// CheckImage validates size and content type and returns the sniffed MIME
// type. max <= 0 means no size limit.
func CheckImage(op string, data []byte, max int64) (string, error) {
	if len(data) == 0 {
		return "", common.Validation(op, "image is empty")
	}
	if max > 0 && int64(len(data)) > max {
		return "", common.Validation(op, "image must be %s MB or smaller", strconv.FormatFloat(float64(max)/(1<<20), 'f', -1, 64))
	}
	mt := mimetype.Detect(data)
	for _, allowed := range allowedImageTypes {
		if mt.Is(allowed) {
			return allowed, nil
		}
	}
	return "", common.Validation(op, "unsupported image type %s, use JPEG, PNG or WebP", mt.String())
}

// Diagnose identifies crop, disease and severity in one image. For an actual
// disease a second search-grounded call collects treatment links; its failure
// only leaves the links empty.
func (g *Gateway) Diagnose(ctx context.Context, image []byte) (*DiagnosisResult, error) {
	const op = "ai.Diagnose"

	mime, err := CheckImage(op, image, g.opts.MaxImageBytes)
	if err != nil {
		return nil, err
	}

	resp, err := g.generate(ctx, op, Request{
		Prompt: diagnosisPrompt,
		Image:  &Image{MIMEType: mime, Data: image},
		Schema: diagnosisSchema,
	})
	if err != nil {
		return nil, err
	}
	res, err := parseDiagnosis(resp.Text)
	if err != nil {
		return nil, err
	}

	if models.IsDiagnosedDisease(res.DiseaseName) {
		prompt := fmt.Sprintf("Find the latest treatment protocols and product availability for %s in %s crops.", res.DiseaseName, res.CropType)
		res.CitationLinks = g.citations(ctx, op, prompt)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Chat answers one user message given the prior turns, oldest first.
func (g *Gateway) Chat(ctx context.Context, history []Message, message string) (*ChatReply, error) {
	const op = "ai.Chat"

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, common.Validation(op, "message is empty")
	}
	resp, err := g.generate(ctx, op, Request{
		System:  agronomistInstruction,
		History: history,
		Prompt:  message,
		Search:  true,
	})
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		text = chatFallback
	}
	return &ChatReply{Text: text, Links: citationLinks(resp.Links, 0)}, nil
}

func (g *Gateway) Weather(ctx context.Context, q WeatherQuery) (*ForecastResult, error) {
	const op = "ai.Weather"

	place, err := describePlace(op, q)
	if err != nil {
		return nil, err
	}
	key := "weather:" + strings.ToLower(place)

	var cached ForecastResult
	if g.loadCached(ctx, key, &cached) {
		return &cached, nil
	}

	resp, err := g.generate(ctx, op, Request{
		Prompt: fmt.Sprintf("Provide a 5-day agricultural weather forecast for %s. "+
			"Give day, condition, high and low temperature in Celsius and rain chance per day, "+
			"plus a one-sentence alert if conditions favour crop disease or damage.", place),
		Schema: forecastSchema,
	})
	if err != nil {
		return nil, err
	}
	res, err := parseForecast(resp.Text)
	if err != nil {
		return nil, err
	}
	res.Location = place
	res.Links = g.citations(ctx, op, fmt.Sprintf("Find current weather advisories for farmers near %s.", place))

	g.storeCached(ctx, key, res)
	return res, nil
}

// MarketPrices returns current commodity prices for the configured region.
func (g *Gateway) MarketPrices(ctx context.Context) (*PriceResult, error) {
	const op = "ai.MarketPrices"

	region := g.opts.MarketRegion
	key := "market:" + strings.ToLower(region)

	var cached PriceResult
	if g.loadCached(ctx, key, &cached) {
		return &cached, nil
	}

	resp, err := g.generate(ctx, op, Request{
		Prompt: fmt.Sprintf("Estimate current wholesale market prices in %s for tomato, potato, corn and rice. "+
			"Give price per unit, unit, currency and the recent trend.", region),
		Schema: marketSchema,
	})
	if err != nil {
		return nil, err
	}
	res, err := parsePrices(resp.Text)
	if err != nil {
		return nil, err
	}
	res.Region = region
	res.Links = g.citations(ctx, op, fmt.Sprintf("Find the latest crop market price reports for %s.", region))

	g.storeCached(ctx, key, res)
	return res, nil
}

func describePlace(op string, q WeatherQuery) (string, error) {
	loc := strings.TrimSpace(q.Location)
	if (q.Latitude == nil) != (q.Longitude == nil) {
		return "", common.Validation(op, "latitude and longitude must be given together")
	}
	if q.Latitude == nil {
		if loc == "" {
			return "", common.Validation(op, "a location or coordinates are required")
		}
		return loc, nil
	}
	lat, lon := *q.Latitude, *q.Longitude
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", common.Validation(op, "coordinates are out of range")
	}
	coords := fmt.Sprintf("%.4f, %.4f", lat, lon)
	if loc == "" {
		return coords, nil
	}
	return fmt.Sprintf("%s (%s)", loc, coords), nil
}

// ensureCredential is checked before every provider call.
func (g *Gateway) ensureCredential(op string) error {
	if g.provider == nil {
		return common.Credential(op, errors.New("no ai provider configured"))
	}
	if err := g.provider.CheckCredential(); err != nil {
		return common.Credential(op, err)
	}
	return nil
}

func (g *Gateway) generate(ctx context.Context, op string, req Request) (*Response, error) {
	if err := g.ensureCredential(op); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.provider.Generate(cctx, req)
	if err != nil {
		err = classify(ctx, op, err)
		g.log.Debug("provider call failed",
			zap.String("op", op),
			zap.String("provider", g.provider.Name()),
			zap.Duration("cost", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	g.log.Debug("provider call",
		zap.String("op", op),
		zap.String("provider", g.provider.Name()),
		zap.Duration("cost", time.Since(start)))
	if resp == nil {
		resp = &Response{}
	}
	return resp, nil
}

// classify maps a provider failure onto the error taxonomy. Cancellation by
// the caller is passed through unclassified.
func classify(parent context.Context, op string, err error) error {
	var typed *common.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(parent.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", op, context.Canceled)
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == 401 || se.Code == 403:
			return common.Credential(op, err)
		case se.Code == 400 && strings.Contains(strings.ToLower(se.Message), "api key"):
			return common.Credential(op, err)
		}
	}
	return common.Network(op, err)
}

func (g *Gateway) citations(ctx context.Context, op, prompt string) []models.Link {
	if ctx.Err() != nil {
		return []models.Link{}
	}
	resp, err := g.generate(ctx, op, Request{Prompt: prompt, Search: true})
	if err != nil {
		g.log.Warn("citation lookup failed", zap.String("op", op), zap.Error(err))
		return []models.Link{}
	}
	return citationLinks(resp.Links, g.opts.CitationLimit)
}

func (g *Gateway) loadCached(ctx context.Context, key string, v any) bool {
	if g.opts.Cache == nil {
		return false
	}
	b, err := g.opts.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			g.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		g.log.Warn("cache entry unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (g *Gateway) storeCached(ctx context.Context, key string, v any) {
	if g.opts.Cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := g.opts.Cache.Set(ctx, key, b, g.opts.CacheTTL); err != nil {
		g.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
