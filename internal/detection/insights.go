package detection

import "github.com/suPer8Hu/agroguard/internal/models"

const recentCount = 4

// Insights is the dashboard summary of a detection history.
type Insights struct {
	Total   int                      `json:"total"`
	Severe  int                      `json:"severe"`
	TopCrop models.CropType          `json:"top_crop,omitempty"`
	Recent  []models.DetectionRecord `json:"recent"`
}

// Summarize expects records newest first, as returned by the store. Ties for
// the top crop go to the crop seen first.
func Summarize(records []models.DetectionRecord) Insights {
	out := Insights{Total: len(records), Recent: []models.DetectionRecord{}}

	counts := make(map[models.CropType]int)
	var order []models.CropType
	for _, r := range records {
		if r.SeverityLevel == models.SeveritySevere {
			out.Severe++
		}
		if counts[r.CropType] == 0 {
			order = append(order, r.CropType)
		}
		counts[r.CropType]++
	}
	best := 0
	for _, crop := range order {
		if counts[crop] > best {
			best, out.TopCrop = counts[crop], crop
		}
	}
	n := min(len(records), recentCount)
	out.Recent = append(out.Recent, records[:n]...)
	return out
}
