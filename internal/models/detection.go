package models

import (
	"math"
	"strings"
	"time"
)

// DetectionRecord is the immutable audit entry of one diagnosis. Corrections
// are new records.
type DetectionRecord struct {
	ID                 string        `gorm:"primaryKey;size:26" json:"id"`
	OwnerID            string        `gorm:"size:64;not null;index:idx_detection_owner_created,priority:1" json:"owner_id"`
	CropType           CropType      `gorm:"size:16;not null" json:"crop_type"`
	DiseaseName        string        `gorm:"size:255;not null" json:"disease_name"`
	ScientificName     string        `gorm:"size:255" json:"scientific_name,omitempty"`
	Description        string        `gorm:"type:text" json:"description,omitempty"`
	ConfidenceScore    float64       `gorm:"not null" json:"confidence_score"`
	SeverityLevel      SeverityLevel `gorm:"size:16;not null" json:"severity_level"`
	ImageReference     string        `gorm:"size:512" json:"image_url"`
	CreatedAt          time.Time     `gorm:"not null;index:idx_detection_owner_created,priority:2" json:"created_at"`
	SuggestedSolutions []string      `gorm:"serializer:json" json:"possible_solutions,omitempty"`
	CitationLinks      []Link        `gorm:"serializer:json" json:"grounding_links,omitempty"`
}

func (DetectionRecord) TableName() string { return "detection_records" }

// ClampConfidence maps any provider value into [0,100]. Non-finite values
// become 0.
func ClampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v), math.IsInf(v, 0), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// IsDiagnosedDisease reports whether a disease name names an actual disease
// rather than a healthy or unidentified plant.
func IsDiagnosedDisease(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && !strings.EqualFold(name, "Healthy") && !strings.EqualFold(name, "Unknown")
}
