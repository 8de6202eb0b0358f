package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FarmProfile is the one-per-session farm metadata. Saving always replaces the
// whole row.
type FarmProfile struct {
	OwnerID           string     `gorm:"primaryKey;size:64" json:"owner_id" validate:"required"`
	FarmName          string     `gorm:"size:120" json:"farm_name" validate:"required,max=120"`
	Location          string     `gorm:"size:255" json:"location" validate:"max=255"`
	Latitude          *float64   `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude         *float64   `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	SizeHectares      float64    `json:"farm_size_hectares" validate:"gte=0"`
	PrimaryCrops      []CropType `gorm:"serializer:json" json:"primary_crops"`
	ProfilePictureURL string     `gorm:"size:512" json:"profile_picture_url,omitempty" validate:"omitempty,url"`
}

func (FarmProfile) TableName() string { return "farm_profiles" }

// DefaultProfile is created together with a session.
func DefaultProfile(ownerID, farmName string) FarmProfile {
	return FarmProfile{
		OwnerID:      ownerID,
		FarmName:     farmName,
		PrimaryCrops: []CropType{},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges, the both-or-neither coordinate rule and the
// crop set. It returns a human readable reason.
func (p FarmProfile) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s (%s)", fieldLabel(fe.Field()), fe.Tag())
		}
		return err
	}
	if (p.Latitude == nil) != (p.Longitude == nil) {
		return fmt.Errorf("latitude and longitude must be set together")
	}
	seen := make(map[CropType]bool, len(p.PrimaryCrops))
	for _, c := range p.PrimaryCrops {
		if _, ok := ParseCropType(string(c)); !ok || c == CropUnknown {
			return fmt.Errorf("unknown crop %q", c)
		}
		if seen[c] {
			return fmt.Errorf("duplicate crop %q", c)
		}
		seen[c] = true
	}
	return nil
}

// Normalized returns a copy with trimmed text and crops in canonical order.
func (p FarmProfile) Normalized() FarmProfile {
	p.FarmName = strings.TrimSpace(p.FarmName)
	p.Location = strings.TrimSpace(p.Location)
	crops := make([]CropType, len(p.PrimaryCrops))
	copy(crops, p.PrimaryCrops)
	sort.Slice(crops, func(i, j int) bool { return crops[i] < crops[j] })
	p.PrimaryCrops = crops
	return p
}

// HasCoordinates reports whether the farm has been pinned on the map.
func (p FarmProfile) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

func fieldLabel(field string) string {
	switch field {
	case "OwnerID":
		return "owner"
	case "FarmName":
		return "farm name"
	case "SizeHectares":
		return "farm size"
	case "ProfilePictureURL":
		return "profile picture url"
	}
	return strings.ToLower(field)
}
