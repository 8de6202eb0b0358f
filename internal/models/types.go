package models

import "strings"

type CropType string

const (
	CropTomato  CropType = "Tomato"
	CropPotato  CropType = "Potato"
	CropCorn    CropType = "Corn"
	CropRice    CropType = "Rice"
	CropUnknown CropType = "Unknown"
)

// CropTypes is the closed set accepted from the diagnosis provider.
var CropTypes = []CropType{CropTomato, CropPotato, CropCorn, CropRice, CropUnknown}

// ParseCropType matches case-insensitively against the closed set.
func ParseCropType(s string) (CropType, bool) {
	s = strings.TrimSpace(s)
	for _, c := range CropTypes {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

type SeverityLevel string

const (
	SeverityMild     SeverityLevel = "Mild"
	SeverityModerate SeverityLevel = "Moderate"
	SeveritySevere   SeverityLevel = "Severe"
)

var SeverityLevels = []SeverityLevel{SeverityMild, SeverityModerate, SeveritySevere}

func ParseSeverityLevel(s string) (SeverityLevel, bool) {
	s = strings.TrimSpace(s)
	for _, l := range SeverityLevels {
		if strings.EqualFold(s, string(l)) {
			return l, true
		}
	}
	return "", false
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func ParseTheme(s string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, true
	case ThemeDark:
		return ThemeDark, true
	}
	return "", false
}

// Link is a citation returned by the provider's live-lookup tool.
type Link struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

func StringValues[T ~string](in []T) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, string(v))
	}
	return out
}
