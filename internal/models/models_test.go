package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-3))
	assert.Equal(t, 100.0, ClampConfidence(140))
	assert.Equal(t, 94.2, ClampConfidence(94.2))
	assert.Equal(t, 0.0, ClampConfidence(math.NaN()))
	assert.Equal(t, 0.0, ClampConfidence(math.Inf(1)))
}

func TestProfileValidate(t *testing.T) {
	valid := FarmProfile{
		OwnerID:      "u_1",
		FarmName:     "Sunny Acres",
		Latitude:     ptr(14.6),
		Longitude:    ptr(121.0),
		SizeHectares: 2.5,
		PrimaryCrops: []CropType{CropRice, CropCorn},
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(p *FarmProfile){
		"missing owner":   func(p *FarmProfile) { p.OwnerID = "" },
		"missing name":    func(p *FarmProfile) { p.FarmName = "" },
		"partial coords":  func(p *FarmProfile) { p.Longitude = nil },
		"latitude range":  func(p *FarmProfile) { p.Latitude = ptr(91) },
		"longitude range": func(p *FarmProfile) { p.Longitude = ptr(-181) },
		"negative size":   func(p *FarmProfile) { p.SizeHectares = -1 },
		"duplicate crop":  func(p *FarmProfile) { p.PrimaryCrops = []CropType{CropRice, CropRice} },
		"unknown crop":    func(p *FarmProfile) { p.PrimaryCrops = []CropType{"Wheat"} },
		"bad picture url": func(p *FarmProfile) { p.ProfilePictureURL = "not a url" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			p.PrimaryCrops = append([]CropType(nil), valid.PrimaryCrops...)
			mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestProfileNormalizedSortsCrops(t *testing.T) {
	p := FarmProfile{OwnerID: "u", FarmName: "  Farm ", PrimaryCrops: []CropType{CropTomato, CropCorn, CropRice}}
	n := p.Normalized()

	assert.Equal(t, []CropType{CropCorn, CropRice, CropTomato}, n.PrimaryCrops)
	assert.Equal(t, "Farm", n.FarmName)
	assert.Equal(t, []CropType{CropTomato, CropCorn, CropRice}, p.PrimaryCrops, "input must not be mutated")
}

func TestParseEnums(t *testing.T) {
	c, ok := ParseCropType(" tomato ")
	assert.True(t, ok)
	assert.Equal(t, CropTomato, c)

	_, ok = ParseCropType("Wheat")
	assert.False(t, ok)

	s, ok := ParseSeverityLevel("SEVERE")
	assert.True(t, ok)
	assert.Equal(t, SeveritySevere, s)

	th, ok := ParseTheme("Dark")
	assert.True(t, ok)
	assert.Equal(t, ThemeDark, th)

	plan, ok := ParsePlan("")
	assert.True(t, ok)
	assert.Equal(t, PlanFree, plan)
}

func TestIsDiagnosedDisease(t *testing.T) {
	assert.True(t, IsDiagnosedDisease("Early Blight"))
	assert.False(t, IsDiagnosedDisease("Healthy"))
	assert.False(t, IsDiagnosedDisease("unknown"))
	assert.False(t, IsDiagnosedDisease(" "))
}
