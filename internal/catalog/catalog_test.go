package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/agroguard/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	list := c.List()
	require.Len(t, list, 3)
	assert.Equal(t, "Early Blight", list[0].CommonName)
	assert.Len(t, c.Treatments("d1"), 2)
	assert.Len(t, c.Treatments("d2"), 1)
	assert.Empty(t, c.Treatments("d3"))
	assert.NotNil(t, c.Treatments("d3"))
}

func TestLookup(t *testing.T) {
	c := Default()

	cases := []struct {
		crop   models.CropType
		name   string
		wantID string
	}{
		{models.CropTomato, "late blight", "d2"},
		{models.CropTomato, "Tomato Early Blight", "d1"},
		{models.CropCorn, "Puccinia sorghi", "d3"},
		{"corn", " Common Rust ", "d3"},
	}
	for _, tc := range cases {
		e, ok := c.Lookup(tc.crop, tc.name)
		require.True(t, ok, tc.name)
		assert.Equal(t, tc.wantID, e.Disease.ID, tc.name)
	}

	e, ok := c.Lookup(models.CropTomato, "Early Blight")
	require.True(t, ok)
	assert.Equal(t, "t1", e.Treatments[0].ID)
	assert.Equal(t, 25.0, e.Treatments[0].CostMax)

	for _, miss := range []struct {
		crop models.CropType
		name string
	}{
		{models.CropPotato, "Late Blight"},
		{models.CropTomato, "Healthy"},
		{models.CropTomato, ""},
	} {
		_, ok := c.Lookup(miss.crop, miss.name)
		assert.False(t, ok, miss.name)
	}
}

func TestList_ReturnsCopy(t *testing.T) {
	c := Default()
	list := c.List()
	list[0].CommonName = "changed"
	assert.Equal(t, "Early Blight", c.List()[0].CommonName)
}

func TestParseRejectsDanglingTreatment(t *testing.T) {
	_, err := Parse([]byte("diseases: []\ntreatments:\n  - id: t9\n    disease_id: d9\n"))
	assert.ErrorContains(t, err, "unknown disease")

	_, err = Parse([]byte("diseases:\n  - id: d1\n    crop_type: Banana\n"))
	assert.ErrorContains(t, err, "unknown crop")
}
