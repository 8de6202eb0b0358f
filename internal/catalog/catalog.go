// Package catalog holds the static reference data on supported diseases and
// their treatments.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/suPer8Hu/agroguard/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed diseases.yaml
var catalogYAML []byte

type Disease struct {
	ID             string          `yaml:"id" json:"id"`
	CropType       models.CropType `yaml:"crop_type" json:"crop_type"`
	CommonName     string          `yaml:"common_name" json:"common_name"`
	ScientificName string          `yaml:"scientific_name" json:"scientific_name"`
	Description    string          `yaml:"description" json:"description"`
	Symptoms       []string        `yaml:"symptoms" json:"symptoms"`
	Causes         string          `yaml:"causes" json:"causes"`
	PreventionTips []string        `yaml:"prevention_tips" json:"prevention_tips"`
}

type Treatment struct {
	ID                string  `yaml:"id" json:"id"`
	DiseaseID         string  `yaml:"disease_id" json:"disease_id"`
	Name              string  `yaml:"treatment_name" json:"treatment_name"`
	Type              string  `yaml:"treatment_type" json:"treatment_type"`
	Instructions      string  `yaml:"instructions" json:"instructions"`
	Dosage            string  `yaml:"dosage" json:"dosage"`
	ApplicationMethod string  `yaml:"application_method" json:"application_method"`
	Frequency         string  `yaml:"frequency" json:"frequency"`
	CostMin           float64 `yaml:"cost_estimate_min" json:"cost_estimate_min"`
	CostMax           float64 `yaml:"cost_estimate_max" json:"cost_estimate_max"`
	Currency          string  `yaml:"currency" json:"currency"`
	Safety            string  `yaml:"safety_precautions" json:"safety_precautions"`
	ExpectedResults   string  `yaml:"expected_results" json:"expected_results"`
}

// Entry is a disease together with its treatments.
type Entry struct {
	Disease    Disease     `json:"disease"`
	Treatments []Treatment `json:"treatments"`
}

type Catalog struct {
	diseases   []Disease
	treatments map[string][]Treatment
}

type document struct {
	Diseases   []Disease   `yaml:"diseases"`
	Treatments []Treatment `yaml:"treatments"`
}

// Parse builds a catalog from YAML. Treatments must reference a known disease.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{diseases: doc.Diseases, treatments: make(map[string][]Treatment)}
	known := make(map[string]bool, len(doc.Diseases))
	for _, d := range doc.Diseases {
		if _, ok := models.ParseCropType(string(d.CropType)); !ok {
			return nil, fmt.Errorf("catalog: disease %s has unknown crop %q", d.ID, d.CropType)
		}
		known[d.ID] = true
	}
	for _, t := range doc.Treatments {
		if !known[t.DiseaseID] {
			return nil, fmt.Errorf("catalog: treatment %s references unknown disease %s", t.ID, t.DiseaseID)
		}
		c.treatments[t.DiseaseID] = append(c.treatments[t.DiseaseID], t)
	}
	return c, nil
}

// Default is the built-in catalog.
func Default() *Catalog {
	c, err := Parse(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) List() []Disease {
	return append([]Disease(nil), c.diseases...)
}

func (c *Catalog) Treatments(diseaseID string) []Treatment {
	return append([]Treatment{}, c.treatments[diseaseID]...)
}

// Lookup finds the entry for a diagnosed disease. Names match
// case-insensitively, either exactly or when the diagnosis contains the
// common name ("Tomato Early Blight").
func (c *Catalog) Lookup(crop models.CropType, diseaseName string) (Entry, bool) {
	name := strings.ToLower(strings.TrimSpace(diseaseName))
	if name == "" {
		return Entry{}, false
	}
	var partial *Disease
	for i := range c.diseases {
		d := &c.diseases[i]
		if !strings.EqualFold(string(d.CropType), string(crop)) {
			continue
		}
		common := strings.ToLower(d.CommonName)
		if name == common || name == strings.ToLower(d.ScientificName) {
			return c.entry(*d), true
		}
		if partial == nil && strings.Contains(name, common) {
			partial = d
		}
	}
	if partial != nil {
		return c.entry(*partial), true
	}
	return Entry{}, false
}

func (c *Catalog) entry(d Disease) Entry {
	return Entry{Disease: d, Treatments: c.Treatments(d.ID)}
}
