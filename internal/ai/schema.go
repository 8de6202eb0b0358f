package ai

import (
	"strings"

	"github.com/suPer8Hu/agroguard/internal/models"
	"google.golang.org/genai"
)

// Schema is a provider-neutral description of a structured reply. It converts
// to Gemini's schema type and to plain JSON Schema.
type Schema struct {
	Type        string
	Description string
	Properties  map[string]*Schema
	Order       []string
	Required    []string
	Enum        []string
	Items       *Schema
}

const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

func (s *Schema) toGenAI() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:             genai.Type(strings.ToUpper(s.Type)),
		Description:      s.Description,
		Required:         s.Required,
		Enum:             s.Enum,
		PropertyOrdering: s.Order,
		Items:            s.Items.toGenAI(),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = v.toGenAI()
		}
	}
	return out
}

// JSONSchema renders s as a JSON Schema document.
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{"type": s.Type}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for k, v := range s.Properties {
			props[k] = v.JSONSchema()
		}
		out["properties"] = props
		out["additionalProperties"] = false
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

func str(desc string) *Schema { return &Schema{Type: TypeString, Description: desc} }
func num(desc string) *Schema { return &Schema{Type: TypeNumber, Description: desc} }

func enum(desc string, values []string) *Schema {
	return &Schema{Type: TypeString, Description: desc, Enum: values}
}

var diagnosisSchema = &Schema{
	Type: TypeObject,
	Properties: map[string]*Schema{
		"crop_type":           enum("Tomato, Potato, Corn, Rice, or Unknown", models.StringValues(models.CropTypes)),
		"disease_name":        str("Common name of the disease or 'Healthy'"),
		"scientific_name":     str("Scientific name of the pathogen"),
		"confidence_score":    num("Confidence score from 0 to 100"),
		"severity_level":      enum("Mild, Moderate, or Severe", models.StringValues(models.SeverityLevels)),
		"description":         str("Short summary of detection"),
		"suggested_solutions": {Type: TypeArray, Description: "Practical remediation steps, most important first", Items: str("")},
	},
	Order:    []string{"crop_type", "disease_name", "scientific_name", "confidence_score", "severity_level", "description", "suggested_solutions"},
	Required: []string{"crop_type", "disease_name", "confidence_score", "severity_level", "description"},
}

var forecastSchema = &Schema{
	Type: TypeObject,
	Properties: map[string]*Schema{
		"forecast": {
			Type: TypeArray,
			Items: &Schema{
				Type: TypeObject,
				Properties: map[string]*Schema{
					"day":         str("Day label, e.g. Mon"),
					"condition":   str("Short condition, e.g. Light rain"),
					"high_c":      num("High temperature in Celsius"),
					"low_c":       num("Low temperature in Celsius"),
					"rain_chance": num("Chance of rain in percent"),
				},
				Order:    []string{"day", "condition", "high_c", "low_c", "rain_chance"},
				Required: []string{"day", "condition", "high_c", "low_c"},
			},
		},
		"alert": str("One-sentence farming alert, empty when none"),
	},
	Order:    []string{"forecast", "alert"},
	Required: []string{"forecast"},
}

var marketSchema = &Schema{
	Type: TypeObject,
	Properties: map[string]*Schema{
		"prices": {
			Type: TypeArray,
			Items: &Schema{
				Type: TypeObject,
				Properties: map[string]*Schema{
					"crop":           str("Commodity name"),
					"price":          num("Latest price per unit"),
					"unit":           str("Unit, e.g. kg"),
					"currency":       str("ISO currency code"),
					"trend":          enum("Price direction over the last weeks", []string{"up", "down", "stable"}),
					"source_summary": str("One-line note on the source of the estimate"),
				},
				Order:    []string{"crop", "price", "unit", "currency", "trend", "source_summary"},
				Required: []string{"crop", "price", "unit", "trend"},
			},
		},
	},
	Required: []string{"prices"},
}
