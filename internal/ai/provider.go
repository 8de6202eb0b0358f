package ai

import (
	"context"
	"fmt"

	"github.com/suPer8Hu/agroguard/internal/models"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Image struct {
	MIMEType string
	Data     []byte
}

// Request is one call to the external service. Schema asks for structured
// JSON output; Search enables the provider's live web lookup tool.
type Request struct {
	System  string
	History []Message
	Prompt  string
	Image   *Image
	Schema  *Schema
	Search  bool
}

// Response carries the raw reply text and any citation metadata.
type Response struct {
	Text  string
	Links []models.Link
}

type Provider interface {
	Name() string
	// CheckCredential reports whether the provider is configured to
	// authenticate. It never touches the network.
	CheckCredential() error
	Generate(ctx context.Context, req Request) (*Response, error)
}

// StatusError is a non-2xx reply from a provider API.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Message)
}
