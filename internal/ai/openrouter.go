package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/agroguard/internal/models"
)

type OpenRouterProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	Client  *http.Client
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openRouterPart struct {
	Type     string              `json:"type"`
	Text     string              `json:"text,omitempty"`
	ImageURL *openRouterImageURL `json:"image_url,omitempty"`
}

type openRouterImageURL struct {
	URL string `json:"url"`
}

type openRouterFormat struct {
	Type       string               `json:"type"`
	JSONSchema openRouterJSONSchema `json:"json_schema"`
}

type openRouterJSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type openRouterPlugin struct {
	ID         string `json:"id"`
	MaxResults int    `json:"max_results,omitempty"`
}

type openRouterChatReq struct {
	Model          string             `json:"model"`
	Messages       []openRouterMsg    `json:"messages"`
	Stream         bool               `json:"stream"`
	ResponseFormat *openRouterFormat  `json:"response_format,omitempty"`
	Plugins        []openRouterPlugin `json:"plugins,omitempty"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message struct {
			Content     string `json:"content"`
			Annotations []struct {
				Type        string `json:"type"`
				URLCitation struct {
					URL   string `json:"url"`
					Title string `json:"title"`
				} `json:"url_citation"`
			} `json:"annotations"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *OpenRouterProvider) Name() string { return "openrouter" }

func (p *OpenRouterProvider) CheckCredential() error {
	if strings.TrimSpace(p.APIKey) == "" {
		return errors.New("openrouter: api key is required")
	}
	return nil
}

func (p *OpenRouterProvider) Generate(ctx context.Context, in Request) (*Response, error) {
	if p.Client == nil {
		return nil, errors.New("openrouter: http client is nil")
	}
	if err := p.CheckCredential(); err != nil {
		return nil, err
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return nil, errors.New("openrouter: model is required")
	}

	reqBody := openRouterChatReq{Model: model, Messages: openRouterMessages(in)}
	if in.Schema != nil {
		reqBody.ResponseFormat = &openRouterFormat{
			Type:       "json_schema",
			JSONSchema: openRouterJSONSchema{Name: "result", Schema: in.Schema.JSONSchema()},
		}
	}
	if in.Search {
		reqBody.Plugins = []openRouterPlugin{{ID: "web", MaxResults: 5}}
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		req.Header.Set("X-Title", p.AppName)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, &StatusError{Provider: p.Name(), Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var decoded openRouterChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("openrouter: empty response")
	}

	msg := decoded.Choices[0].Message
	out := &Response{Text: msg.Content}
	for _, a := range msg.Annotations {
		if a.Type != "url_citation" {
			continue
		}
		out.Links = append(out.Links, models.Link{Title: a.URLCitation.Title, URI: a.URLCitation.URL})
	}
	return out, nil
}

func openRouterMessages(in Request) []openRouterMsg {
	out := make([]openRouterMsg, 0, len(in.History)+2)
	if in.System != "" {
		out = append(out, openRouterMsg{Role: "system", Content: in.System})
	}
	for _, m := range in.History {
		out = append(out, openRouterMsg{Role: m.Role, Content: m.Content})
	}
	if in.Image == nil {
		return append(out, openRouterMsg{Role: RoleUser, Content: in.Prompt})
	}
	dataURL := "data:" + in.Image.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(in.Image.Data)
	return append(out, openRouterMsg{Role: RoleUser, Content: []openRouterPart{
		{Type: "text", Text: in.Prompt},
		{Type: "image_url", ImageURL: &openRouterImageURL{URL: dataURL}},
	}})
}
