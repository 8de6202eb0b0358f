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
)

// OllamaProvider talks to a local Ollama server. It has no credential and
// no web search; Search requests are answered from the model alone.
type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llava:latest"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
	Format   any         `json:"format,omitempty"`
}

type ollamaMsg struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Error   string    `json:"error,omitempty"`
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) CheckCredential() error {
	if strings.TrimSpace(p.BaseURL) == "" {
		return errors.New("ollama: base url is required")
	}
	return nil
}

func (p *OllamaProvider) Generate(ctx context.Context, in Request) (*Response, error) {
	if p.Client == nil {
		return nil, errors.New("ollama: http client is nil")
	}

	msgs := make([]ollamaMsg, 0, len(in.History)+2)
	if in.System != "" {
		msgs = append(msgs, ollamaMsg{Role: "system", Content: in.System})
	}
	for _, m := range in.History {
		msgs = append(msgs, ollamaMsg{Role: m.Role, Content: m.Content})
	}
	last := ollamaMsg{Role: RoleUser, Content: in.Prompt}
	if in.Image != nil {
		last.Images = []string{base64.StdEncoding.EncodeToString(in.Image.Data)}
	}
	msgs = append(msgs, last)

	reqBody := ollamaChatReq{Model: p.Model, Messages: msgs}
	if in.Schema != nil {
		reqBody.Format = in.Schema.JSONSchema()
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/chat", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, &StatusError{Provider: p.Name(), Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != "" {
		return nil, errors.New(decoded.Error)
	}
	return &Response{Text: decoded.Message.Content}, nil
}
