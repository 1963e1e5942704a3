package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// geminiClient implements Client for the Google Gemini API.
type geminiClient struct {
	cfg  Config
	http *http.Client
	base string
}

func newGeminiClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", ErrNotConfigured)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	base := "https://generativelanguage.googleapis.com/v1beta"
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &geminiClient{
		cfg:  cfg,
		base: base,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *geminiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	gReq := geminiRequest{
		GenerationConfig: &geminiGenConfig{
			MaxOutputTokens: pick(req.MaxTokens, c.cfg.MaxTokens),
			Temperature:     pick(req.Temperature, c.cfg.Temperature),
		},
	}
	if req.System != "" {
		gReq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, m := range req.Messages {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		gReq.Contents = append(gReq.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.base, url.PathEscape(c.cfg.Model))
	status, body, err := postJSON(ctx, c.http, endpoint, http.Header{"X-Goog-Api-Key": {c.cfg.APIKey}}, gReq)
	if err != nil {
		return nil, err
	}

	var gResp geminiResponse
	decodeErr := json.Unmarshal(body, &gResp)
	switch {
	case gResp.Error != nil:
		return nil, &APIError{Provider: Gemini, Status: pick(gResp.Error.Code, status), Message: gResp.Error.Message}
	case !success(status):
		return nil, &APIError{Provider: Gemini, Status: status, Message: http.StatusText(status)}
	case decodeErr != nil:
		return nil, fmt.Errorf("unmarshal response: %w", decodeErr)
	}

	if len(gResp.Candidates) == 0 || len(gResp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range gResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	return &Response{
		Content:      sb.String(),
		FinishReason: gResp.Candidates[0].FinishReason,
		TokensIn:     gResp.UsageMetadata.PromptTokenCount,
		TokensOut:    gResp.UsageMetadata.CandidatesTokenCount,
		Model:        c.cfg.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (c *geminiClient) Provider() Provider { return Gemini }
func (c *geminiClient) Close() error       { return nil }
