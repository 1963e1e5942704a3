package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// ollamaClient implements Client for a local Ollama server.
type ollamaClient struct {
	cfg  Config
	http *http.Client
	base string
}

func newOllamaClient(cfg Config) (Client, error) {
	base := "http://localhost:11434"
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	return &ollamaClient{
		cfg:  cfg,
		base: base,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

func (c *ollamaClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	payload := ollamaRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Options: &ollamaOptions{
			Temperature: pick(req.Temperature, c.cfg.Temperature),
			NumPredict:  pick(req.MaxTokens, c.cfg.MaxTokens),
		},
	}
	status, body, err := postJSON(ctx, c.http, c.base+"/api/chat", nil, payload)
	if err != nil {
		return nil, err
	}

	var oResp ollamaResponse
	_ = json.Unmarshal(body, &oResp)
	if !success(status) {
		msg := oResp.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &APIError{Provider: Ollama, Status: status, Message: msg}
	}
	if strings.TrimSpace(oResp.Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Content:      oResp.Message.Content,
		FinishReason: oResp.DoneReason,
		TokensIn:     oResp.PromptEvalCount,
		TokensOut:    oResp.EvalCount,
		Model:        c.cfg.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (c *ollamaClient) Provider() Provider { return Ollama }
func (c *ollamaClient) Close() error       { return nil }
