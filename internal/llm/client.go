package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Usage carries token counts for cost accounting. Both counts are surfaced
// on success and, when the provider returned them, on failure too.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Result is the text payload plus usage of one completed call.
type Result struct {
	Text  string
	Usage Usage
}

// Cost converts usage into USD at the configured per-million-token rates.
func Cost(u Usage) float64 {
	return float64(u.InputTokens)/1e6*0.15 + float64(u.OutputTokens)/1e6*0.60
}

// Client talks to an OpenAI-compatible chat-completions endpoint. All calls
// run through a circuit breaker; an open breaker surfaces as an ordinary
// error so callers take their normal fallback path.
type Client struct {
	BaseURL     string
	APIKey      string
	ChatModel   string
	VisionModel string

	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(baseURL, apiKey, chatModel, visionModel string, timeout time.Duration) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		ChatModel:   chatModel,
		VisionModel: visionModel,
		http:        &http.Client{Timeout: timeout},
		breaker:     breaker,
	}
}

// --- Request/Response Structures ---

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string        `json:"type"` // text | image_url
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"` // json_object
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a system+user prompt and requests a strict JSON object
// response.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Result, error) {
	req := chatRequest{
		Model: c.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	return c.call(ctx, req)
}

// AnalyzeImage sends an image URL with instructions and requests a JSON
// object response describing the image.
func (c *Client) AnalyzeImage(ctx context.Context, imageURL, instructions string) (*Result, error) {
	req := chatRequest{
		Model: c.VisionModel,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: instructions},
					{Type: "image_url", ImageURL: &imageURLPart{URL: imageURL}},
				},
			},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		MaxTokens:      500,
	}
	return c.call(ctx, req)
}

func (c *Client) call(ctx context.Context, req chatRequest) (*Result, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doCall(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Result), nil
}

func (c *Client) doCall(ctx context.Context, req chatRequest) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("llm response decode failed: %w", err)
	}

	usage := Usage{
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}

	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("llm returned %d: %s", resp.StatusCode, msg)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("llm returned no choices")
	}

	return &Result{Text: parsed.Choices[0].Message.Content, Usage: usage}, nil
}
