package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouter completions can be large, so this client waits longer than the
// Gemini one before giving up.
const openRouterTimeout = 60 * time.Second

type openRouterClient struct {
	apiKey     string
	model      string
	appName    string
	siteURL    string
	baseURL    string
	httpClient *http.Client
}

func newOpenRouterClient(cfg Config) *openRouterClient {
	return &openRouterClient{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   cfg.Model,
		appName: cfg.AppName,
		siteURL: cfg.SiteURL,
		baseURL: openRouterURL,
		httpClient: &http.Client{
			Timeout: openRouterTimeout,
		},
	}
}

func (c *openRouterClient) Provider() Provider { return ProviderOpenRouter }
func (c *openRouterClient) Enabled() bool      { return true }

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterRequest struct {
	Model          string              `json:"model"`
	Temperature    float64             `json:"temperature"`
	Messages       []openRouterMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			// Content is a plain string for most models, but some return a
			// list of content parts instead.
			Content   json.RawMessage `json:"content"`
			ToolCalls []struct {
				Function struct {
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *openRouterClient) Generate(ctx context.Context, systemPrompt string, userPayload any, temperature float64) (string, error) {
	payloadJSON, err := json.Marshal(userPayload)
	if err != nil {
		return "", fmt.Errorf("marshal user payload: %w", err)
	}

	reqBody := openRouterRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages: []openRouterMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payloadJSON)},
		},
	}
	reqBody.ResponseFormat.Type = "json_object"

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.siteURL)
	req.Header.Set("X-Title", c.appName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{Provider: ProviderOpenRouter, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{Provider: ProviderOpenRouter, Status: resp.StatusCode, Body: string(body)}
	}

	var parsed openRouterResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode openrouter response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return extractOpenRouterText(parsed)
}

// extractOpenRouterText tries each recognized response shape in order: a
// string content field, a list of content parts, and finally the arguments of
// a tool call (some models answer a JSON-mode request that way).
func extractOpenRouterText(parsed openRouterResponse) (string, error) {
	message := parsed.Choices[0].Message

	if len(message.Content) > 0 {
		var text string
		if err := json.Unmarshal(message.Content, &text); err == nil && text != "" {
			return text, nil
		}

		var parts []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(message.Content, &parts); err == nil {
			var b strings.Builder
			for _, part := range parts {
				b.WriteString(part.Text)
			}
			if b.Len() > 0 {
				return b.String(), nil
			}
		}
	}

	for _, call := range message.ToolCalls {
		if args := call.Function.Arguments; args != "" {
			return args, nil
		}
	}

	return "", ErrEmptyCompletion
}
