package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/haivist/emma/pkg/config"
	"github.com/haivist/emma/pkg/logger"
)

const maxRetries = 3

// HTTPProvider talks the OpenAI-compatible chat completions wire format
// directly. Any endpoint speaking that dialect works (Mistral, OpenRouter,
// vLLM, ...).
type HTTPProvider struct {
	apiKey     string
	apiBase    string
	httpClient *http.Client
}

func NewHTTPProvider(apiKey, apiBase string) *HTTPProvider {
	return &HTTPProvider{
		apiKey:  apiKey,
		apiBase: apiBase,
		httpClient: &http.Client{
			Timeout: 0, // per-call deadlines come from the context
		},
	}
}

// CreateProvider builds the provider from config.
func CreateProvider(cfg *config.Config) (*HTTPProvider, error) {
	if cfg.Provider.APIBase == "" {
		return nil, fmt.Errorf("no API base configured")
	}
	return NewHTTPProvider(cfg.Provider.APIKey, cfg.Provider.APIBase), nil
}

func (p *HTTPProvider) buildRequest(ctx context.Context, messages []Message, model string, options map[string]interface{}, stream bool) (*http.Request, error) {
	requestBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}
	if maxTokens, ok := options["max_tokens"].(int); ok {
		requestBody["max_tokens"] = maxTokens
	}
	if temperature, ok := options["temperature"].(float64); ok {
		requestBody["temperature"] = temperature
	}
	if stream {
		requestBody["stream"] = true
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return req, nil
}

func (p *HTTPProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	if p.apiBase == "" {
		return nil, fmt.Errorf("API base not configured")
	}

	var body []byte
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := p.buildRequest(ctx, messages, model, options, false)
		if err != nil {
			return nil, err
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}

		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return parseResponse(body)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries {
			delay := parseRetryDelay(resp.Header.Get("Retry-After"))
			logger.WarnCF("provider", "Rate limited (429), retrying", map[string]interface{}{
				"delay":   delay.String(),
				"attempt": attempt + 1,
			})
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				continue
			}
		}

		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return nil, fmt.Errorf("API error after %d retries: %s", maxRetries, string(body))
}

// ChatStream starts a streaming generation and returns a channel of
// fragments. The channel is closed on stream end, after an Err fragment, or
// when ctx is cancelled. First-byte failures are returned directly.
func (p *HTTPProvider) ChatStream(ctx context.Context, messages []Message, model string, options map[string]interface{}) (<-chan Fragment, error) {
	if p.apiBase == "" {
		return nil, fmt.Errorf("API base not configured")
	}

	req, err := p.buildRequest(ctx, messages, model, options, true)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	out := make(chan Fragment)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}

			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue // keep-alives and unknown events are skipped
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case <-ctx.Done():
				out <- Fragment{Err: ctx.Err()}
				return
			case out <- Fragment{Text: chunk.Choices[0].Delta.Content}:
			}
		}

		if err := scanner.Err(); err != nil {
			out <- Fragment{Err: fmt.Errorf("stream read: %w", err)}
		}
	}()

	return out, nil
}

func parseResponse(body []byte) (*LLMResponse, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(apiResponse.Choices) == 0 {
		return &LLMResponse{Content: "", FinishReason: "stop"}, nil
	}

	choice := apiResponse.Choices[0]
	return &LLMResponse{
		Content:      strings.TrimSpace(choice.Message.Content),
		FinishReason: choice.FinishReason,
	}, nil
}

// parseRetryDelay extracts the retry delay from a Retry-After header.
func parseRetryDelay(retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 30 * time.Second
}
