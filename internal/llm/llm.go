package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider is the interface for the classification oracle.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

const defaultTemperature = 0.3

// OllamaProvider is a local Ollama LLM provider.
type OllamaProvider struct {
	Model       string
	BaseURL     string
	Temperature float64
	client      *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string) *OllamaProvider {
	return &OllamaProvider{
		Model:       model,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Temperature: defaultTemperature,
		client:      &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	log.Printf("Ollama model %q not found", o.Model)
	return false
}

// Generate sends a prompt to Ollama and returns the response.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": o.Temperature,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return strings.TrimSpace(result.Message.Content), nil
}

// OpenAIProvider talks to an OpenAI-compatible chat-completions endpoint:
// api.openai.com, or a local server such as LM Studio.
type OpenAIProvider struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	client      *http.Client
}

// DefaultOpenAIURL is the hosted OpenAI API base URL.
const DefaultOpenAIURL = "https://api.openai.com/v1"

// NewOpenAIProvider creates a new OpenAI-compatible provider. An empty
// baseURL means the hosted OpenAI API.
func NewOpenAIProvider(model, baseURL, apiKeyEnv string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	var key string
	if apiKeyEnv != "" {
		key = os.Getenv(apiKeyEnv)
	}
	return &OpenAIProvider{
		Model:       model,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      key,
		Temperature: defaultTemperature,
		client:      &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OpenAIProvider) hosted() bool {
	return strings.HasPrefix(o.BaseURL, DefaultOpenAIURL)
}

// IsConfigured reports whether the endpoint can be used. The hosted API
// needs a key; a local server has to answer the model listing.
func (o *OpenAIProvider) IsConfigured() bool {
	if o.hosted() {
		return o.APIKey != ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	o.authorize(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (o *OpenAIProvider) authorize(req *http.Request) {
	if o.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.APIKey)
	}
}

// Generate sends a prompt to the chat-completions endpoint and returns the
// first choice's content.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if o.hosted() && o.APIKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  maxTokens,
		"temperature": o.Temperature,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	o.authorize(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completions error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat completions response")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// Options selects and parameterizes a provider.
type Options struct {
	Provider    string
	Model       string
	BaseURL     string
	OllamaURL   string
	APIKeyEnv   string
	Temperature float64
}

// CreateProvider creates an oracle provider based on configuration. Ollama
// falls back to the OpenAI-compatible endpoint when it is not reachable.
// Returns nil when nothing is available.
func CreateProvider(opts Options) Provider {
	if strings.ToLower(opts.Provider) == "ollama" {
		p := NewOllamaProvider(opts.Model, opts.OllamaURL)
		p.Temperature = opts.Temperature
		if p.IsConfigured() {
			log.Printf("Using Ollama with model: %s", opts.Model)
			return p
		}
		log.Println("Ollama not available, trying OpenAI-compatible fallback...")
	}

	p := NewOpenAIProvider(opts.Model, opts.BaseURL, opts.APIKeyEnv)
	p.Temperature = opts.Temperature
	if p.IsConfigured() {
		log.Printf("Using %s with model: %s", p.BaseURL, opts.Model)
		return p
	}

	log.Printf("No oracle available. Check that %s is running or set %s.", p.BaseURL, opts.APIKeyEnv)
	return nil
}
