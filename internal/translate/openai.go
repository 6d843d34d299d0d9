package translate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Provider is an OpenAI-compatible chat completion endpoint
type Provider struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	BaseURL      string   `json:"base_url"`
	DefaultModel string   `json:"default_model"`
	Models       []string `json:"models"`
}

// Providers lists the built-in OpenAI-compatible providers
var Providers = map[string]Provider{
	"siliconflow": {
		Name:         "siliconflow",
		DisplayName:  "SiliconFlow",
		BaseURL:      "https://api.siliconflow.cn/v1",
		DefaultModel: "Qwen/Qwen2.5-72B-Instruct",
		Models: []string{
			"Qwen/Qwen2.5-72B-Instruct",
			"Qwen/Qwen3-VL-8B-Instruct",
			"Qwen/Qwen3-VL-32B-Instruct",
			"Qwen/Qwen2.5-VL-72B-Instruct",
		},
	},
	"modelscope": {
		Name:         "modelscope",
		DisplayName:  "ModelScope",
		BaseURL:      "https://api-inference.modelscope.cn/v1",
		DefaultModel: "Qwen/Qwen2.5-72B-Instruct",
		Models: []string{
			"Qwen/Qwen2.5-72B-Instruct",
			"Qwen/Qwen3-VL-8B-Instruct",
			"Qwen/Qwen3-VL-30B-A3B-Instruct",
			"Qwen/Qwen2.5-VL-72B-Instruct",
		},
	},
	"tuzi": {
		Name:         "tuzi",
		DisplayName:  "Tuzi API",
		BaseURL:      "https://api.tu-zi.com/v1",
		DefaultModel: "gpt-4o-mini",
		Models:       []string{"gpt-4o", "chatgpt-4o-latest", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"},
	},
	"openai": {
		Name:         "openai",
		DisplayName:  "OpenAI",
		BaseURL:      "https://api.openai.com/v1",
		DefaultModel: openai.GPT4oMini,
		Models:       []string{openai.GPT4oMini, openai.GPT4o},
	},
}

// retryDelay is the pause before the single retry of a transient failure
var retryDelay = 3 * time.Second

// OpenAITranslator translates captions through any OpenAI-compatible chat API
type OpenAITranslator struct {
	name          string
	client        *openai.Client
	defaultModel  string
	modelResolver ModelResolver
}

// ModelResolver returns the currently configured model, "" for the default
type ModelResolver func() string

// NewOpenAITranslator creates a translator for an OpenAI-compatible endpoint.
// An empty baseURL uses the built-in provider of the same name.
func NewOpenAITranslator(name, baseURL, apiKey, defaultModel string, modelResolver ModelResolver) *OpenAITranslator {
	if p, ok := Providers[name]; ok {
		if baseURL == "" {
			baseURL = p.BaseURL
		}
		if defaultModel == "" {
			defaultModel = p.DefaultModel
		}
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}

	return &OpenAITranslator{
		name:          name,
		client:        openai.NewClientWithConfig(cfg),
		defaultModel:  defaultModel,
		modelResolver: modelResolver,
	}
}

func (o *OpenAITranslator) Name() string {
	return o.name
}

func (o *OpenAITranslator) model(opts Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	if o.modelResolver != nil {
		if m := o.modelResolver(); m != "" {
			return m
		}
	}
	return o.defaultModel
}

func (o *OpenAITranslator) Translate(ctx context.Context, text string, opts Options) (string, error) {
	model := o.model(opts)
	if model == "" {
		return "", fmt.Errorf("%s: no model configured", o.name)
	}

	systemPrompt := GetSystemPrompt(opts.SourceLang, opts.TargetLang)
	if opts.Instructions != "" {
		systemPrompt += "\n\nUser instructions: " + opts.Instructions
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.3,
		MaxTokens:   1024,
	}

	log.Printf("[translate] %s request: model=%s target=%s len=%d", o.name, model, opts.TargetLang, len([]rune(text)))
	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil && isTransientError(err) {
		log.Printf("[translate] %s failed (%v), retrying after %s", o.name, err, retryDelay)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(retryDelay):
		}
		resp, err = o.client.CreateChatCompletion(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("%s API request: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty %s response", o.name)
	}

	log.Printf("[translate] %s done in %.2fs", o.name, time.Since(start).Seconds())
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// isTransientError reports whether a failed call is worth one retry:
// rate limiting, upstream 5xx and network timeouts.
func isTransientError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
