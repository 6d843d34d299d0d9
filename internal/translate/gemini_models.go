package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// GeminiModel describes a Gemini model that can translate text.
type GeminiModel struct {
	ID          string `json:"id"` // e.g. "gemini-2.5-flash"
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// GeminiModels lists the text models of the Gemini API, caching the
// answer for an hour. A stale list is served when the API is unreachable.
type GeminiModels struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	key     string
	models  []GeminiModel
	fetched time.Time
}

func NewGeminiModels() *GeminiModels {
	return &GeminiModels{
		baseURL:    geminiAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GeminiModels) List(ctx context.Context, apiKey string) ([]GeminiModel, error) {
	if apiKey == "" {
		return []GeminiModel{}, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.key == apiKey && len(g.models) > 0 && time.Since(g.fetched) < time.Hour {
		return append([]GeminiModel(nil), g.models...), nil
	}

	models, err := g.fetch(ctx, apiKey)
	if err != nil {
		if g.key == apiKey && len(g.models) > 0 {
			return append([]GeminiModel(nil), g.models...), nil
		}
		return nil, err
	}
	g.key, g.models, g.fetched = apiKey, models, time.Now()
	return append([]GeminiModel(nil), models...), nil
}

func (g *GeminiModels) fetch(ctx context.Context, apiKey string) ([]GeminiModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?pageSize=100", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini models: status %d", resp.StatusCode)
	}

	var apiResp struct {
		Models []struct {
			Name                       string   `json:"name"` // "models/gemini-2.5-flash"
			DisplayName                string   `json:"displayName"`
			Description                string   `json:"description"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("parse gemini models: %w", err)
	}

	seen := make(map[string]bool)
	models := []GeminiModel{}
	for _, m := range apiResp.Models {
		id := strings.TrimPrefix(m.Name, "models/")
		if !strings.HasPrefix(id, "gemini-") || strings.Contains(id, "embedding") || seen[id] {
			continue
		}
		if !supports(m.SupportedGenerationMethods, "generateContent") {
			continue
		}
		seen[id] = true
		models = append(models, GeminiModel{ID: id, DisplayName: m.DisplayName, Description: m.Description})
	}

	// newest first
	sort.Slice(models, func(i, j int) bool { return models[i].ID > models[j].ID })
	return models, nil
}

func supports(methods []string, want string) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}
