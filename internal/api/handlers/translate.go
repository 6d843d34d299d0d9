package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/captionsync/backend/internal/translate"
)

type TranslateHandler struct {
	service   *translate.Service
	settings  translate.Settings
	geminiKey string // configured key, used when the settings hold none
	gemini    *translate.GeminiModels
}

func NewTranslateHandler(service *translate.Service, settings translate.Settings, geminiKey string) *TranslateHandler {
	return &TranslateHandler{
		service:   service,
		settings:  settings,
		geminiKey: geminiKey,
		gemini:    translate.NewGeminiModels(),
	}
}

// Translate translates a single text. The body of every reply is a
// translate.Response.
func (h *TranslateHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var req translate.Request
	if err := decodeJSON(r, &req); err != nil {
		jsonResponse(w, translate.Response{Message: "invalid request body"}, http.StatusBadRequest)
		return
	}

	out, cached, err := h.service.Translate(r.Context(), req)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, translate.ErrEmptyText) || errors.Is(err, translate.ErrUnknownEngine) {
			status = http.StatusBadRequest
		}
		jsonResponse(w, translate.Response{Message: err.Error()}, status)
		return
	}
	jsonResponse(w, translate.Response{Success: true, Translated: out, Cached: cached}, http.StatusOK)
}

// ListProviders returns the configured engines and the built-in
// OpenAI-compatible providers with their models
func (h *TranslateHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers := make([]translate.Provider, 0, len(translate.Providers))
	for _, p := range translate.Providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Name < providers[j].Name })

	jsonResponse(w, map[string]interface{}{
		"default":   h.service.Default(),
		"engines":   h.service.Engines(),
		"providers": providers,
	}, http.StatusOK)
}

// GeminiModels lists the Gemini models usable for translation. Without a
// Gemini API key the list is empty.
func (h *TranslateHandler) GeminiModels(w http.ResponseWriter, r *http.Request) {
	key := h.geminiKey
	if h.settings != nil {
		key = h.settings.GetSetting(translate.APIKeySetting("gemini"), key)
	}
	models, err := h.gemini.List(r.Context(), key)
	if err != nil {
		jsonError(w, "failed to fetch Gemini models: "+err.Error(), http.StatusBadGateway)
		return
	}
	jsonResponse(w, models, http.StatusOK)
}
