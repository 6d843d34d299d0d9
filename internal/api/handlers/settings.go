package handlers

import (
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/captionsync/backend/internal/db"
	"github.com/captionsync/backend/internal/translate"
)

const secretMask = "••••••••"

type SettingDef struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Group       string `json:"group"`
	Placeholder string `json:"placeholder"`
	Secret      bool   `json:"secret"`
}

// settingDefs lists the editable settings: the default engine, then a key
// and a model for every engine.
func settingDefs() []SettingDef {
	defs := []SettingDef{
		{Key: translate.SettingDefaultProvider, Label: "Default Provider", Group: "translation", Placeholder: "siliconflow"},
	}

	providers := make([]translate.Provider, 0, len(translate.Providers))
	for _, p := range translate.Providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Name < providers[j].Name })
	for _, p := range providers {
		defs = append(defs,
			SettingDef{Key: translate.APIKeySetting(p.Name), Label: p.DisplayName + " API Key", Group: p.Name, Placeholder: "sk-...", Secret: true},
			SettingDef{Key: translate.ModelSetting(p.Name), Label: p.DisplayName + " Model", Group: p.Name, Placeholder: p.DefaultModel},
		)
	}

	return append(defs,
		SettingDef{Key: translate.APIKeySetting("gemini"), Label: "Gemini API Key", Group: "gemini", Placeholder: "AIza...", Secret: true},
		SettingDef{Key: translate.ModelSetting("gemini"), Label: "Gemini Model", Group: "gemini", Placeholder: "gemini-2.0-flash"},
		SettingDef{Key: translate.APIKeySetting("deepl"), Label: "DeepL API Key", Group: "deepl", Placeholder: "xxxxxxxx-xxxx-...", Secret: true},
	)
}

type SettingsHandler struct {
	database *db.Database
	defs     []SettingDef
	onChange func()
}

// NewSettingsHandler creates the handler. onChange, if set, runs after
// settings were saved.
func NewSettingsHandler(database *db.Database, onChange func()) *SettingsHandler {
	return &SettingsHandler{database: database, defs: settingDefs(), onChange: onChange}
}

// GetSettings returns all settings (secrets are masked)
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.database.GetAllSettings()
	if err != nil {
		jsonError(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	type SettingResponse struct {
		SettingDef
		Value    string `json:"value"`
		HasValue bool   `json:"has_value"`
	}

	result := make([]SettingResponse, 0, len(h.defs))
	for _, def := range h.defs {
		val := all[def.Key]
		hasValue := val != ""
		if def.Secret && hasValue {
			val = maskSecret(val)
		}
		result = append(result, SettingResponse{
			SettingDef: def,
			Value:      val,
			HasValue:   hasValue,
		})
	}

	jsonResponse(w, result, http.StatusOK)
}

// UpdateSettings saves settings from the request body. Unknown keys and
// masked values are ignored; an empty value clears the setting.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := decodeJSON(r, &updates); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	allowed := make(map[string]bool)
	for _, def := range h.defs {
		allowed[def.Key] = true
	}

	changed := 0
	for key, value := range updates {
		if !allowed[key] || strings.HasPrefix(value, secretMask) {
			continue
		}
		if err := h.database.SetSetting(key, strings.TrimSpace(value)); err != nil {
			jsonError(w, "failed to save setting: "+key, http.StatusInternalServerError)
			return
		}
		changed++
	}

	if changed > 0 && h.onChange != nil {
		log.Printf("[settings] %d settings updated", changed)
		h.onChange()
	}
	w.WriteHeader(http.StatusNoContent)
}

// maskSecret shows only the last 4 characters of a secret
func maskSecret(val string) string {
	if len(val) > 4 {
		return secretMask + val[len(val)-4:]
	}
	return secretMask
}
