package translate

import (
	"log"
	"sort"
)

// Settings reads runtime settings; db.Database implements it
type Settings interface {
	GetSetting(key, defaultVal string) string
}

// SettingDefaultProvider names the setting that overrides the default engine
const SettingDefaultProvider = "translate_provider"

// APIKeySetting returns the settings key holding an engine's API key
func APIKeySetting(engine string) string {
	return engine + "_api_key"
}

// ModelSetting returns the settings key holding an engine's model
func ModelSetting(engine string) string {
	return engine + "_model"
}

// Configure rebuilds the engine registry. Every built-in provider, every
// custom provider and Gemini/DeepL is registered when it has an API key,
// taken from settings first and keys second. Engines without a key are
// dropped, so clearing a key in the settings disables its engine.
func (s *Service) Configure(keys map[string]string, custom []Provider, settings Settings, defaultEngine string) []string {
	key := func(name string) string {
		if settings != nil {
			if v := settings.GetSetting(APIKeySetting(name), ""); v != "" {
				return v
			}
		}
		return keys[name]
	}
	resolver := func(name string) ModelResolver {
		return func() string {
			if settings != nil {
				if m := settings.GetSetting(ModelSetting(name), ""); m != "" {
					return m
				}
			}
			s.mu.RLock()
			defer s.mu.RUnlock()
			if name == s.modelEngine {
				return s.defaultModel
			}
			return ""
		}
	}

	engines := make(map[string]Translator)
	providers := make([]Provider, 0, len(Providers)+len(custom))
	for _, p := range Providers {
		providers = append(providers, p)
	}
	providers = append(providers, custom...)
	for _, p := range providers {
		k := key(p.Name)
		if k == "" {
			continue
		}
		engines[p.Name] = NewOpenAITranslator(p.Name, p.BaseURL, k, p.DefaultModel, resolver(p.Name))
	}
	if k := key("gemini"); k != "" {
		engines["gemini"] = NewGeminiTranslator(k, resolver("gemini"))
	}
	if k := key("deepl"); k != "" {
		engines["deepl"] = NewDeepLTranslator(k)
	}

	if settings != nil {
		defaultEngine = settings.GetSetting(SettingDefaultProvider, defaultEngine)
	}

	s.mu.Lock()
	s.engines = engines
	s.defaultEngine = defaultEngine
	s.mu.Unlock()

	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	if _, ok := engines[defaultEngine]; !ok {
		log.Printf("[translate] default engine %q has no API key; configured: %v", defaultEngine, names)
	} else {
		log.Printf("[translate] engines: %v (default %s)", names, defaultEngine)
	}
	return names
}
