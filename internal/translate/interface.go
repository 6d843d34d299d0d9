package translate

import "context"

// Options configures a single translation call
type Options struct {
	SourceLang   string `json:"source_lang"` // "" lets the engine detect it
	TargetLang   string `json:"target_lang"` // "zh", "en"
	Model        string `json:"model"`
	Instructions string `json:"instructions,omitempty"` // appended to the system prompt
}

// Translator is the common interface for all translation engines
type Translator interface {
	// Translate translates one piece of caption text
	Translate(ctx context.Context, text string, opts Options) (string, error)
	// Name returns the engine name
	Name() string
}

// Request is a translation request as accepted by POST /api/translate
type Request struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
	ModelID    string `json:"model_id"`
	Provider   string `json:"provider"`
}

// Response carries either the translation or the reason it failed
type Response struct {
	Success    bool   `json:"success"`
	Translated string `json:"translated,omitempty"`
	Message    string `json:"message,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
}
