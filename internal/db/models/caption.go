package models

import "time"

// Caption kinds.
const (
	KindImage = "image"
	KindPair  = "pair"
)

// Caption is the caption of one image, or of an image pair used for
// edit-style training. Text holds the source-language caption and
// TranslatedText its translation with " / " between sentences.
type Caption struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"` // image, pair
	ImagePath      string    `json:"image_path"`
	PairPath       string    `json:"pair_path,omitempty"`
	Text           string    `json:"text"`
	TranslatedText string    `json:"translated_text"`
	TargetLang     string    `json:"target_lang"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Template is a saved captioning prompt.
type Template struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Mode         string `json:"mode"` // image, pair
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
	CreatedAt    string `json:"created_at"`
}

// SyncRecord is one entry of a caption's sync history.
type SyncRecord struct {
	ID        int64     `json:"id"`
	CaptionID string    `json:"caption_id"`
	Mode      string    `json:"mode"` // reconcile, sentence, whole
	Synced    int       `json:"synced"`
	Deleted   int       `json:"deleted"`
	Inserted  int       `json:"inserted"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
