package job

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotRetryable is returned when retrying a job that has not failed or been cancelled.
var ErrNotRetryable = errors.New("job is not failed or cancelled")

// JobType represents the kind of job
type JobType string

const (
	JobTranslateCaptions JobType = "translate_captions"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job represents a queued task
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	Subject     string          `json:"subject"` // human readable description of what the job works on
	Params      json.RawMessage `json:"params"`
	Progress    float64         `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// TranslateParams are parameters for a batch caption translation job
type TranslateParams struct {
	CaptionIDs []string `json:"caption_ids"`
	TargetLang string   `json:"target_lang"` // "zh", "en"
	Provider   string   `json:"provider"`    // "siliconflow", "openai", "gemini", "deepl", ...
	Model      string   `json:"model"`
	Overwrite  bool     `json:"overwrite"` // re-translate captions that already have a translation
}

// TranslateResult is the output of a batch translation
type TranslateResult struct {
	Translated int      `json:"translated"`
	Skipped    int      `json:"skipped"`
	Failed     []string `json:"failed,omitempty"` // caption ids
	Duration   float64  `json:"duration"`         // seconds
}

// JobHandler processes a job. It may set job.Result before returning.
type JobHandler func(ctx context.Context, job *Job, updateProgress func(float64)) error
