// Package events publishes caption sync notifications to other services.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// Event types.
const (
	TypeSyncCompleted     = "sync.completed"
	TypeSyncFailed        = "sync.failed"
	TypeCaptionTranslated = "caption.translated"
)

// Event describes one finished sync pass or caption translation.
type Event struct {
	Type      string    `json:"type"`
	CaptionID string    `json:"caption_id"`
	Mode      string    `json:"mode,omitempty"` // reconcile, sentence, whole
	Synced    int       `json:"synced"`
	Deleted   int       `json:"deleted"`
	Inserted  int       `json:"inserted"`
	Aligned   bool      `json:"aligned"`
	Summary   string    `json:"summary,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events. Publishing failures never fail the sync that
// produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the process log.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	log.Printf("[events] %s", body)
	return nil
}

func (LogPublisher) Close() error { return nil }
