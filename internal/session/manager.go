// Package session keeps the caption currently being edited: its alignment
// store, source sentences, pending insertions and sync engine.
//
// Only one caption is open at a time. Opening another replaces it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/captionsync/backend/internal/caption/syncer"
	"github.com/captionsync/backend/internal/db/models"
	"github.com/captionsync/backend/internal/events"
	"github.com/captionsync/backend/internal/i18n"
	"github.com/captionsync/backend/internal/storage"
)

var (
	// ErrNoSession is returned when no caption is open.
	ErrNoSession = errors.New("no caption open")
	// ErrBusy is returned for edits and syncs made while a sync is running.
	ErrBusy = syncer.ErrBusy
	// ErrNotTranslated is returned when opening a caption without a translation.
	ErrNotTranslated = errors.New("caption has no translation yet")
)

// publishTimeout bounds event delivery after a pass.
const publishTimeout = 5 * time.Second

// Store persists captions and their sync history.
type Store interface {
	GetCaption(id string) (*models.Caption, error)
	SaveCaptionTexts(id, text, translatedText string) error
	AddSyncRecord(r models.SyncRecord) error
}

// Manager owns the active session.
type Manager struct {
	mu        sync.Mutex
	current   *Session
	store     Store
	translate syncer.TranslateFunc
	publisher events.Publisher
	catalog   *i18n.Catalog

	// ImageRoot, when set, makes every persisted source caption of an image
	// caption also go to its .txt sidecar below this folder.
	ImageRoot string
}

func NewManager(store Store, translate syncer.TranslateFunc, publisher events.Publisher, catalog *i18n.Catalog) *Manager {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &Manager{
		store:     store,
		translate: translate,
		publisher: publisher,
		catalog:   catalog,
	}
}

// Open loads a caption and makes it the active session. A caption without
// a translation fails with ErrNotTranslated.
func (m *Manager) Open(captionID string) (*Session, error) {
	c, err := m.store.GetCaption(captionID)
	if err != nil {
		return nil, fmt.Errorf("load caption: %w", err)
	}
	if strings.TrimSpace(c.TranslatedText) == "" {
		return nil, fmt.Errorf("open caption %s: %w", c.ID, ErrNotTranslated)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.Busy() {
		return nil, ErrBusy
	}

	s := newSession(m, c)
	m.current = s
	log.Printf("[session] opened caption %s (%d sentences)", c.ID, s.store.Len())
	return s, nil
}

// Get returns the active session.
func (m *Manager) Get() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNoSession
	}
	return m.current, nil
}

// Close drops the active session. Unsynced edits are discarded.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ErrNoSession
	}
	if m.current.Busy() {
		return ErrBusy
	}
	log.Printf("[session] closed caption %s", m.current.caption.ID)
	m.current = nil
	return nil
}

// persist writes the flattened texts of a caption and records the pass.
func (m *Manager) persist(c *models.Caption, rec models.SyncRecord) {
	if err := m.store.SaveCaptionTexts(c.ID, c.Text, c.TranslatedText); err != nil {
		log.Printf("[session] save caption %s: %v", c.ID, err)
	}
	if m.ImageRoot != "" && c.Kind == models.KindImage && c.ImagePath != "" {
		path, err := storage.Resolve(m.ImageRoot, c.ImagePath)
		if err == nil {
			err = storage.WriteSidecar(path, c.Text)
		}
		if err != nil {
			log.Printf("[session] sidecar for %s: %v", c.ID, err)
		}
	}
	if rec.Mode == "" {
		return
	}
	rec.CaptionID = c.ID
	if err := m.store.AddSyncRecord(rec); err != nil {
		log.Printf("[session] sync history for %s: %v", c.ID, err)
	}
}

func (m *Manager) publish(e events.Event) {
	e.At = time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := m.publisher.Publish(ctx, e); err != nil {
		log.Printf("[events] publish %s for %s: %v", e.Type, e.CaptionID, err)
	}
}
