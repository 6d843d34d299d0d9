package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/captionsync/backend/internal/caption/align"
	"github.com/captionsync/backend/internal/caption/segment"
	"github.com/captionsync/backend/internal/caption/surface"
	"github.com/captionsync/backend/internal/caption/syncer"
	"github.com/captionsync/backend/internal/db/models"
	"github.com/captionsync/backend/internal/events"
)

// Sync history modes.
const (
	ModeReconcile = "reconcile"
	ModeSentence  = "sentence"
	ModeWhole     = "whole"
	ModeDelete    = "delete"
)

const outOfStepMsg = "Source and translation are out of step, so source sentences may move to other positions when the caption is reopened. Sync the whole caption to realign"

// Session is one open caption. Its methods are safe for concurrent use;
// edits and syncs are serialized, and any of them started while a sync is
// running fails with ErrBusy.
type Session struct {
	m *Manager

	mu       sync.Mutex
	caption  models.Caption
	store    *align.Store
	source   []string
	observer *surface.Observer
	engine   *syncer.Engine

	syncing atomic.Bool
	syncs   atomic.Uint64 // sync passes started
}

// State is the JSON view of a session.
type State struct {
	CaptionID  string           `json:"caption_id"`
	Kind       string           `json:"kind"`
	ImagePath  string           `json:"image_path"`
	PairPath   string           `json:"pair_path,omitempty"`
	TargetLang string           `json:"target_lang"`
	SourceText string           `json:"source_text"`
	TargetText string           `json:"target_text"`
	Source     []string         `json:"source"`
	Units      []align.UnitView `json:"units"`
	Regions    []align.Region   `json:"regions"`
	HTML       string           `json:"html"`
	Pending    []string         `json:"pending"`
	Dirty      []int            `json:"dirty"`
	Aligned    bool             `json:"aligned"`
	Gate       string           `json:"gate"`
	Busy       bool             `json:"busy"`
}

// Outcome is what a sync call reports back.
type Outcome struct {
	Result  syncer.Result `json:"result"`
	Summary string        `json:"summary"`
	Warning string        `json:"warning,omitempty"`
	Error   string        `json:"error,omitempty"`
	State   State         `json:"state"`
}

// Update is a dirty sentence in the incremental payload.
type Update struct {
	Index      int    `json:"index"`
	NewContent string `json:"new_content"`
}

// Payload is the incremental view of unsynced edits.
type Payload struct {
	FullText string   `json:"full_text"`
	Updates  []Update `json:"updates"`
}

func newSession(m *Manager, c *models.Caption) *Session {
	s := &Session{m: m, caption: *c, store: align.NewStore()}
	s.store.Initialize(c.TranslatedText)
	s.source = segment.Split(c.Text, segment.Source)
	s.observer = surface.NewObserver(s.store)
	s.engine = syncer.New(s.store, s.observer, m.translate)
	if len(s.source) != s.store.Len() {
		log.Printf("[session] caption %s: %d source sentences, %d translated", c.ID, len(s.source), s.store.Len())
	}
	return s
}

// Busy reports whether a sync is running.
func (s *Session) Busy() bool {
	return s.syncing.Load()
}

// Caption returns the caption as last persisted by this session.
func (s *Session) Caption() models.Caption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caption
}

// State returns a snapshot of the session. It waits for a running sync.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() State {
	units := s.store.Units()
	regions := align.MarkerRenderer{}.Render(units)
	dirty := s.store.DirtyIndices()
	if dirty == nil {
		dirty = []int{}
	}
	pending := s.observer.Pending()
	if pending == nil {
		pending = []string{}
	}
	return State{
		CaptionID:  s.caption.ID,
		Kind:       s.caption.Kind,
		ImagePath:  s.caption.ImagePath,
		PairPath:   s.caption.PairPath,
		TargetLang: s.caption.TargetLang,
		SourceText: segment.Join(s.source, segment.Source),
		TargetText: s.store.Flatten(),
		Source:     append([]string{}, s.source...),
		Units:      s.store.Views(),
		Regions:    regions,
		HTML:       align.RenderHTML(regions),
		Pending:    pending,
		Dirty:      dirty,
		Aligned:    len(s.source) == s.store.Len(),
		Gate:       s.observer.GateState().String(),
		Busy:       s.Busy(),
	}
}

// lockEdit takes the session lock for an edit. It fails with ErrBusy when a
// sync is running or started while the edit waited for the lock.
func (s *Session) lockEdit() error {
	gen := s.syncs.Load()
	if s.Busy() {
		return ErrBusy
	}
	s.mu.Lock()
	if s.syncing.Load() || s.syncs.Load() != gen {
		s.mu.Unlock()
		return ErrBusy
	}
	return nil
}

// edit runs fn under the session lock unless a sync is running.
func (s *Session) edit(fn func()) error {
	if err := s.lockEdit(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	fn()
	return nil
}

// Edit applies an edit-surface event.
func (s *Session) Edit(ev surface.Event) (surface.Report, error) {
	var rep surface.Report
	err := s.edit(func() { rep = s.observer.Observe(ev) })
	return rep, err
}

// EditText applies a whole edited translation typed as plain text.
func (s *Session) EditText(target string) (surface.Report, error) {
	var rep surface.Report
	err := s.edit(func() { rep = s.observer.ObserveText(target) })
	return rep, err
}

// BeginComposition suspends edit passes while an input method composes.
func (s *Session) BeginComposition() error {
	return s.edit(s.observer.BeginComposition)
}

// EndComposition resumes edit passes and applies ev.
func (s *Session) EndComposition(ev surface.Event) (surface.Report, error) {
	var rep surface.Report
	err := s.edit(func() { rep = s.observer.EndComposition(ev) })
	return rep, err
}

// Reset discards every unsynced edit and pending insertion.
func (s *Session) Reset() error {
	return s.edit(func() {
		s.store.Reset()
		s.observer.ClearPending()
	})
}

// DeleteUnit removes a sentence from both sides without translating.
func (s *Session) DeleteUnit(index int) error {
	if err := s.lockEdit(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.store.Remove(index); err != nil {
		return err
	}
	if index < len(s.source) {
		s.source = append(s.source[:index], s.source[index+1:]...)
	}
	s.caption.Text = segment.Join(s.source, segment.Source)
	s.caption.TranslatedText = s.store.Flatten()
	s.m.persist(&s.caption, models.SyncRecord{Mode: ModeDelete, Deleted: 1})
	return nil
}

// Payload lists the dirty sentences with the full current translation.
func (s *Session) Payload() Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Payload{FullText: s.store.Flatten(), Updates: []Update{}}
	for _, idx := range s.store.DirtyIndices() {
		u, _ := s.store.Unit(idx)
		p.Updates = append(p.Updates, Update{Index: idx, NewContent: u.Current})
	}
	return p
}

// beginSync claims the session for a sync pass.
func (s *Session) beginSync() (func(), error) {
	if !s.syncing.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	s.syncs.Add(1)
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.syncing.Store(false)
	}, nil
}

// Sync reconciles every unsynced edit and pending insertion into the source
// caption. A translation failure is returned together with the partial
// outcome; the sentences synced before it stay synced.
func (s *Session) Sync(ctx context.Context) (Outcome, error) {
	done, err := s.beginSync()
	if err != nil {
		return Outcome{}, err
	}
	defer done()

	res, err := s.engine.Reconcile(ctx, s.source, s.caption.TargetLang)
	summary := s.m.catalog.SyncSummary(len(res.Synced), len(res.Deleted), len(res.Inserted))
	return s.afterPass(ModeReconcile, res, err, summary)
}

// SyncSentence translates one sentence back into the source caption.
func (s *Session) SyncSentence(ctx context.Context, index int) (Outcome, error) {
	done, err := s.beginSync()
	if err != nil {
		return Outcome{}, err
	}
	defer done()

	res, err := s.engine.SyncSentence(ctx, s.source, s.caption.TargetLang, index)
	var terr *syncer.TranslationError
	if err != nil && !errors.As(err, &terr) {
		return Outcome{Result: res, Error: err.Error(), State: s.state()}, err
	}
	return s.afterPass(ModeSentence, res, err, s.m.catalog.T("Sentence %d synced", index+1))
}

// SyncWhole translates the whole current translation back in one call and
// rebuilds alignment from the result. Pending insertions are included.
func (s *Session) SyncWhole(ctx context.Context) (Outcome, error) {
	done, err := s.beginSync()
	if err != nil {
		return Outcome{}, err
	}
	defer done()

	target := segment.Join(append(s.store.Currents(), s.observer.Pending()...), segment.Target)
	text, err := s.engine.SyncWhole(ctx, target, s.caption.TargetLang)
	if err != nil {
		var terr *syncer.TranslationError
		if !errors.As(err, &terr) {
			return Outcome{Error: err.Error(), State: s.state()}, err
		}
		res := syncer.Result{
			Source:     append([]string{}, s.source...),
			SourceText: segment.Join(s.source, segment.Source),
			TargetText: s.store.Flatten(),
			Pending:    s.observer.Pending(),
			Aligned:    len(s.source) == s.store.Len(),
		}
		return s.afterPass(ModeWhole, res, err, "")
	}

	s.source = segment.Split(text, segment.Source)
	s.store.Initialize(target)
	s.observer.ClearPending()

	res := syncer.Result{
		Source:     append([]string{}, s.source...),
		SourceText: segment.Join(s.source, segment.Source),
		TargetText: s.store.Flatten(),
		Pending:    []string{},
		Aligned:    len(s.source) == s.store.Len(),
	}
	for i := 0; i < s.store.Len(); i++ {
		res.Synced = append(res.Synced, i)
	}
	return s.afterPass(ModeWhole, res, nil, s.m.catalog.T("Synced the whole caption"))
}

// afterPass adopts a pass result, persists it and reports it.
func (s *Session) afterPass(mode string, res syncer.Result, err error, summary string) (Outcome, error) {
	s.source = append([]string{}, res.Source...)
	s.caption.Text = res.SourceText
	s.caption.TranslatedText = res.TargetText

	out := Outcome{Result: res, Summary: summary}
	rec := models.SyncRecord{
		Mode:     mode,
		Synced:   len(res.Synced),
		Deleted:  len(res.Deleted),
		Inserted: len(res.Inserted),
	}
	ev := events.Event{
		Type:      events.TypeSyncCompleted,
		CaptionID: s.caption.ID,
		Mode:      mode,
		Synced:    rec.Synced,
		Deleted:   rec.Deleted,
		Inserted:  rec.Inserted,
		Aligned:   res.Aligned,
	}
	if err != nil {
		out.Error = err.Error()
		out.Summary = s.m.catalog.T("Sync failed: %s", err.Error())
		rec.Error = err.Error()
		ev.Type = events.TypeSyncFailed
		ev.Error = err.Error()
		log.Printf("[session] %s sync of %s failed: %v", mode, s.caption.ID, err)
	}
	if !res.Aligned {
		out.Warning = s.m.catalog.T(outOfStepMsg)
	}
	ev.Summary = out.Summary

	if err != nil || res.Changes() > 0 {
		s.m.persist(&s.caption, rec)
		s.m.publish(ev)
	}
	out.State = s.state()
	return out, err
}
