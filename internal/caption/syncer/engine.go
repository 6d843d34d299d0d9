// Package syncer pushes edits made to a translated caption back into the
// source caption, one sentence at a time.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/captionsync/backend/internal/caption/align"
	"github.com/captionsync/backend/internal/caption/segment"
)

var (
	// ErrBusy is returned when a pass is started while another is running.
	ErrBusy = errors.New("sync already in progress")
	// ErrEmptySentence is returned when syncing a single sentence that has no content.
	ErrEmptySentence = errors.New("sentence is empty")
)

// TranslateFunc translates text into targetLang.
type TranslateFunc func(ctx context.Context, text, targetLang string) (string, error)

// PendingQueue holds text typed outside any sentence, waiting to be inserted.
type PendingQueue interface {
	Pending() []string
	SetPending([]string)
}

// Step names the reconcile step a translation failed in.
type Step string

const (
	StepModify Step = "modify"
	StepInsert Step = "insert"
	StepSingle Step = "sentence"
	StepWhole  Step = "whole"
)

// TranslationError aborts a pass. The work done before it stays committed.
type TranslationError struct {
	Step  Step
	Index int
	Err   error
}

func (e *TranslationError) Error() string {
	if e.Step == StepWhole {
		return fmt.Sprintf("translate whole caption: %v", e.Err)
	}
	return fmt.Sprintf("translate %s %d: %v", e.Step, e.Index, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// Result is the state after a pass, complete or partial.
type Result struct {
	Source     []string `json:"source"`
	SourceText string   `json:"source_text"`
	TargetText string   `json:"target_text"`
	Pending    []string `json:"pending"`
	Synced     []int    `json:"synced"`
	Deleted    []int    `json:"deleted"`
	Inserted   []int    `json:"inserted"`
	// Aligned is false when the source and target sentence counts disagreed
	// at the start of the pass.
	Aligned bool `json:"aligned"`
}

// Changes returns the number of sentences the pass touched.
func (r Result) Changes() int {
	return len(r.Synced) + len(r.Deleted) + len(r.Inserted)
}

// Opposite returns the language a caption in lang is translated back into.
func Opposite(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "zh") {
		return "en"
	}
	return "zh"
}

// Engine reconciles one alignment store with its source sentences.
type Engine struct {
	store     *align.Store
	queue     PendingQueue
	translate TranslateFunc
	// SourceLang overrides Opposite(targetLang) when set.
	SourceLang string

	busy atomic.Bool
}

// New creates an engine for store. queue supplies the pending insertions.
func New(store *align.Store, queue PendingQueue, translate TranslateFunc) *Engine {
	return &Engine{store: store, queue: queue, translate: translate}
}

// Busy reports whether a pass is running.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

func (e *Engine) sourceLang(targetLang string) string {
	if e.SourceLang != "" {
		return e.SourceLang
	}
	return Opposite(targetLang)
}

func (e *Engine) acquire() bool {
	return e.busy.CompareAndSwap(false, true)
}

func (e *Engine) release() {
	e.busy.Store(false)
}

// Reconcile syncs every dirty unit and pending insertion into source.
// Modified units are translated in ascending order, deleted units are removed
// in descending order, then pending insertions are appended. The first
// translation failure stops the pass and is returned with the partial result.
func (e *Engine) Reconcile(ctx context.Context, source []string, targetLang string) (Result, error) {
	if !e.acquire() {
		return Result{}, ErrBusy
	}
	defer e.release()

	src := append([]string(nil), source...)
	res := Result{Aligned: len(src) == e.store.Len()}
	if !res.Aligned {
		log.Printf("[sync] source has %d sentences, target has %d units", len(src), e.store.Len())
	}

	var modified, deleted []int
	for _, u := range e.store.Units() {
		if !u.Dirty() {
			continue
		}
		if u.Emptied() {
			deleted = append(deleted, u.Index)
		} else {
			modified = append(modified, u.Index)
		}
	}
	lang := e.sourceLang(targetLang)

	for _, i := range modified {
		u, _ := e.store.Unit(i)
		out, err := e.translate(ctx, strings.TrimSpace(u.Current), lang)
		if err != nil {
			log.Printf("[sync] sentence %d failed: %v", i, err)
			return e.finish(res, src), &TranslationError{Step: StepModify, Index: i, Err: err}
		}
		// a short source is padded to reach i; Join drops the padding, so
		// the flattened caption loses these positions (Aligned reports it)
		for len(src) <= i {
			src = append(src, "")
		}
		src[i] = segment.StripSeparators(out)
		e.store.CommitAt(i)
		res.Synced = append(res.Synced, i)
	}

	for k := len(deleted) - 1; k >= 0; k-- {
		i := deleted[k]
		if i < len(src) {
			src = append(src[:i], src[i+1:]...)
		}
		e.store.Remove(i)
		res.Deleted = append(res.Deleted, i)
	}

	pending := e.queue.Pending()
	for n, text := range pending {
		out, err := e.translate(ctx, text, lang)
		if err != nil {
			log.Printf("[sync] insertion %q failed: %v", text, err)
			e.queue.SetPending(pending[n:])
			return e.finish(res, src), &TranslationError{Step: StepInsert, Index: e.store.Len(), Err: err}
		}
		src = append(src, segment.StripSeparators(out))
		u := e.store.Append(text)
		res.Inserted = append(res.Inserted, u.Index)
	}
	e.queue.SetPending(nil)

	if res.Changes() > 0 {
		log.Printf("[sync] synced=%d deleted=%d inserted=%d", len(res.Synced), len(res.Deleted), len(res.Inserted))
	}
	return e.finish(res, src), nil
}

// SyncSentence translates the single unit at index into source.
func (e *Engine) SyncSentence(ctx context.Context, source []string, targetLang string, index int) (Result, error) {
	if !e.acquire() {
		return Result{}, ErrBusy
	}
	defer e.release()

	src := append([]string(nil), source...)
	res := Result{Aligned: len(src) == e.store.Len()}

	u, ok := e.store.Unit(index)
	if !ok {
		return e.finish(res, src), align.ErrIndexOutOfRange
	}
	if u.Emptied() {
		return e.finish(res, src), ErrEmptySentence
	}
	out, err := e.translate(ctx, strings.TrimSpace(u.Current), e.sourceLang(targetLang))
	if err != nil {
		return e.finish(res, src), &TranslationError{Step: StepSingle, Index: index, Err: err}
	}
	for len(src) <= index {
		src = append(src, "")
	}
	src[index] = segment.StripSeparators(out)
	e.store.CommitAt(index)
	res.Synced = []int{index}
	return e.finish(res, src), nil
}

// SyncWhole translates a whole flattened target caption in one call and
// returns the new source caption. It bypasses the store: the caller must
// re-initialize alignment before syncing sentences again.
func (e *Engine) SyncWhole(ctx context.Context, targetText, targetLang string) (string, error) {
	if !e.acquire() {
		return "", ErrBusy
	}
	defer e.release()

	targetText = strings.TrimSpace(targetText)
	if targetText == "" {
		return "", ErrEmptySentence
	}
	out, err := e.translate(ctx, targetText, e.sourceLang(targetLang))
	if err != nil {
		log.Printf("[sync] whole caption failed: %v", err)
		return "", &TranslationError{Step: StepWhole, Err: err}
	}
	return segment.StripSeparators(out), nil
}

func (e *Engine) finish(res Result, src []string) Result {
	res.Source = append([]string{}, src...)
	res.SourceText = segment.Join(src, segment.Source)
	res.TargetText = e.store.Flatten()
	res.Pending = e.queue.Pending()
	return res
}
