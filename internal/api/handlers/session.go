package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/captionsync/backend/internal/caption/align"
	"github.com/captionsync/backend/internal/caption/surface"
	"github.com/captionsync/backend/internal/caption/syncer"
	"github.com/captionsync/backend/internal/db"
	"github.com/captionsync/backend/internal/i18n"
	"github.com/captionsync/backend/internal/session"
)

type SessionHandler struct {
	manager *session.Manager
	catalog *i18n.Catalog
}

func NewSessionHandler(manager *session.Manager, catalog *i18n.Catalog) *SessionHandler {
	return &SessionHandler{manager: manager, catalog: catalog}
}

type editResponse struct {
	Report surface.Report `json:"report"`
	State  session.State  `json:"state"`
}

// Open makes a caption the active session
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CaptionID string `json:"caption_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.CaptionID == "" {
		jsonError(w, "caption_id is required", http.StatusBadRequest)
		return
	}
	s, err := h.manager.Open(req.CaptionID)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	jsonResponse(w, s.State(), http.StatusOK)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get()
	if err != nil {
		h.sessionError(w, err)
		return
	}
	jsonResponse(w, s.State(), http.StatusOK)
}

func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(); err != nil {
		h.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Edit applies an edit-surface event
func (h *SessionHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var ev surface.Event
	if err := decodeJSON(r, &ev); err != nil {
		jsonError(w, "invalid edit event", http.StatusBadRequest)
		return
	}
	h.edit(w, func(s *session.Session) (surface.Report, error) { return s.Edit(ev) })
}

// EditText applies a whole edited translation typed as plain text
func (h *SessionHandler) EditText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.edit(w, func(s *session.Session) (surface.Report, error) { return s.EditText(req.Text) })
}

func (h *SessionHandler) CompositionStart(w http.ResponseWriter, r *http.Request) {
	h.edit(w, func(s *session.Session) (surface.Report, error) {
		return surface.Report{Mode: surface.ModeSuppressed}, s.BeginComposition()
	})
}

func (h *SessionHandler) CompositionEnd(w http.ResponseWriter, r *http.Request) {
	var ev surface.Event
	if err := decodeJSON(r, &ev); err != nil {
		jsonError(w, "invalid edit event", http.StatusBadRequest)
		return
	}
	h.edit(w, func(s *session.Session) (surface.Report, error) { return s.EndComposition(ev) })
}

func (h *SessionHandler) edit(w http.ResponseWriter, fn func(*session.Session) (surface.Report, error)) {
	s, err := h.manager.Get()
	if err != nil {
		h.sessionError(w, err)
		return
	}
	rep, err := fn(s)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	jsonResponse(w, editResponse{Report: rep, State: s.State()}, http.StatusOK)
}

// Sync reconciles all unsynced edits into the source caption
func (h *SessionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get()
	if err != nil {
		h.sessionError(w, err)
		return
	}
	out, err := s.Sync(r.Context())
	h.syncResponse(w, out, err)
}

// SyncSentence syncs the sentence at {index}
func (h *SessionHandler) SyncSentence(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "invalid sentence index", http.StatusBadRequest)
		return
	}
	s, err := h.manager.Get()
	if err != nil {
		h.sessionError(w, err)
		return
	}
	out, err := s.SyncSentence(r.Context(), index)
	h.syncResponse(w, out, err)
}

// SyncWhole translates the whole caption in one call and realigns it
func (h *SessionHandler) SyncWhole(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get()
	if err != nil {
		h.sessionError(w, err)
		return
	}
	out, err := s.SyncWhole(r.Context())
	h.syncResponse(w, out, err)
}

// Reset discards unsynced edits
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get()
	if err != nil {
		h.sessionError(w, err)
		return
	}
	if err := s.Reset(); err != nil {
		h.sessionError(w, err)
		return
	}
	jsonResponse(w, s.State(), http.StatusOK)
}

// DeleteUnit removes the sentence at {index} from both sides
func (h *SessionHandler) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "invalid sentence index", http.StatusBadRequest)
		return
	}
	s, err := h.manager.Get()
	if err != nil {
		h.sessionError(w, err)
		return
	}
	if err := s.DeleteUnit(index); err != nil {
		h.sessionError(w, err)
		return
	}
	jsonResponse(w, s.State(), http.StatusOK)
}

// Payload returns the incremental view of unsynced edits
func (h *SessionHandler) Payload(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get()
	if err != nil {
		h.sessionError(w, err)
		return
	}
	jsonResponse(w, s.Payload(), http.StatusOK)
}

// syncResponse writes a sync outcome. A translation failure still carries
// the partial result.
func (h *SessionHandler) syncResponse(w http.ResponseWriter, out session.Outcome, err error) {
	var terr *syncer.TranslationError
	switch {
	case err == nil:
		jsonResponse(w, out, http.StatusOK)
	case errors.As(err, &terr):
		jsonResponse(w, out, http.StatusBadGateway)
	default:
		h.sessionError(w, err)
	}
}

func (h *SessionHandler) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, db.ErrNotFound):
		jsonError(w, "caption not found", http.StatusNotFound)
	case errors.Is(err, session.ErrNotTranslated):
		jsonError(w, "caption has no translation yet, translate it first", http.StatusConflict)
	case errors.Is(err, session.ErrBusy):
		jsonError(w, h.catalog.T("A sync is already in progress"), http.StatusConflict)
	case errors.Is(err, align.ErrIndexOutOfRange):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, syncer.ErrEmptySentence):
		jsonError(w, h.catalog.T("Sentence is empty"), http.StatusBadRequest)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}
