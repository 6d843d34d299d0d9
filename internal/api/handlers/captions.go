package handlers

import (
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/captionsync/backend/internal/db"
	"github.com/captionsync/backend/internal/db/models"
	"github.com/captionsync/backend/internal/storage"
	"github.com/captionsync/backend/internal/translate"
)

type CaptionsHandler struct {
	database   *db.Database
	translator *translate.Service
	imagePath  string
	targetLang string
}

func NewCaptionsHandler(database *db.Database, translator *translate.Service, imagePath, targetLang string) *CaptionsHandler {
	return &CaptionsHandler{
		database:   database,
		translator: translator,
		imagePath:  imagePath,
		targetLang: targetLang,
	}
}

type captionRequest struct {
	Kind           string  `json:"kind"`
	ImagePath      string  `json:"image_path"`
	PairPath       string  `json:"pair_path"`
	Text           *string `json:"text"`
	TranslatedText *string `json:"translated_text"`
	TargetLang     string  `json:"target_lang"`
}

// ListCaptions returns all captions, optionally filtered by ?kind=
func (h *CaptionsHandler) ListCaptions(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	captions, err := h.database.ListCaptions(kind)
	if err != nil {
		jsonError(w, "failed to list captions: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, captions, http.StatusOK)
}

func (h *CaptionsHandler) GetCaption(w http.ResponseWriter, r *http.Request) {
	c, err := h.database.GetCaption(chi.URLParam(r, "id"))
	if err != nil {
		captionError(w, err)
		return
	}
	jsonResponse(w, c, http.StatusOK)
}

// CreateCaption adds an image or image-pair caption
func (h *CaptionsHandler) CreateCaption(w http.ResponseWriter, r *http.Request) {
	var req captionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		req.Kind = models.KindImage
	}
	if req.Kind != models.KindImage && req.Kind != models.KindPair {
		jsonError(w, "kind must be image or pair", http.StatusBadRequest)
		return
	}
	if req.ImagePath == "" {
		jsonError(w, "image_path is required", http.StatusBadRequest)
		return
	}
	if req.Kind == models.KindPair && req.PairPath == "" {
		jsonError(w, "pair_path is required for a pair caption", http.StatusBadRequest)
		return
	}

	c := &models.Caption{
		Kind:       req.Kind,
		ImagePath:  req.ImagePath,
		PairPath:   req.PairPath,
		TargetLang: req.TargetLang,
	}
	if c.TargetLang == "" {
		c.TargetLang = h.targetLang
	}
	if req.Text != nil {
		c.Text = strings.TrimSpace(*req.Text)
	} else if c.Kind == models.KindImage {
		c.Text = h.sidecarText(c.ImagePath)
	}
	if req.TranslatedText != nil {
		c.TranslatedText = strings.TrimSpace(*req.TranslatedText)
	}

	if err := h.database.CreateCaption(c); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			jsonError(w, "a caption for this image already exists", http.StatusConflict)
			return
		}
		jsonError(w, "failed to create caption: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, c, http.StatusCreated)
}

// UpdateCaption replaces the texts of a caption. Image captions are also
// written to their sidecar file.
func (h *CaptionsHandler) UpdateCaption(w http.ResponseWriter, r *http.Request) {
	c, err := h.database.GetCaption(chi.URLParam(r, "id"))
	if err != nil {
		captionError(w, err)
		return
	}

	var req captionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	textChanged := false
	if req.Text != nil {
		text := strings.TrimSpace(*req.Text)
		textChanged = text != c.Text
		c.Text = text
	}
	if req.TranslatedText != nil {
		c.TranslatedText = strings.TrimSpace(*req.TranslatedText)
	}
	if req.TargetLang != "" {
		c.TargetLang = req.TargetLang
	}

	if err := h.database.UpdateCaption(c); err != nil {
		captionError(w, err)
		return
	}
	if textChanged {
		h.writeSidecar(c)
	}
	jsonResponse(w, c, http.StatusOK)
}

func (h *CaptionsHandler) DeleteCaption(w http.ResponseWriter, r *http.Request) {
	if err := h.database.DeleteCaption(chi.URLParam(r, "id")); err != nil {
		captionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportFolder creates a caption for every image of a folder, reading the
// text from the .txt sidecars. Captions already imported keep their
// translation unless the sidecar text changed.
func (h *CaptionsHandler) ImportFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path       string `json:"path"`
		Recursive  bool   `json:"recursive"`
		TargetLang string `json:"target_lang"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TargetLang == "" {
		req.TargetLang = h.targetLang
	}

	images, err := storage.Scan(h.imagePath, req.Path, req.Recursive)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			jsonError(w, "path outside the image folder", http.StatusForbidden)
			return
		}
		jsonError(w, "failed to scan folder: "+err.Error(), http.StatusBadRequest)
		return
	}

	captions := make([]*models.Caption, 0, len(images))
	for _, img := range images {
		c, err := h.database.UpsertCaptionByPath(&models.Caption{
			Kind:       models.KindImage,
			ImagePath:  img.Path,
			Text:       img.Text,
			TargetLang: req.TargetLang,
		})
		if err != nil {
			jsonError(w, "failed to import "+img.Path+": "+err.Error(), http.StatusInternalServerError)
			return
		}
		captions = append(captions, c)
	}
	log.Printf("[captions] imported %d images from %q", len(captions), req.Path)

	jsonResponse(w, map[string]interface{}{
		"imported": len(captions),
		"captions": captions,
	}, http.StatusOK)
}

// TranslateCaption runs the initial whole-caption translation and stores it
func (h *CaptionsHandler) TranslateCaption(w http.ResponseWriter, r *http.Request) {
	c, err := h.database.GetCaption(chi.URLParam(r, "id"))
	if err != nil {
		captionError(w, err)
		return
	}

	var req struct {
		Provider   string `json:"provider"`
		Model      string `json:"model"`
		TargetLang string `json:"target_lang"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TargetLang != "" {
		c.TargetLang = req.TargetLang
	}

	if err := h.translator.TranslateCaption(r.Context(), c, req.Provider, req.Model); err != nil {
		switch {
		case errors.Is(err, translate.ErrEmptyText):
			jsonError(w, "caption has no text to translate", http.StatusBadRequest)
		case errors.Is(err, translate.ErrUnknownEngine):
			jsonError(w, err.Error(), http.StatusBadRequest)
		default:
			jsonError(w, err.Error(), http.StatusBadGateway)
		}
		return
	}
	if err := h.database.UpdateCaption(c); err != nil {
		captionError(w, err)
		return
	}
	jsonResponse(w, c, http.StatusOK)
}

// History returns the sync history of a caption
func (h *CaptionsHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.database.ListSyncRecords(chi.URLParam(r, "id"), limit)
	if err != nil {
		jsonError(w, "failed to load history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, records, http.StatusOK)
}

func (h *CaptionsHandler) sidecarText(imagePath string) string {
	path, err := storage.Resolve(h.imagePath, imagePath)
	if err != nil {
		return ""
	}
	text, err := storage.ReadSidecar(path)
	if err != nil {
		log.Printf("[captions] %v", err)
	}
	return text
}

func (h *CaptionsHandler) writeSidecar(c *models.Caption) {
	if c.Kind != models.KindImage || h.imagePath == "" {
		return
	}
	path, err := storage.Resolve(h.imagePath, c.ImagePath)
	if err == nil {
		err = storage.WriteSidecar(path, c.Text)
	}
	if err != nil {
		log.Printf("[captions] sidecar for %s: %v", c.ID, err)
	}
}

func captionError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		jsonError(w, "caption not found", http.StatusNotFound)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}
