package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/captionsync/backend/internal/db"
	"github.com/captionsync/backend/internal/db/models"
)

type TemplatesHandler struct {
	database *db.Database
}

func NewTemplatesHandler(database *db.Database) *TemplatesHandler {
	return &TemplatesHandler{database: database}
}

type templateRequest struct {
	Name         string `json:"name"`
	Mode         string `json:"mode"`
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
}

// validate checks the request and defaults its mode to image.
func (req *templateRequest) validate() string {
	if req.Name == "" || (req.SystemPrompt == "" && req.UserPrompt == "") {
		return "name and a prompt are required"
	}
	if req.Mode == "" {
		req.Mode = models.KindImage
	}
	if req.Mode != models.KindImage && req.Mode != models.KindPair {
		return "mode must be image or pair"
	}
	return ""
}

// ListTemplates returns all saved prompt templates
func (h *TemplatesHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.database.ListTemplates()
	if err != nil {
		jsonError(w, "failed to list templates: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, templates, http.StatusOK)
}

// CreateTemplate saves a new prompt template
func (h *TemplatesHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}

	id, err := h.database.CreateTemplate(models.Template{
		Name:         req.Name,
		Mode:         req.Mode,
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
	})
	if err != nil {
		jsonError(w, "failed to create template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"id":   id,
		"name": req.Name,
	}, http.StatusCreated)
}

// UpdateTemplate updates an existing prompt template
func (h *TemplatesHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid template ID", http.StatusBadRequest)
		return
	}

	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}

	err = h.database.UpdateTemplate(models.Template{
		ID:           id,
		Name:         req.Name,
		Mode:         req.Mode,
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
	})
	if errors.Is(err, db.ErrNotFound) {
		jsonError(w, "template not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to update template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"id":   id,
		"name": req.Name,
	}, http.StatusOK)
}

// DeleteTemplate removes a saved prompt template
func (h *TemplatesHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid template ID", http.StatusBadRequest)
		return
	}

	if err := h.database.DeleteTemplate(id); err != nil {
		jsonError(w, "failed to delete template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
