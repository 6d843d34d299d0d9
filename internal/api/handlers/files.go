package handlers

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/captionsync/backend/internal/storage"
)

type FilesHandler struct {
	imagePath string
}

func NewFilesHandler(imagePath string) *FilesHandler {
	return &FilesHandler{imagePath: imagePath}
}

// GetTree lists a folder of the image library. ?depth= descends into
// sub-folders.
func (h *FilesHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	path := extractPath(r)
	if path == "" {
		path = "."
	}
	depth, _ := strconv.Atoi(r.URL.Query().Get("depth"))
	if depth > 3 {
		depth = 3
	}

	tree, err := storage.BuildTree(h.imagePath, path, depth)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrPermission):
			jsonError(w, "path outside the image folder", http.StatusForbidden)
		case errors.Is(err, os.ErrNotExist):
			jsonError(w, "folder not found", http.StatusNotFound)
		default:
			jsonError(w, "failed to list directory", http.StatusInternalServerError)
		}
		return
	}

	jsonResponse(w, map[string]interface{}{
		"path":    path,
		"entries": tree.Children,
	}, http.StatusOK)
}

func (h *FilesHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		jsonError(w, "query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	results, err := storage.Search(h.imagePath, q, 50)
	if err != nil {
		jsonError(w, "search failed", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []*storage.FileEntry{}
	}

	jsonResponse(w, map[string]interface{}{
		"query":   q,
		"results": results,
	}, http.StatusOK)
}
