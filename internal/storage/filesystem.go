// Package storage browses the image folders being captioned. A caption is
// kept next to its image in a sidecar file with the same base name and a
// .txt extension.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type FileEntry struct {
	Name       string       `json:"name"`
	Path       string       `json:"path"`
	IsDir      bool         `json:"is_dir"`
	Size       int64        `json:"size,omitempty"`
	HasCaption bool         `json:"has_caption,omitempty"`
	Children   []*FileEntry `json:"children,omitempty"`
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
	".bmp": true, ".gif": true,
}

func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// SidecarPath returns the caption file that belongs to an image.
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".txt"
}

// Resolve joins relativePath onto basePath and rejects paths that escape it.
func Resolve(basePath, relativePath string) (string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(filepath.Join(absBase, relativePath))
	if err != nil {
		return "", err
	}
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", os.ErrPermission
	}
	return absFull, nil
}

// ReadSidecar returns the caption stored next to imagePath, "" when there is
// none.
func ReadSidecar(imagePath string) (string, error) {
	data, err := os.ReadFile(SidecarPath(imagePath))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read caption: %w", err)
	}
	return strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff")), nil
}

// WriteSidecar stores text as the caption of imagePath.
func WriteSidecar(imagePath, text string) error {
	if err := os.WriteFile(SidecarPath(imagePath), []byte(text), 0644); err != nil {
		return fmt.Errorf("write caption: %w", err)
	}
	return nil
}

// ListDirectory lists the sub-folders and images of a folder. Caption
// sidecars are folded into their image's HasCaption flag.
func ListDirectory(basePath, relativePath string) ([]*FileEntry, error) {
	fullPath, err := Resolve(basePath, relativePath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, err
	}

	var result []*FileEntry
	for _, entry := range entries {
		// Skip hidden files
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !entry.IsDir() && !IsImageFile(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		fe := &FileEntry{
			Name:  entry.Name(),
			Path:  filepath.Join(relativePath, entry.Name()),
			IsDir: entry.IsDir(),
		}
		if !entry.IsDir() {
			fe.Size = info.Size()
			_, err := os.Stat(SidecarPath(filepath.Join(fullPath, entry.Name())))
			fe.HasCaption = err == nil
		}
		result = append(result, fe)
	}
	return result, nil
}

// BuildTree lists relativePath and descends depth levels into sub-folders.
func BuildTree(basePath, relativePath string, depth int) (*FileEntry, error) {
	entries, err := ListDirectory(basePath, relativePath)
	if err != nil {
		return nil, err
	}

	if depth > 0 {
		for _, entry := range entries {
			if !entry.IsDir {
				continue
			}
			subtree, err := BuildTree(basePath, entry.Path, depth-1)
			if err != nil {
				continue
			}
			entry.Children = subtree.Children
		}
	}

	name := filepath.Base(relativePath)
	if relativePath == "" || relativePath == "." {
		name = "root"
	}
	return &FileEntry{
		Name:     name,
		Path:     relativePath,
		IsDir:    true,
		Children: entries,
	}, nil
}
