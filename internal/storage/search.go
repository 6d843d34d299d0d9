package storage

import (
	"os"
	"path/filepath"
	"strings"
)

// Search finds folders and images whose name contains query.
func Search(basePath, query string, maxResults int) ([]*FileEntry, error) {
	query = strings.ToLower(query)
	var results []*FileEntry

	err := filepath.Walk(basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if len(results) >= maxResults {
			return filepath.SkipAll
		}
		if strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == basePath || (!info.IsDir() && !IsImageFile(info.Name())) {
			return nil
		}
		if strings.Contains(strings.ToLower(info.Name()), query) {
			rel, _ := filepath.Rel(basePath, path)
			fe := &FileEntry{
				Name:  info.Name(),
				Path:  rel,
				IsDir: info.IsDir(),
			}
			if !info.IsDir() {
				fe.Size = info.Size()
				_, serr := os.Stat(SidecarPath(path))
				fe.HasCaption = serr == nil
			}
			results = append(results, fe)
		}
		return nil
	})
	return results, err
}

// ScannedImage is an image found by Scan together with its caption.
type ScannedImage struct {
	Path string // relative to the scanned base
	Text string
}

// Scan walks a folder below basePath and returns every image in it, with
// the text of its caption sidecar.
func Scan(basePath, relativePath string, recursive bool) ([]ScannedImage, error) {
	root, err := Resolve(basePath, relativePath)
	if err != nil {
		return nil, err
	}
	absBase, _ := filepath.Abs(basePath)

	var images []ScannedImage
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !IsImageFile(d.Name()) {
			return nil
		}
		text, err := ReadSidecar(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(absBase, path)
		images = append(images, ScannedImage{Path: rel, Text: text})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}
