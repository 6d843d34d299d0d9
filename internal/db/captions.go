package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/captionsync/backend/internal/db/models"
)

const captionColumns = "id, kind, image_path, pair_path, text, translated_text, target_lang, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCaption(row rowScanner) (*models.Caption, error) {
	c := &models.Caption{}
	err := row.Scan(&c.ID, &c.Kind, &c.ImagePath, &c.PairPath, &c.Text, &c.TranslatedText,
		&c.TargetLang, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCaption inserts a caption, assigning an id when it has none.
func (d *Database) CreateCaption(c *models.Caption) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Kind == "" {
		c.Kind = models.KindImage
	}
	if c.TargetLang == "" {
		c.TargetLang = "zh"
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := d.db.Exec(`
		INSERT INTO captions (`+captionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Kind, c.ImagePath, c.PairPath, c.Text, c.TranslatedText, c.TargetLang, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert caption: %w", err)
	}
	return nil
}

// UpsertCaptionByPath creates or refreshes the caption stored for an image
// (or image pair). The translation is kept when the source text is unchanged.
func (d *Database) UpsertCaptionByPath(c *models.Caption) (*models.Caption, error) {
	existing, err := scanCaption(d.db.QueryRow(
		"SELECT "+captionColumns+" FROM captions WHERE image_path = ? AND pair_path = ?",
		c.ImagePath, c.PairPath,
	))
	if err != nil {
		if err = notFound(err); err != ErrNotFound {
			return nil, err
		}
		if err := d.CreateCaption(c); err != nil {
			return nil, err
		}
		return c, nil
	}
	if strings.TrimSpace(existing.Text) == strings.TrimSpace(c.Text) {
		return existing, nil
	}
	existing.Text = c.Text
	existing.TranslatedText = ""
	if err := d.UpdateCaption(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// GetCaption returns a caption by id.
func (d *Database) GetCaption(id string) (*models.Caption, error) {
	c, err := scanCaption(d.db.QueryRow("SELECT "+captionColumns+" FROM captions WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// ListCaptions returns captions of the given kind ("" for all), most
// recently updated first.
func (d *Database) ListCaptions(kind string) ([]*models.Caption, error) {
	query := "SELECT " + captionColumns + " FROM captions"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY updated_at DESC, image_path ASC"

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	captions := []*models.Caption{}
	for rows.Next() {
		c, err := scanCaption(rows)
		if err != nil {
			return nil, err
		}
		captions = append(captions, c)
	}
	return captions, rows.Err()
}

// UpdateCaption saves both texts and the target language of a caption.
func (d *Database) UpdateCaption(c *models.Caption) error {
	c.UpdatedAt = time.Now()
	res, err := d.db.Exec(`
		UPDATE captions SET text = ?, translated_text = ?, target_lang = ?, updated_at = ?
		WHERE id = ?`,
		c.Text, c.TranslatedText, c.TargetLang, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update caption: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveCaptionTexts updates the flattened source and target texts of a caption.
func (d *Database) SaveCaptionTexts(id, text, translated string) error {
	res, err := d.db.Exec(
		"UPDATE captions SET text = ?, translated_text = ?, updated_at = ? WHERE id = ?",
		text, translated, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("save caption texts: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCaption removes a caption and its sync history.
func (d *Database) DeleteCaption(id string) error {
	res, err := d.db.Exec("DELETE FROM captions WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = d.db.Exec("DELETE FROM sync_history WHERE caption_id = ?", id)
	return err
}
