package db

import (
	"database/sql"
	"time"

	"github.com/captionsync/backend/internal/db/models"
)

// AddSyncRecord appends an entry to a caption's sync history.
func (d *Database) AddSyncRecord(r models.SyncRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := d.db.Exec(`
		INSERT INTO sync_history (caption_id, mode, synced, deleted, inserted, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.CaptionID, r.Mode, r.Synced, r.Deleted, r.Inserted, r.Error, r.CreatedAt,
	)
	return err
}

// ListSyncRecords returns the newest limit entries of a caption's history.
func (d *Database) ListSyncRecords(captionID string, limit int) ([]models.SyncRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query(`
		SELECT id, caption_id, mode, synced, deleted, inserted, error, created_at
		FROM sync_history WHERE caption_id = ? ORDER BY id DESC LIMIT ?`,
		captionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.SyncRecord{}
	for rows.Next() {
		var r models.SyncRecord
		if err := rows.Scan(&r.ID, &r.CaptionID, &r.Mode, &r.Synced, &r.Deleted, &r.Inserted, &r.Error, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetCachedTranslation looks up a cached translation by key.
func (d *Database) GetCachedTranslation(key string) (string, bool, error) {
	var translated string
	err := d.db.QueryRow("SELECT translated FROM translation_cache WHERE key = ?", key).Scan(&translated)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return translated, true, nil
}

// PutCachedTranslation stores a translation under key.
func (d *Database) PutCachedTranslation(key, provider, model, targetLang, translated string) error {
	_, err := d.db.Exec(`
		INSERT INTO translation_cache (key, provider, model, target_lang, translated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET translated = excluded.translated, created_at = CURRENT_TIMESTAMP`,
		key, provider, model, targetLang, translated,
	)
	return err
}

// PurgeTranslationCache deletes cache entries older than maxAge and
// returns how many were removed.
func (d *Database) PurgeTranslationCache(maxAge time.Duration) (int64, error) {
	res, err := d.db.Exec("DELETE FROM translation_cache WHERE created_at < ?", time.Now().Add(-maxAge).UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
