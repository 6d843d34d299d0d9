package db

import (
	"github.com/captionsync/backend/internal/db/models"
)

// ListTemplates returns all saved templates ordered by creation time
func (d *Database) ListTemplates() ([]models.Template, error) {
	rows, err := d.db.Query("SELECT id, name, mode, system_prompt, user_prompt, created_at FROM templates ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []models.Template{}
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Mode, &t.SystemPrompt, &t.UserPrompt, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// GetTemplate returns a single template by ID
func (d *Database) GetTemplate(id int64) (*models.Template, error) {
	var t models.Template
	err := d.db.QueryRow(
		"SELECT id, name, mode, system_prompt, user_prompt, created_at FROM templates WHERE id = ?", id,
	).Scan(&t.ID, &t.Name, &t.Mode, &t.SystemPrompt, &t.UserPrompt, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// CreateTemplate saves a new template
func (d *Database) CreateTemplate(t models.Template) (int64, error) {
	if t.Mode == "" {
		t.Mode = models.KindImage
	}
	result, err := d.db.Exec(
		"INSERT INTO templates (name, mode, system_prompt, user_prompt) VALUES (?, ?, ?, ?)",
		t.Name, t.Mode, t.SystemPrompt, t.UserPrompt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateTemplate modifies an existing template
func (d *Database) UpdateTemplate(t models.Template) error {
	res, err := d.db.Exec(
		"UPDATE templates SET name = ?, mode = ?, system_prompt = ?, user_prompt = ? WHERE id = ?",
		t.Name, t.Mode, t.SystemPrompt, t.UserPrompt, t.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTemplate removes a saved template by ID
func (d *Database) DeleteTemplate(id int64) error {
	_, err := d.db.Exec("DELETE FROM templates WHERE id = ?", id)
	return err
}
