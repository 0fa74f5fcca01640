package database

import (
	"context"
	"database/sql"
	"errors"
)

func (s *Store) GetSetting(ctx context.Context, userID int64, key, def string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE user_id = ? AND key = ?`, userID, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return val, nil
}

func (s *Store) SetSetting(ctx context.Context, userID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO settings (user_id, key, value) VALUES (?, ?, ?)
	ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`, userID, key, value)
	return err
}

// Settings, kullanıcının verilen önekle başlayan tüm ayarlarını döner. Boş önek hepsini getirir.
func (s *Store) Settings(ctx context.Context, userID int64, prefix string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE user_id = ? AND key LIKE ? || '%'`, userID, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
