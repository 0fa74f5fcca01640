package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"vidos-entegrasyon/core"
)

// SaveBatchLog: iş kaydını ekler ya da günceller (durum, sayaçlar, loglar).
// Kayıttaki sürümden büyük olmayan sürümler yok sayılır.
func (s *Store) SaveBatchLog(ctx context.Context, b core.BatchLog) error {
	logs, err := json.Marshal(b.Logs)
	if err != nil {
		return err
	}
	if b.Logs == nil {
		logs = []byte("[]")
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO batch_logs (id, user_id, marketplace, job_type, status, product_count, success_count, fail_count,
		error, logs, version, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		product_count = excluded.product_count,
		success_count = excluded.success_count,
		fail_count = excluded.fail_count,
		error = excluded.error,
		logs = excluded.logs,
		version = excluded.version,
		updated_at = excluded.updated_at
	WHERE excluded.version > batch_logs.version;`,
		b.ID, b.UserID, b.Marketplace, b.JobType, string(b.Status), b.ProductCount, b.SuccessCount, b.FailCount,
		b.Error, string(logs), b.Version, b.CreatedAt.UTC(), now)
	return err
}

const batchColumns = `id, user_id, marketplace, job_type, status, product_count, success_count, fail_count,
	error, logs, version, created_at, updated_at`

func scanBatchLog(row interface{ Scan(...any) error }) (core.BatchLog, error) {
	var b core.BatchLog
	var status, logs string
	var created, updated sql.NullTime
	if err := row.Scan(&b.ID, &b.UserID, &b.Marketplace, &b.JobType, &status, &b.ProductCount, &b.SuccessCount,
		&b.FailCount, &b.Error, &logs, &b.Version, &created, &updated); err != nil {
		return b, err
	}
	b.Status = core.JobStatus(status)
	b.CreatedAt = created.Time
	b.UpdatedAt = updated.Time
	if err := json.Unmarshal([]byte(logs), &b.Logs); err != nil {
		return b, err
	}
	return b, nil
}

func (s *Store) BatchLog(ctx context.Context, id string) (core.BatchLog, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batch_logs WHERE id = ?`, id)
	b, err := scanBatchLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return b, core.ErrNotFound
	}
	return b, err
}

// RecentBatchLogs: kullanıcının en yeni işleri (limit <= 0 ise 50)
func (s *Store) RecentBatchLogs(ctx context.Context, userID int64, limit int) ([]core.BatchLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+batchColumns+` FROM batch_logs
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.BatchLog
	for rows.Next() {
		b, err := scanBatchLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
