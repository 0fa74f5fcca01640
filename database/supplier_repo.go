package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vidos-entegrasyon/core"
)

func (s *Store) CreateSupplierSource(ctx context.Context, src core.SupplierSource) (int64, error) {
	if src.Kind == "" {
		src.Kind = core.SourceXML
	}
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO supplier_sources (user_id, name, url, kind, priority, active, use_random_barcode)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		src.UserID, src.Name, src.URL, string(src.Kind), src.Priority, boolToInt(src.Active), boolToInt(src.UseRandomBarcode))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const sourceColumns = `id, user_id, name, url, kind, priority, active, use_random_barcode, last_cached_at`

func scanSource(row interface{ Scan(...any) error }) (core.SupplierSource, error) {
	var src core.SupplierSource
	var kind string
	var active, random int
	var cached sql.NullTime
	if err := row.Scan(&src.ID, &src.UserID, &src.Name, &src.URL, &kind, &src.Priority, &active, &random, &cached); err != nil {
		return src, err
	}
	src.Kind = core.SourceKind(kind)
	src.Active = active == 1
	src.UseRandomBarcode = random == 1
	src.LastCachedAt = cached.Time
	return src, nil
}

func (s *Store) SupplierSource(ctx context.Context, userID, id int64) (core.SupplierSource, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM supplier_sources WHERE user_id = ? AND id = ?`, userID, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return src, core.ErrNotFound
	}
	return src, err
}

// ActiveSupplierSources: öncelik sırasına göre (küçük sayı önce)
func (s *Store) ActiveSupplierSources(ctx context.Context, userID int64) ([]core.SupplierSource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM supplier_sources
		WHERE user_id = ? AND active = 1 ORDER BY priority, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.SupplierSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// ReplaceSupplierRecords, kaynağın önbelleğini tek transaction içinde yeniler.
func (s *Store) ReplaceSupplierRecords(ctx context.Context, sourceID int64, records []core.SupplierRecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM supplier_records WHERE source_id = ?`, sourceID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO supplier_records (source_id, barcode, parent_barcode, stock_code, product_code, model_code,
			title, description, brand, category, top_category, price, quantity, vat_rate, desi, color, size, images, link)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range records {
			_, err := stmt.ExecContext(ctx, sourceID, r.Barcode, r.ParentBarcode, r.StockCode, r.ProductCode, r.ModelCode,
				r.Title, r.Description, r.Brand, r.Category, r.TopCategory, r.Price, r.Quantity, r.VatRate,
				r.Desi, r.Color, r.Size, joinImages(r.Images), r.Link)
			if err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE supplier_sources SET last_cached_at = ? WHERE id = ?`, time.Now().UTC(), sourceID)
		return err
	})
}

func (s *Store) SupplierRecords(ctx context.Context, sourceID int64) ([]core.SupplierRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT barcode, parent_barcode, stock_code, product_code, model_code, title, description, brand, category,
		top_category, price, quantity, vat_rate, desi, color, size, images, link
	FROM supplier_records WHERE source_id = ? ORDER BY id`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.SupplierRecord
	for rows.Next() {
		var r core.SupplierRecord
		var images string
		if err := rows.Scan(&r.Barcode, &r.ParentBarcode, &r.StockCode, &r.ProductCode, &r.ModelCode, &r.Title,
			&r.Description, &r.Brand, &r.Category, &r.TopCategory, &r.Price, &r.Quantity, &r.VatRate,
			&r.Desi, &r.Color, &r.Size, &images, &r.Link); err != nil {
			return nil, err
		}
		r.Images = splitImages(images)
		out = append(out, r)
	}
	return out, rows.Err()
}
