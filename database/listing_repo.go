package database

import (
	"context"
	"database/sql"
	"time"

	"vidos-entegrasyon/core"

	"github.com/shopspring/decimal"
)

// UpsertListing: panel görüntüsünü günceller, tedarikçi sahipliği sıfır gelirse korunur.
func (s *Store) UpsertListing(ctx context.Context, l core.Listing) error {
	query := `
	INSERT INTO marketplace_listings (user_id, marketplace, barcode, stock_code, title, price, sale_price,
		quantity, status, supplier_source_id, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, marketplace, barcode) DO UPDATE SET
		stock_code = excluded.stock_code,
		title = excluded.title,
		price = excluded.price,
		sale_price = excluded.sale_price,
		quantity = excluded.quantity,
		status = excluded.status,
		supplier_source_id = CASE WHEN excluded.supplier_source_id != 0 THEN excluded.supplier_source_id ELSE marketplace_listings.supplier_source_id END,
		updated_at = excluded.updated_at;`

	_, err := s.db.ExecContext(ctx, query, l.UserID, string(l.Marketplace), l.Barcode, l.StockCode, l.Title,
		l.Price, l.SalePrice, l.Quantity, l.Status, l.SupplierSourceID, time.Now().UTC())
	return err
}

func (s *Store) Listings(ctx context.Context, userID int64, mp core.Marketplace) ([]core.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, user_id, marketplace, barcode, stock_code, title, price, sale_price, quantity, status,
		supplier_source_id, updated_at
	FROM marketplace_listings WHERE user_id = ? AND marketplace = ? ORDER BY id`, userID, string(mp))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Listing
	for rows.Next() {
		var l core.Listing
		var m string
		var updated sql.NullTime
		if err := rows.Scan(&l.ID, &l.UserID, &m, &l.Barcode, &l.StockCode, &l.Title, &l.Price, &l.SalePrice,
			&l.Quantity, &l.Status, &l.SupplierSourceID, &updated); err != nil {
			return nil, err
		}
		l.Marketplace = core.Marketplace(m)
		l.UpdatedAt = updated.Time
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListingChange: senkron planının yerel görüntüye uygulanan tek değişikliği
type ListingChange struct {
	Barcode          string
	Quantity         *int
	Price            *decimal.Decimal
	SupplierSourceID int64
}

// ApplyListingChanges, değişiklikleri tek transaction'da uygular ve etkilenen satır sayısını döner.
func (s *Store) ApplyListingChanges(ctx context.Context, userID int64, mp core.Marketplace, changes []ListingChange) (int, error) {
	affected := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, c := range changes {
			res, err := tx.ExecContext(ctx, `
			UPDATE marketplace_listings SET
				quantity = COALESCE(?, quantity),
				sale_price = COALESCE(?, sale_price),
				supplier_source_id = CASE WHEN ? != 0 THEN ? ELSE supplier_source_id END,
				updated_at = ?
			WHERE user_id = ? AND marketplace = ? AND barcode = ?`,
				nullableInt(c.Quantity), nullableDecimal(c.Price), c.SupplierSourceID, c.SupplierSourceID, now,
				userID, string(mp), c.Barcode)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			affected += int(n)
		}
		return nil
	})
	return affected, err
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableDecimal(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return v.String()
}
