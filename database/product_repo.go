package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vidos-entegrasyon/core"

	"github.com/shopspring/decimal"
)

const productColumns = `id, user_id, barcode, stock_code, title, brand, category, description,
	cost_price, list_price, vat_rate, quantity, images, supplier_source_id, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (core.Product, error) {
	var p core.Product
	var images string
	var updated sql.NullTime
	err := row.Scan(&p.ID, &p.UserID, &p.Barcode, &p.StockCode, &p.Title, &p.Brand, &p.Category, &p.Description,
		&p.CostPrice, &p.ListPrice, &p.VatRate, &p.Quantity, &images, &p.SupplierSourceID, &updated)
	if err != nil {
		return p, err
	}
	p.Images = splitImages(images)
	p.UpdatedAt = updated.Time
	return p, nil
}

// UpsertProduct: barkod varsa ürün bilgilerini günceller. Maliyet sıfır gelirse eski maliyet korunur.
func (s *Store) UpsertProduct(ctx context.Context, p core.Product) error {
	query := `
	INSERT INTO products (user_id, barcode, stock_code, title, brand, category, description,
		cost_price, list_price, vat_rate, quantity, images, supplier_source_id, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, barcode) WHERE barcode != '' DO UPDATE SET
		stock_code = CASE WHEN excluded.stock_code != '' THEN excluded.stock_code ELSE products.stock_code END,
		title = CASE WHEN excluded.title != '' THEN excluded.title ELSE products.title END,
		brand = CASE WHEN excluded.brand != '' THEN excluded.brand ELSE products.brand END,
		category = CASE WHEN excluded.category != '' THEN excluded.category ELSE products.category END,
		description = CASE WHEN excluded.description != '' THEN excluded.description ELSE products.description END,
		cost_price = CASE WHEN excluded.cost_price > 0 THEN excluded.cost_price ELSE products.cost_price END,
		list_price = excluded.list_price,
		vat_rate = excluded.vat_rate,
		quantity = excluded.quantity,
		images = CASE WHEN excluded.images != '' THEN excluded.images ELSE products.images END,
		supplier_source_id = CASE WHEN excluded.supplier_source_id != 0 THEN excluded.supplier_source_id ELSE products.supplier_source_id END,
		updated_at = excluded.updated_at;`

	_, err := s.db.ExecContext(ctx, query,
		p.UserID, p.Barcode, p.StockCode, p.Title, p.Brand, p.Category, p.Description,
		p.CostPrice, p.ListPrice, p.VatRate, p.Quantity, joinImages(p.Images), p.SupplierSourceID,
		time.Now().UTC(),
	)
	return err
}

func (s *Store) ProductByBarcode(ctx context.Context, userID int64, barcode string) (core.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE user_id = ? AND barcode = ?`, userID, barcode)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, core.ErrNotFound
	}
	return p, err
}

func (s *Store) ProductByStockCode(ctx context.Context, userID int64, stockCode string) (core.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE user_id = ? AND stock_code = ? ORDER BY id LIMIT 1`, userID, stockCode)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, core.ErrNotFound
	}
	return p, err
}

func (s *Store) Products(ctx context.Context, userID int64) ([]core.Product, error) {
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE user_id = ? ORDER BY id`, userID)
}

// ProductsNeedingBarcode: barkodu boş ya da 5 karakterden kısa ürünler
func (s *Store) ProductsNeedingBarcode(ctx context.Context, userID int64) ([]core.Product, error) {
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products
		WHERE user_id = ? AND (barcode = '' OR length(trim(barcode)) < 5) ORDER BY id`, userID)
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]core.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// BarcodeExists: barkod kullanıcının kataloğunda var mı
func (s *Store) BarcodeExists(ctx context.Context, userID int64, barcode string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM products WHERE user_id = ? AND barcode = ?`, userID, barcode).Scan(&n)
	return n > 0, err
}

func (s *Store) UpdateProductBarcode(ctx context.Context, id int64, barcode string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE products SET barcode = ?, updated_at = ? WHERE id = ?`, barcode, time.Now().UTC(), id)
	return err
}

func (s *Store) UpdateProductCost(ctx context.Context, userID int64, barcode string, cost decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET cost_price = ?, updated_at = ? WHERE user_id = ? AND barcode = ?`,
		cost, time.Now().UTC(), userID, barcode)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}
