package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"vidos-entegrasyon/core"

	"github.com/shopspring/decimal"
)

// UpsertOrder: sipariş yoksa kalemleriyle ekler; varsa durum ve kesintileri günceller.
// Kalemler sadece siparişte hiç kalem yokken yazılır. inserted yeni kayıt açıldığını belirtir.
func (s *Store) UpsertOrder(ctx context.Context, o core.Order) (id int64, inserted bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE user_id = ? AND marketplace = ? AND marketplace_order_id = ?`,
			o.UserID, string(o.Marketplace), o.MarketplaceOrderID).Scan(&id)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx, `
			INSERT INTO orders (user_id, marketplace, marketplace_order_id, order_number, package_id, status,
				customer_name, customer_email, customer_phone, city, district, address, order_date,
				total_price, commission, shipping_fee, service_fee, total_deductions, net_profit, admin_note)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				o.UserID, string(o.Marketplace), o.MarketplaceOrderID, o.OrderNumber, o.PackageID, o.Status,
				o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.City, o.District, o.Address, o.OrderDate.UTC(),
				o.TotalPrice, o.Commission, o.ShippingFee, o.ServiceFee, o.TotalDeductions, o.NetProfit, o.AdminNote)
			if err != nil {
				return err
			}
			if id, err = res.LastInsertId(); err != nil {
				return err
			}
			inserted = true
		case err != nil:
			return err
		default:
			_, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = ?,
				commission = CASE WHEN CAST(? AS REAL) > 0 THEN ? ELSE commission END,
				shipping_fee = CASE WHEN CAST(? AS REAL) > 0 THEN ? ELSE shipping_fee END,
				service_fee = CASE WHEN CAST(? AS REAL) > 0 THEN ? ELSE service_fee END
			WHERE id = ?`,
				o.Status, o.Commission, o.Commission, o.ShippingFee, o.ShippingFee, o.ServiceFee, o.ServiceFee, id)
			if err != nil {
				return err
			}
		}

		var itemCount int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM order_items WHERE order_id = ?`, id).Scan(&itemCount); err != nil {
			return err
		}
		if itemCount > 0 {
			return nil
		}
		for _, it := range o.Items {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, barcode, sku, product_name, quantity, unit_price, total_price, vat_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				id, it.Barcode, it.SKU, it.ProductName, it.Quantity, it.UnitPrice, it.TotalPrice, it.VatRate)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return id, inserted, err
}

const orderColumns = `id, user_id, marketplace, marketplace_order_id, order_number, package_id, status,
	customer_name, customer_email, customer_phone, city, district, address, order_date,
	total_price, commission, shipping_fee, service_fee, total_deductions, net_profit, admin_note`

func scanOrder(row interface{ Scan(...any) error }) (core.Order, error) {
	var o core.Order
	var mp string
	var date sql.NullTime
	err := row.Scan(&o.ID, &o.UserID, &mp, &o.MarketplaceOrderID, &o.OrderNumber, &o.PackageID, &o.Status,
		&o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.City, &o.District, &o.Address, &date,
		&o.TotalPrice, &o.Commission, &o.ShippingFee, &o.ServiceFee, &o.TotalDeductions, &o.NetProfit, &o.AdminNote)
	o.Marketplace = core.Marketplace(mp)
	o.OrderDate = date.Time
	return o, err
}

func (s *Store) Order(ctx context.Context, userID, id int64) (core.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = ? AND id = ?`, userID, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return o, core.ErrNotFound
	}
	if err != nil {
		return o, err
	}
	items, err := s.orderItems(ctx, []int64{o.ID})
	o.Items = items[o.ID]
	return o, err
}

// Orders: tarih aralığı opsiyonel (sıfır zaman sınır koymaz). Kalemler de yüklenir.
func (s *Store) Orders(ctx context.Context, userID int64, from, to time.Time) ([]core.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ?`
	args := []any{userID}
	if !from.IsZero() {
		query += ` AND order_date >= ?`
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		query += ` AND order_date <= ?`
		args = append(args, to.UTC())
	}
	query += ` ORDER BY order_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Order
	var ids []int64
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	items, err := s.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (s *Store) orderItems(ctx context.Context, orderIDs []int64) (map[int64][]core.OrderItem, error) {
	out := make(map[int64][]core.OrderItem)
	if len(orderIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orderIDs)), ",")
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, order_id, barcode, sku, product_name, quantity, unit_price, total_price, vat_rate
	FROM order_items WHERE order_id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it core.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Barcode, &it.SKU, &it.ProductName, &it.Quantity,
			&it.UnitPrice, &it.TotalPrice, &it.VatRate); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (s *Store) UpdateOrderProfit(ctx context.Context, id int64, deductions, net decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `UPDATE orders SET total_deductions = ?, net_profit = ? WHERE id = ?`, deductions, net, id)
	return err
}

// AppendAdminNote: mevcut notun sonuna yeni satır olarak ekler
func (s *Store) AppendAdminNote(ctx context.Context, id int64, note string) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE orders SET admin_note = CASE WHEN admin_note = '' THEN ? ELSE admin_note || char(10) || ? END
	WHERE id = ?`, note, note, id)
	return err
}
