package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"
	"vidos-entegrasyon/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderColumnAliases: pazaryeri sipariş raporlarındaki başlıklar
var OrderColumnAliases = map[string][]string{
	"order_number":   {"sipariş numarası", "sipariş no", "siparis no", "order number", "order no", "order id"},
	"package_id":     {"paket no", "paket numarası", "package id", "package number", "kargo paket no"},
	"status":         {"sipariş durumu", "durum", "statü", "status"},
	"order_date":     {"sipariş tarihi", "tarih", "order date", "created at"},
	"customer_name":  {"alıcı", "müşteri adı", "müşteri", "alıcı adı", "customer", "customer name"},
	"customer_email": {"e-posta", "email", "e-mail", "müşteri e-posta"},
	"customer_phone": {"telefon", "telefon numarası", "phone", "gsm"},
	"city":           {"il", "şehir", "city"},
	"district":       {"ilçe", "district"},
	"address":        {"teslimat adresi", "adres", "address", "shipping address"},
	"barcode":        {"barkod", "barcode", "ean"},
	"sku":            {"stok kodu", "satıcı stok kodu", "sku", "merchant sku", "stock code"},
	"product_name":   {"ürün adı", "ürün ismi", "ürün", "product name", "product"},
	"quantity":       {"adet", "miktar", "quantity", "qty"},
	"unit_price":     {"birim fiyat", "birim fiyatı", "satış fiyatı", "unit price", "price"},
	"line_total":     {"satış tutarı", "tutar", "toplam tutar", "line total", "amount"},
	"vat_rate":       {"kdv oranı", "kdv", "vat", "vat rate"},
	"commission":     {"komisyon tutarı", "komisyon", "commission"},
	"shipping_fee":   {"kargo bedeli", "kargo ücreti", "kargo", "shipping fee", "cargo fee"},
	"service_fee":    {"hizmet bedeli", "platform hizmet bedeli", "service fee"},
}

var orderDateLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01-02-06 15:04", // excelize varsayılan tarih biçimi
	"01-02-06",
	time.RFC3339,
}

// ParseOrderDate: panel raporlarındaki tarih biçimleri, milisaniye epoch ve Excel seri numarası.
// Bölge bilgisi olmayan tarihler İstanbul saatiyle okunur.
func ParseOrderDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	loc, err := time.LoadLocation("Europe/Istanbul")
	if err != nil {
		loc = time.FixedZone("TRT", 3*60*60)
	}
	for _, layout := range orderDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 1e11 {
		return time.UnixMilli(n), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 20000 && f < 80000 {
		t := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC).Add(time.Duration(f * 24 * float64(time.Hour)))
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), true
	}
	return time.Time{}, false
}

type OrderImportResult struct {
	Orders       int
	Inserted     []int64
	Updated      int
	Items        int
	ForwardJobID string
	Errors       []core.RowError
}

type OrderService struct {
	store *database.Store
	bugz  *BugZService
	log   *zap.Logger
}

// NewOrderService: bugz nil ise yeni siparişler aktarılmaz
func NewOrderService(store *database.Store, bugz *BugZService, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{store: store, bugz: bugz, log: logger.Named("order")}
}

// ImportOrdersFromExcel, pazaryeri sipariş raporunu okur. Aynı sipariş numaralı satırlar
// tek siparişin kalemleri olur. Yeni eklenen siparişler BUG-Z ayarlıysa kuyruğa verilir.
func (s *OrderService) ImportOrdersFromExcel(ctx context.Context, userID int64, mp core.Marketplace, path string) (OrderImportResult, error) {
	headers, rows, err := utils.ReadSheet(path)
	if err != nil {
		return OrderImportResult{}, err
	}
	cols := utils.MapColumns(headers, OrderColumnAliases)
	if _, ok := cols["order_number"]; !ok {
		return OrderImportResult{}, fmt.Errorf("%w: sipariş numarası sütunu bulunamadı", core.ErrUnknownFeedFormat)
	}

	var res OrderImportResult
	var order []string
	orders := make(map[string]*core.Order)

	for i, row := range rows {
		rowNo := i + 2
		field := func(name string) string { return utils.Field(row, cols, name) }

		number := field("order_number")
		if number == "" {
			if strings.TrimSpace(strings.Join(row, "")) != "" {
				res.Errors = append(res.Errors, core.RowError{Row: rowNo, Column: "order_number", Message: "sipariş numarası boş"})
			}
			continue
		}

		item, err := orderItemFromRow(field)
		if err != nil {
			res.Errors = append(res.Errors, core.RowError{Row: rowNo, Column: "unit_price", Message: err.Error()})
			continue
		}

		o, ok := orders[number]
		if !ok {
			o = &core.Order{
				UserID:             userID,
				Marketplace:        mp,
				MarketplaceOrderID: number,
				OrderNumber:        number,
				PackageID:          field("package_id"),
				Status:             field("status"),
				CustomerName:       field("customer_name"),
				CustomerEmail:      field("customer_email"),
				CustomerPhone:      field("customer_phone"),
				City:               field("city"),
				District:           field("district"),
				Address:            field("address"),
			}
			if raw := field("order_date"); raw != "" {
				t, ok := ParseOrderDate(raw)
				if !ok {
					res.Errors = append(res.Errors, core.RowError{Row: rowNo, Column: "order_date", Message: "tarih okunamadı: " + raw})
				}
				o.OrderDate = t
			}
			orders[number] = o
			order = append(order, number)
		}

		o.Items = append(o.Items, item)
		o.TotalPrice = o.TotalPrice.Add(item.TotalPrice)
		o.Commission = o.Commission.Add(utils.StringToDecimal(field("commission")))
		o.ShippingFee = o.ShippingFee.Add(utils.StringToDecimal(field("shipping_fee")))
		o.ServiceFee = o.ServiceFee.Add(utils.StringToDecimal(field("service_fee")))
	}

	for _, number := range order {
		o := orders[number]
		id, inserted, err := s.store.UpsertOrder(ctx, *o)
		if err != nil {
			return res, fmt.Errorf("sipariş %s kaydedilemedi: %w", number, err)
		}
		res.Orders++
		res.Items += len(o.Items)
		if inserted {
			res.Inserted = append(res.Inserted, id)
		} else {
			res.Updated++
		}
	}

	if s.bugz != nil && len(res.Inserted) > 0 {
		jobID, err := s.bugz.SubmitForward(ctx, userID, res.Inserted)
		switch {
		case errors.Is(err, core.ErrNotConfigured):
			s.log.Debug("BUG-Z ayarlı değil, aktarım atlandı", zap.Int64("user", userID))
		case err != nil:
			// aktarım kuyruğa alınamasa da siparişler kaydedildi
			s.log.Warn("BUG-Z aktarımı kuyruğa alınamadı", zap.Error(err))
		default:
			res.ForwardJobID = jobID
		}
	}

	s.log.Info("sipariş raporu içe aktarıldı", zap.String("marketplace", string(mp)),
		zap.Int("orders", res.Orders), zap.Int("new", len(res.Inserted)), zap.Int("errors", len(res.Errors)))
	return res, nil
}

// orderItemFromRow: birim fiyat yoksa satır tutarı / adet, satır tutarı yoksa birim fiyat * adet
func orderItemFromRow(field func(string) string) (core.OrderItem, error) {
	qty := utils.StringToInt(field("quantity"))
	if qty <= 0 {
		qty = 1
	}
	unit, unitOK := utils.ParseMoney(field("unit_price"))
	total, totalOK := utils.ParseMoney(field("line_total"))
	switch {
	case !unitOK && !totalOK:
		return core.OrderItem{}, fmt.Errorf("fiyat okunamadı")
	case !unitOK:
		unit = total.Div(decimal.NewFromInt(int64(qty))).Round(2)
	case !totalOK:
		total = unit.Mul(decimal.NewFromInt(int64(qty)))
	}

	return core.OrderItem{
		Barcode:     field("barcode"),
		SKU:         field("sku"),
		ProductName: field("product_name"),
		Quantity:    qty,
		UnitPrice:   unit,
		TotalPrice:  total,
		VatRate:     parseVatRate(field("vat_rate")),
	}, nil
}
