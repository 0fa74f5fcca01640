package services

import (
	"fmt"
	"strings"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/utils"
)

// ExcelColumnAliases: tedarikçi Excel başlıklarının standart alan karşılıkları
var ExcelColumnAliases = map[string][]string{
	"barcode":       {"barkod", "barcode", "upc", "ean", "gtin", "partner id"},
	"title":         {"ürün adı", "ürün ismi", "product name", "başlık", "title", "ad"},
	"description":   {"ürün açıklaması", "açıklama", "description", "detay"},
	"price":         {"piyasa satış fiyatı", "piyasa satış fiyatı (kdv dahil)", "fiyat", "price", "liste fiyatı", "list price"},
	"sale_price":    {"trendyol'da satılacak fiyat", "trendyol'da satılacak fiyat (kdv dahil)", "satış fiyatı", "sale price", "indirimli fiyat"},
	"quantity":      {"ürün stok adedi", "stok", "stok adeti", "stock", "miktar", "adet", "quantity"},
	"brand":         {"marka", "brand"},
	"category":      {"kategori ismi", "kategori", "category", "kategori adı"},
	"model_code":    {"model kodu", "model", "sku"},
	"stock_code":    {"tedarikçi stok kodu", "stok kodu", "stock code", "supplier code"},
	"color":         {"ürün rengi", "renk", "color"},
	"size":          {"beden", "size", "boyut", "boyut/ebat"},
	"gender":        {"cinsiyet", "gender"},
	"desi":          {"desi", "hacim", "weight", "ağırlık"},
	"vat_rate":      {"kdv oranı", "kdv", "vat", "vat rate"},
	"commission":    {"komisyon oranı", "komisyon", "commission"},
	"shipping_days": {"sevkiyat süresi", "shipping time", "kargo süresi"},
	"shipping_type": {"sevkiyat tipi", "shipping type", "kargo tipi"},
	"status":        {"durum", "status"},
	"status_desc":   {"durum açıklaması", "status description"},
	"link":          {"trendyol.com linki", "link", "url"},
}

func init() {
	for i := 1; i <= 8; i++ {
		ExcelColumnAliases[fmt.Sprintf("image%d", i)] = []string{
			fmt.Sprintf("görsel %d", i), fmt.Sprintf("image %d", i), fmt.Sprintf("resim %d", i),
			fmt.Sprintf("görsel%d", i), fmt.Sprintf("image%d", i),
		}
	}
}

type ExcelFeed struct {
	Records []core.SupplierRecord
	Columns map[string]int
	Headers []string
	Errors  []core.RowError
}

// ParseExcelFeed, ilk sayfayı okur ve başlıkları ExcelColumnAliases ile eşler.
// Barkodu ve stok kodu olmayan satırlar hata listesine düşer.
func ParseExcelFeed(path string) (ExcelFeed, error) {
	headers, rows, err := utils.ReadSheet(path)
	if err != nil {
		return ExcelFeed{}, err
	}
	if len(headers) == 0 {
		return ExcelFeed{}, core.ErrEmptyFeed
	}

	cols := utils.MapColumns(headers, ExcelColumnAliases)
	if _, ok := cols["barcode"]; !ok {
		if _, ok := cols["stock_code"]; !ok {
			return ExcelFeed{Columns: cols, Headers: headers}, fmt.Errorf("%w: barkod ya da stok kodu sütunu yok", core.ErrUnknownFeedFormat)
		}
	}

	feed := ExcelFeed{Columns: cols, Headers: headers}
	for i, row := range rows {
		rowNo := i + 2
		field := func(name string) string { return utils.Field(row, cols, name) }

		barcode := field("barcode")
		stockCode := field("stock_code")
		if barcode == "" && stockCode == "" {
			if strings.TrimSpace(strings.Join(row, "")) != "" {
				feed.Errors = append(feed.Errors, core.RowError{Row: rowNo, Column: "barcode", Message: "barkod ve stok kodu boş"})
			}
			continue
		}

		listPrice, listOK := utils.ParseMoney(field("price"))
		salePrice, saleOK := utils.ParseMoney(field("sale_price"))
		price := listPrice
		if saleOK && salePrice.IsPositive() {
			price = salePrice
		}
		if raw := field("price"); raw != "" && !listOK && !saleOK {
			feed.Errors = append(feed.Errors, core.RowError{Row: rowNo, Column: "price", Message: fmt.Sprintf("fiyat okunamadı: %q", raw)})
		}

		var images []string
		for k := 1; k <= 8; k++ {
			if u := field(fmt.Sprintf("image%d", k)); strings.HasPrefix(u, "http") {
				images = append(images, u)
			}
		}

		vat := 0
		if raw := field("vat_rate"); raw != "" {
			vat = parseVatRate(raw)
		}

		category := field("category")
		title := field("title")
		description := field("description")
		if description == "" {
			description = title
		}
		if stockCode == "" {
			stockCode = barcode
		}

		feed.Records = append(feed.Records, core.SupplierRecord{
			Barcode:     barcode,
			StockCode:   stockCode,
			ModelCode:   field("model_code"),
			Title:       title,
			Description: description,
			Brand:       field("brand"),
			Category:    category,
			TopCategory: topCategory(category),
			Price:       price,
			Quantity:    utils.StringToInt(field("quantity")),
			VatRate:     vat,
			Desi:        utils.StringToDecimal(field("desi")),
			Color:       field("color"),
			Size:        field("size"),
			Images:      images,
			Link:        field("link"),
		})
	}

	if len(feed.Records) == 0 {
		return feed, core.ErrEmptyFeed
	}
	return feed, nil
}
