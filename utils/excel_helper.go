package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const BulkEditSheet = "Ürün Listesi"

// ReadSheet, dosyanın ilk sayfasını okur. İlk satır başlık kabul edilir.
func ReadSheet(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("excel dosyası açılamadı: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	return headers, rows[1:], nil
}

// MapColumns, başlıkları alias listelerine göre standart alan adlarına bağlar.
// Dönen map: alan -> sütun indexi. Karşılaştırma TurkishLower ile yapılır.
func MapColumns(headers []string, aliases map[string][]string) map[string]int {
	normalized := make(map[string]int, len(headers))
	for i, h := range headers {
		key := NormalizeKey(h)
		if _, ok := normalized[key]; !ok {
			normalized[key] = i
		}
	}

	mapping := make(map[string]int)
	for field, list := range aliases {
		for _, alias := range list {
			if idx, ok := normalized[NormalizeKey(alias)]; ok {
				mapping[field] = idx
				break
			}
		}
	}
	return mapping
}

// Cell: satırda index yoksa boş string
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Field: eşlenmiş alanın hücresi
func Field(row []string, mapping map[string]int, field string) string {
	idx, ok := mapping[field]
	if !ok {
		return ""
	}
	return Cell(row, idx)
}

// WriteSheet, başlık + satırları yeni bir Excel dosyasına yazar.
func WriteSheet(path, sheet string, headers []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheet)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if d, ok := v.(decimal.Decimal); ok {
				v = d.InexactFloat64()
			}
			f.SetCellValue(sheet, cell, v)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// BulkEditRow: toplu düzenleme dosyasındaki tek satır
type BulkEditRow struct {
	Row          int
	Title        string
	Barcode      string
	StockCode    string
	CurrentPrice decimal.Decimal
	CurrentStock int
	Operation    string
	NewStock     string
}

var bulkEditHeaders = []string{"Ürün Adı", "Barkod", "Stok Kodu", "Mevcut Fiyat", "Mevcut Stok", "İŞLEM (*,/,+,-)", "YENİ STOK"}

// SaveBulkEditSheet, kullanıcının fiyat işlemi ve yeni stok gireceği dosyayı üretir.
func SaveBulkEditSheet(path string, rows []BulkEditRow) error {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.Title, r.Barcode, r.StockCode, r.CurrentPrice, r.CurrentStock, "", ""})
	}
	return WriteSheet(path, BulkEditSheet, bulkEditHeaders, out)
}

// ReadBulkEditSheet, düzenlenmiş dosyayı okur. İşlem ya da yeni stok girilmemiş satırlar da döner.
func ReadBulkEditSheet(path string) ([]BulkEditRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(BulkEditSheet)
	if err != nil {
		return nil, err
	}

	var out []BulkEditRow
	for i, row := range rows {
		if i == 0 || len(row) < 4 {
			continue
		}
		price, _ := ParseMoney(Cell(row, 3))
		out = append(out, BulkEditRow{
			Row:          i + 1,
			Title:        Cell(row, 0),
			Barcode:      Cell(row, 1),
			StockCode:    Cell(row, 2),
			CurrentPrice: price,
			CurrentStock: StringToInt(Cell(row, 4)),
			Operation:    Cell(row, 5),
			NewStock:     Cell(row, 6),
		})
	}
	return out, nil
}
