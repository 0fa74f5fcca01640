package utils

import (
	"fmt"

	"go.uber.org/zap"
)

// CompareExcelBarcodes, kendi listemizde olup panelden indirilen listede olmayan barkodları bulur.
// Eksik varsa outPath'e yazılır (outPath boşsa dosya yazılmaz).
func CompareExcelBarcodes(originalPath, panelPath, outPath string) ([]string, error) {
	log := zap.L().Named("excel-diff")

	panelHeaders, panelRows, err := ReadSheet(panelPath)
	if err != nil {
		return nil, fmt.Errorf("panel dosyası açılamadı: %w", err)
	}
	panelCol := barcodeColumn(panelHeaders, 0)

	// Paneldeki barkodları bir map'e atalım (Hızlı arama için)
	panelBarcodes := make(map[string]bool)
	for _, row := range panelRows {
		if b := Cell(row, panelCol); b != "" {
			panelBarcodes[b] = true
		}
	}
	log.Info("panel dosyası okundu", zap.Int("barcodes", len(panelBarcodes)))

	origHeaders, origRows, err := ReadSheet(originalPath)
	if err != nil {
		return nil, fmt.Errorf("orijinal dosya açılamadı: %w", err)
	}
	origCol := barcodeColumn(origHeaders, 0)

	var missing []string
	seen := make(map[string]bool)
	for i, row := range origRows {
		barcode := Cell(row, origCol)
		if barcode == "" || seen[barcode] {
			continue
		}
		seen[barcode] = true
		if !panelBarcodes[barcode] {
			missing = append(missing, barcode)
			log.Debug("eksik ürün", zap.String("barcode", barcode), zap.Int("row", i+2))
		}
	}

	if len(missing) > 0 && outPath != "" {
		if err := SaveMissingList(outPath, missing); err != nil {
			return missing, err
		}
		log.Info("eksik ürünler listesi kaydedildi", zap.String("path", outPath), zap.Int("count", len(missing)))
	}
	return missing, nil
}

// barcodeColumn: başlıkta barkod sütunu varsa onu, yoksa varsayılanı döner
func barcodeColumn(headers []string, def int) int {
	m := MapColumns(headers, map[string][]string{"barcode": {"barkod", "barcode", "ean", "gtin"}})
	if idx, ok := m["barcode"]; ok {
		return idx
	}
	return def
}

// SaveMissingList: eksikleri tekrar yükleme için tek sütunlu dosyaya yazar
func SaveMissingList(path string, list []string) error {
	rows := make([][]any, len(list))
	for i, b := range list {
		rows[i] = []any{b}
	}
	return WriteSheet(path, "Eksik Barkodlar", []string{"Eksik Barkodlar"}, rows)
}
