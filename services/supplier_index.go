package services

import (
	"strings"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/utils"
)

// SupplierIndex: tek kaynağın kayıtları üzerinde barkod / stok kodu / başlık araması
type SupplierIndex struct {
	Records     []core.SupplierRecord
	ByBarcode   map[string]int
	ByStockCode map[string]int
	ByTitle     map[string]int
}

func stockKey(s string) string {
	return utils.TurkishLower(strings.TrimSpace(s))
}

// BuildIndex: aynı anahtar birden fazla kayıtta varsa ilk kayıt kalır
// (varyantlar ana ürünün stok kodunu paylaşır).
func BuildIndex(records []core.SupplierRecord) *SupplierIndex {
	idx := &SupplierIndex{
		Records:     records,
		ByBarcode:   make(map[string]int, len(records)),
		ByStockCode: make(map[string]int, len(records)),
		ByTitle:     make(map[string]int, len(records)),
	}
	for i, r := range records {
		if b := strings.TrimSpace(r.Barcode); b != "" {
			if _, ok := idx.ByBarcode[b]; !ok {
				idx.ByBarcode[b] = i
			}
		}
		if sc := stockKey(r.StockCode); sc != "" {
			if _, ok := idx.ByStockCode[sc]; !ok {
				idx.ByStockCode[sc] = i
			}
		}
		if t := utils.NormalizeKey(r.Title); t != "" {
			if _, ok := idx.ByTitle[t]; !ok {
				idx.ByTitle[t] = i
			}
		}
	}
	return idx
}

func (idx *SupplierIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Records)
}

func (idx *SupplierIndex) FindBarcode(code string) (core.SupplierRecord, bool) {
	if idx == nil {
		return core.SupplierRecord{}, false
	}
	i, ok := idx.ByBarcode[strings.TrimSpace(code)]
	if !ok {
		return core.SupplierRecord{}, false
	}
	return idx.Records[i], true
}

func (idx *SupplierIndex) FindStockCode(stockCode string) (core.SupplierRecord, bool) {
	if idx == nil {
		return core.SupplierRecord{}, false
	}
	i, ok := idx.ByStockCode[stockKey(stockCode)]
	if !ok {
		return core.SupplierRecord{}, false
	}
	return idx.Records[i], true
}

// Lookup: önce barkod, sonra stok kodu, en son başlık eşitliği
func (idx *SupplierIndex) Lookup(code, stockCode, title string) (core.SupplierRecord, bool) {
	if idx == nil {
		return core.SupplierRecord{}, false
	}
	if code != "" {
		if r, ok := idx.FindBarcode(code); ok {
			return r, true
		}
	}
	if stockCode != "" {
		if r, ok := idx.FindStockCode(stockCode); ok {
			return r, true
		}
	}
	if t := utils.NormalizeKey(title); t != "" {
		if i, ok := idx.ByTitle[t]; ok {
			return idx.Records[i], true
		}
	}
	return core.SupplierRecord{}, false
}
