package utils

import (
	"strings"

	"vidos-entegrasyon/core"
)

// CleanMarketplaceBarcode, pazaryerinin panel barkoduna eklediği ekleri kırpar
// ki ana ürün tablosundaki barkodla eşleşsin.
func CleanMarketplaceBarcode(mp core.Marketplace, barcode string) string {
	barcode = strings.TrimSpace(barcode)
	switch mp {
	case core.Pazarama:
		return strings.TrimSuffix(barcode, "-PZR")
	case core.Hepsiburada:
		// HB merchant SKU'ları büyük harfli döner
		return strings.ToUpper(barcode)
	}
	return barcode
}
