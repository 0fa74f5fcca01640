package core

import (
	"strings"
	"unicode/utf8"
)

// EAN13Prefix: Türkiye GS1 ön eki
const EAN13Prefix = "868"

// IntNSource, math/rand/v2 *rand.Rand ile uyumlu rastgele sayı kaynağı.
type IntNSource interface {
	IntN(n int) int
}

// GenerateEAN13, 868 önekli, 9 rastgele haneli ve kontrol haneli bir EAN-13 üretir.
func GenerateEAN13(rnd IntNSource) string {
	var b strings.Builder
	b.WriteString(EAN13Prefix)
	for i := 0; i < 9; i++ {
		b.WriteByte(byte('0' + rnd.IntN(10)))
	}
	body := b.String()
	return body + string(rune('0'+ean13CheckDigit(body)))
}

// ean13CheckDigit: soldan 1,3,1,3... ağırlıklı mod 10
func ean13CheckDigit(body string) int {
	sum := 0
	for i := 0; i < len(body); i++ {
		d := int(body[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

func ValidEAN13(s string) bool {
	if len(s) != 13 {
		return false
	}
	for i := 0; i < 13; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return ean13CheckDigit(s[:12]) == int(s[12]-'0')
}

var weakBarcodes = map[string]bool{
	"bgz": true, "barkodsuz": true, "yok": true, "null": true,
	"nan": true, "undefined": true, "boş": true, "none": true,
}

// IsWeakBarcode: tedarikçinin "barkodsuz" vb. yazdığı, gerçek barkod sayılmayan değerler
func IsWeakBarcode(s string) bool {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) < 3 {
		return true
	}
	return weakBarcodes[strings.ToLower(s)]
}

// NeedsBarcode: toplu barkod üretiminde yenisi atanacak ürünler
func NeedsBarcode(s string) bool {
	return len(strings.TrimSpace(s)) < 5
}
