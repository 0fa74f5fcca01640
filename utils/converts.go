package utils

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func StringToInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// Excel'den bazen "100.0" gibi float görünümlü string gelebilir,
	// noktadan sonrasını temizliyoruz.
	s = strings.Split(strings.ReplaceAll(s, ",", "."), ".")[0]

	val, err := strconv.Atoi(s)
	if err != nil {
		zap.L().Debug("StringToInt dönüşüm hatası", zap.String("value", s))
		return 0
	}
	return val
}

// ParseMoney: "₺1.250,50", "149,90 TL", "99.5" gibi değerleri okur.
// Hem nokta hem virgül varsa sondaki ondalık ayırıcı kabul edilir.
func ParseMoney(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "₺", "")
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "TL"), "tl"))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case lastComma >= 0 && lastDot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ",", ".")
	}

	val, err := decimal.NewFromString(s)
	if err != nil {
		zap.L().Debug("ParseMoney dönüşüm hatası", zap.String("value", s))
		return decimal.Zero, false
	}
	return val, true
}

// StringToDecimal: okunamayan değer sıfır
func StringToDecimal(s string) decimal.Decimal {
	v, _ := ParseMoney(s)
	return v
}

var xmlControlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// SanitizeXMLOnly: CDATA içinden gelen kontrol karakterlerini atar
func SanitizeXMLOnly(s string) string {
	s = xmlControlChars.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "]]>", "]]&gt;")
	return strings.TrimSpace(s)
}
