package utils

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var trLower = cases.Lower(language.Turkish)

// TurkishLower: Türkçe kurallarla küçültür, ardından ı -> i yapar ki
// "KDV ORANI", "Kdv Oranı" ve "kdv orani" aynı anahtara düşsün.
func TurkishLower(s string) string {
	if s == "" {
		return ""
	}
	return strings.ReplaceAll(trLower.String(s), "ı", "i")
}

// NormalizeKey: başlık/marka eşleştirmesi için boşlukları sadeleştirilmiş anahtar
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(TurkishLower(s)), " ")
}

// ContainsFold: Türkçe duyarsız "içerir" kontrolü
func ContainsFold(haystack, needle string) bool {
	needle = NormalizeKey(needle)
	if needle == "" {
		return false
	}
	return strings.Contains(NormalizeKey(haystack), needle)
}

// CleanForbiddenWords, yasaklı kelimeleri metinden çıkarır (büyük/küçük harf duyarsız).
func CleanForbiddenWords(text string, words []string) string {
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(w))
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, "")
	}
	return strings.Join(strings.Fields(text), " ")
}
