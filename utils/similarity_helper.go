package utils

import (
	"sort"

	"vidos-entegrasyon/core"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// FindTopCategoryMatches, kategori adına en benzer n platform kategorisini
// Jaro-Winkler skoruna göre (0.0 - 1.0) büyükten küçüğe döner.
func FindTopCategoryMatches(name string, categories []core.PlatformCategory, n int) []core.CategoryMatch {
	metric := metrics.NewJaroWinkler()
	metric.CaseSensitive = false
	target := NormalizeKey(name)

	matches := make([]core.CategoryMatch, 0, len(categories))
	for _, c := range categories {
		score := strutil.Similarity(target, NormalizeKey(c.CategoryName), metric)
		matches = append(matches, core.CategoryMatch{ID: c.CategoryID, Name: c.CategoryName, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if n > 0 && len(matches) > n {
		matches = matches[:n]
	}
	return matches
}
