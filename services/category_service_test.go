package services

import (
	"context"
	"testing"

	"vidos-entegrasyon/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var testTree = []core.CategoryNode{
	{ID: "1", Name: "Ev", Children: []core.CategoryNode{
		{ID: "2", Name: "Mutfak", Children: []core.CategoryNode{
			{ID: "3", Name: "Kupa"},
			{ID: "4", Name: "Tabak"},
		}},
	}},
	{ID: "5", Name: "Giyim", Children: []core.CategoryNode{{ID: "6", Name: "Tişört"}}},
}

func TestMapBrand(t *testing.T) {
	mapping := map[string]string{"ACME": "Acme Home", "İnci": "İnci Porselen"}
	assert.Equal(t, "Acme Home", MapBrand("ACME", mapping))
	assert.Equal(t, "Acme Home", MapBrand(" acme ", mapping))
	assert.Equal(t, "İnci Porselen", MapBrand("INCI", mapping))
	assert.Equal(t, "Zeta", MapBrand("Zeta", mapping))
	assert.Equal(t, "", MapBrand("", mapping))
	assert.Equal(t, "ACME", MapBrand("ACME", nil))
}

func TestCategoryService_ImportAndMatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	svc := NewCategoryService(store, nil)

	n, err := svc.ImportCategoryTree(ctx, "trendyol", testTree)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	leaves, err := store.LeafCategories(ctx, "trendyol")
	require.NoError(t, err)
	assert.Len(t, leaves, 3)

	m, err := svc.MatchCategory(ctx, testUser, "trendyol", "kupa")
	require.NoError(t, err)
	assert.True(t, m.Auto)
	assert.Equal(t, "3", m.ID)
	assert.NotEmpty(t, m.Candidates)

	id, err := store.CategoryMapping(ctx, testUser, "trendyol", "kupa")
	require.NoError(t, err)
	assert.Equal(t, "3", id, "otomatik eşleşme kaydedilir")

	// kayıtlı eşleşme aday hesaplamadan döner
	m, err = svc.MatchCategory(ctx, testUser, "trendyol", "kupa")
	require.NoError(t, err)
	assert.Equal(t, "Kupa", m.Name)
	assert.Empty(t, m.Candidates)

	m, err = svc.MatchCategory(ctx, testUser, "trendyol", "Mutfak Gereçleri")
	require.NoError(t, err)
	assert.False(t, m.Auto)
	assert.Empty(t, m.ID)
	assert.Len(t, m.Candidates, 3)

	m, err = svc.MatchCategory(ctx, testUser, "trendyol", "  ")
	require.NoError(t, err)
	assert.Empty(t, m.ID)
}

func TestCategoryService_FillCategoryIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	svc := NewCategoryService(store, nil)
	_, err := svc.ImportCategoryTree(ctx, "trendyol", testTree)
	require.NoError(t, err)

	path := writeExcel(t, "urunler.xlsx", []string{"Ürün", "Kategori", "Kategori ID"}, [][]any{
		{"A", "Kupa", ""},
		{"B", "Mutfak Gereçleri", ""},
		{"C", "Kupa", ""},
		{"D", "Bilinmez Şey", ""},
	})

	var asked []string
	choose := func(name string, candidates []core.CategoryMatch) string {
		asked = append(asked, name)
		if name == "Mutfak Gereçleri" {
			return "4"
		}
		return ""
	}

	res, err := svc.FillCategoryIDs(ctx, testUser, "trendyol", path, 1, 2, choose)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Kupa": "3", "Mutfak Gereçleri": "4"}, res.Resolved)
	assert.Equal(t, []string{"Bilinmez Şey"}, res.Unresolved)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, []string{"Mutfak Gereçleri", "Bilinmez Şey"}, asked, "otomatik eşleşenler sorulmaz")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	for cell, want := range map[string]string{"C2": "3", "C3": "4", "C4": "3", "C5": ""} {
		got, err := f.GetCellValue(f.GetSheetName(0), cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}

	// elle seçilen eşleşme sonraki aramalarda hazır gelir
	m, err := svc.MatchCategory(ctx, testUser, "trendyol", "Mutfak Gereçleri")
	require.NoError(t, err)
	assert.Equal(t, "4", m.ID)
	assert.Equal(t, "Tabak", m.Name)
}

func TestForbiddenReason(t *testing.T) {
	entries := []core.BlacklistEntry{
		{Kind: core.BlacklistBrand, Value: "Sahte Marka"},
		{Kind: core.BlacklistCategory, Value: "Silah"},
		{Kind: core.BlacklistWord, Value: "replika"},
		{Kind: core.BlacklistWord, Value: "  "},
	}
	tests := []struct {
		title, brand, category string
		want                   string
	}{
		{"Kupa", "SAHTE MARKA", "Ev", "Yasaklı Marka: Sahte Marka"},
		{"Kupa", "Sahte Markalar", "Ev", ""},
		{"Bıçak", "Acme", "Spor > Av > Silah Aksesuar", "Yasaklı Kategori: Silah"},
		{"REPLİKA Saat", "Acme", "Aksesuar", "Yasaklı Kelime: replika"},
		{"Saat", "Acme", "Aksesuar", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ForbiddenReason(entries, tt.title, tt.brand, tt.category), tt.title+"/"+tt.brand)
	}
}

func TestCategoryService_CheckForbiddenAndCleanText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	svc := NewCategoryService(store, nil)

	require.NoError(t, store.AddBlacklist(ctx, testUser, core.BlacklistWord, "çakma"))
	reason, err := svc.CheckForbidden(ctx, testUser, "Çakma Çanta", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Yasaklı Kelime: çakma", reason)

	text, err := svc.CleanText(ctx, testUser, "Replika  Deri Çanta")
	require.NoError(t, err)
	assert.Equal(t, "Replika  Deri Çanta", text, "ayar yoksa metin aynen döner")

	require.NoError(t, store.SetSetting(ctx, testUser, "FORBIDDEN_KEYWORDS", "replika, orijinal"))
	text, err = svc.CleanText(ctx, testUser, "Replika Deri Çanta Orijinal")
	require.NoError(t, err)
	assert.Equal(t, "Deri Çanta", text)
}
