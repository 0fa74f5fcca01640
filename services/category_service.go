package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"
	"vidos-entegrasyon/utils"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// AutoMatchScore: bu skorun üstündeki benzerlik sorulmadan kabul edilir
const AutoMatchScore = 0.95

// MapBrand: önce birebir, sonra Türkçe duyarsız eşleşme; yoksa marka aynen döner
func MapBrand(raw string, mapping map[string]string) string {
	if raw == "" || len(mapping) == 0 {
		return raw
	}
	if v, ok := mapping[raw]; ok {
		return v
	}
	key := utils.NormalizeKey(raw)
	for k, v := range mapping {
		if utils.NormalizeKey(k) == key {
			return v
		}
	}
	return raw
}

type CategoryService struct {
	store *database.Store
	log   *zap.Logger
}

func NewCategoryService(store *database.Store, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{store: store, log: logger.Named("category")}
}

// ImportCategoryTree, iç içe kategori ağacını düz listeye çevirip kaydeder. Kök kategorilerin parent'ı "0".
func (s *CategoryService) ImportCategoryTree(ctx context.Context, platform string, tree []core.CategoryNode) (int, error) {
	var flat []core.PlatformCategory
	var walk func(nodes []core.CategoryNode, parentID string)
	walk = func(nodes []core.CategoryNode, parentID string) {
		for _, n := range nodes {
			flat = append(flat, core.PlatformCategory{
				Platform:     platform,
				CategoryID:   n.ID,
				CategoryName: n.Name,
				ParentID:     parentID,
				IsLeaf:       n.IsLeaf || len(n.Children) == 0,
			})
			if len(n.Children) > 0 {
				walk(n.Children, n.ID)
			}
		}
	}
	walk(tree, "0")

	if err := s.store.SaveCategories(ctx, flat); err != nil {
		return 0, fmt.Errorf("kategoriler kaydedilemedi: %w", err)
	}
	s.log.Info("kategori ağacı kaydedildi", zap.String("platform", platform), zap.Int("count", len(flat)))
	return len(flat), nil
}

type CategoryMatchResult struct {
	ID         string
	Name       string
	Auto       bool // kayıtlı eşleşme ya da AutoMatchScore üstü
	Candidates []core.CategoryMatch
}

// MatchCategory: kayıtlı eşleşme varsa o, yoksa yaprak kategoriler arasında en iyi 3 aday.
// Skor AutoMatchScore'u geçerse eşleşme kaydedilir.
func (s *CategoryService) MatchCategory(ctx context.Context, userID int64, platform, name string) (CategoryMatchResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CategoryMatchResult{}, nil
	}

	id, err := s.store.CategoryMapping(ctx, userID, platform, name)
	if err == nil && id != "" {
		catName, _ := s.store.CategoryName(ctx, platform, id)
		return CategoryMatchResult{ID: id, Name: catName, Auto: true}, nil
	}
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return CategoryMatchResult{}, err
	}

	leaves, err := s.store.LeafCategories(ctx, platform)
	if err != nil {
		return CategoryMatchResult{}, err
	}
	matches := utils.FindTopCategoryMatches(name, leaves, 3)
	res := CategoryMatchResult{Candidates: matches}
	if len(matches) > 0 && matches[0].Score >= AutoMatchScore {
		res.ID, res.Name, res.Auto = matches[0].ID, matches[0].Name, true
		if err := s.store.SaveCategoryMapping(ctx, userID, platform, name, res.ID); err != nil {
			return res, err
		}
		s.log.Debug("kategori otomatik eşleşti", zap.String("name", name), zap.String("match", res.Name),
			zap.Float64("score", matches[0].Score))
	}
	return res, nil
}

// ChooseFunc: otomatik eşleşmeyen kategori için karar verir. Boş dönerse kategori çözümsüz kalır.
type ChooseFunc func(name string, candidates []core.CategoryMatch) string

type FillResult struct {
	Resolved   map[string]string
	Unresolved []string
	Rows       int
}

// FillCategoryIDs, Excel'deki kategori adı sütununu (nameCol) okuyup bulunan ID'leri idCol'a yazar.
// Sütunlar 0 tabanlıdır, ilk satır başlıktır.
func (s *CategoryService) FillCategoryIDs(ctx context.Context, userID int64, platform, path string, nameCol, idCol int, choose ChooseFunc) (FillResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return FillResult{}, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return FillResult{}, err
	}

	// benzersiz kategoriler
	res := FillResult{Resolved: make(map[string]string)}
	var order []string
	seen := make(map[string]bool)
	for i, row := range rows {
		name := utils.Cell(row, nameCol)
		if i == 0 || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)
	}
	s.log.Info("excel kategorileri okundu", zap.Int("unique", len(order)))

	for _, name := range order {
		m, err := s.MatchCategory(ctx, userID, platform, name)
		if err != nil {
			return res, err
		}
		id := m.ID
		if id == "" && choose != nil {
			if id = strings.TrimSpace(choose(name, m.Candidates)); id != "" {
				if err := s.store.SaveCategoryMapping(ctx, userID, platform, name, id); err != nil {
					return res, err
				}
			}
		}
		if id == "" {
			res.Unresolved = append(res.Unresolved, name)
			continue
		}
		res.Resolved[name] = id
	}

	for i, row := range rows {
		if i == 0 {
			continue
		}
		id, ok := res.Resolved[utils.Cell(row, nameCol)]
		if !ok {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(idCol+1, i+1)
		if err := f.SetCellValue(sheet, cell, id); err != nil {
			return res, err
		}
		res.Rows++
	}

	if err := f.Save(); err != nil {
		return res, err
	}
	return res, nil
}

// CheckForbidden: yasaklı listede ise sebebi döner, değilse boş string
func (s *CategoryService) CheckForbidden(ctx context.Context, userID int64, title, brand, category string) (string, error) {
	entries, err := s.store.Blacklist(ctx, userID)
	if err != nil {
		return "", err
	}
	return ForbiddenReason(entries, title, brand, category), nil
}

// ForbiddenReason: marka birebir, kategori "içerir" (kırılım yolu olabilir), kelime üç alanın herhangi birinde
func ForbiddenReason(entries []core.BlacklistEntry, title, brand, category string) string {
	for _, e := range entries {
		if strings.TrimSpace(e.Value) == "" {
			continue
		}
		switch e.Kind {
		case core.BlacklistBrand:
			if utils.NormalizeKey(e.Value) == utils.NormalizeKey(brand) {
				return "Yasaklı Marka: " + e.Value
			}
		case core.BlacklistCategory:
			if utils.ContainsFold(category, e.Value) {
				return "Yasaklı Kategori: " + e.Value
			}
		case core.BlacklistWord:
			if utils.ContainsFold(title, e.Value) || utils.ContainsFold(brand, e.Value) || utils.ContainsFold(category, e.Value) {
				return "Yasaklı Kelime: " + e.Value
			}
		}
	}
	return ""
}

// CleanText: FORBIDDEN_KEYWORDS ayarındaki (virgülle ayrılmış) kelimeleri metinden siler
func (s *CategoryService) CleanText(ctx context.Context, userID int64, text string) (string, error) {
	raw, err := s.store.GetSetting(ctx, userID, "FORBIDDEN_KEYWORDS", "")
	if err != nil {
		return text, err
	}
	if strings.TrimSpace(raw) == "" {
		return text, nil
	}
	return utils.CleanForbiddenWords(text, strings.Split(raw, ",")), nil
}
