package services

import (
	"context"
	"fmt"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"
	"vidos-entegrasyon/utils"

	"go.uber.org/zap"
)

type ListingService struct {
	store *database.Store
	log   *zap.Logger
}

func NewListingService(store *database.Store, logger *zap.Logger) *ListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingService{store: store, log: logger.Named("listing")}
}

type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []core.RowError
}

// ImportListingsFromExcel, pazaryeri panelinden indirilen ürün listesini yerel görüntüye yazar.
func (s *ListingService) ImportListingsFromExcel(ctx context.Context, userID int64, mp core.Marketplace, path string) (ImportResult, error) {
	headers, rows, err := utils.ReadSheet(path)
	if err != nil {
		return ImportResult{}, err
	}
	cols := utils.MapColumns(headers, ExcelColumnAliases)
	if _, ok := cols["barcode"]; !ok {
		return ImportResult{}, fmt.Errorf("%w: barkod sütunu bulunamadı", core.ErrUnknownFeedFormat)
	}

	var res ImportResult
	for i, row := range rows {
		rowNo := i + 2
		field := func(name string) string { return utils.Field(row, cols, name) }

		barcode := utils.CleanMarketplaceBarcode(mp, field("barcode"))
		if barcode == "" {
			res.Skipped++
			continue
		}
		price, _ := utils.ParseMoney(field("price"))
		sale, ok := utils.ParseMoney(field("sale_price"))
		if !ok || sale.IsZero() {
			sale = price
		}

		l := core.Listing{
			UserID:      userID,
			Marketplace: mp,
			Barcode:     barcode,
			StockCode:   field("stock_code"),
			Title:       field("title"),
			Price:       price,
			SalePrice:   sale,
			Quantity:    utils.StringToInt(field("quantity")),
			Status:      field("status"),
		}
		if err := s.store.UpsertListing(ctx, l); err != nil {
			res.Errors = append(res.Errors, core.RowError{Row: rowNo, Column: "barcode", Message: err.Error()})
			continue
		}
		res.Imported++
	}

	s.log.Info("pazaryeri listesi içe aktarıldı", zap.String("marketplace", string(mp)),
		zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped), zap.Int("errors", len(res.Errors)))
	return res, nil
}

// SyncListingsToMaster: pazaryeri listesini ana ürün tablosuna eşler. Alış fiyatı ezilmez.
func (s *ListingService) SyncListingsToMaster(ctx context.Context, userID int64, mp core.Marketplace) (int, error) {
	listings, err := s.store.Listings(ctx, userID, mp)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, l := range listings {
		barcode := utils.CleanMarketplaceBarcode(mp, l.Barcode)
		price := l.SalePrice
		if price.IsZero() {
			price = l.Price
		}
		err := s.store.UpsertProduct(ctx, core.Product{
			UserID:           userID,
			Barcode:          barcode,
			StockCode:        l.StockCode,
			Title:            l.Title,
			ListPrice:        price,
			Quantity:         l.Quantity,
			SupplierSourceID: l.SupplierSourceID,
		})
		if err != nil {
			s.log.Error("ana ürün tablosuna yazılamadı", zap.String("barcode", barcode), zap.Error(err))
			continue
		}
		processed++
	}

	s.log.Info("pazaryeri -> ana tablo aktarımı bitti", zap.String("marketplace", string(mp)), zap.Int("processed", processed))
	return processed, nil
}

// CompareBarcodes: kendi listemizde olup panelde olmayan barkodlar
func (s *ListingService) CompareBarcodes(origPath, panelPath, outPath string) ([]string, error) {
	return utils.CompareExcelBarcodes(origPath, panelPath, outPath)
}
