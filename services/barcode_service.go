package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"

	"go.uber.org/zap"
)

const maxBarcodeAttempts = 50

// BarcodeChange: toplu barkod işleminde bir ürünün eski ve yeni barkodu
type BarcodeChange struct {
	ProductID int64
	Title     string
	Old       string
	New       string
}

type BarcodeService struct {
	store *database.Store
	rnd   core.IntNSource
	log   *zap.Logger
}

func NewBarcodeService(store *database.Store, logger *zap.Logger) *BarcodeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := uint64(time.Now().UnixNano())
	return &BarcodeService{
		store: store,
		rnd:   rand.New(rand.NewPCG(seed, seed>>1|1)),
		log:   logger.Named("barcode"),
	}
}

// BulkGenerateMissingBarcodes: barkodu boş ya da 5 karakterden kısa ürünlere EAN-13 atar.
// h nil değilse her üründe Checkpoint çağrılır.
func (s *BarcodeService) BulkGenerateMissingBarcodes(ctx context.Context, userID int64, h *JobHandle) ([]BarcodeChange, error) {
	products, err := s.store.ProductsNeedingBarcode(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.assign(ctx, userID, products, h)
}

// OverrideAllBarcodes: kullanıcının tüm ürünlerinin barkodu yenilenir. Geri alınamaz.
func (s *BarcodeService) OverrideAllBarcodes(ctx context.Context, userID int64, h *JobHandle) ([]BarcodeChange, error) {
	products, err := s.store.Products(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.assign(ctx, userID, products, h)
}

func (s *BarcodeService) assign(ctx context.Context, userID int64, products []core.Product, h *JobHandle) ([]BarcodeChange, error) {
	used := make(map[string]bool, len(products))
	var changes []BarcodeChange
	for i, p := range products {
		if h != nil {
			if err := h.Checkpoint(ctx); err != nil {
				return changes, err
			}
			h.Progress(i, len(products))
		} else if err := ctx.Err(); err != nil {
			return changes, err
		}

		code, err := s.uniqueBarcode(ctx, userID, used)
		if err != nil {
			return changes, err
		}
		if err := s.store.UpdateProductBarcode(ctx, p.ID, code); err != nil {
			return changes, fmt.Errorf("ürün %d barkodu güncellenemedi: %w", p.ID, err)
		}
		used[code] = true
		changes = append(changes, BarcodeChange{ProductID: p.ID, Title: p.Title, Old: p.Barcode, New: code})
	}
	s.log.Info("barkodlar atandı", zap.Int("count", len(changes)))
	return changes, nil
}

func (s *BarcodeService) uniqueBarcode(ctx context.Context, userID int64, used map[string]bool) (string, error) {
	for range maxBarcodeAttempts {
		code := core.GenerateEAN13(s.rnd)
		if used[code] {
			continue
		}
		exists, err := s.store.BarcodeExists(ctx, userID, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("benzersiz barkod üretilemedi (%d deneme)", maxBarcodeAttempts)
}

// BarcodeReport: değişikliklerin düz metin raporu
func BarcodeReport(changes []BarcodeChange, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Barkod Güncelleme Raporu - %s\n", now.Format("02.01.2006 15:04"))
	b.WriteString(strings.Repeat("-", 50) + "\n")
	for _, c := range changes {
		title := []rune(c.Title)
		if len(title) > 40 {
			title = title[:40]
		}
		fmt.Fprintf(&b, "ID: %d | %-40s | %s -> %s\n", c.ProductID, string(title), c.Old, c.New)
	}
	return b.String()
}
