package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SourceIndex: kaynağın kendisi ve önbellekteki kayıtlarının indeksi
type SourceIndex struct {
	Source core.SupplierSource
	Index  *SupplierIndex
}

// SourceSet: kullanıcının aktif kaynakları, öncelik sırasıyla
type SourceSet struct {
	Sources []SourceIndex
}

type Resolution struct {
	Record     core.SupplierRecord
	SourceID   int64
	SourceName string
}

// Resolve: önceliği en yüksek kaynaktan başlayarak ilk eşleşme
func (set *SourceSet) Resolve(code, stockCode, title string) (Resolution, bool) {
	if set == nil {
		return Resolution{}, false
	}
	for _, si := range set.Sources {
		if rec, ok := si.Index.Lookup(code, stockCode, title); ok {
			return Resolution{Record: rec, SourceID: si.Source.ID, SourceName: si.Source.Name}, true
		}
	}
	return Resolution{}, false
}

// Source: id ile tek kaynak
func (set *SourceSet) Source(id int64) (SourceIndex, bool) {
	if set == nil {
		return SourceIndex{}, false
	}
	for _, si := range set.Sources {
		if si.Source.ID == id {
			return si, true
		}
	}
	return SourceIndex{}, false
}

func (set *SourceSet) Len() int {
	if set == nil {
		return 0
	}
	n := 0
	for _, si := range set.Sources {
		n += si.Index.Len()
	}
	return n
}

type cachedIndex struct {
	cachedAt time.Time
	usedAt   time.Time
	index    *SupplierIndex
}

// Resolver: maliyet ve tedarikçi kaydı çözümlemesi. İndeksler last_cached_at değişene kadar bellekte tutulur.
type Resolver struct {
	store     *database.Store
	log       *zap.Logger
	maxCached int

	mu    sync.Mutex
	cache map[int64]cachedIndex
}

func NewResolver(store *database.Store, maxCached int, logger *zap.Logger) *Resolver {
	if maxCached <= 0 {
		maxCached = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:     store,
		log:       logger.Named("resolver"),
		maxCached: maxCached,
		cache:     make(map[int64]cachedIndex),
	}
}

// Load, aktif kaynakların önbellek kayıtlarını paralel okur.
func (r *Resolver) Load(ctx context.Context, userID int64) (*SourceSet, error) {
	sources, err := r.store.ActiveSupplierSources(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := &SourceSet{Sources: make([]SourceIndex, len(sources))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range sources {
		g.Go(func() error {
			idx, err := r.index(gctx, src)
			if err != nil {
				return fmt.Errorf("kaynak %s: %w", src.Name, err)
			}
			set.Sources[i] = SourceIndex{Source: src, Index: idx}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}

// LoadSource: tek kaynak (doğrudan senkron için)
func (r *Resolver) LoadSource(ctx context.Context, userID, sourceID int64) (SourceIndex, error) {
	src, err := r.store.SupplierSource(ctx, userID, sourceID)
	if err != nil {
		return SourceIndex{}, err
	}
	idx, err := r.index(ctx, src)
	if err != nil {
		return SourceIndex{}, err
	}
	return SourceIndex{Source: src, Index: idx}, nil
}

func (r *Resolver) index(ctx context.Context, src core.SupplierSource) (*SupplierIndex, error) {
	now := time.Now()
	r.mu.Lock()
	if c, ok := r.cache[src.ID]; ok && c.cachedAt.Equal(src.LastCachedAt) {
		c.usedAt = now
		r.cache[src.ID] = c
		r.mu.Unlock()
		return c.index, nil
	}
	r.mu.Unlock()

	records, err := r.store.SupplierRecords(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	idx := BuildIndex(records)
	if len(records) == 0 {
		r.log.Warn("kaynağın önbelleği boş", zap.Int64("source", src.ID), zap.String("name", src.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cache) >= r.maxCached {
		var oldest int64
		var oldestAt time.Time
		for id, c := range r.cache {
			if oldestAt.IsZero() || c.usedAt.Before(oldestAt) {
				oldest, oldestAt = id, c.usedAt
			}
		}
		delete(r.cache, oldest)
	}
	r.cache[src.ID] = cachedIndex{cachedAt: src.LastCachedAt, usedAt: now, index: idx}
	return idx, nil
}

// CostOf: önce ürün kartındaki alış fiyatı (barkod, sonra stok kodu), yoksa kaynaklardaki ilk fiyat.
func (r *Resolver) CostOf(ctx context.Context, userID int64, set *SourceSet, barcode, stockCode string) (decimal.Decimal, bool, error) {
	if barcode != "" {
		p, err := r.store.ProductByBarcode(ctx, userID, barcode)
		if err == nil && p.CostPrice.IsPositive() {
			return p.CostPrice, true, nil
		}
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return decimal.Zero, false, err
		}
	}
	if stockCode != "" {
		p, err := r.store.ProductByStockCode(ctx, userID, stockCode)
		if err == nil && p.CostPrice.IsPositive() {
			return p.CostPrice, true, nil
		}
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return decimal.Zero, false, err
		}
	}

	if set == nil {
		return decimal.Zero, false, nil
	}
	for _, si := range set.Sources {
		if rec, ok := si.Index.FindBarcode(barcode); ok && rec.Price.IsPositive() {
			return rec.Price, true, nil
		}
	}
	for _, si := range set.Sources {
		if rec, ok := si.Index.FindStockCode(stockCode); ok && stockCode != "" && rec.Price.IsPositive() {
			return rec.Price, true, nil
		}
	}
	return decimal.Zero, false, nil
}

// PricingSettings: kullanıcının pazaryeri fiyat ayarları
func (r *Resolver) PricingSettings(ctx context.Context, userID int64, mp core.Marketplace) (core.PricingSettings, error) {
	all, err := r.store.Settings(ctx, userID, "")
	if err != nil {
		return core.PricingSettings{}, err
	}
	ps, err := core.ParsePricingSettings(mp, all)
	if err != nil {
		// bozuk kural JSON'unda eski ayarlarla devam edilir
		r.log.Warn("fiyat kuralları okunamadı", zap.Int64("user", userID), zap.String("marketplace", string(mp)), zap.Error(err))
	}
	return ps, nil
}

// ResolvePrice: tedarikçi fiyatına pazaryeri fiyat kuralları uygulanır
func (r *Resolver) ResolvePrice(ctx context.Context, userID int64, mp core.Marketplace, rec core.SupplierRecord) (decimal.Decimal, error) {
	ps, err := r.PricingSettings(ctx, userID, mp)
	if err != nil {
		return decimal.Zero, err
	}
	return core.CalculatePrice(rec.Price, ps), nil
}
