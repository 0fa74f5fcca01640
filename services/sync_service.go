package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"
	"vidos-entegrasyon/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	PlanDirect = "direct"
	PlanStock  = "stock"
	PlanPrice  = "price"

	maxMissingCodes = 20
	maxSamples      = 10
)

var priceTolerance = decimal.RequireFromString("0.01")

const (
	ActionUpdate = "update"
	ActionZero   = "zero"
)

// PlanItem: pazaryerindeki tek ürüne gidecek değişiklik. Nil alan değişmez.
type PlanItem struct {
	Barcode      string
	StockCode    string
	Title        string
	Action       string
	PrevQuantity int
	Quantity     *int
	PrevPrice    decimal.Decimal
	Price        *decimal.Decimal
	SourceID     int64
}

type SyncPlan struct {
	Kind             string
	UserID           int64
	Marketplace      core.Marketplace
	SourceID         int64
	Updates          []PlanItem
	Creates          []core.SupplierRecord
	Missing          []string
	MissingTotal     int
	SkippedZeroPrice []string
	Samples          []PlanItem
	Zeroed           int
}

func (p *SyncPlan) Empty() bool {
	return len(p.Updates) == 0 && len(p.Creates) == 0
}

func (p *SyncPlan) addMissing(code string) {
	p.MissingTotal++
	if len(p.Missing) < maxMissingCodes {
		p.Missing = append(p.Missing, code)
	}
}

func (p *SyncPlan) addUpdate(it PlanItem) {
	p.Updates = append(p.Updates, it)
	if len(p.Samples) < maxSamples {
		p.Samples = append(p.Samples, it)
	}
}

// Applier: planı pazaryerine iletir. Pazaryeri istemcileri bu arayüzü sağlar;
// istek limiti aşıldığında core.ErrRateLimited sarmalanmalı.
type Applier interface {
	Apply(ctx context.Context, mp core.Marketplace, items []PlanItem) error
}

type SyncService struct {
	store    *database.Store
	resolver *Resolver
	queue    *JobQueue
	jobs     core.JobsConfig
	guard    core.PricingConfig
	log      *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	rnd      core.IntNSource
}

func NewSyncService(store *database.Store, resolver *Resolver, queue *JobQueue, cfg core.Config, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := uint64(time.Now().UnixNano())
	return &SyncService{
		store:    store,
		resolver: resolver,
		queue:    queue,
		jobs:     cfg.Jobs,
		guard:    cfg.Pricing,
		log:      logger.Named("sync"),
		sleep:    sleepCtx,
		rnd:      rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PlanDirectSync: tedarikçi önbelleği ile yerel pazaryeri görüntüsünün stok kodu üzerinden farkı.
// Feed'de olmayan ürünler yalnızca bu kaynağa aitse sıfırlanır.
func (s *SyncService) PlanDirectSync(ctx context.Context, userID int64, mp core.Marketplace, sourceID int64) (*SyncPlan, error) {
	si, err := s.resolver.LoadSource(ctx, userID, sourceID)
	if err != nil {
		return nil, err
	}
	if si.Index.Len() == 0 {
		return nil, fmt.Errorf("%w: önce kaynağın önbelleğini yenileyin", core.ErrEmptyFeed)
	}
	listings, err := s.store.Listings(ctx, userID, mp)
	if err != nil {
		return nil, err
	}
	ps, err := s.resolver.PricingSettings(ctx, userID, mp)
	if err != nil {
		return nil, err
	}

	local := make(map[string]core.Listing, len(listings))
	for _, l := range listings {
		if k := stockKey(l.StockCode); k != "" {
			local[k] = l
		}
	}

	plan := &SyncPlan{Kind: PlanDirect, UserID: userID, Marketplace: mp, SourceID: sourceID}
	seen := make(map[string]bool)
	for _, rec := range si.Index.Records {
		k := stockKey(rec.StockCode)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true

		l, ok := local[k]
		if !ok {
			plan.Creates = append(plan.Creates, rec)
			continue
		}

		qty := max(rec.Quantity, 0)
		price := core.CalculatePrice(rec.Price, ps)
		ownerChanged := l.SupplierSourceID != sourceID
		priceChanged := price.IsPositive() && price.Sub(l.SalePrice).Abs().GreaterThanOrEqual(priceTolerance)
		if qty == l.Quantity && !priceChanged && !ownerChanged {
			continue
		}

		it := PlanItem{Barcode: l.Barcode, StockCode: l.StockCode, Title: l.Title, Action: ActionUpdate,
			PrevQuantity: l.Quantity, Quantity: &qty, PrevPrice: l.SalePrice, SourceID: sourceID}
		if price.IsPositive() {
			it.Price = &price
		}
		plan.addUpdate(it)
	}

	for _, l := range listings {
		k := stockKey(l.StockCode)
		if k == "" || seen[k] || l.Quantity <= 0 || l.SupplierSourceID != sourceID {
			continue
		}
		zero := 0
		plan.addUpdate(PlanItem{Barcode: l.Barcode, StockCode: l.StockCode, Title: l.Title, Action: ActionZero,
			PrevQuantity: l.Quantity, Quantity: &zero, PrevPrice: l.SalePrice, SourceID: sourceID})
		plan.Zeroed++
	}

	if err := s.assignCreateBarcodes(ctx, si.Source, plan); err != nil {
		return nil, err
	}

	s.log.Info("doğrudan senkron analizi", zap.String("marketplace", string(mp)), zap.Int64("source", sourceID),
		zap.Int("update", len(plan.Updates)-plan.Zeroed), zap.Int("create", len(plan.Creates)), zap.Int("zero", plan.Zeroed))
	return plan, nil
}

// assignCreateBarcodes: yeni açılacak ürünlere rastgele EAN-13 verir.
// AUTO_SYNC_USE_OVERRIDE_BARCODE_{mp} hepsini değiştirir; kaynağın rastgele barkod bayrağı ya da
// AUTO_SYNC_USE_RANDOM_BARCODE_{mp} yalnızca geçerli EAN-13 olmayanları.
func (s *SyncService) assignCreateBarcodes(ctx context.Context, src core.SupplierSource, plan *SyncPlan) error {
	if len(plan.Creates) == 0 {
		return nil
	}
	settings, err := s.store.Settings(ctx, plan.UserID, "AUTO_SYNC_USE_")
	if err != nil {
		return err
	}
	override := settings["AUTO_SYNC_USE_OVERRIDE_BARCODE_"+string(plan.Marketplace)] == "true"
	random := src.UseRandomBarcode || settings["AUTO_SYNC_USE_RANDOM_BARCODE_"+string(plan.Marketplace)] == "true"
	if !override && !random {
		return nil
	}

	used := make(map[string]bool)
	for i := range plan.Creates {
		rec := &plan.Creates[i]
		if !override && core.ValidEAN13(rec.Barcode) {
			continue
		}
		code := core.GenerateEAN13(s.rnd)
		for used[code] {
			code = core.GenerateEAN13(s.rnd)
		}
		used[code] = true
		rec.Barcode = code
	}
	return nil
}

// PlanStockSync: her pazaryeri ürünü için tedarikçi stoğu (negatif stok sıfır sayılır)
func (s *SyncService) PlanStockSync(ctx context.Context, userID int64, mp core.Marketplace) (*SyncPlan, error) {
	set, listings, err := s.loadForPlan(ctx, userID, mp)
	if err != nil {
		return nil, err
	}

	plan := &SyncPlan{Kind: PlanStock, UserID: userID, Marketplace: mp}
	for _, l := range listings {
		res, ok := set.Resolve(l.Barcode, l.StockCode, l.Title)
		if !ok {
			plan.addMissing(l.Barcode)
			continue
		}
		qty := max(res.Record.Quantity, 0)
		if qty == l.Quantity {
			continue
		}
		if qty == 0 {
			plan.Zeroed++
		}
		plan.addUpdate(PlanItem{Barcode: l.Barcode, StockCode: l.StockCode, Title: l.Title, Action: ActionUpdate,
			PrevQuantity: l.Quantity, Quantity: &qty, PrevPrice: l.SalePrice, SourceID: res.SourceID})
	}
	return plan, nil
}

// PlanPriceSync: tedarikçi fiyatına fiyat kuralları uygulanır, 1 kuruştan küçük farklar atlanır
func (s *SyncService) PlanPriceSync(ctx context.Context, userID int64, mp core.Marketplace) (*SyncPlan, error) {
	set, listings, err := s.loadForPlan(ctx, userID, mp)
	if err != nil {
		return nil, err
	}
	ps, err := s.resolver.PricingSettings(ctx, userID, mp)
	if err != nil {
		return nil, err
	}

	plan := &SyncPlan{Kind: PlanPrice, UserID: userID, Marketplace: mp}
	for _, l := range listings {
		res, ok := set.Resolve(l.Barcode, l.StockCode, l.Title)
		if !ok {
			plan.addMissing(l.Barcode)
			continue
		}
		if !res.Record.Price.IsPositive() {
			if len(plan.SkippedZeroPrice) < maxMissingCodes {
				plan.SkippedZeroPrice = append(plan.SkippedZeroPrice, l.Barcode)
			}
			continue
		}
		price := core.CalculatePrice(res.Record.Price, ps)
		if !price.IsPositive() || price.Sub(l.SalePrice).Abs().LessThan(priceTolerance) {
			continue
		}
		plan.addUpdate(PlanItem{Barcode: l.Barcode, StockCode: l.StockCode, Title: l.Title, Action: ActionUpdate,
			PrevQuantity: l.Quantity, PrevPrice: l.SalePrice, Price: &price, SourceID: res.SourceID})
	}
	return plan, nil
}

func (s *SyncService) loadForPlan(ctx context.Context, userID int64, mp core.Marketplace) (*SourceSet, []core.Listing, error) {
	set, err := s.resolver.Load(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if set.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: aktif kaynakların önbelleği boş", core.ErrEmptyFeed)
	}
	listings, err := s.store.Listings(ctx, userID, mp)
	if err != nil {
		return nil, nil, err
	}
	return set, listings, nil
}

// ApplyPlan, planı parça parça uygular: önce Applier (nil olabilir), sonra yerel görüntü.
// İstek limiti hatasında parça (deneme+1)*RetryBaseDelay bekleyip tekrar denenir.
func (s *SyncService) ApplyPlan(ctx context.Context, plan *SyncPlan, applier Applier, h *JobHandle) (JobResult, error) {
	res := JobResult{ProductCount: len(plan.Updates)}
	logf := func(level, format string, args ...any) {
		if h != nil {
			h.Logf(level, format, args...)
		}
	}

	chunkSize := s.jobs.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 25
	}
	chunks := utils.Chunk(plan.Updates, chunkSize)
	logf("info", "[%s] %d güncelleme, %d yeni ürün, %d sıfırlama. %d paket gönderilecek.",
		plan.Marketplace.DisplayName(), len(plan.Updates)-plan.Zeroed, len(plan.Creates), plan.Zeroed, len(chunks))

	done := 0
	for i, chunk := range chunks {
		if h != nil {
			if err := h.Checkpoint(ctx); err != nil {
				logf("warning", "İşlem kullanıcı tarafından durduruldu (%d/%d paket)", i, len(chunks))
				return res, err
			}
		}

		if err := s.applyChunk(ctx, plan.Marketplace, chunk, applier, logf); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.FailCount += len(chunk)
			logf("error", "Paket %d gönderilemedi: %v", i+1, err)
		} else {
			n, err := s.store.ApplyListingChanges(ctx, plan.UserID, plan.Marketplace, toListingChanges(chunk))
			if err != nil {
				return res, fmt.Errorf("yerel görüntü güncellenemedi: %w", err)
			}
			res.SuccessCount += len(chunk)
			logf("info", "%d ürüne güncelleme gönderildi (paket %d, yerelde %d satır)", len(chunk), i+1, n)
		}

		done += len(chunk)
		if h != nil {
			h.Progress(done, len(plan.Updates))
		}
	}

	if len(plan.Creates) > 0 {
		logf("info", "%d ürün pazaryerinde yok, yeni ürün listesine alındı", len(plan.Creates))
	}
	s.log.Info("plan uygulandı", zap.String("kind", plan.Kind), zap.String("marketplace", string(plan.Marketplace)),
		zap.Int("success", res.SuccessCount), zap.Int("fail", res.FailCount))
	return res, nil
}

func (s *SyncService) applyChunk(ctx context.Context, mp core.Marketplace, chunk []PlanItem, applier Applier, logf func(string, string, ...any)) error {
	if applier == nil {
		return nil
	}
	maxRetries := s.jobs.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	base := s.jobs.RetryBaseDelay
	if base <= 0 {
		base = 10 * time.Second
	}

	for attempt := 0; ; attempt++ {
		err := applier.Apply(ctx, mp, chunk)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrRateLimited) || attempt >= maxRetries {
			return err
		}
		wait := time.Duration(attempt+1) * base
		logf("warning", "İstek limiti aşıldı, %s sonra tekrar denenecek (deneme %d/%d)", wait, attempt+1, maxRetries)
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func toListingChanges(items []PlanItem) []database.ListingChange {
	out := make([]database.ListingChange, 0, len(items))
	for _, it := range items {
		out = append(out, database.ListingChange{Barcode: it.Barcode, Quantity: it.Quantity, Price: it.Price,
			SupplierSourceID: it.SourceID})
	}
	return out
}

// SubmitPlan: planı iş kuyruğunda uygular; exportPath boş değilse plan Excel'e de yazılır
func (s *SyncService) SubmitPlan(plan *SyncPlan, applier Applier, exportPath string) (string, error) {
	jobType := map[string]string{PlanDirect: JobDirectSync, PlanStock: JobStockSync, PlanPrice: JobPriceSync}[plan.Kind]
	return s.queue.Submit(JobSpec{
		UserID:      plan.UserID,
		JobType:     jobType,
		Marketplace: string(plan.Marketplace),
		Exclusive:   true,
		Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
			if exportPath != "" {
				if err := ExportUpdatePlan(exportPath, plan); err != nil {
					h.Logf("warning", "Plan dosyası yazılamadı: %v", err)
				}
			}
			return s.ApplyPlan(ctx, plan, applier, h)
		},
	})
}

// ExportUpdatePlan: planı (güncellemeler + yeni ürünler) kontrol için Excel'e yazar
func ExportUpdatePlan(path string, plan *SyncPlan) error {
	headers := []string{"İşlem", "Barkod", "Stok Kodu", "Ürün Adı", "Eski Stok", "Yeni Stok", "Eski Fiyat", "Yeni Fiyat"}
	rows := make([][]any, 0, len(plan.Updates)+len(plan.Creates))
	for _, it := range plan.Updates {
		var qty, price any = "", ""
		if it.Quantity != nil {
			qty = *it.Quantity
		}
		if it.Price != nil {
			price = *it.Price
		}
		rows = append(rows, []any{it.Action, it.Barcode, it.StockCode, it.Title, it.PrevQuantity, qty, it.PrevPrice, price})
	}
	for _, rec := range plan.Creates {
		rows = append(rows, []any{"create", rec.Barcode, rec.StockCode, rec.Title, "", rec.Quantity, "", rec.Price})
	}
	return utils.WriteSheet(path, "Senkron Planı", headers, rows)
}

// --- TOPLU DÜZENLEME (Excel'den fiyat/stok) ---

type BulkEditChange struct {
	Row       int
	Barcode   string
	Title     string
	OldPrice  decimal.Decimal
	NewPrice  *decimal.Decimal
	OldStock  int
	NewStock  *int
	GuardNote string
}

type BulkEditResult struct {
	Changes []BulkEditChange
	// Guarded: fiyat koruma sınırını aşanlar, onay gerekir
	Guarded []BulkEditChange
	Errors  []core.RowError
}

// ExportBulkEdit: pazaryeri görüntüsünü düzenleme dosyasına yazar
func (s *SyncService) ExportBulkEdit(ctx context.Context, userID int64, mp core.Marketplace, path string) (int, error) {
	listings, err := s.store.Listings(ctx, userID, mp)
	if err != nil {
		return 0, err
	}
	rows := make([]utils.BulkEditRow, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, utils.BulkEditRow{Title: l.Title, Barcode: l.Barcode, StockCode: l.StockCode,
			CurrentPrice: l.SalePrice, CurrentStock: l.Quantity})
	}
	return len(rows), utils.SaveBulkEditSheet(path, rows)
}

// ApplyBulkEdit, düzenlenmiş dosyadaki işlem ve yeni stok sütunlarını okuyup değişiklikleri hesaplar.
// Hiçbir şey yazmaz; onaydan sonra CommitBulkEdit çağrılır.
func (s *SyncService) ApplyBulkEdit(path string) (BulkEditResult, error) {
	rows, err := utils.ReadBulkEditSheet(path)
	if err != nil {
		return BulkEditResult{}, err
	}

	var res BulkEditResult
	for _, r := range rows {
		if r.Operation == "" && r.NewStock == "" {
			continue
		}
		ch := BulkEditChange{Row: r.Row, Barcode: r.Barcode, Title: r.Title, OldPrice: r.CurrentPrice, OldStock: r.CurrentStock}

		if r.Operation != "" {
			np, err := core.ApplyOperation(r.CurrentPrice, r.Operation)
			if err != nil {
				res.Errors = append(res.Errors, core.RowError{Row: r.Row, Column: "İŞLEM", Message: err.Error()})
				continue
			}
			ch.NewPrice = &np
		}
		if r.NewStock != "" {
			n, err := strconv.Atoi(r.NewStock)
			if err != nil || n < 0 {
				res.Errors = append(res.Errors, core.RowError{Row: r.Row, Column: "YENİ STOK", Message: fmt.Sprintf("geçersiz stok: %q", r.NewStock)})
				continue
			}
			if n != r.CurrentStock {
				ch.NewStock = &n
			}
		}
		if ch.NewPrice == nil && ch.NewStock == nil {
			continue
		}

		if ch.NewPrice != nil {
			if err := core.CheckPriceGuard(ch.OldPrice, *ch.NewPrice, s.guard.GuardMinRatio, s.guard.GuardMaxRatio); err != nil {
				ch.GuardNote = fmt.Sprintf("%s -> %s", ch.OldPrice.StringFixed(2), ch.NewPrice.StringFixed(2))
				res.Guarded = append(res.Guarded, ch)
				continue
			}
		}
		res.Changes = append(res.Changes, ch)
	}
	return res, nil
}

// CommitBulkEdit: onaylanan değişiklikleri yerel görüntüye yazar
func (s *SyncService) CommitBulkEdit(ctx context.Context, userID int64, mp core.Marketplace, changes []BulkEditChange) (int, error) {
	list := make([]database.ListingChange, 0, len(changes))
	for _, c := range changes {
		list = append(list, database.ListingChange{Barcode: c.Barcode, Quantity: c.NewStock, Price: c.NewPrice})
	}
	return s.store.ApplyListingChanges(ctx, userID, mp, list)
}
