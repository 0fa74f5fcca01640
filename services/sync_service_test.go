package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func addListing(t *testing.T, store *database.Store, mp core.Marketplace, barcode, stockCode string, qty int, price string, owner int64) {
	t.Helper()
	require.NoError(t, store.UpsertListing(context.Background(), core.Listing{
		UserID: testUser, Marketplace: mp, Barcode: barcode, StockCode: stockCode, Title: "Ürün " + barcode,
		Price: dec(price), SalePrice: dec(price), Quantity: qty, SupplierSourceID: owner,
	}))
}

func listingsByBarcode(t *testing.T, store *database.Store, mp core.Marketplace) map[string]core.Listing {
	t.Helper()
	list, err := store.Listings(context.Background(), testUser, mp)
	require.NoError(t, err)
	out := make(map[string]core.Listing, len(list))
	for _, l := range list {
		out[l.Barcode] = l
	}
	return out
}

func newSyncService(store *database.Store, queue *JobQueue) (*SyncService, *[]time.Duration) {
	svc := NewSyncService(store, NewResolver(store, 10, nil), queue, testConfig(""), nil)
	var waits []time.Duration
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return svc, &waits
}

func TestPlanDirectSync(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	src := addSource(t, store, "tedarik", 1, []core.SupplierRecord{
		{Barcode: "B1", StockCode: "S1", Quantity: 5, Price: dec("100")},
		{Barcode: "B2", StockCode: "S2", Quantity: -3, Price: dec("40")},
		{Barcode: "B3", StockCode: "S3", Quantity: 9, Price: dec("15")},
		{Barcode: "B1-V", StockCode: "s1", Quantity: 1, Price: dec("100")},
		{Barcode: "B6", StockCode: "S6", Quantity: 4, Price: dec("60")},
	})

	addListing(t, store, core.Trendyol, "L1", "S1", 2, "100", src) // stok farkı
	addListing(t, store, core.Trendyol, "L2", "S2", 4, "40", 0)    // sahip değişir, stok 0
	addListing(t, store, core.Trendyol, "L9", "S9", 3, "10", src)  // feed'de yok, sıfırlanır
	addListing(t, store, core.Trendyol, "L8", "S8", 3, "10", 77)   // başka kaynağın, dokunulmaz
	addListing(t, store, core.Trendyol, "L7", "S7", 0, "10", src)  // zaten sıfır
	addListing(t, store, core.Trendyol, "L6", "S6", 4, "60", src)  // değişiklik yok

	svc, _ := newSyncService(store, nil)
	plan, err := svc.PlanDirectSync(ctx, testUser, core.Trendyol, src)
	require.NoError(t, err)

	require.Len(t, plan.Updates, 3)
	assert.Equal(t, 1, plan.Zeroed)

	byCode := map[string]PlanItem{}
	for _, it := range plan.Updates {
		byCode[it.Barcode] = it
	}
	assert.Equal(t, ActionUpdate, byCode["L1"].Action)
	assert.Equal(t, 5, *byCode["L1"].Quantity)
	assert.Equal(t, 0, *byCode["L2"].Quantity, "negatif stok sıfır")
	assert.Equal(t, src, byCode["L2"].SourceID)
	assert.Equal(t, ActionZero, byCode["L9"].Action)
	assert.NotContains(t, byCode, "L8")
	assert.NotContains(t, byCode, "L7")

	require.Len(t, plan.Creates, 1)
	assert.Equal(t, "B3", plan.Creates[0].Barcode)
}

func TestPlanDirectSync_RandomBarcodesForCreates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	src, err := store.CreateSupplierSource(ctx, core.SupplierSource{
		UserID: testUser, Name: "rastgele", URL: "local:r.xml", Kind: core.SourceXML, Active: true, UseRandomBarcode: true,
	})
	require.NoError(t, err)
	require.NoError(t, store.ReplaceSupplierRecords(ctx, src, []core.SupplierRecord{
		{Barcode: "PC-1", StockCode: "PC-1", Quantity: 1, Price: dec("10")},
		{Barcode: "8680000000011", StockCode: "S2", Quantity: 1, Price: dec("10")},
	}))

	svc, _ := newSyncService(store, nil)
	plan, err := svc.PlanDirectSync(ctx, testUser, core.Pazarama, src)
	require.NoError(t, err)
	require.Len(t, plan.Creates, 2)
	assert.True(t, core.ValidEAN13(plan.Creates[0].Barcode), plan.Creates[0].Barcode)
	assert.Equal(t, "PC-1", plan.Creates[0].StockCode)
	assert.Equal(t, "8680000000011", plan.Creates[1].Barcode, "geçerli barkod korunur")

	require.NoError(t, store.SetSetting(ctx, testUser, "AUTO_SYNC_USE_OVERRIDE_BARCODE_pazarama", "true"))
	plan, err = svc.PlanDirectSync(ctx, testUser, core.Pazarama, src)
	require.NoError(t, err)
	assert.NotEqual(t, "8680000000011", plan.Creates[1].Barcode)
	assert.NotEqual(t, plan.Creates[0].Barcode, plan.Creates[1].Barcode)
}

func TestPlanDirectSync_EmptyCache(t *testing.T) {
	store := newTestStore(t)
	src := addSource(t, store, "bos", 1, nil)
	svc, _ := newSyncService(store, nil)

	_, err := svc.PlanDirectSync(context.Background(), testUser, core.Trendyol, src)
	assert.ErrorIs(t, err, core.ErrEmptyFeed)

	_, err = svc.PlanStockSync(context.Background(), testUser, core.Trendyol)
	assert.ErrorIs(t, err, core.ErrEmptyFeed)
}

func TestPlanStockSync(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	src := addSource(t, store, "tedarik", 1, []core.SupplierRecord{
		{Barcode: "B1", StockCode: "S1", Title: "Kupa", Quantity: 10},
		{Barcode: "B2", StockCode: "S2", Quantity: -1},
		{Barcode: "B3", StockCode: "S3", Quantity: 3},
	})
	addListing(t, store, core.N11, "B1", "", 4, "10", 0)
	addListing(t, store, core.N11, "X2", "S2", 2, "10", 0)
	addListing(t, store, core.N11, "B3", "S3", 3, "10", 0)
	for i := range 25 {
		addListing(t, store, core.N11, fmt.Sprintf("YOK%02d", i), "", 1, "10", 0)
	}

	svc, _ := newSyncService(store, nil)
	plan, err := svc.PlanStockSync(ctx, testUser, core.N11)
	require.NoError(t, err)

	require.Len(t, plan.Updates, 2)
	assert.Equal(t, 10, *plan.Updates[0].Quantity)
	assert.Equal(t, src, plan.Updates[0].SourceID)
	assert.Equal(t, 0, *plan.Updates[1].Quantity)
	assert.Equal(t, 1, plan.Zeroed)

	assert.Equal(t, 25, plan.MissingTotal)
	assert.Len(t, plan.Missing, maxMissingCodes)
	assert.Len(t, plan.Samples, 2)
}

func TestPlanPriceSync(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SetSetting(ctx, testUser, "PAZARAMA_PRICE_PERCENTAGE", "20"))

	addSource(t, store, "tedarik", 1, []core.SupplierRecord{
		{Barcode: "B1", Price: dec("100")}, // 120
		{Barcode: "B2", Price: dec("50")},  // 60, zaten 60
		{Barcode: "B3", Price: dec("0")},   // atlanır
		{Barcode: "B4", Price: dec("10")},  // 12, 11.995 ile fark < 0.01
	})
	addListing(t, store, core.Pazarama, "B1", "", 1, "99", 0)
	addListing(t, store, core.Pazarama, "B2", "", 1, "60", 0)
	addListing(t, store, core.Pazarama, "B3", "", 1, "30", 0)
	addListing(t, store, core.Pazarama, "B4", "", 1, "11.995", 0)

	svc, _ := newSyncService(store, nil)
	plan, err := svc.PlanPriceSync(ctx, testUser, core.Pazarama)
	require.NoError(t, err)

	require.Len(t, plan.Updates, 1)
	assert.Equal(t, "B1", plan.Updates[0].Barcode)
	assert.True(t, dec("120").Equal(*plan.Updates[0].Price))
	assert.Nil(t, plan.Updates[0].Quantity)
	assert.Equal(t, []string{"B3"}, plan.SkippedZeroPrice)
}

type fakeApplier struct {
	mu        sync.Mutex
	rateLimit int
	failWith  error
	calls     int
	items     int
}

func (f *fakeApplier) Apply(ctx context.Context, mp core.Marketplace, items []PlanItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.rateLimit > 0 {
		f.rateLimit--
		return fmt.Errorf("%s: %w", mp, core.ErrRateLimited)
	}
	if f.failWith != nil {
		return f.failWith
	}
	f.items += len(items)
	return nil
}

func stockPlan(items map[string]int) *SyncPlan {
	plan := &SyncPlan{Kind: PlanStock, UserID: testUser, Marketplace: core.Trendyol}
	for _, code := range []string{"A", "B", "C"} {
		if q, ok := items[code]; ok {
			plan.addUpdate(PlanItem{Barcode: code, Action: ActionUpdate, Quantity: &q})
		}
	}
	return plan
}

func TestApplyPlan_RetriesRateLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, code := range []string{"A", "B", "C"} {
		addListing(t, store, core.Trendyol, code, "", 1, "10", 0)
	}

	svc, waits := newSyncService(store, nil)
	applier := &fakeApplier{rateLimit: 2}
	price := dec("12.5")
	plan := stockPlan(map[string]int{"A": 5, "B": 6, "C": 7})
	plan.Updates[2].Price = &price

	res, err := svc.ApplyPlan(ctx, plan, applier, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, 0, res.FailCount)
	assert.Equal(t, 4, applier.calls, "2 limit hatası + 2 paket")
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, *waits)

	got := listingsByBarcode(t, store, core.Trendyol)
	assert.Equal(t, 5, got["A"].Quantity)
	assert.Equal(t, 7, got["C"].Quantity)
	assert.True(t, price.Equal(got["C"].SalePrice))
	assert.True(t, dec("10").Equal(got["A"].SalePrice), "fiyatı olmayan kalemde fiyat değişmez")
}

func TestApplyPlan_FailuresAreCounted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	addListing(t, store, core.Trendyol, "A", "", 1, "10", 0)

	svc, waits := newSyncService(store, nil)

	// limit hatası MaxRetries'tan sonra vazgeçilir
	applier := &fakeApplier{rateLimit: 10}
	res, err := svc.ApplyPlan(ctx, stockPlan(map[string]int{"A": 3}), applier, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailCount)
	assert.Equal(t, 4, applier.calls)
	assert.Len(t, *waits, 3)

	// diğer hatalar tekrar denenmez
	applier = &fakeApplier{failWith: errors.New("400 bad request")}
	res, err = svc.ApplyPlan(ctx, stockPlan(map[string]int{"A": 3}), applier, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailCount)
	assert.Equal(t, 1, applier.calls)

	assert.Equal(t, 1, listingsByBarcode(t, store, core.Trendyol)["A"].Quantity)
}

func TestSubmitPlan_RunsInQueueAndExports(t *testing.T) {
	store := newTestStore(t)
	addListing(t, store, core.Trendyol, "A", "", 1, "10", 0)
	addListing(t, store, core.Trendyol, "B", "", 1, "10", 0)

	q := NewJobQueue(1, 10, store, nil)
	defer shutdownQueue(t, q)

	svc, _ := newSyncService(store, q)
	plan := stockPlan(map[string]int{"A": 0, "B": 8})
	plan.Creates = []core.SupplierRecord{{Barcode: "N1", Title: "Yeni", Quantity: 2, Price: dec("5")}}
	out := filepath.Join(t.TempDir(), "plan.xlsx")

	id, err := svc.SubmitPlan(plan, &fakeApplier{}, out)
	require.NoError(t, err)

	info := waitJob(t, q, id)
	assert.Equal(t, core.JobCompleted, info.Status)
	assert.Equal(t, JobStockSync, info.JobType)
	assert.Equal(t, 2, info.Result.SuccessCount)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Senkron Planı")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "create", rows[3][0])
}

func TestBulkEdit_ExportApplyCommit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	addListing(t, store, core.Hepsiburada, "A", "", 5, "100", 0)
	addListing(t, store, core.Hepsiburada, "B", "", 2, "50", 0)
	addListing(t, store, core.Hepsiburada, "C", "", 1, "10", 0)
	addListing(t, store, core.Hepsiburada, "D", "", 3, "20", 0)

	svc, _ := newSyncService(store, nil)
	path := filepath.Join(t.TempDir(), "duzenle.xlsx")
	n, err := svc.ExportBulkEdit(ctx, testUser, core.Hepsiburada, path)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Ürün Listesi", "F2", "*1.1"))
	require.NoError(t, f.SetCellValue("Ürün Listesi", "G2", "9"))
	require.NoError(t, f.SetCellValue("Ürün Listesi", "F3", "*10"))
	require.NoError(t, f.SetCellValue("Ürün Listesi", "G4", "abc"))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	res, err := svc.ApplyBulkEdit(path)
	require.NoError(t, err)

	require.Len(t, res.Changes, 1)
	ch := res.Changes[0]
	assert.Equal(t, "A", ch.Barcode)
	assert.True(t, dec("110").Equal(*ch.NewPrice))
	assert.Equal(t, 9, *ch.NewStock)

	require.Len(t, res.Guarded, 1)
	assert.Equal(t, "B", res.Guarded[0].Barcode)
	assert.Equal(t, "50.00 -> 500.00", res.Guarded[0].GuardNote)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, 4, res.Errors[0].Row)

	affected, err := svc.CommitBulkEdit(ctx, testUser, core.Hepsiburada, res.Changes)
	require.NoError(t, err)
	assert.Equal(t, 1, affected)

	got := listingsByBarcode(t, store, core.Hepsiburada)
	assert.True(t, dec("110").Equal(got["A"].SalePrice))
	assert.Equal(t, 9, got["A"].Quantity)
	assert.True(t, dec("50").Equal(got["B"].SalePrice))
}

func TestExportUpdatePlan_WritesFile(t *testing.T) {
	qty := 3
	price := decimal.NewFromInt(42)
	plan := &SyncPlan{Updates: []PlanItem{{Barcode: "A", Action: ActionUpdate, Quantity: &qty, Price: &price}}}
	path := filepath.Join(t.TempDir(), "alt", "plan.xlsx")
	require.NoError(t, ExportUpdatePlan(path, plan))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
