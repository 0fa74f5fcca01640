package database

import (
	"context"
	"testing"
	"time"

	"vidos-entegrasyon/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEnsureUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.EnsureUser(ctx, "magaza")
	require.NoError(t, err)
	id2, err := s.EnsureUser(ctx, "magaza")
	require.NoError(t, err)
	other, err := s.EnsureUser(ctx, "diger")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, other)
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetSetting(ctx, 1, "HB_PRICE_RULES", "varsayilan")
	require.NoError(t, err)
	assert.Equal(t, "varsayilan", v)

	require.NoError(t, s.SetSetting(ctx, 1, "HB_PRICE_FIXED", "5"))
	require.NoError(t, s.SetSetting(ctx, 1, "HB_PRICE_FIXED", "7"))
	require.NoError(t, s.SetSetting(ctx, 1, "BUGZ_API_KEY", "k"))
	require.NoError(t, s.SetSetting(ctx, 2, "HB_PRICE_FIXED", "9"))

	v, err = s.GetSetting(ctx, 1, "HB_PRICE_FIXED", "")
	require.NoError(t, err)
	assert.Equal(t, "7", v)

	all, err := s.Settings(ctx, 1, "HB_")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"HB_PRICE_FIXED": "7"}, all)
}

func TestUpsertProduct_KeepsCostAndAllowsMissingBarcodes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertProduct(ctx, core.Product{
		UserID: 1, Barcode: "8680000000006", StockCode: "SK-1", Title: "Kupa", CostPrice: d("42.5"),
		Images: []string{"http://a/1.jpg", "http://a/2.jpg"},
	}))
	require.NoError(t, s.UpsertProduct(ctx, core.Product{
		UserID: 1, Barcode: "8680000000006", Title: "Kupa Yeni", Quantity: 3,
	}))

	p, err := s.ProductByBarcode(ctx, 1, "8680000000006")
	require.NoError(t, err)
	assert.Equal(t, "Kupa Yeni", p.Title)
	assert.Equal(t, "SK-1", p.StockCode)
	assert.True(t, d("42.5").Equal(p.CostPrice))
	assert.Equal(t, 3, p.Quantity)
	assert.Len(t, p.Images, 2)

	bySku, err := s.ProductByStockCode(ctx, 1, "SK-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, bySku.ID)

	_, err = s.ProductByBarcode(ctx, 2, "8680000000006")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.UpsertProduct(ctx, core.Product{UserID: 1, Title: "Barkodsuz 1"}))
	require.NoError(t, s.UpsertProduct(ctx, core.Product{UserID: 1, Title: "Barkodsuz 2"}))
	require.NoError(t, s.UpsertProduct(ctx, core.Product{UserID: 1, Barcode: "123", Title: "Kısa"}))

	missing, err := s.ProductsNeedingBarcode(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, missing, 3)

	require.NoError(t, s.UpdateProductBarcode(ctx, missing[0].ID, "8681111111116"))
	exists, err := s.BarcodeExists(ctx, 1, "8681111111116")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.BarcodeExists(ctx, 2, "8681111111116")
	require.NoError(t, err)
	assert.False(t, exists, "başka kullanıcının kataloğu sayılmaz")

	require.NoError(t, s.UpdateProductCost(ctx, 1, "8681111111116", d("10")))
	assert.ErrorIs(t, s.UpdateProductCost(ctx, 1, "yok-boyle", d("10")), core.ErrNotFound)
}

func TestSupplierRecords_Replace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSupplierSource(ctx, core.SupplierSource{UserID: 1, Name: "Tedarikçi A", URL: "http://x", Active: true, Priority: 2})
	require.NoError(t, err)
	_, err = s.CreateSupplierSource(ctx, core.SupplierSource{UserID: 1, Name: "Tedarikçi B", Active: true, Priority: 1})
	require.NoError(t, err)
	_, err = s.CreateSupplierSource(ctx, core.SupplierSource{UserID: 1, Name: "Pasif", Active: false})
	require.NoError(t, err)

	sources, err := s.ActiveSupplierSources(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "Tedarikçi B", sources[0].Name)
	assert.Equal(t, core.SourceXML, sources[1].Kind)

	first := []core.SupplierRecord{{Barcode: "A1", Price: d("10")}, {Barcode: "A2", Price: d("20")}}
	require.NoError(t, s.ReplaceSupplierRecords(ctx, id, first))
	second := []core.SupplierRecord{{Barcode: "B1", StockCode: "S-B1", Price: d("12.75"), Quantity: 4, Images: []string{"http://img"}}}
	require.NoError(t, s.ReplaceSupplierRecords(ctx, id, second))

	recs, err := s.SupplierRecords(ctx, id)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "B1", recs[0].Barcode)
	assert.True(t, d("12.75").Equal(recs[0].Price))
	assert.Equal(t, []string{"http://img"}, recs[0].Images)

	src, err := s.SupplierSource(ctx, 1, id)
	require.NoError(t, err)
	assert.False(t, src.LastCachedAt.IsZero())
}

func TestListings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertListing(ctx, core.Listing{
		UserID: 1, Marketplace: core.Pazarama, Barcode: "B1", StockCode: "S1", SalePrice: d("100"), Quantity: 5, SupplierSourceID: 3,
	}))
	require.NoError(t, s.UpsertListing(ctx, core.Listing{
		UserID: 1, Marketplace: core.Pazarama, Barcode: "B1", StockCode: "S1", SalePrice: d("110"), Quantity: 6,
	}))

	list, err := s.Listings(ctx, 1, core.Pazarama)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].SupplierSourceID)
	assert.Equal(t, 6, list[0].Quantity)

	qty := 0
	price := d("99.9")
	n, err := s.ApplyListingChanges(ctx, 1, core.Pazarama, []ListingChange{
		{Barcode: "B1", Quantity: &qty},
		{Barcode: "B1", Price: &price},
		{Barcode: "YOK", Quantity: &qty},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err = s.Listings(ctx, 1, core.Pazarama)
	require.NoError(t, err)
	assert.Equal(t, 0, list[0].Quantity)
	assert.True(t, d("99.9").Equal(list[0].SalePrice))
}

func TestOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	order := core.Order{
		UserID: 1, Marketplace: core.Trendyol, MarketplaceOrderID: "TY-1", OrderNumber: "TY-1",
		Status: "Created", OrderDate: day, TotalPrice: d("250"), Commission: d("25"),
		Items: []core.OrderItem{{Barcode: "B1", Quantity: 2, UnitPrice: d("125"), TotalPrice: d("250")}},
	}
	id, inserted, err := s.UpsertOrder(ctx, order)
	require.NoError(t, err)
	assert.True(t, inserted)

	order.Status = "Delivered"
	order.Commission = decimal.Zero
	id2, inserted, err := s.UpsertOrder(ctx, order)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id, id2)

	got, err := s.Order(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, "Delivered", got.Status)
	assert.True(t, d("25").Equal(got.Commission))
	assert.Len(t, got.Items, 1)

	_, _, err = s.UpsertOrder(ctx, core.Order{UserID: 1, Marketplace: core.Trendyol, MarketplaceOrderID: "TY-2",
		OrderDate: day.AddDate(0, 1, 0), TotalPrice: d("10")})
	require.NoError(t, err)

	inRange, err := s.Orders(ctx, 1, day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, "TY-1", inRange[0].MarketplaceOrderID)

	all, err := s.Orders(ctx, 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.UpdateOrderProfit(ctx, id, d("40"), d("80.5")))
	require.NoError(t, s.AppendAdminNote(ctx, id, "BUG-Z: 1"))
	require.NoError(t, s.AppendAdminNote(ctx, id, "BUG-Z: 2"))

	got, err = s.Order(ctx, 1, id)
	require.NoError(t, err)
	assert.True(t, d("80.5").Equal(got.NetProfit))
	assert.Equal(t, "BUG-Z: 1\nBUG-Z: 2", got.AdminNote)
}

func TestBatchLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := core.BatchLog{ID: "job-1", UserID: 1, JobType: "feed_refresh", Status: core.JobQueued, Version: 1}
	require.NoError(t, s.SaveBatchLog(ctx, b))

	b.Version = 2
	b.Status = core.JobCompleted
	b.SuccessCount = 9
	b.Logs = []core.JobLogEntry{{Time: time.Now(), Level: "info", Message: "bitti"}}
	require.NoError(t, s.SaveBatchLog(ctx, b))

	got, err := s.BatchLog(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, got.Status)
	assert.Equal(t, 9, got.SuccessCount)
	require.Len(t, got.Logs, 1)
	assert.Equal(t, "bitti", got.Logs[0].Message)

	// geç kalan eski sürüm bitmiş işin durumunu ezmez
	stale := core.BatchLog{ID: "job-1", UserID: 1, JobType: "feed_refresh", Status: core.JobQueued, Version: 1}
	require.NoError(t, s.SaveBatchLog(ctx, stale))
	got, err = s.BatchLog(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, got.Status)
	assert.Equal(t, int64(2), got.Version)
	assert.Len(t, got.Logs, 1)

	recent, err := s.RecentBatchLogs(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	_, err = s.BatchLog(ctx, "yok")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCategoriesAndMappings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCategories(ctx, []core.PlatformCategory{
		{Platform: "pazarama", CategoryID: "1", CategoryName: "Kozmetik", ParentID: "0"},
		{Platform: "pazarama", CategoryID: "2", CategoryName: "Şampuan", ParentID: "1", IsLeaf: true},
	}))
	leaves, err := s.LeafCategories(ctx, "pazarama")
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, "Şampuan", leaves[0].CategoryName)

	_, err = s.CategoryMapping(ctx, 1, "pazarama", "Bebek Şampuanı")
	assert.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, s.SaveCategoryMapping(ctx, 1, "pazarama", "Bebek Şampuanı", "2"))
	id, err := s.CategoryMapping(ctx, 1, "pazarama", "Bebek Şampuanı")
	require.NoError(t, err)
	assert.Equal(t, "2", id)

	require.NoError(t, s.SaveBrandMapping(ctx, 1, "ACME", "Acme Türkiye"))
	brands, err := s.BrandMappings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Acme Türkiye", brands["ACME"])

	require.NoError(t, s.AddBlacklist(ctx, 1, core.BlacklistWord, "replika"))
	require.NoError(t, s.AddBlacklist(ctx, 1, core.BlacklistWord, "replika"))
	bl, err := s.Blacklist(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, bl, 1)
}
