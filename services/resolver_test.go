package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser int64 = 1

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addSource(t *testing.T, store *database.Store, name string, priority int, records []core.SupplierRecord) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := store.CreateSupplierSource(ctx, core.SupplierSource{
		UserID: testUser, Name: name, URL: "local:" + name + ".xml", Kind: core.SourceXML, Priority: priority, Active: true,
	})
	require.NoError(t, err)
	require.NoError(t, store.ReplaceSupplierRecords(ctx, id, records))
	return id
}

func testConfig(uploadDir string) core.Config {
	return core.Config{
		App:     core.AppConfig{UploadDir: uploadDir},
		Feed:    core.FeedConfig{UserAgent: "test", Timeout: 5 * time.Second},
		Jobs:    core.JobsConfig{ChunkSize: 2, MaxRetries: 3, RetryBaseDelay: time.Millisecond},
		Pricing: core.PricingConfig{GuardMaxRatio: 3, GuardMinRatio: 0.2},
	}
}

func TestResolver_PriorityAndCost(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	primary := addSource(t, store, "birincil", 1, []core.SupplierRecord{
		{Barcode: "B1", StockCode: "S1", Title: "Kupa", Price: dec("50")},
	})
	addSource(t, store, "ikincil", 2, []core.SupplierRecord{
		{Barcode: "B1", StockCode: "S1", Title: "Kupa", Price: dec("45")},
		{Barcode: "B2", StockCode: "S2", Title: "Tabak", Price: dec("30")},
	})

	r := NewResolver(store, 10, nil)
	set, err := r.Load(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	res, ok := set.Resolve("B1", "", "")
	require.True(t, ok)
	assert.Equal(t, primary, res.SourceID)
	assert.Equal(t, "birincil", res.SourceName)

	res, ok = set.Resolve("", "s2", "")
	require.True(t, ok)
	assert.Equal(t, "B2", res.Record.Barcode)

	// kaynak fiyatı
	cost, known, err := r.CostOf(ctx, testUser, set, "B2", "")
	require.NoError(t, err)
	assert.True(t, known)
	assert.True(t, dec("30").Equal(cost))

	// ürün kartındaki alış fiyatı önce gelir
	require.NoError(t, store.UpsertProduct(ctx, core.Product{UserID: testUser, Barcode: "B2", StockCode: "S2", CostPrice: dec("25")}))
	cost, known, err = r.CostOf(ctx, testUser, set, "B2", "")
	require.NoError(t, err)
	assert.True(t, known)
	assert.True(t, dec("25").Equal(cost))

	// stok kodu ile ürün kartı
	cost, known, err = r.CostOf(ctx, testUser, set, "", "S2")
	require.NoError(t, err)
	assert.True(t, known)
	assert.True(t, dec("25").Equal(cost))

	_, known, err = r.CostOf(ctx, testUser, set, "YOK", "YOK")
	require.NoError(t, err)
	assert.False(t, known)
}

func TestResolver_CacheRefreshesOnNewSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := addSource(t, store, "kaynak", 1, []core.SupplierRecord{{Barcode: "B1", Price: dec("10")}})
	r := NewResolver(store, 1, nil)

	si, err := r.LoadSource(ctx, testUser, id)
	require.NoError(t, err)
	assert.Equal(t, 1, si.Index.Len())

	again, err := r.LoadSource(ctx, testUser, id)
	require.NoError(t, err)
	assert.Same(t, si.Index, again.Index, "önbellek değişmediyse aynı indeks")

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.ReplaceSupplierRecords(ctx, id, []core.SupplierRecord{{Barcode: "B1"}, {Barcode: "B2"}}))
	fresh, err := r.LoadSource(ctx, testUser, id)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Index.Len())

	_, err = r.LoadSource(ctx, testUser, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestResolver_ResolvePrice(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SetSetting(ctx, testUser, "HB_PRICE_RULES", `[{"min":0,"max":100,"percent":50,"fixed":10}]`))
	require.NoError(t, store.SetSetting(ctx, testUser, "HB_PRICE_MULTIPLIER", "2"))

	r := NewResolver(store, 10, nil)
	p, err := r.ResolvePrice(ctx, testUser, core.Hepsiburada, core.SupplierRecord{Price: dec("40")})
	require.NoError(t, err)
	assert.True(t, dec("70").Equal(p), p.String())

	p, err = r.ResolvePrice(ctx, testUser, core.Hepsiburada, core.SupplierRecord{Price: dec("200")})
	require.NoError(t, err)
	assert.True(t, dec("400").Equal(p), p.String())

	// bozuk kural JSON'u hata değil, çarpana düşer
	require.NoError(t, store.SetSetting(ctx, testUser, "HB_PRICE_RULES", `[{`))
	p, err = r.ResolvePrice(ctx, testUser, core.Hepsiburada, core.SupplierRecord{Price: dec("40")})
	require.NoError(t, err)
	assert.True(t, dec("80").Equal(p), p.String())
}

func TestFeedService_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/feed.xml" {
			assert.Equal(t, "test", r.Header.Get("User-Agent"))
			w.Write([]byte(`<products><product><barcode>123456</barcode></product></products>`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "yerel.xml"), []byte("<x/>"), 0o644))

	fs := NewFeedService(newTestStore(t), nil, testConfig(dir), nil)
	ctx := context.Background()

	raw, err := fs.Fetch(ctx, srv.URL+"/feed.xml")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "123456")

	_, err = fs.Fetch(ctx, srv.URL+"/yok.xml")
	assert.ErrorContains(t, err, "HTTP 404")

	raw, err = fs.Fetch(ctx, "local:yerel.xml")
	require.NoError(t, err)
	assert.Equal(t, "<x/>", string(raw))

	for _, bad := range []string{"local:../etc/passwd", "local:/etc/passwd", "local:"} {
		_, err = fs.Fetch(ctx, bad)
		assert.Error(t, err, bad)
	}
}

func TestFeedService_RefreshSupplierCache(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	feed := `<products>
<product><barcode>8680000000011</barcode><name>Kupa</name><brand>acme</brand><price>10</price></product>
<product><barcode>8680000000028</barcode><name>Tabak</name><brand>Zeta</brand><price>20</price></product>
</products>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tedarik.xml"), []byte(feed), 0o644))

	require.NoError(t, store.SaveBrandMapping(ctx, testUser, "acme", "Acme"))
	require.NoError(t, store.SetSetting(ctx, testUser, "XML_BRAND_MAPPING", `{"Zeta":"Zeta Home"}`))

	id, err := store.CreateSupplierSource(ctx, core.SupplierSource{
		UserID: testUser, Name: "tedarik", URL: "local:tedarik.xml", Kind: core.SourceXML, Active: true,
	})
	require.NoError(t, err)

	fs := NewFeedService(store, nil, testConfig(dir), nil)
	res, err := fs.RefreshSupplierCache(ctx, testUser, id, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)

	recs, err := store.SupplierRecords(ctx, id)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Acme", recs[0].Brand)
	assert.Equal(t, "Zeta Home", recs[1].Brand)

	src, err := store.SupplierSource(ctx, testUser, id)
	require.NoError(t, err)
	assert.False(t, src.LastCachedAt.IsZero())

	_, err = fs.RefreshSupplierCache(ctx, testUser, 999, nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestFeedService_ExcelSourceOverHTTP(t *testing.T) {
	path := writeExcel(t, "uzak.xlsx", []string{"Barkod", "Ürün Adı", "Fiyat"}, [][]any{{"8680000000011", "Kupa", "10"}})
	body, err := os.ReadFile(path)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	fs := NewFeedService(newTestStore(t), nil, testConfig(t.TempDir()), nil)
	recs, rowErrs, err := fs.LoadSource(context.Background(), core.SupplierSource{URL: srv.URL + "/liste.xlsx", Kind: core.SourceExcel})
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, recs, 1)
	assert.True(t, dec("10").Equal(recs[0].Price))
}
