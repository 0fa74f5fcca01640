package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// --- CONFIG YAPILARI ---
type AppConfig struct {
	Name      string `json:"name"`
	Env       string `json:"env"`
	UploadDir string `json:"upload_dir"` // local: önekli feed dosyalarının klasörü
}

type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, console
	Output string `json:"output"` // stdout, stderr veya dosya yolu
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type FeedConfig struct {
	UserAgent        string        `json:"user_agent"`
	Timeout          time.Duration `json:"timeout"`
	MaxCachedSources int           `json:"max_cached_sources"`
}

type JobsConfig struct {
	Workers        int           `json:"workers"`
	MaxJobs        int           `json:"max_jobs"`
	ChunkSize      int           `json:"chunk_size"`
	MaxRetries     int           `json:"max_retries"`
	RetryBaseDelay time.Duration `json:"retry_base_delay"`
}

type PricingConfig struct {
	GuardMaxRatio float64 `json:"guard_max_ratio"`
	GuardMinRatio float64 `json:"guard_min_ratio"`
}

type BugZConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

type Config struct {
	App      AppConfig      `json:"app"`
	Log      LogConfig      `json:"log"`
	Database DatabaseConfig `json:"database"`
	Feed     FeedConfig     `json:"feed"`
	Jobs     JobsConfig     `json:"jobs"`
	Pricing  PricingConfig  `json:"pricing"`
	BugZ     BugZConfig     `json:"bugz"`
}

// --- PAZARYERLERİ ---
type Marketplace string

const (
	Trendyol    Marketplace = "trendyol"
	Hepsiburada Marketplace = "hepsiburada"
	N11         Marketplace = "n11"
	Pazarama    Marketplace = "pazarama"
	Idefix      Marketplace = "idefix"
	Ikas        Marketplace = "ikas"
)

var Marketplaces = []Marketplace{Trendyol, Hepsiburada, N11, Pazarama, Idefix, Ikas}

// SettingsPrefix, ayar anahtarlarında kullanılan kısa ad (HB_PRICE_RULES gibi).
func (m Marketplace) SettingsPrefix() string {
	if m == Hepsiburada {
		return "HB"
	}
	return strings.ToUpper(string(m))
}

// DisplayName, BUG-Z notlarında ve raporlarda görünen ad.
func (m Marketplace) DisplayName() string {
	switch m {
	case Trendyol:
		return "Trendyol"
	case Hepsiburada:
		return "Hepsiburada"
	case N11:
		return "N11"
	case Pazarama:
		return "Pazarama"
	case Idefix:
		return "İdefix"
	case Ikas:
		return "İkas"
	}
	return string(m)
}

func ParseMarketplace(s string) (Marketplace, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "hb":
		return Hepsiburada, true
	case "idefıx":
		return Idefix, true
	}
	for _, m := range Marketplaces {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// --- ÜRÜN MODELLERİ ---

// Product: kullanıcının ana (master) ürün kaydı
type Product struct {
	ID               int64
	UserID           int64
	Barcode          string
	StockCode        string
	Title            string
	Brand            string
	Category         string
	Description      string
	CostPrice        decimal.Decimal
	ListPrice        decimal.Decimal
	VatRate          int
	Quantity         int
	Images           []string
	SupplierSourceID int64
	UpdatedAt        time.Time
}

type SourceKind string

const (
	SourceXML   SourceKind = "xml"
	SourceExcel SourceKind = "excel"
)

type SupplierSource struct {
	ID               int64
	UserID           int64
	Name             string
	URL              string
	Kind             SourceKind
	Priority         int
	Active           bool
	UseRandomBarcode bool
	LastCachedAt     time.Time
}

// SupplierRecord: tedarikçi feed'inden okunmuş tek satır (varyantlar dahil)
type SupplierRecord struct {
	Barcode       string
	ParentBarcode string
	StockCode     string
	ProductCode   string
	ModelCode     string
	Title         string
	Description   string
	Brand         string
	Category      string
	TopCategory   string
	Price         decimal.Decimal
	Quantity      int
	VatRate       int
	Desi          decimal.Decimal
	Color         string
	Size          string
	Images        []string
	Link          string
}

// Listing: pazaryeri panelindeki ürünün yerel görüntüsü
type Listing struct {
	ID               int64
	UserID           int64
	Marketplace      Marketplace
	Barcode          string
	StockCode        string
	Title            string
	Price            decimal.Decimal
	SalePrice        decimal.Decimal
	Quantity         int
	Status           string
	SupplierSourceID int64
	UpdatedAt        time.Time
}

// --- SİPARİŞ MODELLERİ ---
type Order struct {
	ID                 int64
	UserID             int64
	Marketplace        Marketplace
	MarketplaceOrderID string
	OrderNumber        string
	PackageID          string
	Status             string
	CustomerName       string
	CustomerEmail      string
	CustomerPhone      string
	City               string
	District           string
	Address            string
	OrderDate          time.Time
	TotalPrice         decimal.Decimal
	Commission         decimal.Decimal
	ShippingFee        decimal.Decimal
	ServiceFee         decimal.Decimal
	TotalDeductions    decimal.Decimal
	NetProfit          decimal.Decimal
	AdminNote          string
	Items              []OrderItem
}

type OrderItem struct {
	ID          int64
	OrderID     int64
	Barcode     string
	SKU         string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	VatRate     int
}

// --- BATCH (TOPLU İŞLEM) KAYITLARI ---
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobRunning    JobStatus = "running"
	JobPausing    JobStatus = "pausing"
	JobPaused     JobStatus = "paused"
	JobCancelling JobStatus = "cancelling"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal: bu durumdan sonra iş bir daha değişmez
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

type JobLogEntry struct {
	Time    time.Time `json:"ts"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

type BatchLog struct {
	ID           string
	UserID       int64
	Marketplace  string
	JobType      string
	Status       JobStatus
	ProductCount int
	SuccessCount int
	FailCount    int
	Error        string
	Logs         []JobLogEntry
	// Version her durum değişikliğinde artar; eski sürüm yenisinin üstüne yazılmaz
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// --- GLOBAL KATEGORİ MODELLERİ (Merkezi Sistem İçin) ---

// PlatformCategory: DB'deki 'platform_categories' tablosunu temsil eder
type PlatformCategory struct {
	Platform     string
	CategoryID   string
	CategoryName string
	ParentID     string
	IsLeaf       bool
}

// CategoryNode: pazaryeri kategori ağacı (Children recursive)
type CategoryNode struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	IsLeaf   bool           `json:"leaf"`
	Children []CategoryNode `json:"children"`
}

type CategoryMatch struct {
	ID    string
	Name  string
	Score float64
}

type BlacklistKind string

const (
	BlacklistBrand    BlacklistKind = "brand"
	BlacklistCategory BlacklistKind = "category"
	BlacklistWord     BlacklistKind = "word"
)

type BlacklistEntry struct {
	ID     int64
	UserID int64
	Kind   BlacklistKind
	Value  string
}

// RowError: içe aktarmada tek satırı etkileyen hata, tüm işlemi durdurmaz
type RowError struct {
	Row     int
	Column  string
	Message string
}
