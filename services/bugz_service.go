package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	bugzPaymentType = 38 // Cariden Ödeme
	bugzStatusNew   = 1  // Yeni Sipariş
	bugzUserAgent   = "Vidos-Integrator/1.0"
	bugzTimeFormat  = "2006-01-02 15:04:05"
)

type BugZCustomer struct {
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
	District string `json:"district"`
	Address  string `json:"address"`
	Country  string `json:"country"`
}

type BugZOrderInfo struct {
	PaymentType int    `json:"paymentType"`
	Status      int    `json:"status"`
	Note        string `json:"note"`
	CreatedAt   string `json:"createdAt"`
}

type BugZProduct struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Tax      float64 `json:"tax"`
	Quantity int     `json:"quantity"`
}

type BugZOrderRequest struct {
	Customer BugZCustomer  `json:"customer"`
	Order    BugZOrderInfo `json:"order"`
	Products []BugZProduct `json:"products"`
}

type BugZResponse struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Result      struct {
		Code string `json:"code"`
	} `json:"result"`
}

// BugZClient: kullanıcının BUG-Z hesabına sipariş aktarımı
type BugZClient struct {
	client    *resty.Client
	apiKey    string
	apiSecret string
	baseURL   string
}

// NewBugZClient, kullanıcı ayarlarından (BUGZ_API_KEY, BUGZ_API_SECRET, BUGZ_API_URL) istemci kurar.
func NewBugZClient(ctx context.Context, store *database.Store, userID int64, cfg core.BugZConfig) (*BugZClient, error) {
	settings, err := store.Settings(ctx, userID, "BUGZ_")
	if err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(settings["BUGZ_API_URL"])
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &BugZClient{
		apiKey:    strings.TrimSpace(settings["BUGZ_API_KEY"]),
		apiSecret: strings.TrimSpace(settings["BUGZ_API_SECRET"]),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
	c.client = resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", bugzUserAgent).
		SetHeader("apikey", c.apiKey).
		SetHeader("apisecret", c.apiSecret)
	return c, nil
}

func (c *BugZClient) IsConfigured() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// CheckConnection: hafif bir listeleme isteği ile anahtarları doğrular
func (c *BugZClient) CheckConnection(ctx context.Context) error {
	if !c.IsConfigured() {
		return fmt.Errorf("%w: API Key veya API Secret eksik", core.ErrNotConfigured)
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("limit", "1").
		Get("/web_servis/order/filter")
	if err != nil {
		return fmt.Errorf("BUG-Z bağlantı hatası: %w", err)
	}
	switch {
	case resp.StatusCode() == 401:
		return fmt.Errorf("BUG-Z: API anahtarı veya sırrı geçersiz")
	case !resp.IsSuccess():
		return fmt.Errorf("BUG-Z bağlantı hatası: HTTP %d", resp.StatusCode())
	}
	return nil
}

// BuildOrderRequest: pazaryeri siparişini BUG-Z formatına çevirir
func BuildOrderRequest(o core.Order) BugZOrderRequest {
	first, last := splitName(o.CustomerName)
	created := o.OrderDate
	if created.IsZero() {
		created = time.Now()
	}

	req := BugZOrderRequest{
		Customer: BugZCustomer{
			Name:     first,
			Lastname: last,
			Email:    o.CustomerEmail,
			Phone:    o.CustomerPhone,
			City:     o.City,
			District: o.District,
			Address:  o.Address,
			Country:  "Türkiye",
		},
		Order: BugZOrderInfo{
			PaymentType: bugzPaymentType,
			Status:      bugzStatusNew,
			Note:        fmt.Sprintf("Vidos - %s Siparişi: %s", strings.ToUpper(string(o.Marketplace)), o.OrderNumber),
			CreatedAt:   created.Format(bugzTimeFormat),
		},
	}
	for _, it := range o.Items {
		code := it.SKU
		if code == "" {
			code = it.Barcode
		}
		tax := float64(it.VatRate)
		if it.VatRate == 0 {
			tax = 20
		}
		req.Products = append(req.Products, BugZProduct{
			Code:     code,
			Name:     it.ProductName,
			Price:    it.UnitPrice.InexactFloat64(),
			Tax:      tax,
			Quantity: it.Quantity,
		})
	}
	return req
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "İsimsiz", "Müşteri"
	case 1:
		return parts[0], ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

// CreateOrder, siparişi BUG-Z'ye iletir ve BUG-Z sipariş kodunu döner.
func (c *BugZClient) CreateOrder(ctx context.Context, o core.Order) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("%w: BUG-Z API ayarları (Key/Secret) eksik", core.ErrNotConfigured)
	}

	var result BugZResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(BuildOrderRequest(o)).
		SetResult(&result).
		SetError(&result).
		Post("/web_servis/order/create")
	if err != nil {
		return "", fmt.Errorf("BUG-Z bağlantı hatası: %w", err)
	}
	if resp.StatusCode() != 200 || result.Code != "SUCCESS" {
		desc := result.Description
		if desc == "" {
			desc = "Bilinmeyen hata"
		}
		return "", fmt.Errorf("BUG-Z API hatası (HTTP %d): %s", resp.StatusCode(), desc)
	}
	return result.Result.Code, nil
}

// BugZService: siparişleri iş kuyruğu üzerinden BUG-Z'ye aktarır
type BugZService struct {
	store *database.Store
	queue *JobQueue
	cfg   core.BugZConfig
	log   *zap.Logger
}

func NewBugZService(store *database.Store, queue *JobQueue, cfg core.BugZConfig, logger *zap.Logger) *BugZService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BugZService{store: store, queue: queue, cfg: cfg, log: logger.Named("bugz")}
}

// ForwardOrders: siparişleri sırayla aktarır, başarılı olanların notuna BUG-Z numarası yazılır
func (s *BugZService) ForwardOrders(ctx context.Context, userID int64, orderIDs []int64, h *JobHandle) (JobResult, error) {
	res := JobResult{ProductCount: len(orderIDs)}
	client, err := NewBugZClient(ctx, s.store, userID, s.cfg)
	if err != nil {
		return res, err
	}
	if !client.IsConfigured() {
		return res, core.ErrNotConfigured
	}

	for i, id := range orderIDs {
		if h != nil {
			if err := h.Checkpoint(ctx); err != nil {
				return res, err
			}
			h.Progress(i, len(orderIDs))
		}

		o, err := s.store.Order(ctx, userID, id)
		if err != nil {
			res.FailCount++
			s.logJob(h, "error", fmt.Sprintf("Sipariş %d okunamadı: %v", id, err))
			continue
		}
		code, err := client.CreateOrder(ctx, o)
		if err != nil {
			res.FailCount++
			s.logJob(h, "error", fmt.Sprintf("#%s aktarılamadı: %v", o.OrderNumber, err))
			continue
		}
		if err := s.store.AppendAdminNote(ctx, o.ID, "BUG-Z Sipariş No: "+code); err != nil {
			return res, err
		}
		res.SuccessCount++
		s.logJob(h, "info", fmt.Sprintf("#%s BUG-Z'ye aktarıldı (%s)", o.OrderNumber, code))
	}
	if h != nil {
		h.Progress(len(orderIDs), len(orderIDs))
	}
	return res, nil
}

func (s *BugZService) logJob(h *JobHandle, level, msg string) {
	if h != nil {
		h.Log(level, msg)
		return
	}
	if level == "error" {
		s.log.Error(msg)
		return
	}
	s.log.Info(msg)
}

// SubmitForward: aktarımı arka planda çalıştırır. Ayarlar eksikse iş açılmaz.
func (s *BugZService) SubmitForward(ctx context.Context, userID int64, orderIDs []int64) (string, error) {
	if len(orderIDs) == 0 {
		return "", nil
	}
	client, err := NewBugZClient(ctx, s.store, userID, s.cfg)
	if err != nil {
		return "", err
	}
	if !client.IsConfigured() {
		return "", core.ErrNotConfigured
	}
	ids := append([]int64(nil), orderIDs...)
	return s.queue.Submit(JobSpec{
		UserID:  userID,
		JobType: JobBugZForward,
		Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
			return s.ForwardOrders(ctx, userID, ids, h)
		},
	})
}
