package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"
	"vidos-entegrasyon/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// excludedStatusParts: bu parçaları içeren durumlar ciroya katılmaz
var excludedStatusParts = []string{"iptal", "iade", "cancel", "return"}

// IsExcludedStatus: iptal, iade ve reddedilen siparişler.
// "red" sadece ayrı kelime olarak aranır, "Delivered" gibi durumlar elenmez.
func IsExcludedStatus(status string) bool {
	s := utils.TurkishLower(strings.TrimSpace(status))
	if s == "" {
		return false
	}
	for _, part := range excludedStatusParts {
		if strings.Contains(s, part) {
			return true
		}
	}
	for _, w := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '_' || r == '-' }) {
		if w == "red" || w == "rejected" || w == "reddedildi" {
			return true
		}
	}
	return false
}

type FinanceService struct {
	store    *database.Store
	resolver *Resolver
	queue    *JobQueue
	log      *zap.Logger
}

func NewFinanceService(store *database.Store, resolver *Resolver, queue *JobQueue, logger *zap.Logger) *FinanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinanceService{store: store, resolver: resolver, queue: queue, log: logger.Named("finance")}
}

// CalculateOrderProfit: siparişin kalemleri için maliyet bulunur ve kâr hesaplanır.
// persist true ise kesinti toplamı ve net kâr siparişe yazılır.
func (s *FinanceService) CalculateOrderProfit(ctx context.Context, o core.Order, persist bool) (core.ProfitResult, error) {
	set, err := s.resolver.Load(ctx, o.UserID)
	if err != nil {
		return core.ProfitResult{}, err
	}
	return s.orderProfit(ctx, o, set, persist)
}

func (s *FinanceService) orderProfit(ctx context.Context, o core.Order, set *SourceSet, persist bool) (core.ProfitResult, error) {
	in := core.ProfitInput{
		GrossSales: o.TotalPrice,
		Commission: o.Commission,
		Shipping:   o.ShippingFee,
		ServiceFee: o.ServiceFee,
	}
	for _, it := range o.Items {
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		cost, known, err := s.resolver.CostOf(ctx, o.UserID, set, it.Barcode, it.SKU)
		if err != nil {
			return core.ProfitResult{}, err
		}
		in.Items = append(in.Items, core.CostLine{
			Barcode:   it.Barcode,
			StockCode: it.SKU,
			Quantity:  qty,
			UnitCost:  cost,
			CostKnown: known,
		})
	}

	res := core.CalculateProfit(in)
	if persist && o.ID > 0 {
		if err := s.store.UpdateOrderProfit(ctx, o.ID, res.TotalDeductions, res.NetProfit); err != nil {
			return res, err
		}
	}
	if len(res.MissingCost) > 0 {
		s.log.Debug("maliyeti bilinmeyen kalemler", zap.String("order", o.OrderNumber), zap.Strings("codes", res.MissingCost))
	}
	return res, nil
}

// MarketplaceSummary: pazaryeri bazında kırılım
type MarketplaceSummary struct {
	Marketplace core.Marketplace
	Revenue     decimal.Decimal
	NetProfit   decimal.Decimal
	OrderCount  int
}

type FinancialSummary struct {
	Revenue          decimal.Decimal
	NetProfit        decimal.Decimal
	NetMargin        decimal.Decimal // yüzde
	TotalShipping    decimal.Decimal
	TotalCommission  decimal.Decimal
	TotalProductCost decimal.Decimal
	OrderCount       int
	ByMarketplace    []MarketplaceSummary
	MissingCost      []string // maliyeti eksik sipariş numaraları
}

// FinancialSummary: tarih aralığındaki geçerli siparişlerin özeti. Sıfır zaman sınır koymaz.
// Kârı hiç hesaplanmamış siparişler burada hesaplanıp kaydedilir.
func (s *FinanceService) FinancialSummary(ctx context.Context, userID int64, from, to time.Time) (FinancialSummary, error) {
	orders, err := s.store.Orders(ctx, userID, from, to)
	if err != nil {
		return FinancialSummary{}, err
	}

	var set *SourceSet
	sum := FinancialSummary{}
	byMP := make(map[core.Marketplace]*MarketplaceSummary)

	for _, o := range orders {
		if IsExcludedStatus(o.Status) {
			continue
		}

		var profit, cost decimal.Decimal
		if o.NetProfit.IsZero() && o.TotalPrice.IsPositive() {
			if set == nil {
				if set, err = s.resolver.Load(ctx, userID); err != nil {
					return sum, err
				}
			}
			calc, err := s.orderProfit(ctx, o, set, true)
			if err != nil {
				return sum, err
			}
			profit, cost = calc.NetProfit, calc.TotalCost
			if len(calc.MissingCost) > 0 {
				sum.MissingCost = append(sum.MissingCost, o.OrderNumber)
			}
		} else {
			profit = o.NetProfit
			cost = o.TotalPrice.Sub(profit).Sub(o.TotalDeductions)
		}

		sum.Revenue = sum.Revenue.Add(o.TotalPrice)
		sum.NetProfit = sum.NetProfit.Add(profit)
		sum.TotalShipping = sum.TotalShipping.Add(o.ShippingFee)
		sum.TotalCommission = sum.TotalCommission.Add(o.Commission)
		sum.TotalProductCost = sum.TotalProductCost.Add(cost)
		sum.OrderCount++

		m, ok := byMP[o.Marketplace]
		if !ok {
			m = &MarketplaceSummary{Marketplace: o.Marketplace}
			byMP[o.Marketplace] = m
		}
		m.Revenue = m.Revenue.Add(o.TotalPrice)
		m.NetProfit = m.NetProfit.Add(profit)
		m.OrderCount++
	}

	if sum.Revenue.IsPositive() {
		sum.NetMargin = sum.NetProfit.Div(sum.Revenue).Mul(decimal.NewFromInt(100)).Round(2)
	}
	for _, m := range byMP {
		sum.ByMarketplace = append(sum.ByMarketplace, *m)
	}
	sort.Slice(sum.ByMarketplace, func(i, j int) bool {
		return sum.ByMarketplace[i].Revenue.GreaterThan(sum.ByMarketplace[j].Revenue)
	})

	s.log.Info("finansal özet", zap.Int64("user", userID), zap.Int("orders", sum.OrderCount),
		zap.String("revenue", sum.Revenue.StringFixed(2)), zap.String("profit", sum.NetProfit.StringFixed(2)))
	return sum, nil
}

// RecalculateOrders: aralıktaki geçerli siparişlerin kârını yeniden hesaplayıp kaydeder.
// Maliyeti eksik siparişler FailCount'a sayılır.
func (s *FinanceService) RecalculateOrders(ctx context.Context, userID int64, from, to time.Time, h *JobHandle) (JobResult, error) {
	orders, err := s.store.Orders(ctx, userID, from, to)
	if err != nil {
		return JobResult{}, err
	}
	set, err := s.resolver.Load(ctx, userID)
	if err != nil {
		return JobResult{}, err
	}

	res := JobResult{ProductCount: len(orders)}
	for i, o := range orders {
		if h != nil {
			if err := h.Checkpoint(ctx); err != nil {
				return res, err
			}
			h.Progress(i, len(orders))
		}
		if IsExcludedStatus(o.Status) {
			continue
		}
		calc, err := s.orderProfit(ctx, o, set, true)
		if err != nil {
			return res, err
		}
		if len(calc.MissingCost) > 0 {
			res.FailCount++
			if h != nil {
				h.Logf("warning", "Sipariş %s: maliyeti bulunamayan ürünler: %s", o.OrderNumber, strings.Join(calc.MissingCost, ", "))
			}
			continue
		}
		res.SuccessCount++
	}
	if h != nil {
		h.Progress(len(orders), len(orders))
		h.Logf("info", "%d sipariş hesaplandı, %d siparişte maliyet eksik", res.SuccessCount, res.FailCount)
	}
	return res, nil
}

// SubmitRecalculate: RecalculateOrders'ı kuyrukta çalıştırır
func (s *FinanceService) SubmitRecalculate(userID int64, from, to time.Time) (string, error) {
	return s.queue.Submit(JobSpec{
		UserID:    userID,
		JobType:   JobOrderProfit,
		Exclusive: true,
		Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
			return s.RecalculateOrders(ctx, userID, from, to, h)
		},
	})
}
