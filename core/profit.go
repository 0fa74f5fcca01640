package core

import "github.com/shopspring/decimal"

// CostLine: sipariş kalemi için maliyet satırı
type CostLine struct {
	Barcode   string
	StockCode string
	Quantity  int
	UnitCost  decimal.Decimal
	CostKnown bool
}

type ProfitInput struct {
	GrossSales decimal.Decimal
	Commission decimal.Decimal
	Shipping   decimal.Decimal
	ServiceFee decimal.Decimal
	Items      []CostLine
}

type ProfitResult struct {
	GrossSales      decimal.Decimal
	TotalDeductions decimal.Decimal
	TotalCost       decimal.Decimal
	NetProfit       decimal.Decimal
	ROI             decimal.Decimal // yüzde
	Margin          decimal.Decimal // yüzde
	MissingCost     []string
}

// CalculateProfit, tek sipariş için net kâr, ROI ve marjı hesaplar.
// Maliyeti bilinmeyen kalemler sıfır maliyetle sayılır ve MissingCost'a yazılır.
func CalculateProfit(in ProfitInput) ProfitResult {
	res := ProfitResult{GrossSales: in.GrossSales}
	res.TotalDeductions = in.Commission.Add(in.Shipping).Add(in.ServiceFee)

	cost := decimal.Zero
	for _, it := range in.Items {
		if !it.CostKnown {
			code := it.Barcode
			if code == "" {
				code = it.StockCode
			}
			res.MissingCost = append(res.MissingCost, code)
			continue
		}
		cost = cost.Add(it.UnitCost.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	res.TotalCost = cost
	res.NetProfit = in.GrossSales.Sub(res.TotalDeductions).Sub(cost)

	invested := cost.Add(res.TotalDeductions)
	if invested.GreaterThan(decimal.Zero) {
		res.ROI = res.NetProfit.Div(invested).Mul(hundred).Round(2)
	}
	if in.GrossSales.GreaterThan(decimal.Zero) {
		res.Margin = res.NetProfit.Div(in.GrossSales).Mul(hundred).Round(2)
	}
	return res
}
