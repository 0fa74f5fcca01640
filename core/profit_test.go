package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateProfit(t *testing.T) {
	res := CalculateProfit(ProfitInput{
		GrossSales: dec("1000"),
		Commission: dec("150"),
		Shipping:   dec("50"),
		ServiceFee: dec("10"),
		Items: []CostLine{
			{Barcode: "8680000000006", Quantity: 3, UnitCost: dec("100"), CostKnown: true},
			{Barcode: "", StockCode: "SKU-9", Quantity: 1},
		},
	})

	assert.True(t, dec("210").Equal(res.TotalDeductions))
	assert.True(t, dec("300").Equal(res.TotalCost))
	assert.True(t, dec("490").Equal(res.NetProfit))
	assert.True(t, dec("96.08").Equal(res.ROI), "roi %s", res.ROI)
	assert.True(t, dec("49").Equal(res.Margin), "margin %s", res.Margin)
	assert.Equal(t, []string{"SKU-9"}, res.MissingCost)
}

func TestCalculateProfit_EdgeCases(t *testing.T) {
	tests := []struct {
		name       string
		in         ProfitInput
		wantNet    string
		wantROI    string
		wantMargin string
	}{
		{
			name:       "empty order",
			in:         ProfitInput{},
			wantNet:    "0",
			wantROI:    "0",
			wantMargin: "0",
		},
		{
			name:       "no cost no deductions keeps roi zero",
			in:         ProfitInput{GrossSales: dec("80")},
			wantNet:    "80",
			wantROI:    "0",
			wantMargin: "100",
		},
		{
			name: "loss",
			in: ProfitInput{
				GrossSales: dec("100"),
				Commission: dec("20"),
				Items:      []CostLine{{Barcode: "X", Quantity: 2, UnitCost: dec("60"), CostKnown: true}},
			},
			wantNet:    "-40",
			wantROI:    "-28.57",
			wantMargin: "-40",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CalculateProfit(tt.in)
			assert.True(t, dec(tt.wantNet).Equal(res.NetProfit), "net %s", res.NetProfit)
			assert.True(t, dec(tt.wantROI).Equal(res.ROI), "roi %s", res.ROI)
			assert.True(t, dec(tt.wantMargin).Equal(res.Margin), "margin %s", res.Margin)
		})
	}
}
