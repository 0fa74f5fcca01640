package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceRule: [Min, Max) aralığındaki taban fiyata yüzde + sabit ekler. Max sıfırsa üst sınır yok.
type PriceRule struct {
	Min     decimal.Decimal `json:"min"`
	Max     decimal.Decimal `json:"max"`
	Percent decimal.Decimal `json:"percent"`
	Fixed   decimal.Decimal `json:"fixed"`
}

func (r PriceRule) Contains(base decimal.Decimal) bool {
	if base.LessThan(r.Min) {
		return false
	}
	return r.Max.IsZero() || base.LessThan(r.Max)
}

// PricingSettings: bir kullanıcının bir pazaryeri için fiyat ayarları
type PricingSettings struct {
	Rules      []PriceRule
	Multiplier decimal.Decimal
	Percentage decimal.Decimal
	Fixed      decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// CalculatePrice, taban (tedarikçi) fiyattan satış fiyatını üretir.
// Kademeli kurallardan ilk eşleşen uygulanır, yoksa çarpan/yüzde/sabit sistemine düşer.
func CalculatePrice(base decimal.Decimal, s PricingSettings) decimal.Decimal {
	if base.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	for _, r := range s.Rules {
		if !r.Contains(base) {
			continue
		}
		price := base.Mul(decimal.NewFromInt(1).Add(r.Percent.Div(hundred)))
		return price.Add(r.Fixed).Round(2)
	}

	multiplier := s.Multiplier
	if multiplier.LessThanOrEqual(decimal.Zero) {
		multiplier = decimal.NewFromInt(1)
	}
	price := base.Mul(multiplier)
	if !s.Percentage.IsZero() {
		price = price.Mul(decimal.NewFromInt(1).Add(s.Percentage.Div(hundred)))
	}
	if !s.Fixed.IsZero() {
		price = price.Add(s.Fixed)
	}
	return price.Round(2)
}

// WithMultiplier, pozitif bir çarpan verilmişse ayardaki çarpanı ezer.
func (s PricingSettings) WithMultiplier(m decimal.Decimal) PricingSettings {
	if m.GreaterThan(decimal.Zero) {
		s.Multiplier = m
	}
	return s
}

// PriceSettingKey, pazaryerinin fiyat ayar anahtarını döner.
// Trendyol eski anahtarları önek almaz (PRICE_PERCENTAGE), kurallar hariç.
func PriceSettingKey(m Marketplace, name string) string {
	if m == Trendyol && name != "RULES" {
		return "PRICE_" + name
	}
	return m.SettingsPrefix() + "_PRICE_" + name
}

// ParsePricingSettings, ayar tablosundaki ham değerlerden fiyat ayarlarını kurar.
// Okunamayan değerler yok sayılır, kural JSON'u bozuksa hata da döner.
func ParsePricingSettings(m Marketplace, settings map[string]string) (PricingSettings, error) {
	var s PricingSettings
	var rulesErr error

	if raw := strings.TrimSpace(settings[PriceSettingKey(m, "RULES")]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.Rules); err != nil {
			s.Rules = nil
			rulesErr = fmt.Errorf("%s fiyat kuralları okunamadı: %w", m, err)
		}
	}

	s.Multiplier = parseSettingDecimal(settings[PriceSettingKey(m, "MULTIPLIER")])
	s.Percentage = parseSettingDecimal(settings[PriceSettingKey(m, "PERCENTAGE")])
	s.Fixed = parseSettingDecimal(settings[PriceSettingKey(m, "FIXED")])
	return s, rulesErr
}

func parseSettingDecimal(v string) decimal.Decimal {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}
