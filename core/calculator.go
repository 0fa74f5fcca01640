package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ApplyOperation, toplu düzenleme hücresindeki işlemi mevcut fiyata uygular.
// "150" direkt fiyat, "*1.2", "/2", "+10", "-5" ise mevcut fiyat üzerinden işlem.
func ApplyOperation(currentPrice decimal.Decimal, operation string) (decimal.Decimal, error) {
	operation = strings.TrimSpace(operation)
	// Virgül kullanılmışsa noktaya çevir
	operation = strings.ReplaceAll(operation, ",", ".")

	if operation == "" {
		return currentPrice, nil
	}

	firstChar := operation[0]

	// 1. Durum: Direkt sayı girişi
	if firstChar >= '0' && firstChar <= '9' {
		val, err := decimal.NewFromString(operation)
		if err != nil {
			return currentPrice, fmt.Errorf("%w: %q", ErrInvalidOperation, operation)
		}
		return val, nil
	}

	// 2. Durum: Operatörlü giriş (+, -, *, /)
	if len(operation) < 2 {
		return currentPrice, fmt.Errorf("%w: %q", ErrInvalidOperation, operation)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(operation[1:]))
	if err != nil {
		return currentPrice, fmt.Errorf("%w: %q", ErrInvalidOperation, operation)
	}

	switch firstChar {
	case '*':
		return currentPrice.Mul(amount), nil
	case '/':
		if amount.IsZero() {
			return currentPrice, fmt.Errorf("%w: sıfıra bölme", ErrInvalidOperation)
		}
		return currentPrice.Div(amount), nil
	case '+':
		return currentPrice.Add(amount), nil
	case '-':
		return currentPrice.Sub(amount), nil
	}
	return currentPrice, fmt.Errorf("%w: bilinmeyen operatör %q", ErrInvalidOperation, string(firstChar))
}

// CheckPriceGuard, emniyet kilidi: yeni fiyat mevcudun maxRatio katını aşıyor
// ya da minRatio katının altına düşüyorsa ErrPriceGuard döner. Sıfır fiyat serbest.
func CheckPriceGuard(current, next decimal.Decimal, minRatio, maxRatio float64) error {
	if current.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	upper := current.Mul(decimal.NewFromFloat(maxRatio))
	lower := current.Mul(decimal.NewFromFloat(minRatio))
	if next.GreaterThan(upper) || (next.LessThan(lower) && !next.IsZero()) {
		return fmt.Errorf("%w: %s TL -> %s TL", ErrPriceGuard, current.StringFixed(2), next.StringFixed(2))
	}
	return nil
}
