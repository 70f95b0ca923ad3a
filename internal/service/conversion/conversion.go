// Package conversion prices token amounts in USD.
package conversion

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Service prices every token at 1 USD until a price source is wired in.
type Service struct{}

func New() *Service {
	return &Service{}
}

// UsdAmount prices a whole-unit token amount.
func (s *Service) UsdAmount(token string, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(s.price(token))
}

// UsdAmountNano prices an amount given in nano units (9 decimals).
func (s *Service) UsdAmountNano(token string, nano *big.Int) decimal.Decimal {
	return s.UsdAmount(token, decimal.NewFromBigInt(nano, -9))
}

func (s *Service) price(string) decimal.Decimal {
	return decimal.NewFromInt(1)
}
