package dto

import "staybook/internal/domain/shared/money"

// Money carries minor units for machines and a formatted amount for people.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

func MapMoney(m money.Money) Money {
	return Money{Amount: m.Amount, Currency: m.Currency, Display: m.String()}
}

// MapMoneyRef is MapMoney for optional fields.
func MapMoneyRef(m money.Money) *Money {
	out := MapMoney(m)
	return &out
}
