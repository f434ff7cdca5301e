package product

import "github.com/shopspring/decimal"

const CurrencyBRL = "BRL"

type Kit struct {
	ID                  string
	Title               string
	Description         string
	Category            string
	Price               decimal.Decimal
	Currency            string
	ReferencePrefix     string
	StatementDescriptor string
	DeliveryURL         string
	Premium             bool
	IsActive            bool
}
