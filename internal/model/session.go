package model

import "github.com/shopspring/decimal"

type state int

const (
	DefaultState state = iota
	ExpectingBudgetAmount
	ExpectingTopUpAmount
	ExpectingTopUpConfirmation
	ExpectingBuyConfirmation
	ExpectingPricesDocument
)

// PendingBuy is a decided-but-unconfirmed buy option parked in the chat
// session between the decide and the confirm-and-execute phases.
type PendingBuy struct {
	InstrumentID   int64
	InstrumentName string
	Price          decimal.Decimal
	Quantity       int
	Averaging      bool
}

type Session struct {
	State        state
	PendingTopUp decimal.Decimal
	PendingBuys  []PendingBuy
}
