package domain

import "github.com/shopspring/decimal"

const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

type Payment struct {
	PaymentID int             `db:"payment_id"`
	UserID    int             `db:"user_id"`
	Amount    decimal.Decimal `db:"amount"`
	Currency  string          `db:"currency"`
	Status    string          `db:"status"`
	Bonus     decimal.Decimal `db:"bonus"`
	Message   string          `db:"message"`
}

type User struct {
	UserID  int             `db:"user_id"`
	Balance decimal.Decimal `db:"balance"`
}
