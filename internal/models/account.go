package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the demo cash balance of a user
type Account struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Holding represents the units a user owns in a fund
type Holding struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	FundID    string          `json:"fund_id"`
	FundName  string          `json:"fund_name"`
	Units     decimal.Decimal `json:"units"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Price is the latest NAV published for a fund
type Price struct {
	FundID string          `json:"fund_id"`
	NAV    decimal.Decimal `json:"nav"`
	AsOf   time.Time       `json:"as_of"`
}
