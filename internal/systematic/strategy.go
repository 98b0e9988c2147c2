package systematic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/brokerage-service/internal/models"
	"github.com/Dan9191/brokerage-service/internal/repository"
)

// unitPrecision is the number of decimal places kept for fund units
const unitPrecision = 6

// PriceSource returns the latest NAV of a fund
type PriceSource interface {
	LatestPrice(ctx context.Context, fundID string) (models.Price, error)
}

// Outcome is what a strategy did to the ledgers for one installment
type Outcome struct {
	Units        decimal.Decimal
	Price        decimal.Decimal
	BalanceAfter decimal.Decimal
	// Buy leg of an STP; zero for SIP and SWP.
	TargetUnits decimal.Decimal
	TargetPrice decimal.Decimal
}

// Settle runs inside the ledger unit of a strategy after its legs. The
// installment commits only if Settle succeeds too.
type Settle func(ctx context.Context, tx repository.LedgerTx) error

// Strategy performs the ledger mutation of a single installment. Either all
// of its changes, settle included, are committed or none are.
type Strategy interface {
	Execute(ctx context.Context, plan models.ScheduledPlan, settle Settle) (Outcome, error)
}

// ---------------------------------------------------------------------------
// Price quotes
// ---------------------------------------------------------------------------

type quoter struct {
	source  PriceSource
	timeout time.Duration
}

// quote reads the price once, bounded by the configured timeout. Every
// failure is reported as ErrPriceUnavailable.
func (q quoter) quote(ctx context.Context, fundID string) (decimal.Decimal, error) {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	p, err := q.source.LatestPrice(ctx, fundID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w for %s: %v", ErrPriceUnavailable, fundID, err)
	}
	if !p.NAV.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w for %s: non-positive NAV %s", ErrPriceUnavailable, fundID, p.NAV)
	}
	return p.NAV, nil
}

func (s Settle) run(ctx context.Context, tx repository.LedgerTx) error {
	if s == nil {
		return nil
	}
	return s(ctx, tx)
}

func unitsFor(amount, price decimal.Decimal) decimal.Decimal {
	return amount.DivRound(price, unitPrecision)
}

// ---------------------------------------------------------------------------
// SIP
// ---------------------------------------------------------------------------

type sipStrategy struct {
	ledger repository.Ledger
	quotes quoter
}

func (s *sipStrategy) Execute(ctx context.Context, plan models.ScheduledPlan, settle Settle) (Outcome, error) {
	price, err := s.quotes.quote(ctx, plan.FundID)
	if err != nil {
		return Outcome{}, err
	}
	units := unitsFor(plan.Amount, price)

	var out Outcome
	err = s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		balance, err := debit(ctx, tx, plan.UserID, plan.Amount)
		if err != nil {
			return err
		}
		if err := addUnits(ctx, tx, plan.UserID, plan.FundID, plan.FundName, units); err != nil {
			return err
		}
		out = Outcome{Units: units, Price: price, BalanceAfter: balance}
		return settle.run(ctx, tx)
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// SWP
// ---------------------------------------------------------------------------

type swpStrategy struct {
	ledger repository.Ledger
	quotes quoter
}

func (s *swpStrategy) Execute(ctx context.Context, plan models.ScheduledPlan, settle Settle) (Outcome, error) {
	price, err := s.quotes.quote(ctx, plan.FundID)
	if err != nil {
		return Outcome{}, err
	}
	units := unitsFor(plan.Amount, price)

	var out Outcome
	err = s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		if err := removeUnits(ctx, tx, plan.UserID, plan.FundID, units); err != nil {
			return err
		}
		balance, err := credit(ctx, tx, plan.UserID, plan.Amount)
		if err != nil {
			return err
		}
		out = Outcome{Units: units, Price: price, BalanceAfter: balance}
		return settle.run(ctx, tx)
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// STP
// ---------------------------------------------------------------------------

// stpStrategy sells amount worth of the source fund and buys the same amount
// of the target fund. Both legs share one ledger unit, so a failing buy leg
// rolls back the sell leg.
type stpStrategy struct {
	ledger repository.Ledger
	quotes quoter
}

func (s *stpStrategy) Execute(ctx context.Context, plan models.ScheduledPlan, settle Settle) (Outcome, error) {
	if plan.TargetFundID == "" || plan.TargetFundID == plan.FundID {
		return Outcome{}, fmt.Errorf("transfer plan %d needs a target fund different from %s", plan.ID, plan.FundID)
	}

	sellPrice, err := s.quotes.quote(ctx, plan.FundID)
	if err != nil {
		return Outcome{}, err
	}
	buyPrice, err := s.quotes.quote(ctx, plan.TargetFundID)
	if err != nil {
		return Outcome{}, err
	}
	sellUnits := unitsFor(plan.Amount, sellPrice)
	buyUnits := unitsFor(plan.Amount, buyPrice)

	var out Outcome
	err = s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		if err := removeUnits(ctx, tx, plan.UserID, plan.FundID, sellUnits); err != nil {
			return err
		}
		if err := addUnits(ctx, tx, plan.UserID, plan.TargetFundID, plan.TargetFundName, buyUnits); err != nil {
			return err
		}

		var balance decimal.Decimal
		acc, err := tx.FindAccountByUser(ctx, plan.UserID)
		switch {
		case err == nil:
			balance = acc.Balance
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
		out = Outcome{
			Units:        sellUnits,
			Price:        sellPrice,
			BalanceAfter: balance,
			TargetUnits:  buyUnits,
			TargetPrice:  buyPrice,
		}
		return settle.run(ctx, tx)
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Ledger legs
// ---------------------------------------------------------------------------

func debit(ctx context.Context, tx repository.LedgerTx, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	acc, err := tx.FindAccountByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if acc.Balance.LessThan(amount) {
		return decimal.Zero, &InsufficientBalanceError{Required: amount, Available: acc.Balance}
	}
	balance := acc.Balance.Sub(amount)
	if err := tx.UpdateBalance(ctx, userID, balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func credit(ctx context.Context, tx repository.LedgerTx, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	acc, err := tx.FindAccountByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	balance := acc.Balance.Add(amount)
	if err := tx.UpdateBalance(ctx, userID, balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func addUnits(ctx context.Context, tx repository.LedgerTx, userID int64, fundID, fundName string, units decimal.Decimal) error {
	h, err := tx.FindHolding(ctx, userID, fundID)
	if err != nil {
		return err
	}
	if h == nil {
		return tx.CreateHolding(ctx, &models.Holding{
			UserID:   userID,
			FundID:   fundID,
			FundName: fundName,
			Units:    units,
		})
	}
	return tx.UpdateUnits(ctx, h.ID, h.Units.Add(units))
}

func removeUnits(ctx context.Context, tx repository.LedgerTx, userID int64, fundID string, units decimal.Decimal) error {
	h, err := tx.FindHolding(ctx, userID, fundID)
	if err != nil {
		return err
	}
	if h == nil {
		return &InsufficientUnitsError{FundID: fundID, Required: units, Available: decimal.Zero}
	}
	if h.Units.LessThan(units) {
		return &InsufficientUnitsError{FundID: fundID, Required: units, Available: h.Units}
	}
	return tx.UpdateUnits(ctx, h.ID, h.Units.Sub(units))
}
