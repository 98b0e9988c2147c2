package systematic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientUnits    = errors.New("insufficient units")
	ErrPriceUnavailable     = errors.New("price unavailable")
	ErrUnsupportedFrequency = errors.New("unsupported frequency")
	ErrUnsupportedPlanType  = errors.New("unsupported plan type")
)

// InsufficientBalanceError reports a SIP debit larger than the balance
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s, short by %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2), e.Required.Sub(e.Available).StringFixed(2))
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// InsufficientUnitsError reports a sell larger than the holding
type InsufficientUnitsError struct {
	FundID    string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientUnitsError) Error() string {
	return fmt.Sprintf("insufficient units in %s: required %s, available %s",
		e.FundID, e.Required.String(), e.Available.String())
}

func (e *InsufficientUnitsError) Is(target error) bool { return target == ErrInsufficientUnits }

// failureMessage renders err for the execution history
func failureMessage(err error) string {
	var balanceErr *InsufficientBalanceError
	var unitsErr *InsufficientUnitsError
	switch {
	case errors.As(err, &balanceErr):
		return fmt.Sprintf("Insufficient balance. Required: %s, Available: %s",
			balanceErr.Required.StringFixed(2), balanceErr.Available.StringFixed(2))
	case errors.As(err, &unitsErr):
		return fmt.Sprintf("Insufficient units in %s. Required: %s, Available: %s",
			unitsErr.FundID, unitsErr.Required.String(), unitsErr.Available.String())
	case errors.Is(err, ErrPriceUnavailable):
		return "Price unavailable: " + err.Error()
	case errors.Is(err, ErrUnsupportedFrequency):
		return "Configuration error: " + err.Error()
	default:
		return "Execution failed: " + err.Error()
	}
}
