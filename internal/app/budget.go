package app

import (
	"context"

	"github.com/josephgoksu/taskmail/internal/memory"
)

// BudgetReport is an owner's balance and lifetime model spend.
type BudgetReport struct {
	Owner            string                  `json:"owner"`
	Enabled          bool                    `json:"enabled"`
	RemainingNanoUSD int64                   `json:"remaining_nano_usd"`
	Spend            memory.InvocationTotals `json:"spend"`
}

// BudgetApp tops up and reports processing budgets.
type BudgetApp struct {
	ctx *Context
}

// NewBudgetApp creates a new budget application service.
func NewBudgetApp(ctx *Context) *BudgetApp {
	return &BudgetApp{ctx: ctx}
}

// Deposit adds amount nano-USD, or the configured default when amount <= 0.
// The balance is capped at budget.maxAccruedNanoUSD.
func (a *BudgetApp) Deposit(ctx context.Context, owner string, amount int64) (int64, error) {
	if amount <= 0 {
		amount = a.ctx.Config.Budget.DepositNanoUSD
	}
	return a.ctx.Store.Deposit(ctx, owner, amount, a.ctx.Config.Budget.MaxAccruedNanoUSD)
}

// Show reports owner's balance and spend.
func (a *BudgetApp) Show(ctx context.Context, owner string) (*BudgetReport, error) {
	remaining, err := a.ctx.Store.Remaining(ctx, owner)
	if err != nil {
		return nil, err
	}
	totals, err := a.ctx.Store.Totals(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &BudgetReport{
		Owner:            owner,
		Enabled:          a.ctx.Config.Budget.Enabled,
		RemainingNanoUSD: remaining,
		Spend:            totals,
	}, nil
}
