package services

import (
	"context"
	"time"

	"github.com/username/pinigine/backend/src/models"
)

// CategoryTotal is one slice of the expense breakdown.
type CategoryTotal struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// BudgetStatus pairs a budget with what was actually spent in its period.
type BudgetStatus struct {
	models.Budget
	Spent   float64 `json:"spent"`
	Percent float64 `json:"percent"`
}

// GoalStatus pairs a goal with its completion percentage.
type GoalStatus struct {
	models.FinancialGoal
	Percent float64 `json:"percent"`
}

// Summary aggregates a user's finances over a period.
type Summary struct {
	Period       string          `json:"period"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Income       float64         `json:"income"`
	Expenses     float64         `json:"expenses"`
	Balance      float64         `json:"balance"`
	ByCategory   []CategoryTotal `json:"by_category"`
	Budgets      []BudgetStatus  `json:"budgets"`
	Goals        []GoalStatus    `json:"goals"`
	SavingsTotal float64         `json:"savings_total"`
	DebtsOwed    float64         `json:"debts_owed"` // outstanding only
	DebtsLent    float64         `json:"debts_lent"` // outstanding only
}

// SummaryService computes cached per-period statistics.
type SummaryService interface {
	GetSummary(ctx context.Context, userID int64, period string) (*Summary, error)
	InvalidateUser(userID int64)
}
