package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/pinigine/backend/src/logger"
	"github.com/username/pinigine/backend/src/models"
	"github.com/username/pinigine/backend/src/utils"
)

var summaryPeriods = []string{"week", "month", "year"}

type summaryServiceImpl struct {
	db    *sql.DB
	cache *cache.Cache
	now   func() time.Time
}

// NewSummaryService returns a SummaryService backed by the application
// database and the shared report cache.
func NewSummaryService(db *sql.DB, reportCache *cache.Cache) SummaryService {
	return &summaryServiceImpl{
		db:    db,
		cache: reportCache,
		now:   time.Now,
	}
}

func summaryCacheKey(userID int64, period string) string {
	return fmt.Sprintf("summary:%d:%s", userID, period)
}

func (s *summaryServiceImpl) GetSummary(ctx context.Context, userID int64, period string) (*Summary, error) {
	if !models.ValidBudgetPeriod(period) {
		return nil, fmt.Errorf("unknown period %q", period)
	}

	cacheKey := summaryCacheKey(userID, period)
	if cached, found := s.cache.Get(cacheKey); found {
		if summary, ok := cached.(*Summary); ok {
			if logger.L != nil {
				logger.L.Debug("Summary served from cache", "userID", userID, "period", period)
			}
			return summary, nil
		}
	}

	summary, err := s.computeSummary(userID, period)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey, summary, cache.DefaultExpiration)
	return summary, nil
}

// InvalidateUser drops every cached summary for the user. Called after any
// write to the user's data.
func (s *summaryServiceImpl) InvalidateUser(userID int64) {
	for _, period := range summaryPeriods {
		s.cache.Delete(summaryCacheKey(userID, period))
	}
}

func (s *summaryServiceImpl) computeSummary(userID int64, period string) (*Summary, error) {
	now := s.now()
	from := periodStart(period, now)
	to := utils.EndOfDay(now)

	transactions, err := models.ListTransactionsByUser(s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	budgets, err := models.ListBudgetsByUser(s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("listing budgets: %w", err)
	}
	goals, err := models.ListGoalsByUser(s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("listing goals: %w", err)
	}
	debts, err := models.ListDebtsByUser(s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("listing debts: %w", err)
	}
	savings, err := models.ListSavingsAccountsByUser(s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("listing savings accounts: %w", err)
	}

	// Sums use decimals so that many small amounts do not drift.
	income := decimal.Zero
	expenses := decimal.Zero
	byCategory := make(map[string]decimal.Decimal)
	for _, tx := range transactions {
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		amount := decimal.NewFromFloat(tx.Amount)
		switch tx.Type {
		case models.TypeIncome:
			income = income.Add(amount)
		case models.TypeExpense:
			expenses = expenses.Add(amount)
			category := tx.Category
			if category == "" {
				category = string(models.CategoryKitos)
			}
			byCategory[category] = byCategory[category].Add(amount)
		}
	}

	categories := make([]CategoryTotal, 0, len(byCategory))
	for category, amount := range byCategory {
		categories = append(categories, CategoryTotal{Category: category, Amount: amount.InexactFloat64()})
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Amount != categories[j].Amount {
			return categories[i].Amount > categories[j].Amount
		}
		return categories[i].Category < categories[j].Category
	})

	budgetStatuses := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		spent := decimal.Zero
		budgetFrom := periodStart(string(b.Period), now)
		for _, tx := range transactions {
			if tx.Type != models.TypeExpense || tx.Category != b.Category {
				continue
			}
			if tx.Date.Before(budgetFrom) || tx.Date.After(to) {
				continue
			}
			spent = spent.Add(decimal.NewFromFloat(tx.Amount))
		}
		status := BudgetStatus{Budget: b, Spent: spent.InexactFloat64()}
		if b.Amount > 0 {
			status.Percent = spent.Div(decimal.NewFromFloat(b.Amount)).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
		}
		budgetStatuses = append(budgetStatuses, status)
	}

	goalStatuses := make([]GoalStatus, 0, len(goals))
	for _, g := range goals {
		status := GoalStatus{FinancialGoal: g}
		if g.TargetAmount > 0 {
			status.Percent = decimal.NewFromFloat(g.CurrentAmount).
				Div(decimal.NewFromFloat(g.TargetAmount)).
				Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
		}
		goalStatuses = append(goalStatuses, status)
	}

	savingsTotal := decimal.Zero
	for _, account := range savings {
		savingsTotal = savingsTotal.Add(decimal.NewFromFloat(account.CurrentAmount))
	}

	debtsOwed := decimal.Zero
	debtsLent := decimal.Zero
	for _, d := range debts {
		if d.PaidDate != nil {
			continue
		}
		amount := decimal.NewFromFloat(d.Amount)
		switch d.Type {
		case models.DebtOwed:
			debtsOwed = debtsOwed.Add(amount)
		case models.DebtLent:
			debtsLent = debtsLent.Add(amount)
		}
	}

	return &Summary{
		Period:       period,
		From:         from,
		To:           to,
		Income:       income.InexactFloat64(),
		Expenses:     expenses.InexactFloat64(),
		Balance:      income.Sub(expenses).InexactFloat64(),
		ByCategory:   categories,
		Budgets:      budgetStatuses,
		Goals:        goalStatuses,
		SavingsTotal: savingsTotal.InexactFloat64(),
		DebtsOwed:    debtsOwed.InexactFloat64(),
		DebtsLent:    debtsLent.InexactFloat64(),
	}, nil
}

// periodStart returns the beginning of the calendar period containing now:
// Monday for week, the 1st for month, January 1st for year.
func periodStart(period string, now time.Time) time.Time {
	day := utils.Midnight(now)
	switch models.BudgetPeriod(period) {
	case models.PeriodWeek:
		weekday := int(day.Weekday())
		if weekday == 0 { // Sunday
			weekday = 7
		}
		return day.AddDate(0, 0, -(weekday - 1))
	case models.PeriodMonth:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	case models.PeriodYear:
		return time.Date(day.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return day
}
