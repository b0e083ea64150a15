package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/pinigine/backend/src/database"
	"github.com/username/pinigine/backend/src/models"
	"github.com/username/pinigine/backend/src/utils"
)

func newTestSummaryService(t *testing.T) *summaryServiceImpl {
	t.Helper()
	database.InitDB(":memory:")
	// A second pool connection would see its own empty in-memory database.
	database.DB.SetMaxOpenConns(1)
	svc := NewSummaryService(database.DB, cache.New(time.Minute, time.Minute)).(*summaryServiceImpl)
	svc.now = func() time.Time {
		return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func seedTransaction(t *testing.T, txType models.TransactionType, amount float64, category, date string) {
	t.Helper()
	tx := &models.Transaction{
		UserID:      1,
		Type:        txType,
		Amount:      amount,
		Description: "seed",
		Category:    category,
		Date:        utils.ParseDate(date),
		Currency:    "EUR",
	}
	if err := models.CreateTransaction(database.DB, tx); err != nil {
		t.Fatalf("seeding transaction: %v", err)
	}
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 0.001
}

func TestGetSummaryMonth(t *testing.T) {
	svc := newTestSummaryService(t)

	seedTransaction(t, models.TypeIncome, 1000, "", "2024-03-05")
	seedTransaction(t, models.TypeExpense, 100, "maistas", "2024-03-10")
	seedTransaction(t, models.TypeExpense, 50, "maistas", "2024-03-11")
	seedTransaction(t, models.TypeExpense, 30, "pramogos", "2024-02-15") // outside the month
	seedTransaction(t, models.TypeIncome, 500, "", "2023-12-20")         // outside the month

	budget := &models.Budget{UserID: 1, Category: "maistas", Amount: 200, Period: models.PeriodMonth, Currency: "EUR"}
	if err := models.CreateBudget(database.DB, budget); err != nil {
		t.Fatal(err)
	}
	goal := &models.FinancialGoal{UserID: 1, Title: "Atostogos", TargetAmount: 1000, CurrentAmount: 250, TargetDate: utils.ParseDate("2024-12-31"), Currency: "EUR"}
	if err := models.CreateGoal(database.DB, goal); err != nil {
		t.Fatal(err)
	}
	account := &models.SavingsAccount{UserID: 1, Name: "Pagalvė", CurrentAmount: 150}
	if err := models.CreateSavingsAccount(database.DB, account); err != nil {
		t.Fatal(err)
	}
	paid := utils.ParseDate("2024-02-01")
	debts := []*models.Debt{
		{UserID: 1, Type: models.DebtOwed, Person: "Jonas", Amount: 40, Date: utils.ParseDate("2024-01-10"), Currency: "EUR"},
		{UserID: 1, Type: models.DebtLent, Person: "Ona", Amount: 60, Date: utils.ParseDate("2024-01-12"), Currency: "EUR"},
		{UserID: 1, Type: models.DebtOwed, Person: "Petras", Amount: 99, Date: utils.ParseDate("2024-01-01"), PaidDate: &paid, Currency: "EUR"},
	}
	for _, d := range debts {
		if err := models.CreateDebt(database.DB, d); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := svc.GetSummary(context.Background(), 1, "month")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}

	if !approx(summary.Income, 1000) {
		t.Errorf("Income = %v, want 1000", summary.Income)
	}
	if !approx(summary.Expenses, 150) {
		t.Errorf("Expenses = %v, want 150", summary.Expenses)
	}
	if !approx(summary.Balance, 850) {
		t.Errorf("Balance = %v, want 850", summary.Balance)
	}
	if len(summary.ByCategory) != 1 || summary.ByCategory[0].Category != "maistas" || !approx(summary.ByCategory[0].Amount, 150) {
		t.Errorf("ByCategory = %+v, want single maistas entry of 150", summary.ByCategory)
	}
	if len(summary.Budgets) != 1 {
		t.Fatalf("Budgets has %d entries, want 1", len(summary.Budgets))
	}
	if !approx(summary.Budgets[0].Spent, 150) || !approx(summary.Budgets[0].Percent, 75) {
		t.Errorf("Budget status spent %v percent %v, want 150 and 75", summary.Budgets[0].Spent, summary.Budgets[0].Percent)
	}
	if len(summary.Goals) != 1 || !approx(summary.Goals[0].Percent, 25) {
		t.Errorf("Goals = %+v, want one goal at 25%%", summary.Goals)
	}
	if !approx(summary.SavingsTotal, 150) {
		t.Errorf("SavingsTotal = %v, want 150", summary.SavingsTotal)
	}
	if !approx(summary.DebtsOwed, 40) || !approx(summary.DebtsLent, 60) {
		t.Errorf("DebtsOwed = %v DebtsLent = %v, want 40 and 60 (settled debts excluded)", summary.DebtsOwed, summary.DebtsLent)
	}
}

func TestGetSummaryCachesUntilInvalidated(t *testing.T) {
	svc := newTestSummaryService(t)
	seedTransaction(t, models.TypeIncome, 100, "", "2024-03-05")

	first, err := svc.GetSummary(context.Background(), 1, "month")
	if err != nil {
		t.Fatal(err)
	}

	seedTransaction(t, models.TypeIncome, 900, "", "2024-03-06")

	cached, err := svc.GetSummary(context.Background(), 1, "month")
	if err != nil {
		t.Fatal(err)
	}
	if cached != first {
		t.Error("expected cached summary before invalidation")
	}

	svc.InvalidateUser(1)
	fresh, err := svc.GetSummary(context.Background(), 1, "month")
	if err != nil {
		t.Fatal(err)
	}
	if !approx(fresh.Income, 1000) {
		t.Errorf("Income after invalidation = %v, want 1000", fresh.Income)
	}
}

func TestGetSummaryUnknownPeriod(t *testing.T) {
	svc := newTestSummaryService(t)
	if _, err := svc.GetSummary(context.Background(), 1, "fortnight"); err == nil {
		t.Error("expected error for unknown period")
	}
}

func TestPeriodStart(t *testing.T) {
	tests := []struct {
		name   string
		period string
		now    string
		want   string
	}{
		{"week from friday", "week", "2024-03-15", "2024-03-11"},
		{"week from monday", "week", "2024-03-11", "2024-03-11"},
		{"week from sunday", "week", "2024-03-17", "2024-03-11"},
		{"month", "month", "2024-03-15", "2024-03-01"},
		{"year", "year", "2024-03-15", "2024-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := periodStart(tt.period, utils.ParseDate(tt.now))
			if formatted := got.Format(utils.DefaultDateFormat); formatted != tt.want {
				t.Errorf("periodStart(%s, %s) = %s, want %s", tt.period, tt.now, formatted, tt.want)
			}
		})
	}
}
