package models

import (
	"database/sql"
	"errors"
)

type BudgetPeriod string

const (
	PeriodWeek  BudgetPeriod = "week"
	PeriodMonth BudgetPeriod = "month"
	PeriodYear  BudgetPeriod = "year"
)

func ValidBudgetPeriod(p string) bool {
	switch BudgetPeriod(p) {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// Budget is a per-category spending limit over a rolling period.
type Budget struct {
	ID       int64        `json:"id"`
	UserID   int64        `json:"-"`
	Category string       `json:"category"`
	Amount   float64      `json:"amount"`
	Period   BudgetPeriod `json:"period"`
	Currency string       `json:"currency"`
}

func CreateBudget(db *sql.DB, b *Budget) error {
	res, err := db.Exec(`
	INSERT INTO budgets (user_id, category, amount, period, currency)
	VALUES (?, ?, ?, ?, ?)`, b.UserID, b.Category, b.Amount, b.Period, b.Currency)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

func ListBudgetsByUser(db *sql.DB, userID int64) ([]Budget, error) {
	rows, err := db.Query(`
	SELECT id, user_id, category, amount, period, currency
	FROM budgets
	WHERE user_id = ?
	ORDER BY id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.Category, &b.Amount, &b.Period, &b.Currency); err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return budgets, nil
}

func UpdateBudget(db *sql.DB, b *Budget) error {
	res, err := db.Exec(`
	UPDATE budgets
	SET category = ?, amount = ?, period = ?, currency = ?
	WHERE user_id = ? AND id = ?`, b.Category, b.Amount, b.Period, b.Currency, b.UserID, b.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("budget not found")
	}
	return nil
}

func DeleteBudget(db *sql.DB, userID, id int64) error {
	res, err := db.Exec(`DELETE FROM budgets WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("budget not found")
	}
	return nil
}
