package models

import (
	"database/sql"
	"errors"
	"time"

	"github.com/username/pinigine/backend/src/utils"
)

// FinancialGoal tracks saving toward a target amount by a target date.
type FinancialGoal struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"-"`
	Title         string    `json:"title"`
	TargetAmount  float64   `json:"target_amount"`
	CurrentAmount float64   `json:"current_amount"`
	TargetDate    time.Time `json:"target_date"`
	Description   string    `json:"description,omitempty"`
	Currency      string    `json:"currency"`
}

func CreateGoal(db *sql.DB, g *FinancialGoal) error {
	res, err := db.Exec(`
	INSERT INTO goals (user_id, title, target_amount, current_amount, target_date, description, currency)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, g.Title, g.TargetAmount, g.CurrentAmount,
		utils.Midnight(g.TargetDate).Format(utils.DefaultDateFormat),
		nullableString(g.Description), g.Currency)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = id
	return nil
}

func ListGoalsByUser(db *sql.DB, userID int64) ([]FinancialGoal, error) {
	rows, err := db.Query(`
	SELECT id, user_id, title, target_amount, current_amount, target_date, description, currency
	FROM goals
	WHERE user_id = ?
	ORDER BY target_date ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []FinancialGoal
	for rows.Next() {
		var g FinancialGoal
		var dateStr string
		var description sql.NullString
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &g.TargetAmount, &g.CurrentAmount,
			&dateStr, &description, &g.Currency); err != nil {
			return nil, err
		}
		g.TargetDate = utils.ParseDate(dateStr)
		if description.Valid {
			g.Description = description.String
		}
		goals = append(goals, g)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return goals, nil
}

func UpdateGoal(db *sql.DB, g *FinancialGoal) error {
	res, err := db.Exec(`
	UPDATE goals
	SET title = ?, target_amount = ?, current_amount = ?, target_date = ?, description = ?, currency = ?
	WHERE user_id = ? AND id = ?`,
		g.Title, g.TargetAmount, g.CurrentAmount,
		utils.Midnight(g.TargetDate).Format(utils.DefaultDateFormat),
		nullableString(g.Description), g.Currency, g.UserID, g.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("goal not found")
	}
	return nil
}

func DeleteGoal(db *sql.DB, userID, id int64) error {
	res, err := db.Exec(`DELETE FROM goals WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("goal not found")
	}
	return nil
}
