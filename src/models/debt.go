package models

import (
	"database/sql"
	"errors"
	"time"

	"github.com/username/pinigine/backend/src/utils"
)

type DebtType string

const (
	DebtOwed DebtType = "owed" // money the user owes
	DebtLent DebtType = "lent" // money the user lent out
)

func ValidDebtType(t string) bool {
	return DebtType(t) == DebtOwed || DebtType(t) == DebtLent
}

// Debt is a borrow/lend record against a named person. PaidDate set means
// the debt is settled.
type Debt struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"-"`
	Type        DebtType   `json:"type"`
	Person      string     `json:"person"`
	Amount      float64    `json:"amount"`
	Description string     `json:"description,omitempty"`
	Date        time.Time  `json:"date"`
	PaidDate    *time.Time `json:"paid_date,omitempty"`
	Currency    string     `json:"currency"`
}

func CreateDebt(db *sql.DB, d *Debt) error {
	var paidDate interface{}
	if d.PaidDate != nil {
		paidDate = utils.Midnight(*d.PaidDate).Format(utils.DefaultDateFormat)
	}
	res, err := db.Exec(`
	INSERT INTO debts (user_id, type, person, amount, description, date, paid_date, currency)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.UserID, d.Type, d.Person, d.Amount, nullableString(d.Description),
		utils.Midnight(d.Date).Format(utils.DefaultDateFormat), paidDate, d.Currency)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

func ListDebtsByUser(db *sql.DB, userID int64) ([]Debt, error) {
	rows, err := db.Query(`
	SELECT id, user_id, type, person, amount, description, date, paid_date, currency
	FROM debts
	WHERE user_id = ?
	ORDER BY date DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var debts []Debt
	for rows.Next() {
		var d Debt
		var description, paidStr sql.NullString
		var dateStr string
		if err := rows.Scan(&d.ID, &d.UserID, &d.Type, &d.Person, &d.Amount,
			&description, &dateStr, &paidStr, &d.Currency); err != nil {
			return nil, err
		}
		if description.Valid {
			d.Description = description.String
		}
		d.Date = utils.ParseDate(dateStr)
		if paidStr.Valid {
			p := utils.ParseDate(paidStr.String)
			d.PaidDate = &p
		}
		debts = append(debts, d)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return debts, nil
}

func UpdateDebt(db *sql.DB, d *Debt) error {
	var paidDate interface{}
	if d.PaidDate != nil {
		paidDate = utils.Midnight(*d.PaidDate).Format(utils.DefaultDateFormat)
	}
	res, err := db.Exec(`
	UPDATE debts
	SET type = ?, person = ?, amount = ?, description = ?, date = ?, paid_date = ?, currency = ?
	WHERE user_id = ? AND id = ?`,
		d.Type, d.Person, d.Amount, nullableString(d.Description),
		utils.Midnight(d.Date).Format(utils.DefaultDateFormat), paidDate, d.Currency,
		d.UserID, d.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("debt not found")
	}
	return nil
}

func DeleteDebt(db *sql.DB, userID, id int64) error {
	res, err := db.Exec(`DELETE FROM debts WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("debt not found")
	}
	return nil
}
