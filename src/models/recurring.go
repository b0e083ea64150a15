package models

import (
	"database/sql"
	"errors"
	"time"

	"github.com/username/pinigine/backend/src/utils"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

func ValidFrequency(f string) bool {
	switch Frequency(f) {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringTransaction is a definition from which concrete transaction
// instances are materialized over time. LastMaterialized is the watermark:
// the date of the most recently materialized occurrence. It lives on the
// definition row so deleting the definition deletes it too.
type RecurringTransaction struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"-"`
	Type             TransactionType `json:"type"`
	Amount           float64         `json:"amount"`
	Description      string          `json:"description"`
	Category         string          `json:"category,omitempty"` // empty for income
	Frequency        Frequency       `json:"frequency"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          *time.Time      `json:"end_date,omitempty"`
	Currency         string          `json:"currency"`
	LastMaterialized *time.Time      `json:"last_materialized,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CreateRecurringTransaction inserts a new recurring definition and sets its ID.
func CreateRecurringTransaction(db *sql.DB, rec *RecurringTransaction) error {
	var endDate interface{}
	if rec.EndDate != nil {
		endDate = utils.Midnight(*rec.EndDate).Format(utils.DefaultDateFormat)
	}
	query := `
	INSERT INTO recurring_transactions (user_id, type, amount, description, category, frequency, start_date, end_date, currency)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		rec.UserID,
		rec.Type,
		rec.Amount,
		rec.Description,
		nullableString(rec.Category),
		rec.Frequency,
		utils.Midnight(rec.StartDate).Format(utils.DefaultDateFormat),
		endDate,
		rec.Currency,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

// ListRecurringByUser returns all of the user's recurring definitions in
// creation order.
func ListRecurringByUser(db *sql.DB, userID int64) ([]RecurringTransaction, error) {
	rows, err := db.Query(`
	SELECT id, user_id, type, amount, description, category, frequency, start_date, end_date, currency, last_materialized, created_at
	FROM recurring_transactions
	WHERE user_id = ?
	ORDER BY id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var definitions []RecurringTransaction
	for rows.Next() {
		var rec RecurringTransaction
		var category sql.NullString
		var startStr string
		var endStr, lastStr sql.NullString

		err := rows.Scan(&rec.ID, &rec.UserID, &rec.Type, &rec.Amount, &rec.Description,
			&category, &rec.Frequency, &startStr, &endStr, &rec.Currency, &lastStr, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		if category.Valid {
			rec.Category = category.String
		}
		rec.StartDate = utils.ParseDate(startStr)
		if endStr.Valid {
			d := utils.ParseDate(endStr.String)
			rec.EndDate = &d
		}
		if lastStr.Valid {
			d := utils.ParseDate(lastStr.String)
			rec.LastMaterialized = &d
		}
		definitions = append(definitions, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return definitions, nil
}

// DeleteRecurringTransaction removes a definition scoped to its owner. The
// watermark is a column on the row, so no orphaned progress marker survives.
func DeleteRecurringTransaction(db *sql.DB, userID, id int64) error {
	res, err := db.Exec(`DELETE FROM recurring_transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("recurring transaction not found")
	}
	return nil
}

// SetRecurringWatermark records the date of the most recently materialized
// occurrence for a definition.
func SetRecurringWatermark(db *sql.DB, definitionID int64, date time.Time) error {
	_, err := db.Exec(`
	UPDATE recurring_transactions
	SET last_materialized = ?
	WHERE id = ?`, utils.Midnight(date).Format(utils.DefaultDateFormat), definitionID)
	return err
}

// ClearRecurringWatermark resets materialization progress for a definition,
// e.g. after its start date was edited.
func ClearRecurringWatermark(db *sql.DB, definitionID int64) error {
	_, err := db.Exec(`
	UPDATE recurring_transactions
	SET last_materialized = NULL
	WHERE id = ?`, definitionID)
	return err
}
