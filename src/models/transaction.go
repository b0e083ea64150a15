package models

import (
	"database/sql"
	"errors"
	"time"

	"github.com/username/pinigine/backend/src/utils"
)

type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// ExpenseCategory is one of the fixed category tags. The tags are Lithuanian
// and stored verbatim; income transactions carry no category.
type ExpenseCategory string

const (
	CategoryBustas     ExpenseCategory = "būstas"
	CategoryMokesciai  ExpenseCategory = "mokesčiai"
	CategoryMaistas    ExpenseCategory = "maistas"
	CategoryDrabuziai  ExpenseCategory = "drabužiai"
	CategoryAutomobile ExpenseCategory = "automobilis"
	CategoryPramogos   ExpenseCategory = "pramogos"
	CategorySveikata   ExpenseCategory = "sveikata"
	CategoryGrozis     ExpenseCategory = "grožis"
	CategoryVaikas     ExpenseCategory = "vaikas"
	CategoryKitos      ExpenseCategory = "kitos"
)

// ExpenseCategories lists every valid expense category tag.
var ExpenseCategories = []ExpenseCategory{
	CategoryBustas, CategoryMokesciai, CategoryMaistas, CategoryDrabuziai,
	CategoryAutomobile, CategoryPramogos, CategorySveikata, CategoryGrozis,
	CategoryVaikas, CategoryKitos,
}

func ValidExpenseCategory(c string) bool {
	for _, known := range ExpenseCategories {
		if string(known) == c {
			return true
		}
	}
	return false
}

func ValidTransactionType(t string) bool {
	return t == string(TypeIncome) || t == string(TypeExpense)
}

// Transaction is a single recorded income or expense instance.
type Transaction struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"-"`
	Type        TransactionType `json:"type"`
	Amount      float64         `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"` // empty for income
	Date        time.Time       `json:"date"`
	Currency    string          `json:"currency"`
	// SourceRecurringID points at the recurring definition that materialized
	// this instance; nil for manually entered transactions.
	SourceRecurringID *int64    `json:"source_recurring_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// CreateTransaction inserts a new transaction and sets its ID.
func CreateTransaction(db *sql.DB, tx *Transaction) error {
	query := `
	INSERT INTO transactions (user_id, type, amount, description, category, date, currency, source_recurring_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		tx.UserID,
		tx.Type,
		tx.Amount,
		tx.Description,
		nullableString(tx.Category),
		utils.Midnight(tx.Date).Format(utils.DefaultDateFormat),
		tx.Currency,
		tx.SourceRecurringID,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	tx.ID = id
	return nil
}

// ListTransactionsByUser returns all of the user's transactions, newest first.
func ListTransactionsByUser(db *sql.DB, userID int64) ([]Transaction, error) {
	rows, err := db.Query(`
	SELECT id, user_id, type, amount, description, category, date, currency, source_recurring_id, created_at
	FROM transactions
	WHERE user_id = ?
	ORDER BY date DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

// GetTransactionByID retrieves a single transaction scoped to its owner.
func GetTransactionByID(db *sql.DB, userID, id int64) (*Transaction, error) {
	row := db.QueryRow(`
	SELECT id, user_id, type, amount, description, category, date, currency, source_recurring_id, created_at
	FROM transactions
	WHERE user_id = ? AND id = ?`, userID, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("transaction not found")
		}
		return nil, err
	}
	return &tx, nil
}

// UpdateTransaction overwrites the mutable fields of an existing transaction.
func UpdateTransaction(db *sql.DB, tx *Transaction) error {
	res, err := db.Exec(`
	UPDATE transactions
	SET type = ?, amount = ?, description = ?, category = ?, date = ?, currency = ?
	WHERE user_id = ? AND id = ?`,
		tx.Type,
		tx.Amount,
		tx.Description,
		nullableString(tx.Category),
		utils.Midnight(tx.Date).Format(utils.DefaultDateFormat),
		tx.Currency,
		tx.UserID,
		tx.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("transaction not found")
	}
	return nil
}

// DeleteTransaction removes a transaction scoped to its owner.
func DeleteTransaction(db *sql.DB, userID, id int64) error {
	res, err := db.Exec(`DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("transaction not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var tx Transaction
	var category sql.NullString
	var dateStr string
	var sourceID sql.NullInt64

	err := row.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Description,
		&category, &dateStr, &tx.Currency, &sourceID, &tx.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	if category.Valid {
		tx.Category = category.String
	}
	if sourceID.Valid {
		id := sourceID.Int64
		tx.SourceRecurringID = &id
	}
	tx.Date = utils.ParseDate(dateStr)
	return tx, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
