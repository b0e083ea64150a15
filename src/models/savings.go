package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/pinigine/backend/src/utils"
)

type SavingsTransactionType string

const (
	SavingsDeposit    SavingsTransactionType = "deposit"
	SavingsWithdrawal SavingsTransactionType = "withdrawal"
)

func ValidSavingsTransactionType(t string) bool {
	return SavingsTransactionType(t) == SavingsDeposit || SavingsTransactionType(t) == SavingsWithdrawal
}

// ErrInsufficientBalance is returned when a withdrawal exceeds the account balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// SavingsAccount is a named pot of money with an optional target.
type SavingsAccount struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"-"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CurrentAmount float64   `json:"current_amount"`
	TargetAmount  *float64  `json:"target_amount,omitempty"`
	Color         string    `json:"color,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SavingsTransaction is a deposit to or withdrawal from a savings account.
type SavingsTransaction struct {
	ID               int64                  `json:"id"`
	UserID           int64                  `json:"-"`
	SavingsAccountID int64                  `json:"savings_account_id"`
	Type             SavingsTransactionType `json:"type"`
	Amount           float64                `json:"amount"`
	Date             time.Time              `json:"date"`
	Description      string                 `json:"description,omitempty"`
}

func CreateSavingsAccount(db *sql.DB, a *SavingsAccount) error {
	res, err := db.Exec(`
	INSERT INTO savings_accounts (user_id, name, description, current_amount, target_amount, color)
	VALUES (?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Name, nullableString(a.Description), a.CurrentAmount, a.TargetAmount, nullableString(a.Color))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func ListSavingsAccountsByUser(db *sql.DB, userID int64) ([]SavingsAccount, error) {
	rows, err := db.Query(`
	SELECT id, user_id, name, description, current_amount, target_amount, color, created_at
	FROM savings_accounts
	WHERE user_id = ?
	ORDER BY id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []SavingsAccount
	for rows.Next() {
		var a SavingsAccount
		var description, color sql.NullString
		var target sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &description, &a.CurrentAmount,
			&target, &color, &a.CreatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			a.Description = description.String
		}
		if target.Valid {
			t := target.Float64
			a.TargetAmount = &t
		}
		if color.Valid {
			a.Color = color.String
		}
		accounts = append(accounts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func DeleteSavingsAccount(db *sql.DB, userID, id int64) error {
	if _, err := db.Exec(`DELETE FROM savings_transactions WHERE user_id = ? AND savings_account_id = ?`, userID, id); err != nil {
		return err
	}
	res, err := db.Exec(`DELETE FROM savings_accounts WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("savings account not found")
	}
	return nil
}

// RecordSavingsTransaction inserts a deposit or withdrawal and adjusts the
// account balance in one database transaction. A withdrawal larger than the
// current balance is rejected.
func RecordSavingsTransaction(db *sql.DB, st *SavingsTransaction) error {
	dbTx, err := db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	var current float64
	err = dbTx.QueryRow(`
	SELECT current_amount FROM savings_accounts WHERE user_id = ? AND id = ?`,
		st.UserID, st.SavingsAccountID).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.New("savings account not found")
		}
		return err
	}

	delta := st.Amount
	if st.Type == SavingsWithdrawal {
		if st.Amount > current {
			return fmt.Errorf("%w: withdrawal %.2f exceeds balance %.2f", ErrInsufficientBalance, st.Amount, current)
		}
		delta = -st.Amount
	}

	res, err := dbTx.Exec(`
	INSERT INTO savings_transactions (user_id, savings_account_id, type, amount, date, description)
	VALUES (?, ?, ?, ?, ?, ?)`,
		st.UserID, st.SavingsAccountID, st.Type, st.Amount,
		utils.Midnight(st.Date).Format(utils.DefaultDateFormat), nullableString(st.Description))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = id

	_, err = dbTx.Exec(`
	UPDATE savings_accounts SET current_amount = current_amount + ? WHERE user_id = ? AND id = ?`,
		delta, st.UserID, st.SavingsAccountID)
	if err != nil {
		return err
	}

	return dbTx.Commit()
}

// ListSavingsTransactions returns the movement history of one account, newest first.
func ListSavingsTransactions(db *sql.DB, userID, accountID int64) ([]SavingsTransaction, error) {
	rows, err := db.Query(`
	SELECT id, user_id, savings_account_id, type, amount, date, description
	FROM savings_transactions
	WHERE user_id = ? AND savings_account_id = ?
	ORDER BY date DESC, id DESC`, userID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []SavingsTransaction
	for rows.Next() {
		var st SavingsTransaction
		var dateStr string
		var description sql.NullString
		if err := rows.Scan(&st.ID, &st.UserID, &st.SavingsAccountID, &st.Type, &st.Amount,
			&dateStr, &description); err != nil {
			return nil, err
		}
		st.Date = utils.ParseDate(dateStr)
		if description.Valid {
			st.Description = description.String
		}
		movements = append(movements, st)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}
