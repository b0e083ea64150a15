package models

import (
	"errors"
	"testing"
	"time"

	"github.com/username/pinigine/backend/src/database"
	"github.com/username/pinigine/backend/src/utils"
)

func newTestDB(t *testing.T) {
	t.Helper()
	database.InitDB(":memory:")
	// A second pool connection would see its own empty in-memory database.
	database.DB.SetMaxOpenConns(1)
}

func TestRecurringWatermarkRoundTrip(t *testing.T) {
	newTestDB(t)

	rec := &RecurringTransaction{
		UserID:      1,
		Type:        TypeExpense,
		Amount:      9.99,
		Description: "Streaming",
		Category:    "pramogos",
		Frequency:   FrequencyMonthly,
		StartDate:   utils.ParseDate("2024-01-01"),
		Currency:    "EUR",
	}
	if err := CreateRecurringTransaction(database.DB, rec); err != nil {
		t.Fatalf("CreateRecurringTransaction: %v", err)
	}

	listed, err := ListRecurringByUser(database.DB, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].LastMaterialized != nil {
		t.Fatalf("fresh definition should have no watermark, got %+v", listed)
	}

	wm := utils.ParseDate("2024-03-01")
	if err := SetRecurringWatermark(database.DB, rec.ID, wm); err != nil {
		t.Fatalf("SetRecurringWatermark: %v", err)
	}

	listed, err = ListRecurringByUser(database.DB, 1)
	if err != nil {
		t.Fatal(err)
	}
	if listed[0].LastMaterialized == nil || !utils.SameDay(*listed[0].LastMaterialized, wm) {
		t.Errorf("watermark = %v, want 2024-03-01", listed[0].LastMaterialized)
	}

	if err := ClearRecurringWatermark(database.DB, rec.ID); err != nil {
		t.Fatalf("ClearRecurringWatermark: %v", err)
	}
	listed, err = ListRecurringByUser(database.DB, 1)
	if err != nil {
		t.Fatal(err)
	}
	if listed[0].LastMaterialized != nil {
		t.Errorf("watermark after clear = %v, want nil", listed[0].LastMaterialized)
	}
}

func TestDeleteRecurringScopedToOwner(t *testing.T) {
	newTestDB(t)

	rec := &RecurringTransaction{
		UserID:      1,
		Type:        TypeIncome,
		Amount:      1200,
		Description: "Alga",
		Frequency:   FrequencyMonthly,
		StartDate:   utils.ParseDate("2024-01-01"),
		Currency:    "EUR",
	}
	if err := CreateRecurringTransaction(database.DB, rec); err != nil {
		t.Fatal(err)
	}

	if err := DeleteRecurringTransaction(database.DB, 2, rec.ID); err == nil {
		t.Error("another user deleted the definition")
	}
	if err := DeleteRecurringTransaction(database.DB, 1, rec.ID); err != nil {
		t.Errorf("owner could not delete the definition: %v", err)
	}
}

func TestTransactionSourceRecurringID(t *testing.T) {
	newTestDB(t)

	defID := int64(7)
	tx := &Transaction{
		UserID:            1,
		Type:              TypeExpense,
		Amount:            5,
		Description:       "Coffee",
		Category:          "maistas",
		Date:              utils.ParseDate("2024-01-08"),
		Currency:          "EUR",
		SourceRecurringID: &defID,
	}
	if err := CreateTransaction(database.DB, tx); err != nil {
		t.Fatal(err)
	}

	listed, err := ListTransactionsByUser(database.DB, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].SourceRecurringID == nil || *listed[0].SourceRecurringID != 7 {
		t.Errorf("SourceRecurringID not preserved, got %+v", listed)
	}
}

func TestSavingsWithdrawalExceedingBalance(t *testing.T) {
	newTestDB(t)

	account := &SavingsAccount{UserID: 1, Name: "Pagalvė", CurrentAmount: 100}
	if err := CreateSavingsAccount(database.DB, account); err != nil {
		t.Fatal(err)
	}

	overdraw := &SavingsTransaction{
		UserID:           1,
		SavingsAccountID: account.ID,
		Type:             SavingsWithdrawal,
		Amount:           150,
		Date:             time.Now().UTC(),
	}
	err := RecordSavingsTransaction(database.DB, overdraw)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("over-withdrawal error = %v, want ErrInsufficientBalance", err)
	}

	deposit := &SavingsTransaction{
		UserID:           1,
		SavingsAccountID: account.ID,
		Type:             SavingsDeposit,
		Amount:           50,
		Date:             time.Now().UTC(),
	}
	if err := RecordSavingsTransaction(database.DB, deposit); err != nil {
		t.Fatal(err)
	}

	accounts, err := ListSavingsAccountsByUser(database.DB, 1)
	if err != nil {
		t.Fatal(err)
	}
	if accounts[0].CurrentAmount != 150 {
		t.Errorf("balance = %v, want 150 (failed withdrawal must not change it)", accounts[0].CurrentAmount)
	}

	movements, err := ListSavingsTransactions(database.DB, 1, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(movements) != 1 {
		t.Errorf("movement count = %d, want 1 (rejected withdrawal must not be recorded)", len(movements))
	}
}
