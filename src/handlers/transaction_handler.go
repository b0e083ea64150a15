package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/username/pinigine/backend/src/config"
	"github.com/username/pinigine/backend/src/database"
	"github.com/username/pinigine/backend/src/logger"
	"github.com/username/pinigine/backend/src/models"
	"github.com/username/pinigine/backend/src/security/validation"
	"github.com/username/pinigine/backend/src/services"
	"github.com/username/pinigine/backend/src/utils"
)

type TransactionHandler struct {
	summaryService services.SummaryService
}

func NewTransactionHandler(summaryService services.SummaryService) *TransactionHandler {
	return &TransactionHandler{summaryService: summaryService}
}

type transactionPayload struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Currency    string  `json:"currency"`
}

func (p *transactionPayload) validate() (*models.Transaction, error) {
	if !models.ValidTransactionType(p.Type) {
		return nil, fmt.Errorf("type must be 'income' or 'expense'")
	}
	if p.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	description := validation.SanitizeDescription(p.Description)
	if description == "" {
		return nil, fmt.Errorf("description is required")
	}
	if models.TransactionType(p.Type) == models.TypeExpense {
		if !models.ValidExpenseCategory(p.Category) {
			return nil, fmt.Errorf("unknown expense category %q", p.Category)
		}
	} else if p.Category != "" {
		return nil, fmt.Errorf("income transactions cannot have a category")
	}
	date := utils.ParseDate(p.Date)
	if date.IsZero() {
		return nil, fmt.Errorf("date must be in %s format", utils.DefaultDateFormat)
	}
	currency := p.Currency
	if currency == "" {
		currency = config.Cfg.DefaultCurrency
	}
	return &models.Transaction{
		Type:        models.TransactionType(p.Type),
		Amount:      p.Amount,
		Description: description,
		Category:    p.Category,
		Date:        date,
		Currency:    currency,
	}, nil
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	transactions, err := models.ListTransactionsByUser(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying transactions for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}

	etag, err := utils.GenerateETag(transactions)
	if err == nil {
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	utils.SendJSON(w, transactions, http.StatusOK)
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	var payload transactionPayload
	if err := decodeJSONBody(w, r, &payload); err != nil {
		return
	}
	tx, err := payload.validate()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	tx.UserID = userID

	if err := models.CreateTransaction(database.DB, tx); err != nil {
		logger.L.Error("Failed to create transaction", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}
	h.summaryService.InvalidateUser(userID)

	utils.SendJSON(w, tx, http.StatusCreated)
}

func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	var payload transactionPayload
	if err := decodeJSONBody(w, r, &payload); err != nil {
		return
	}
	tx, err := payload.validate()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	tx.ID = id
	tx.UserID = userID

	if err := models.UpdateTransaction(database.DB, tx); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.summaryService.InvalidateUser(userID)

	utils.SendJSON(w, tx, http.StatusOK)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	if err := models.DeleteTransaction(database.DB, userID, id); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.summaryService.InvalidateUser(userID)

	w.WriteHeader(http.StatusNoContent)
}

// HandleExportTransactions streams the user's transactions as CSV. Free-text
// fields are guarded against spreadsheet formula injection.
func (h *TransactionHandler) HandleExportTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	transactions, err := models.ListTransactionsByUser(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying transactions for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("transactions-%s.csv", time.Now().Format(utils.DefaultDateFormat))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"date", "type", "amount", "currency", "description", "category"})
	for _, tx := range transactions {
		record := []string{
			tx.Date.Format(utils.DefaultDateFormat),
			string(tx.Type),
			strconv.FormatFloat(tx.Amount, 'f', 2, 64),
			tx.Currency,
			validation.SanitizeForFormulaInjection(tx.Description),
			validation.SanitizeForFormulaInjection(tx.Category),
		}
		if err := writer.Write(record); err != nil {
			logger.L.Error("Failed to write CSV record", "userID", userID, "error", err)
			return
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		logger.L.Error("Failed to flush CSV export", "userID", userID, "error", err)
	}
}
