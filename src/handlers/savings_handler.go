package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/username/pinigine/backend/src/database"
	"github.com/username/pinigine/backend/src/logger"
	"github.com/username/pinigine/backend/src/models"
	"github.com/username/pinigine/backend/src/security/validation"
	"github.com/username/pinigine/backend/src/services"
	"github.com/username/pinigine/backend/src/utils"
)

type SavingsHandler struct {
	summaryService services.SummaryService
}

func NewSavingsHandler(summaryService services.SummaryService) *SavingsHandler {
	return &SavingsHandler{summaryService: summaryService}
}

type savingsAccountPayload struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	CurrentAmount float64  `json:"current_amount"`
	TargetAmount  *float64 `json:"target_amount"`
	Color         string   `json:"color"`
}

func (p *savingsAccountPayload) validate() (*models.SavingsAccount, error) {
	name := validation.SanitizeDescription(p.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if p.CurrentAmount < 0 {
		return nil, fmt.Errorf("current_amount cannot be negative")
	}
	if p.TargetAmount != nil && *p.TargetAmount <= 0 {
		return nil, fmt.Errorf("target_amount must be positive")
	}
	return &models.SavingsAccount{
		Name:          name,
		Description:   validation.SanitizeDescription(p.Description),
		CurrentAmount: p.CurrentAmount,
		TargetAmount:  p.TargetAmount,
		Color:         validation.StripUnprintable(p.Color),
	}, nil
}

type savingsMovementPayload struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
}

func (h *SavingsHandler) HandleListSavingsAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	accounts, err := models.ListSavingsAccountsByUser(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying savings accounts for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if accounts == nil {
		accounts = []models.SavingsAccount{}
	}

	utils.SendJSON(w, accounts, http.StatusOK)
}

func (h *SavingsHandler) HandleCreateSavingsAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	var payload savingsAccountPayload
	if err := decodeJSONBody(w, r, &payload); err != nil {
		return
	}
	account, err := payload.validate()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	account.UserID = userID

	if err := models.CreateSavingsAccount(database.DB, account); err != nil {
		logger.L.Error("Failed to create savings account", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to create savings account", http.StatusInternalServerError)
		return
	}
	h.summaryService.InvalidateUser(userID)

	utils.SendJSON(w, account, http.StatusCreated)
}

// HandleDeleteSavingsAccount removes an account together with its movements.
func (h *SavingsHandler) HandleDeleteSavingsAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid savings account id", http.StatusBadRequest)
		return
	}

	if err := models.DeleteSavingsAccount(database.DB, userID, id); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.summaryService.InvalidateUser(userID)

	w.WriteHeader(http.StatusNoContent)
}

func (h *SavingsHandler) HandleListSavingsTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	accountID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid savings account id", http.StatusBadRequest)
		return
	}

	movements, err := models.ListSavingsTransactions(database.DB, userID, accountID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying savings transactions for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if movements == nil {
		movements = []models.SavingsTransaction{}
	}

	utils.SendJSON(w, movements, http.StatusOK)
}

func (h *SavingsHandler) HandleRecordSavingsTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	accountID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid savings account id", http.StatusBadRequest)
		return
	}

	var payload savingsMovementPayload
	if err := decodeJSONBody(w, r, &payload); err != nil {
		return
	}
	if !models.ValidSavingsTransactionType(payload.Type) {
		utils.SendJSONError(w, "type must be 'deposit' or 'withdrawal'", http.StatusBadRequest)
		return
	}
	if payload.Amount <= 0 {
		utils.SendJSONError(w, "amount must be positive", http.StatusBadRequest)
		return
	}
	date := time.Now().UTC()
	if payload.Date != "" {
		date = utils.ParseDate(payload.Date)
		if date.IsZero() {
			utils.SendJSONError(w, fmt.Sprintf("date must be in %s format", utils.DefaultDateFormat), http.StatusBadRequest)
			return
		}
	}

	movement := &models.SavingsTransaction{
		UserID:           userID,
		SavingsAccountID: accountID,
		Type:             models.SavingsTransactionType(payload.Type),
		Amount:           payload.Amount,
		Date:             utils.Midnight(date),
		Description:      validation.SanitizeDescription(payload.Description),
	}

	if err := models.RecordSavingsTransaction(database.DB, movement); err != nil {
		if errors.Is(err, models.ErrInsufficientBalance) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.summaryService.InvalidateUser(userID)

	utils.SendJSON(w, movement, http.StatusCreated)
}
