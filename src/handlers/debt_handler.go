package handlers

import (
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

type DebtHandler struct {
	summaryService services.SummaryService
}

func NewDebtHandler(summaryService services.SummaryService) *DebtHandler {
	return &DebtHandler{summaryService: summaryService}
}

type debtPayload struct {
	Type        string  `json:"type"`
	Person      string  `json:"person"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	PaidDate    string  `json:"paid_date"`
	Currency    string  `json:"currency"`
}

func (p *debtPayload) validate() (*models.Debt, error) {
	if !models.ValidDebtType(p.Type) {
		return nil, fmt.Errorf("type must be 'owed' or 'lent'")
	}
	person := validation.SanitizeDescription(p.Person)
	if person == "" {
		return nil, fmt.Errorf("person is required")
	}
	if p.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	date := utils.ParseDate(p.Date)
	if date.IsZero() {
		return nil, fmt.Errorf("date must be in %s format", utils.DefaultDateFormat)
	}
	var paidDate *time.Time
	if p.PaidDate != "" {
		parsed := utils.ParseDate(p.PaidDate)
		if parsed.IsZero() {
			return nil, fmt.Errorf("paid_date must be in %s format", utils.DefaultDateFormat)
		}
		if parsed.Before(date) {
			return nil, fmt.Errorf("paid_date cannot be before date")
		}
		paidDate = &parsed
	}
	currency := p.Currency
	if currency == "" {
		currency = config.Cfg.DefaultCurrency
	}
	return &models.Debt{
		Type:        models.DebtType(p.Type),
		Person:      person,
		Amount:      p.Amount,
		Description: validation.SanitizeDescription(p.Description),
		Date:        date,
		PaidDate:    paidDate,
		Currency:    currency,
	}, nil
}

func (h *DebtHandler) HandleListDebts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	debts, err := models.ListDebtsByUser(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying debts for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if debts == nil {
		debts = []models.Debt{}
	}

	utils.SendJSON(w, debts, http.StatusOK)
}

func (h *DebtHandler) HandleCreateDebt(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	var payload debtPayload
	if err := decodeJSONBody(w, r, &payload); err != nil {
		return
	}
	debt, err := payload.validate()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	debt.UserID = userID

	if err := models.CreateDebt(database.DB, debt); err != nil {
		logger.L.Error("Failed to create debt", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to create debt", http.StatusInternalServerError)
		return
	}
	h.summaryService.InvalidateUser(userID)

	utils.SendJSON(w, debt, http.StatusCreated)
}

func (h *DebtHandler) HandleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid debt id", http.StatusBadRequest)
		return
	}

	var payload debtPayload
	if err := decodeJSONBody(w, r, &payload); err != nil {
		return
	}
	debt, err := payload.validate()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	debt.ID = id
	debt.UserID = userID

	if err := models.UpdateDebt(database.DB, debt); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.summaryService.InvalidateUser(userID)

	utils.SendJSON(w, debt, http.StatusOK)
}

func (h *DebtHandler) HandleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid debt id", http.StatusBadRequest)
		return
	}

	if err := models.DeleteDebt(database.DB, userID, id); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.summaryService.InvalidateUser(userID)

	w.WriteHeader(http.StatusNoContent)
}
