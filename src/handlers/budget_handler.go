package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/username/pinigine/backend/src/config"
	"github.com/username/pinigine/backend/src/database"
	"github.com/username/pinigine/backend/src/logger"
	"github.com/username/pinigine/backend/src/models"
	"github.com/username/pinigine/backend/src/services"
	"github.com/username/pinigine/backend/src/utils"
)

type BudgetHandler struct {
	summaryService services.SummaryService
}

func NewBudgetHandler(summaryService services.SummaryService) *BudgetHandler {
	return &BudgetHandler{summaryService: summaryService}
}

type budgetPayload struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Period   string  `json:"period"`
	Currency string  `json:"currency"`
}

func (p *budgetPayload) validate() (*models.Budget, error) {
	if !models.ValidExpenseCategory(p.Category) {
		return nil, fmt.Errorf("unknown expense category %q", p.Category)
	}
	if p.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if !models.ValidBudgetPeriod(p.Period) {
		return nil, fmt.Errorf("period must be week, month or year")
	}
	currency := p.Currency
	if currency == "" {
		currency = config.Cfg.DefaultCurrency
	}
	return &models.Budget{
		Category: p.Category,
		Amount:   p.Amount,
		Period:   models.BudgetPeriod(p.Period),
		Currency: currency,
	}, nil
}

func (h *BudgetHandler) HandleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	budgets, err := models.ListBudgetsByUser(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying budgets for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if budgets == nil {
		budgets = []models.Budget{}
	}

	utils.SendJSON(w, budgets, http.StatusOK)
}

func (h *BudgetHandler) HandleCreateBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	var payload budgetPayload
	if err := decodeJSONBody(w, r, &payload); err != nil {
		return
	}
	budget, err := payload.validate()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	budget.UserID = userID

	if err := models.CreateBudget(database.DB, budget); err != nil {
		logger.L.Error("Failed to create budget", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to create budget", http.StatusInternalServerError)
		return
	}
	h.summaryService.InvalidateUser(userID)

	utils.SendJSON(w, budget, http.StatusCreated)
}

func (h *BudgetHandler) HandleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid budget id", http.StatusBadRequest)
		return
	}

	var payload budgetPayload
	if err := decodeJSONBody(w, r, &payload); err != nil {
		return
	}
	budget, err := payload.validate()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	budget.ID = id
	budget.UserID = userID

	if err := models.UpdateBudget(database.DB, budget); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.summaryService.InvalidateUser(userID)

	utils.SendJSON(w, budget, http.StatusOK)
}

func (h *BudgetHandler) HandleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid budget id", http.StatusBadRequest)
		return
	}

	if err := models.DeleteBudget(database.DB, userID, id); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.summaryService.InvalidateUser(userID)

	w.WriteHeader(http.StatusNoContent)
}
