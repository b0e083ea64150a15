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

type RecurringHandler struct {
	recurringService *services.RecurringService
	summaryService   services.SummaryService
}

func NewRecurringHandler(recurringService *services.RecurringService, summaryService services.SummaryService) *RecurringHandler {
	return &RecurringHandler{
		recurringService: recurringService,
		summaryService:   summaryService,
	}
}

type recurringPayload struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Frequency   string  `json:"frequency"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	Currency    string  `json:"currency"`
}

func (p *recurringPayload) validate() (*models.RecurringTransaction, error) {
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
	if !models.ValidFrequency(p.Frequency) {
		return nil, fmt.Errorf("frequency must be daily, weekly, monthly or yearly")
	}
	startDate := utils.ParseDate(p.StartDate)
	if startDate.IsZero() {
		return nil, fmt.Errorf("startDate must be in %s format", utils.DefaultDateFormat)
	}
	var endDate *time.Time
	if p.EndDate != "" {
		parsed := utils.ParseDate(p.EndDate)
		if parsed.IsZero() {
			return nil, fmt.Errorf("endDate must be in %s format", utils.DefaultDateFormat)
		}
		if parsed.Before(startDate) {
			return nil, fmt.Errorf("endDate cannot be before startDate")
		}
		endDate = &parsed
	}
	currency := p.Currency
	if currency == "" {
		currency = config.Cfg.DefaultCurrency
	}
	return &models.RecurringTransaction{
		Type:        models.TransactionType(p.Type),
		Amount:      p.Amount,
		Description: description,
		Category:    p.Category,
		Frequency:   models.Frequency(p.Frequency),
		StartDate:   startDate,
		EndDate:     endDate,
		Currency:    currency,
	}, nil
}

// HandleListRecurring materializes any due occurrences for the user and then
// returns the recurring definitions. Materialization failures are logged and
// never surface to the client; the list itself is best effort current.
func (h *RecurringHandler) HandleListRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	definitions, err := models.ListRecurringByUser(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying recurring transactions for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}

	if len(definitions) > 0 {
		existing, err := models.ListTransactionsByUser(database.DB, userID)
		if err != nil {
			logger.L.Error("Failed to load transactions before materialization", "userID", userID, "error", err)
		} else {
			result := h.recurringService.Materialize(r.Context(), userID, definitions, existing, time.Now().UTC())
			if result.Created > 0 {
				h.summaryService.InvalidateUser(userID)
				// Reload so watermarks from this run are reflected in the response.
				definitions, err = models.ListRecurringByUser(database.DB, userID)
				if err != nil {
					utils.SendJSONError(w, fmt.Sprintf("Error querying recurring transactions for userID %d: %v", userID, err), http.StatusInternalServerError)
					return
				}
			}
		}
	}
	if definitions == nil {
		definitions = []models.RecurringTransaction{}
	}

	utils.SendJSON(w, definitions, http.StatusOK)
}

func (h *RecurringHandler) HandleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	var payload recurringPayload
	if err := decodeJSONBody(w, r, &payload); err != nil {
		return
	}
	recurring, err := payload.validate()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	recurring.UserID = userID

	if err := models.CreateRecurringTransaction(database.DB, recurring); err != nil {
		logger.L.Error("Failed to create recurring transaction", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to create recurring transaction", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, recurring, http.StatusCreated)
}

func (h *RecurringHandler) HandleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid recurring transaction id", http.StatusBadRequest)
		return
	}

	if err := models.DeleteRecurringTransaction(database.DB, userID, id); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
