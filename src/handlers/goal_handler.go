package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/username/pinigine/backend/src/config"
	"github.com/username/pinigine/backend/src/database"
	"github.com/username/pinigine/backend/src/logger"
	"github.com/username/pinigine/backend/src/models"
	"github.com/username/pinigine/backend/src/security/validation"
	"github.com/username/pinigine/backend/src/services"
	"github.com/username/pinigine/backend/src/utils"
)

type GoalHandler struct {
	summaryService services.SummaryService
}

func NewGoalHandler(summaryService services.SummaryService) *GoalHandler {
	return &GoalHandler{summaryService: summaryService}
}

type goalPayload struct {
	Title         string  `json:"title"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
	TargetDate    string  `json:"target_date"`
	Description   string  `json:"description"`
	Currency      string  `json:"currency"`
}

func (p *goalPayload) validate() (*models.FinancialGoal, error) {
	title := validation.SanitizeDescription(p.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if p.TargetAmount <= 0 {
		return nil, fmt.Errorf("target_amount must be positive")
	}
	if p.CurrentAmount < 0 {
		return nil, fmt.Errorf("current_amount cannot be negative")
	}
	targetDate := utils.ParseDate(p.TargetDate)
	if targetDate.IsZero() {
		return nil, fmt.Errorf("target_date must be in %s format", utils.DefaultDateFormat)
	}
	currency := p.Currency
	if currency == "" {
		currency = config.Cfg.DefaultCurrency
	}
	return &models.FinancialGoal{
		Title:         title,
		TargetAmount:  p.TargetAmount,
		CurrentAmount: p.CurrentAmount,
		TargetDate:    targetDate,
		Description:   validation.SanitizeDescription(p.Description),
		Currency:      currency,
	}, nil
}

func (h *GoalHandler) HandleListGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	goals, err := models.ListGoalsByUser(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying goals for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if goals == nil {
		goals = []models.FinancialGoal{}
	}

	utils.SendJSON(w, goals, http.StatusOK)
}

func (h *GoalHandler) HandleCreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	var payload goalPayload
	if err := decodeJSONBody(w, r, &payload); err != nil {
		return
	}
	goal, err := payload.validate()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	goal.UserID = userID

	if err := models.CreateGoal(database.DB, goal); err != nil {
		logger.L.Error("Failed to create goal", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to create goal", http.StatusInternalServerError)
		return
	}
	h.summaryService.InvalidateUser(userID)

	utils.SendJSON(w, goal, http.StatusCreated)
}

func (h *GoalHandler) HandleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid goal id", http.StatusBadRequest)
		return
	}

	var payload goalPayload
	if err := decodeJSONBody(w, r, &payload); err != nil {
		return
	}
	goal, err := payload.validate()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	goal.ID = id
	goal.UserID = userID

	if err := models.UpdateGoal(database.DB, goal); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.summaryService.InvalidateUser(userID)

	utils.SendJSON(w, goal, http.StatusOK)
}

func (h *GoalHandler) HandleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid goal id", http.StatusBadRequest)
		return
	}

	if err := models.DeleteGoal(database.DB, userID, id); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.summaryService.InvalidateUser(userID)

	w.WriteHeader(http.StatusNoContent)
}
