package handlers

import (
	"net/http"

	"github.com/username/pinigine/backend/src/logger"
	"github.com/username/pinigine/backend/src/services"
	"github.com/username/pinigine/backend/src/utils"
)

type SummaryHandler struct {
	summaryService services.SummaryService
}

func NewSummaryHandler(summaryService services.SummaryService) *SummaryHandler {
	return &SummaryHandler{summaryService: summaryService}
}

// HandleGetSummary serves the aggregated dashboard numbers for one period.
// Results are cached per user and period; writes elsewhere invalidate them.
func (h *SummaryHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}
	switch period {
	case "week", "month", "year":
	default:
		utils.SendJSONError(w, "period must be week, month or year", http.StatusBadRequest)
		return
	}

	summary, err := h.summaryService.GetSummary(r.Context(), userID, period)
	if err != nil {
		logger.L.Error("Failed to build summary", "userID", userID, "period", period, "error", err)
		utils.SendJSONError(w, "Failed to build summary", http.StatusInternalServerError)
		return
	}

	etag, err := utils.GenerateETag(summary)
	if err == nil {
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	utils.SendJSON(w, summary, http.StatusOK)
}
