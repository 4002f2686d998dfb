package handler

import (
	"net/http"
	"strconv"

	mw "github.com/skyanchor/skyanchor/internal/api/middleware"
	"github.com/skyanchor/skyanchor/internal/api/response"
	"github.com/skyanchor/skyanchor/pkg/models"
)

type historyResponse struct {
	History []*models.Positioning `json:"history"`
}

// NewHistoryHandler returns the handler for GET /api/v1/positioning/history.
func NewHistoryHandler(svc PositioningService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "missing user identity")
			return
		}

		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				response.Error(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		recs, err := svc.GetHistory(r.Context(), userID, limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "an unexpected error occurred")
			return
		}

		response.JSON(w, historyResponse{History: recs})
	}
}
