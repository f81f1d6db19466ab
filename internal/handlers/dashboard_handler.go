package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"referral-shop/internal/auth"
	"referral-shop/internal/services"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

func (h *DashboardHandler) GetStats(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	stats, err := h.dashboardService.GetStats(c.Request.Context(), userID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Dashboard stats retrieved successfully", stats)
}

func (h *DashboardHandler) GetMetrics(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	metrics, err := h.dashboardService.GetMetrics(c.Request.Context(), userID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Dashboard metrics retrieved successfully", metrics)
}

// GetActivity returns the merged referral and purchase feed
func (h *DashboardHandler) GetActivity(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	page, limit := pageParams(c)
	feed, err := h.dashboardService.GetActivity(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Activity retrieved successfully", feed)
}
