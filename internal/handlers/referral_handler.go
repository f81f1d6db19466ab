package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"referral-shop/internal/auth"
	"referral-shop/internal/services"
)

type ReferralHandler struct {
	referralService *services.ReferralService
}

func NewReferralHandler(referralService *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{referralService: referralService}
}

type validateCodeRequest struct {
	ReferralCode string `json:"referralCode" binding:"required"`
}

// GetStats returns referral statistics for the current user
func (h *ReferralHandler) GetStats(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	stats, err := h.referralService.GetStats(c.Request.Context(), userID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Referral stats retrieved successfully", stats)
}

// GetLink returns the shareable referral link
func (h *ReferralHandler) GetLink(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	link, err := h.referralService.GetLink(c.Request.Context(), userID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Referral link retrieved successfully", link)
}

// ValidateCode checks a referral code without authentication
func (h *ReferralHandler) ValidateCode(c *gin.Context) {
	var req validateCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.referralService.ValidateCode(c.Request.Context(), req.ReferralCode)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, result.Message, result)
}

// GetHistory returns the referrals made by the current user
func (h *ReferralHandler) GetHistory(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	page, limit := pageParams(c)
	history, err := h.referralService.GetHistory(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Referral history retrieved successfully", history)
}
