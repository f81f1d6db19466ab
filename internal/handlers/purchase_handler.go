package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"referral-shop/internal/auth"
	"referral-shop/internal/services"
)

type PurchaseHandler struct {
	purchaseService *services.PurchaseService
}

func NewPurchaseHandler(purchaseService *services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchaseService: purchaseService}
}

type createPurchaseRequest struct {
	ProductID   string           `json:"productId" binding:"required,max=100"`
	ProductName string           `json:"productName" binding:"required,max=255"`
	Amount      *decimal.Decimal `json:"amount" binding:"required"`
}

// CreatePurchase records a simulated purchase for the current user
// POST /api/v2/purchase/create
func (h *PurchaseHandler) CreatePurchase(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createPurchaseRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.purchaseService.CreatePurchase(c.Request.Context(), services.PurchaseInput{
		UserID:      userID,
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Amount:      *req.Amount,
	})
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, result.Message, result)
}

// GetHistory returns the current user's purchases
// GET /api/v2/purchase/history
func (h *PurchaseHandler) GetHistory(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	page, limit := pageParams(c)
	history, err := h.purchaseService.GetHistory(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Purchase history retrieved successfully", history)
}

// GetUserPurchases returns purchases of the user named in the path
// GET /api/v2/purchase/user/:userId
func (h *PurchaseHandler) GetUserPurchases(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || userID == 0 {
		respondError(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	page, limit := pageParams(c)
	history, err := h.purchaseService.GetUserPurchases(c.Request.Context(), uint(userID), page, limit)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "User purchases retrieved successfully", history)
}
