package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"referral-shop/internal/auth"
)

// Handlers bundles the endpoint groups mounted by RegisterRoutes
type Handlers struct {
	Auth      *AuthHandler
	Referral  *ReferralHandler
	Purchase  *PurchaseHandler
	Dashboard *DashboardHandler
}

// RegisterRoutes mounts the API under /api/v2 and the health check at /health.
// denylist may be nil.
func RegisterRoutes(router *gin.Engine, h Handlers, denylist auth.Denylist) {
	useJSONFieldNames()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	requireAuth := auth.AuthMiddleware(denylist)
	api := router.Group("/api/v2")

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.Auth.Register)
		authRoutes.POST("/login", h.Auth.Login)
		authRoutes.POST("/logout", requireAuth, h.Auth.Logout)
		authRoutes.GET("/me", requireAuth, h.Auth.GetMe)
		authRoutes.POST("/refresh", requireAuth, h.Auth.RefreshToken)
	}

	referralRoutes := api.Group("/referral")
	{
		referralRoutes.POST("/validate", h.Referral.ValidateCode)
		referralRoutes.GET("/stats", requireAuth, h.Referral.GetStats)
		referralRoutes.GET("/link", requireAuth, h.Referral.GetLink)
		referralRoutes.GET("/history", requireAuth, h.Referral.GetHistory)
	}

	purchaseRoutes := api.Group("/purchase")
	purchaseRoutes.Use(requireAuth)
	{
		purchaseRoutes.POST("/create", h.Purchase.CreatePurchase)
		purchaseRoutes.GET("/history", h.Purchase.GetHistory)
		purchaseRoutes.GET("/user/:userId", h.Purchase.GetUserPurchases)
	}

	dashboardRoutes := api.Group("/dashboard")
	dashboardRoutes.Use(requireAuth)
	{
		dashboardRoutes.GET("/stats", h.Dashboard.GetStats)
		dashboardRoutes.GET("/metrics", h.Dashboard.GetMetrics)
		dashboardRoutes.GET("/activity", h.Dashboard.GetActivity)
	}

	router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Route "+c.Request.URL.Path+" not found")
	})
}
