package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"plancosmique/handlers"
	"plancosmique/middleware"
	"plancosmique/utils"
)

// RegisterFulfillmentRoutes sets up the endpoints for the fulfillment flow.
func RegisterFulfillmentRoutes(r *gin.Engine) {
	group := r.Group("/api/fulfillment")
	{
		group.Use(middleware.JWTAuthUserMiddleware())
		group.POST("/session", handlers.StartFulfillmentSession)
		group.GET("/session/:sessionID", handlers.GetFulfillmentSession)
		group.POST("/session/:sessionID/form", handlers.SubmitFulfillmentForm)
		group.POST("/session/:sessionID/consume", handlers.ConfirmFulfillmentOffering)
		group.POST("/session/:sessionID/marketplace", handlers.FulfillmentMarketplaceHandoff)
		group.POST("/session/:sessionID/reset", handlers.ResetFulfillmentError)
		group.GET("/session/:sessionID/progress", handlers.FulfillmentProgressStream)
		group.DELETE("/session/:sessionID", handlers.TeardownFulfillmentSession)

		group.GET("/consultation/:consultationID", handlers.GetConsultation)

		// Payment providers redirect the browser here; the session binds
		// the token back to an authenticated flow.
		group.POST("/payment/callback", handlers.FulfillmentPaymentCallback)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, utils.GetHealthStatus())
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimitMiddleware())

	RegisterHealthRoute(r)
	RegisterFulfillmentRoutes(r)
}
