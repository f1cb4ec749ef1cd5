package routes

import (
	"time"

	"atelia_back_end/internal/cache"
	"atelia_back_end/internal/handlers/payement"
	"atelia_back_end/internal/handlers/retours"
	"atelia_back_end/internal/middleware"
	"atelia_back_end/internal/returns"
	services "atelia_back_end/internal/service"
	servicespkg "atelia_back_end/internal/services"
	"atelia_back_end/internal/shipping"
	"atelia_back_end/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// buildReturnService assemble le moteur de retours et ses adaptateurs
func buildReturnService() *returns.Service {
	store := returns.NewScyllaStore()

	svc := returns.NewService(
		store,
		store,
		returns.NewStripePayments(),
		shipping.NewClientFromEnv(),
		utils.NewEmailNotifier(),
		returns.LoadConfig(),
	).
		WithIndexer(services.NewElasticIndexer()).
		WithArchiver(servicespkg.NewLabelArchiver()).
		WithCache(cache.NewRedisBus())

	return svc
}

func RegisterRoutes(r *gin.Engine) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://atelia.shop"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	svc := buildReturnService()
	retours.Init(svc)
	payement.Init(svc)

	api := r.Group("/api")
	api.Use(middleware.APIRateLimit())

	// Webhooks — authentifiés par signature, jamais par JWT
	webhooks := api.Group("/webhooks")
	{
		webhooks.POST("/stripe", payement.StripeWebhook)
		webhooks.POST("/sendcloud", payement.SendcloudWebhook)
	}

	// Retours client — OptionalAuth : un invité s'identifie par l'e-mail de
	// la commande
	rts := api.Group("/returns")
	rts.Use(middleware.OptionalAuth())
	{
		rts.POST("", middleware.ReturnCreateRateLimit(), retours.CreateReturn)
		rts.GET("/:id", retours.GetReturn)
		rts.GET("/:id/ws", retours.ReturnWebSocket)
		rts.POST("/:id/payment", retours.CreateLabelPayment)
	}

	// Liste « mes retours » — JWT obligatoire
	api.GET("/returns", middleware.AuthRequired(), retours.GetMyReturns)

	// Back-office
	admin := api.Group("/admin/returns")
	admin.Use(middleware.AuthRequired(), middleware.RequireAdmin)
	{
		admin.GET("", retours.GetAllReturns)
		admin.GET("/:id/history", retours.GetReturnHistory)
		admin.POST("/:id/process", retours.ProcessReturn)
		admin.POST("/:id/label", retours.RetryLabel)
		admin.POST("/:id/refund", retours.ExecuteRefund)
	}
}
