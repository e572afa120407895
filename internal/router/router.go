package router

import (
	"log"
	"net/http"

	"roadassist/config"
	"roadassist/internal/auth"
	"roadassist/internal/domain"
	"roadassist/internal/events"
	"roadassist/internal/handler"
	"roadassist/internal/middleware"
	"roadassist/internal/repository"
	"roadassist/internal/service"
	"roadassist/internal/ws"
	"roadassist/pkg/cloudinary"
	"roadassist/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Setup wires repositories, services, the realtime relay and handlers. The
// returned hub is needed by main to attach the cross-instance bridge.
func Setup(cfg *config.Config, db *gorm.DB, cloud cloudinary.Client, publisher events.Publisher) (*gin.Engine, *ws.Hub) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.RateLimit(middleware.NewKeyedRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	locRepo := repository.NewLocationRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	emergencyRepo := repository.NewEmergencyRepository(db)
	chatRepo := repository.NewChatRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	fcmSvc := service.NewFCMService(cfg.Firebase.ServiceAccountPath)
	if fcmSvc != nil {
		log.Printf("[FCM] Push notifications enabled")
	} else if cfg.Firebase.ServiceAccountPath != "" {
		log.Printf("[FCM] Push notifications disabled: failed to init (check service account file)")
	} else {
		log.Printf("[FCM] Push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, fcmSvc)
	orderSvc := service.NewOrderService(orderRepo, productRepo, notifSvc)
	paymentSvc := service.NewPaymentService(paymentRepo, orderRepo, userRepo, notifSvc, paymentProviders(cfg)...)
	emergencySvc := service.NewEmergencyService(emergencyRepo, userRepo, vehicleRepo, chatRepo, notifSvc, publisher, cfg.Location.DispatchBoxDegrees)

	// Realtime relay; the emergency service and the relay call into each other.
	hub := ws.NewHub()
	relay := ws.NewRelay(hub, ws.Deps{
		Tokens:          auth.NewVerifier(&cfg.JWT),
		Presence:        userRepo,
		Chats:           chatRepo,
		Positions:       locRepo,
		Providers:       userRepo,
		Users:           userRepo,
		DispatchDegrees: cfg.Location.DispatchBoxDegrees,
	})
	relay.UseEmergencyDesk(emergencySvc)
	emergencySvc.UseLiveChannel(relay)

	// Handlers
	images := handler.NewImageStore(cloud, cfg.Cloudinary.Folder)
	authHandler := handler.NewAuthHandler(authSvc, userRepo, auditRepo, images)
	googleOAuthHandler := handler.NewGoogleOAuthHandler(cfg, authSvc, auditRepo)
	vehicleHandler := handler.NewVehicleHandler(vehicleRepo, images)
	vendorHandler := handler.NewVendorHandler(productRepo, orderSvc, images)
	orderHandler := handler.NewOrderHandler(orderSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	emergencyHandler := handler.NewEmergencyHandler(emergencySvc, cfg.Location.DefaultRadiusKm)
	locationHandler := handler.NewLocationHandler(locRepo, userRepo, relay, cfg.Location.DefaultRadiusKm)
	chatHandler := handler.NewChatHandler(chatRepo, userRepo, relay)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)
	adminHandler := handler.NewAdminHandler(adminRepo, auditRepo, authSvc)

	authMw := []gin.HandlerFunc{middleware.AuthRequired(&cfg.JWT), middleware.ActiveAccount(userRepo)}
	vendorOnly := middleware.RequireRole(domain.RoleVendor)
	providerOnly := middleware.RequireRole(domain.RoleServiceProvider)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": hub.ClientCount()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", ws.Serve(relay))

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.GET("/google", googleOAuthHandler.Redirect)
			authGroup.GET("/google/callback", googleOAuthHandler.Callback)
			authGroup.POST("/google/token", googleOAuthHandler.Token)

			me := authGroup.Group("", authMw...)
			me.GET("/me", authHandler.Me)
			me.PUT("/me", authHandler.UpdateMe)
			me.DELETE("/me", authHandler.DeleteMe)
			me.POST("/fcm-token", authHandler.SetFCMToken)
		}

		vehicles := api.Group("/vehicles", authMw...)
		{
			vehicles.POST("", vehicleHandler.Create)
			vehicles.GET("", vehicleHandler.List)
			vehicles.GET("/:id", vehicleHandler.Get)
			vehicles.PUT("/:id", vehicleHandler.Update)
			vehicles.DELETE("/:id", vehicleHandler.Delete)
		}

		vendor := api.Group("/vendor")
		{
			vendor.GET("/getProducts", vendorHandler.ListProducts)
			vendor.GET("/getProductById/:id", vendorHandler.GetProduct)

			own := vendor.Group("", append(authMw, vendorOnly)...)
			own.POST("/addProduct", vendorHandler.AddProduct)
			own.GET("/getProductsForVendor", vendorHandler.ListOwnProducts)
			own.PUT("/updateProductStock", vendorHandler.UpdateStock)
			own.GET("/getLowStockProducts", vendorHandler.LowStock)
			own.GET("/orders", vendorHandler.ListOrders)
			own.PUT("/updateOrderStatus", vendorHandler.UpdateOrderStatus)
			own.PUT("/updateProduct", vendorHandler.UpdateProduct)
			own.DELETE("/deleteProduct/:productId", vendorHandler.DeleteProduct)
			own.GET("/notifications", notificationHandler.List)
		}

		orders := api.Group("/order/orders", authMw...)
		{
			orders.GET("", orderHandler.List)
			orders.POST("", orderHandler.Place)
			orders.GET("/:id", orderHandler.Get)
		}

		payments := api.Group("/payment")
		{
			payments.POST("/verify-payment", paymentHandler.StripeVerify())

			paid := payments.Group("", authMw...)
			paid.POST("/create-payment", paymentHandler.StripeInitiate())
			paid.POST("/khalti/initiate", paymentHandler.KhaltiInitiate())
			paid.POST("/khalti/verify", paymentHandler.KhaltiVerify())
			paid.GET("/payment-history", paymentHandler.History)
		}

		emergency := api.Group("/emergency", authMw...)
		{
			emergency.POST("/request", emergencyHandler.Create)
			emergency.GET("/user-requests", emergencyHandler.UserRequests)
			emergency.GET("/nearby-requests", providerOnly, emergencyHandler.Nearby)
			emergency.PUT("/accept/:requestId", providerOnly, emergencyHandler.Accept)
			emergency.PUT("/complete/:requestId", providerOnly, emergencyHandler.Complete)
			emergency.GET("/provider-requests", providerOnly, emergencyHandler.ProviderRequests)
		}

		loc := api.Group("/location")
		{
			loc.GET("/nearby", locationHandler.Nearby)
			loc.POST("/update", append(authMw, locationHandler.Update)...)
			loc.GET("/me", append(authMw, locationHandler.Mine)...)
		}

		chat := api.Group("/chat", authMw...)
		{
			chat.GET("/history/:otherUserId", chatHandler.History)
			chat.POST("/send", chatHandler.Send)
			chat.PUT("/read/:senderId", chatHandler.MarkRead)
			chat.GET("/unread", chatHandler.Unread)
			chat.GET("/role/:role", chatHandler.ByRole)
		}

		notifications := api.Group("/notifications", authMw...)
		{
			notifications.GET("", notificationHandler.List)
			notifications.PUT("/mark-all-read", notificationHandler.MarkAllRead)
			notifications.PUT("/:id", notificationHandler.MarkRead)
		}

		api.POST("/admin/login", adminHandler.AdminLogin)
		admin := api.Group("/admin", append(authMw, middleware.AdminRequired())...)
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.GET("/users/:userId", adminHandler.GetUser)
			admin.GET("/users/:userId/audit", adminHandler.AuditTrail)
			admin.PUT("/users/:userId/ban", adminHandler.Ban)
			admin.PUT("/users/:userId/unban", adminHandler.Unban)
			admin.GET("/stats/users/total", adminHandler.TotalUsers)
			admin.GET("/stats/overview", adminHandler.Overview)
		}
	}

	return r, hub
}

// paymentProviders registers the configured gateways. Outside production an
// unconfigured gateway is replaced by a stub so the flow can be exercised.
func paymentProviders(cfg *config.Config) []payment.Provider {
	var out []payment.Provider
	switch {
	case cfg.Khalti.SecretKey != "":
		out = append(out, payment.NewKhaltiProvider(cfg.Khalti.BaseURL, cfg.Khalti.SecretKey, cfg.Khalti.ReturnURL, cfg.Khalti.WebsiteURL))
	case cfg.Server.Env != "production":
		log.Printf("[payment] KHALTI_SECRET_KEY not set, using stub gateway")
		out = append(out, &payment.StubProvider{ProviderName: domain.ProviderKhalti})
	}
	switch {
	case cfg.Stripe.SecretKey != "":
		out = append(out, payment.NewStripeProvider(cfg.Stripe.BaseURL, cfg.Stripe.SecretKey, cfg.Stripe.Currency))
	case cfg.Server.Env != "production":
		log.Printf("[payment] STRIPE_SECRET_KEY not set, using stub gateway")
		out = append(out, &payment.StubProvider{ProviderName: domain.ProviderStripe})
	}
	return out
}
