package router

import (
	"net/http"
	"time"

	"memberhub/config"
	"memberhub/internal/domain"
	"memberhub/internal/handler"
	"memberhub/internal/middleware"
	"memberhub/internal/repository"
	"memberhub/internal/service"
	"memberhub/internal/ws"
	"memberhub/pkg/cloudinary"
	"memberhub/pkg/payment"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Options carries the collaborators built outside the router.
type Options struct {
	Cloud      cloudinary.Client // nil disables uploads
	Provider   payment.Provider
	TreasuryID uint
	Stop       <-chan struct{} // stops background cleanup when closed
}

func Setup(cfg *config.Config, db *gorm.DB, opts Options) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if !cfg.IsProduction() {
		r.Use(gin.Logger())
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	if opts.Stop != nil {
		go limiter.Cleanup(opts.Stop)
	}
	r.Use(middleware.RateLimit(limiter))

	hub := ws.NewHub()

	// Repositories
	accountRepo := repository.NewAccountRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Services
	notifSvc := service.NewNotificationService(notificationRepo, hub)
	referralSvc := service.NewReferralService(referralRepo)
	authSvc := service.NewAuthService(cfg, accountRepo, referralSvc)
	ledgerSvc := service.NewLedgerService(db, notifSvc)
	entitlementSvc := service.NewEntitlementService(db, &cfg.Payment, opts.Provider)
	reconcilerSvc := service.NewReconcilerService(db, ledgerSvc, notifSvc, opts.Provider, opts.TreasuryID)
	accountSvc := service.NewAccountService(db, opts.TreasuryID)
	contentSvc := service.NewContentService(db, entitlementSvc)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, auditRepo)
	facebookHandler := handler.NewFacebookOAuthHandler(cfg, authSvc, auditRepo)
	meHandler := handler.NewMeHandler(accountSvc, entitlementSvc, opts.Cloud)
	walletHandler := handler.NewWalletHandler(ledgerSvc)
	listingHandler := handler.NewListingHandler(ledgerSvc, opts.Cloud)
	billingHandler := handler.NewBillingHandler(entitlementSvc, cfg.Payment.Currency)
	contentHandler := handler.NewContentHandler(contentSvc, opts.Cloud)
	referralHandler := handler.NewReferralHandler(referralSvc)
	notificationHandler := handler.NewNotificationHandler(notifSvc)
	webhookHandler := handler.NewPaymentWebhookHandler(reconcilerSvc, cfg)
	adminHandler := handler.NewAdminHandler(db, accountSvc, entitlementSvc, ledgerSvc, reconcilerSvc, opts.TreasuryID)

	authMw := middleware.AuthRequired(&cfg.JWT)
	optionalAuth := middleware.OptionalAuth(&cfg.JWT)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_clients": hub.ClientCount()})
	})

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.PATCH("/change-password", authMw, authHandler.ChangePassword)
			authGroup.GET("/facebook", facebookHandler.Redirect)
			authGroup.GET("/facebook/callback", facebookHandler.Callback)
			authGroup.POST("/facebook/token", facebookHandler.Token)
		}

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/profile", meHandler.GetProfile)
			me.GET("/access", meHandler.CheckAccess)
			me.POST("/avatar", meHandler.UploadAvatar)
			me.GET("/wallet", walletHandler.GetBalance)
			me.GET("/wallet/transactions", walletHandler.ListTransactions)
			me.GET("/listings", listingHandler.ListMine)
			me.GET("/referral-code", referralHandler.GetMyReferralCode)
			me.GET("/referrals", referralHandler.GetMyReferrals)
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
		}

		wallet := api.Group("/wallet")
		wallet.Use(authMw)
		{
			wallet.POST("/transfers", walletHandler.Transfer)
			wallet.GET("/transfers/:correlation_id", walletHandler.GetTransfer)
		}

		listings := api.Group("/listings")
		listings.Use(authMw)
		{
			listings.GET("", listingHandler.List)
			listings.GET("/:id", listingHandler.Get)
			listings.POST("", middleware.RequireTier(entitlementSvc, domain.TierMember), listingHandler.Create)
			listings.POST("/:id/image", listingHandler.UploadImage)
			listings.POST("/:id/exchange", listingHandler.Exchange)
			listings.POST("/:id/archive", listingHandler.Archive)
		}

		billing := api.Group("/billing")
		{
			billing.GET("/packs", billingHandler.ListPacks)
			billing.POST("/bank-transfer", authMw, billingHandler.CreateBankTransfer)
			billing.POST("/checkout", authMw, billingHandler.CreateCheckout)
			billing.POST("/legacy-verification", authMw, billingHandler.RequestLegacyVerification)
			billing.GET("/payments", authMw, billingHandler.ListPayments)
		}

		api.GET("/content", optionalAuth, contentHandler.List)
		api.GET("/content/:slug", optionalAuth, contentHandler.Get)

		api.POST("/webhooks/payment", webhookHandler.Handle)

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.StaffRequired())
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.GET("/analytics", adminHandler.Analytics)
			admin.GET("/accounts", adminHandler.ListAccounts)
			admin.GET("/accounts/:id", adminHandler.GetAccount)
			admin.PATCH("/accounts/:id/role", adminHandler.UpdateRole)
			admin.GET("/payments", adminHandler.ListPayments)
			admin.POST("/payments/:id/mark-paid", adminHandler.MarkPaymentPaid)
			admin.POST("/payments/:id/sync", adminHandler.SyncPayment)
			admin.GET("/legacy-verifications", adminHandler.ListLegacy)
			admin.POST("/legacy-verifications/:id/confirm", adminHandler.ConfirmLegacy)
			admin.POST("/legacy-verifications/:id/reject", adminHandler.RejectLegacy)
			admin.GET("/transactions", adminHandler.ListTransactions)
			admin.GET("/content", contentHandler.AdminList)
			admin.POST("/content", contentHandler.AdminCreate)
			admin.PUT("/content/:id", contentHandler.AdminUpdate)
			admin.DELETE("/content/:id", contentHandler.AdminDelete)
			admin.POST("/content/media", contentHandler.UploadMedia)
			admin.GET("/audit", adminHandler.ListAudit)

			owners := admin.Group("")
			owners.Use(middleware.RequireRole(domain.RoleAdmin, domain.RoleSuperadmin))
			{
				owners.POST("/accounts/:id/credits", adminHandler.GrantCredits)
				owners.GET("/settings", adminHandler.GetSettings)
				owners.PUT("/settings", adminHandler.UpdateSettings)
			}
		}
	}

	r.GET("/ws/wallet", ws.UpgradeWalletWS(&cfg.JWT, ws.NewUpgrader(cfg.Server.CORSOrigins), hub, ledgerSvc))

	return r
}
