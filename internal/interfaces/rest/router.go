package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/config"
	"github.com/dapursambal/storefront/internal/infrastructure/metrics"
	"github.com/dapursambal/storefront/internal/interfaces/middleware"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the HTTP API on top of the wired services
func NewRouter(svcMgr *services.ServiceManager, settings *config.Settings) (*gin.Engine, error) {
	webCache, err := NewWebCacheHandler(settings.Site.AssetVersion, DefaultPrecache)
	if err != nil {
		return nil, err
	}

	router, err := newEngine(settings.HTTP)
	if err != nil {
		return nil, err
	}

	storefront := NewStorefrontHandler(svcMgr.Catalog, svcMgr.Content, svcMgr.Search)
	leads := NewLeadsHandler(svcMgr.Leads)
	orders := NewOrderHandler(svcMgr.Orders)
	experiments := NewExperimentHandler(svcMgr.Experiments)
	authHandler := NewAuthHandler(svcMgr.Auth)
	adminHandler := NewAdminHandler(svcMgr.Dashboard, svcMgr.Reports)
	catalogAdmin := NewCatalogAdminHandler(svcMgr.Catalog, svcMgr.Content)
	campaigns := NewCampaignHandler(svcMgr.Campaigns)
	audience := NewAudienceHandler(svcMgr.Leads)
	orderAdmin := NewOrderAdminHandler(svcMgr.Orders)

	requireAuth := middleware.RequireAuth(svcMgr.Auth)
	formFlood := middleware.FormFlood(svcMgr.FloodGuard)
	// Only routes that need a visitor id set the cookie, so cacheable reads stay cookie-free
	visitor := middleware.Visitor(settings.IsProduction())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := svcMgr.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "server": "golang"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/sw.js", webCache.ServiceWorker)
	router.GET("/offline", webCache.Offline)
	router.GET("/sitemap.xml", storefront.Sitemap)

	api := router.Group("/api")
	{
		api.GET("/products", storefront.ListProducts)
		api.GET("/products/:slug", storefront.GetProduct)
		api.GET("/posts", storefront.ListPosts)
		api.GET("/posts/:slug", storefront.GetPost)
		api.GET("/search", storefront.Search)

		newsletter := api.Group("/newsletter")
		{
			newsletter.POST("/subscribe", formFlood, leads.Subscribe)
			newsletter.GET("/confirm/:token", leads.Confirm)
			newsletter.POST("/unsubscribe/:token", leads.Unsubscribe)
		}
		api.POST("/contact", formFlood, leads.SubmitContact)

		api.POST("/orders", formFlood, visitor, orders.PlaceOrder)
		api.GET("/orders/:number", orders.LookupOrder)
		api.POST("/payments/webhook", orders.PaymentWebhook)

		api.POST("/experiments/:key/assign", visitor, experiments.Assign)
		api.POST("/experiments/:key/convert", visitor, experiments.Convert)
	}

	admin := api.Group("/admin")
	{
		admin.POST("/auth/login", formFlood, authHandler.Login)
	}

	protected := admin.Group("")
	protected.Use(requireAuth)
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.GetMe)
		protected.POST("/auth/change-password", authHandler.ChangePassword)

		protected.GET("/dashboard", adminHandler.Dashboard)
		protected.POST("/reports/query", adminHandler.RunReport)

		protected.GET("/products", catalogAdmin.ListProducts)
		protected.POST("/products", catalogAdmin.CreateProduct)
		protected.PUT("/products/:id", catalogAdmin.UpdateProduct)
		protected.DELETE("/products/:id", catalogAdmin.DeactivateProduct)

		protected.GET("/posts", catalogAdmin.ListPosts)
		protected.POST("/posts", catalogAdmin.CreatePost)
		protected.GET("/posts/:id", catalogAdmin.GetPost)
		protected.PUT("/posts/:id", catalogAdmin.UpdatePost)
		protected.POST("/posts/:id/publish", catalogAdmin.PublishPost)
		protected.POST("/posts/:id/unpublish", catalogAdmin.UnpublishPost)
		protected.DELETE("/posts/:id", catalogAdmin.DeletePost)

		protected.GET("/campaigns", campaigns.List)
		protected.POST("/campaigns", campaigns.Create)
		protected.GET("/campaigns/:id", campaigns.Get)
		protected.PUT("/campaigns/:id", campaigns.Update)
		protected.POST("/campaigns/:id/schedule", campaigns.Schedule)
		protected.POST("/campaigns/:id/cancel", campaigns.Cancel)
		protected.POST("/campaigns/:id/send", campaigns.SendNow)
		protected.GET("/campaigns/:id/preview", campaigns.Preview)
		protected.GET("/campaigns/:id/stats", campaigns.Stats)

		protected.GET("/experiments", experiments.List)
		protected.POST("/experiments", experiments.Create)
		protected.GET("/experiments/:id", experiments.Get)
		protected.PUT("/experiments/:id", experiments.Update)
		protected.POST("/experiments/:id/status", experiments.SetStatus)
		protected.GET("/experiments/:id/results", experiments.Results)

		protected.GET("/subscribers", audience.ListSubscribers)
		protected.GET("/subscribers/export", audience.ExportSubscribers)
		protected.GET("/contacts", audience.ListContacts)
		protected.GET("/contacts/:id", audience.ReadContact)

		protected.GET("/orders", orderAdmin.List)
		protected.GET("/orders/:id", orderAdmin.Get)
		protected.POST("/orders/:id/transition", orderAdmin.Transition)
	}

	return router, nil
}

// newEngine sets up the engine and its global middleware. ClientIP only honours
// X-Forwarded-For from the configured proxies, so per-IP limits key on the real peer.
func newEngine(httpSettings config.HTTPSettings) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(httpSettings.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.Cors(httpSettings.AllowedOrigins))
	router.Use(middleware.CachePolicy())
	return router, nil
}
