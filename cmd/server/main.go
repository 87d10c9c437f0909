package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/config"
	"github.com/dapursambal/storefront/internal/infrastructure/database"
	"github.com/dapursambal/storefront/internal/infrastructure/logging"
	"github.com/dapursambal/storefront/internal/infrastructure/mailer"
	"github.com/dapursambal/storefront/internal/infrastructure/payments"
	"github.com/dapursambal/storefront/internal/interfaces/rest"
	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadDotEnv()
	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if err := settings.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	logCloser := logging.Setup(settings.Logging)
	defer logCloser.Close()

	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database connection
	conn, err := database.Open(context.Background(), settings.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()
	log.Println("✅ Database connection established")

	// Schema is idempotent. Set SKIP_MIGRATIONS=true when migrations run out of band.
	if os.Getenv("SKIP_MIGRATIONS") != "true" {
		if err := database.Migrate(context.Background(), conn); err != nil {
			log.Fatalf("Failed to migrate schema: %v", err)
		}
	} else {
		log.Println("⚠️  Skipping migrations (SKIP_MIGRATIONS=true)")
	}

	mail, err := mailer.New(settings.Mail)
	if err != nil {
		log.Fatalf("Failed to configure mailer: %v", err)
	}
	gateway := payments.New(settings.Payments)

	svcMgr := services.NewServiceManager(conn, settings, mail, gateway)
	log.Println("🔧 Service manager initialized")

	router, err := rest.NewRouter(svcMgr, settings)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	// Start background workers
	svcMgr.StartWorkers()
	log.Println("📤 Outbox event worker started (500ms polling)")
	log.Printf("⏰ Campaign dispatcher started (%v polling)", settings.Site.CampaignPollInterval)

	port := settings.HTTP.Port
	log.Println("\n═══════════════════════════════════════════════════════════════════════════")
	log.Println("🌶️  Dapur Sambal Storefront Backend Started Successfully")
	log.Println("═══════════════════════════════════════════════════════════════════════════")
	log.Printf("\n📍 Server:         http://localhost:%s", port)
	log.Printf("🛒 Storefront API: http://localhost:%s/api", port)
	log.Printf("🔐 Admin API:      http://localhost:%s/api/admin", port)
	log.Printf("📈 Metrics:        http://localhost:%s/metrics", port)
	log.Printf("💚 Health check:   http://localhost:%s/health\n", port)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop background workers
	svcMgr.StopWorkers()
	log.Println("🛑 Background workers stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
