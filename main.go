// main.go
// CivilDesk API - Incident ticketing for the municipal civil defense office
// Offline-first local cache with optional Firestore or Google Sheets sync

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"civildesk/analyze"
	"civildesk/audit"
	"civildesk/auth"
	"civildesk/config"
	"civildesk/directory"
	"civildesk/handlers"
	"civildesk/middleware"
	"civildesk/models"
	"civildesk/store"
	"civildesk/sync"
)

// Global instances
var (
	cfg           *config.Config
	cache         *store.Store
	dataService   *sync.DataService
	dir           *directory.Service
	jwtManager    *auth.JWTManager
	trail         *audit.Trail
	authHandler   *handlers.AuthHandler
	ticketHandler *handlers.TicketHandler
	adminHandler  *handlers.AdminHandler
	exportHandler *handlers.ExportHandler
	rateLimiter   *middleware.RateLimiter
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	// Load configuration
	cfg = config.Load()
	cfg.Validate()

	log.Printf("🚀 Starting CivilDesk API Server")
	log.Printf("📍 Environment: %s", cfg.Server.Environment)
	log.Printf("🔧 Port: %s", cfg.Server.Port)

	// Open the local cache
	var err error
	cache, err = store.Open(cfg.Cache.Path)
	if err != nil {
		log.Fatalf("❌ Failed to open local cache: %v", err)
	}
	defer cache.Close()
	log.Printf("💾 Local cache ready at %s", cfg.Cache.Path)

	// Seed the cache with the default ticket and admin account
	adminHash, err := auth.HashPassword(cfg.Seed.AdminPassword)
	if err != nil {
		log.Fatalf("❌ Failed to hash seed password: %v", err)
	}
	if err := cache.Seed(store.SeedAdmin{
		ID:           cfg.Seed.AdminID,
		Name:         cfg.Seed.AdminName,
		Email:        cfg.Seed.AdminEmail,
		PasswordHash: adminHash,
	}); err != nil {
		log.Fatalf("❌ Failed to seed local cache: %v", err)
	}

	// Initialize the sync service and restore the persisted backend
	ctx := context.Background()
	dataService = sync.NewDataService(cache)
	dataService.LoadBackend(ctx)
	log.Printf("🔄 Sync backend: %s", dataService.Adapter().Name())

	// Initialize the staff directory
	dir = directory.NewService(cache)

	// Initialize JWT Manager
	jwtManager = auth.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.Expiration,
		cfg.JWT.RefreshTokenExpiration,
	)
	log.Printf("🔐 JWT Manager initialized (expiration: %v)", cfg.JWT.Expiration)

	// Initialize handlers
	trail = audit.NewTrail()
	analyzer := analyze.NewClient(cfg.Gemini)
	authHandler = handlers.NewAuthHandler(dir, jwtManager)
	ticketHandler = handlers.NewTicketHandler(dataService, analyzer)
	adminHandler = handlers.NewAdminHandler(dir, dataService, cache, trail)
	exportHandler = handlers.NewExportHandler(dataService, trail)
	log.Printf("✅ Handlers initialized")

	// Initialize rate limiter
	rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	rateLimiter.CleanupOldLimiters()
	log.Printf("🛡️  Rate limiter initialized (%d requests per %v)", cfg.RateLimit.Requests, cfg.RateLimit.Window)

	// Set up router
	mux := http.NewServeMux()

	// Public routes (no authentication required)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/api/login", authHandler.Login)
	mux.HandleFunc("/api/register", authHandler.Register)
	mux.HandleFunc("/api/refresh", authHandler.RefreshToken)

	// Protected routes (authentication required)
	authMiddleware := middleware.AuthMiddleware(jwtManager, dir)

	mux.Handle("/api/logout", authMiddleware(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("/api/session", authMiddleware(http.HandlerFunc(authHandler.Session)))

	// Ticket endpoints
	mux.Handle("/api/tickets", authMiddleware(http.HandlerFunc(ticketHandler.List)))
	mux.Handle("/api/tickets/get", authMiddleware(http.HandlerFunc(ticketHandler.Get)))
	mux.Handle("/api/tickets/save", authMiddleware(http.HandlerFunc(ticketHandler.Save)))
	mux.Handle("/api/tickets/analyze", authMiddleware(http.HandlerFunc(ticketHandler.Analyze)))

	// Status changes and exports (coordinator or admin)
	coordinatorOrAdmin := middleware.RequireRole(models.RoleCoordinator, models.RoleAdmin)
	mux.Handle("/api/tickets/status", authMiddleware(coordinatorOrAdmin(http.HandlerFunc(ticketHandler.ChangeStatus))))
	mux.Handle("/api/tickets/export", authMiddleware(coordinatorOrAdmin(http.HandlerFunc(exportHandler.ExportTickets))))

	// Admin endpoints (admin only)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	mux.Handle("/api/admin/users", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.GetUsers))))
	mux.Handle("/api/admin/users/role", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.UpdateRole))))
	mux.Handle("/api/admin/users/password", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.UpdatePassword))))
	mux.Handle("/api/admin/backend", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.GetBackend))))
	mux.Handle("/api/admin/backend/configure", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.ConfigureBackend))))
	mux.Handle("/api/admin/logo", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.GetLogo))))
	mux.Handle("/api/admin/logo/set", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.SetLogo))))
	mux.Handle("/api/admin/audit", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.GetAuditLog))))

	// Apply global middleware
	handler := middleware.CORSMiddleware(cfg.CORS.AllowedOrigins)(mux)
	handler = rateLimiter.Middleware()(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("✅ Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}

// Health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":%d,"version":"1.0.0"}`, time.Now().Unix())
}
