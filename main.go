package main

import (
	"log"
	"time"

	api "horajudaica-backend/cmd/api"
	"horajudaica-backend/internal/dispatch"
	subscriptiondomain "horajudaica-backend/internal/subscription/domain"
	subscriptionRepo "horajudaica-backend/internal/subscription/repository"
	subscriptionUsecase "horajudaica-backend/internal/subscription/usecase"
	"horajudaica-backend/pkg/config"
	"horajudaica-backend/pkg/database"
	"horajudaica-backend/pkg/geo"
	"horajudaica-backend/pkg/omer"
	"horajudaica-backend/pkg/onesignal"
	"horajudaica-backend/pkg/ratelimit"
)

func main() {
	// Load configuration
	cfg := config.Load()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal("Invalid TIMEZONE:", err)
	}

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&subscriptiondomain.User{}, &subscriptiondomain.Subscription{}, &dispatch.DispatchLog{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := subscriptionRepo.NewUserRepository(db)
	subRepo := subscriptionRepo.NewSubscriptionRepository(db)
	dispatchLogRepo := dispatch.NewLogRepository(db)

	// Embedded Omer calendar
	calendar, err := omer.NewCalendar()
	if err != nil {
		log.Fatal("Failed to load omer calendar:", err)
	}

	// One long-lived OneSignal client shared by every request
	oneSignalClient := onesignal.NewClient(cfg.OneSignalAppID, cfg.OneSignalAPIKey)

	// Initialize the subscription coordinator
	coordinator := subscriptionUsecase.NewSubscriptionCoordinator(userRepo, subRepo, oneSignalClient, calendar, cfg, loc)

	// Daily dispatch job + scheduler
	dispatchJob := dispatch.NewJob(calendar, oneSignalClient, dispatchLogRepo, cfg.OneSignalTemplateID, cfg.OneSignalSegment, loc)
	scheduler := dispatch.NewScheduler(dispatchJob, cfg.DispatchCron, loc)
	if err := scheduler.Start(); err != nil {
		log.Fatal("Failed to start dispatch scheduler:", err)
	}

	// Request gating
	limiter := ratelimit.New(cfg.RateLimitInterval, cfg.RateLimitBurst)

	var geoClient *geo.Client
	if cfg.GeoLookupEnabled {
		geoClient = geo.NewClient()
	} else {
		log.Println("[Main] Geo lookups disabled, identities are created without locale hints")
	}

	// Initialize HTTP handler
	handler := api.NewHandler(coordinator, dispatchJob, limiter, geoClient)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
