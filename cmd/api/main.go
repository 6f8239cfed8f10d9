package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/sagewell/sagewell-bookings/internal/http/handlers"
	httpmw "github.com/sagewell/sagewell-bookings/internal/http/middleware"
	"github.com/sagewell/sagewell-bookings/internal/platform/idempotency"
	"github.com/sagewell/sagewell-bookings/internal/platform/payments"
	"github.com/sagewell/sagewell-bookings/internal/repository"
	"github.com/sagewell/sagewell-bookings/internal/service"
	"github.com/sagewell/sagewell-bookings/pkg/config"
	"github.com/sagewell/sagewell-bookings/pkg/database"
	"github.com/sagewell/sagewell-bookings/pkg/events"
	"github.com/sagewell/sagewell-bookings/pkg/logger"
	"github.com/sagewell/sagewell-bookings/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		os.Exit(1)
	}

	idempotencyStore, err := idempotency.NewStore(cfg.Redis.URL)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer idempotencyStore.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	provider := payments.NewStripeProvider(cfg.Stripe.SecretKey)

	offeringRepo := repository.NewOfferingRepository(pool)
	availabilityRepo := repository.NewAvailabilityRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	transactionRepo := repository.NewTransactionRepository(pool)
	practitionerRepo := repository.NewPractitionerRepository(pool)

	checkoutService := service.NewCheckoutService(offeringRepo, availabilityRepo, bookingRepo, practitionerRepo, provider, eventBus, cfg)
	bookingService := service.NewBookingService(bookingRepo, availabilityRepo, transactionRepo, eventBus)
	settlementService := service.NewSettlementService(bookingRepo, availabilityRepo, transactionRepo, practitionerRepo, eventBus)

	h := handlers.New(checkoutService, bookingService, settlementService, availabilityRepo, cfg.Stripe.WebhookSecret, idempotencyStore)

	r := chi.NewRouter()

	r.Use(middleware.Health)
	r.Use(middleware.RequestID)
	r.Use(middleware.ServiceName("bookings"))
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.With(middleware.Idempotency(idempotencyStore, cfg.Booking.IdempotencyTTL)).
			Post("/checkout", h.InitiateCheckout)

		r.Get("/bookings/confirmation", h.GetByConfirmation)
		r.Get("/bookings/{id}/status", h.CheckStatus)

		r.Get("/offerings/{id}/slots", h.ListOpenSlots)
		r.Get("/offerings/{id}/event-dates", h.ListEventDates)

		r.Post("/webhooks/stripe", h.StripeWebhook)

		r.Route("/practitioner", func(r chi.Router) {
			r.Use(httpmw.RequirePractitioner(cfg.Auth.JWTSecret))
			r.Get("/bookings", h.ListOwnerBookings)
			r.Get("/bookings/{id}/transactions", h.ListBookingTransactions)
			r.Patch("/bookings/{id}/status", h.UpdateBookingStatus)
			r.Delete("/bookings/{id}", h.CancelBooking)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Bookings service starting", "port", cfg.Server.Port, "stripe_env", cfg.Stripe.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down bookings service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Bookings service stopped")
}
